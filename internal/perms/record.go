// Package perms aggregates repository collaborator permissions into per-user
// records.
//
// A Record holds, for one login, the repository names it can reach bucketed
// by repository visibility and permission level. Archived repositories can be
// recorded as "*name" so flat lists still show archival status.
package perms

import (
	"slices"
	"strings"
)

// Visibility of a repository.
type Visibility int

const (
	Public Visibility = iota
	Private
)

// Level is a collaborator permission level.
type Level int

const (
	Pull Level = iota
	Push
	Admin
)

// Role is the organization role of a record's login.
type Role string

const (
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
	RoleOutside Role = "outside"
)

// ArchivedMarker prefixes archived repository names in buckets.
const ArchivedMarker = "*"

var visibilityPrefix = [...]string{Public: "pub", Private: "priv"}

var levelName = [...]string{Pull: "pull", Push: "push", Admin: "admin"}

// Label names a bucket, e.g. "privadmin".
func Label(v Visibility, l Level) string {
	return visibilityPrefix[v] + levelName[l]
}

// topOrder is the precedence of the compact top permission view.
var topOrder = []struct {
	v Visibility
	l Level
}{
	{Private, Admin}, {Public, Admin},
	{Private, Push}, {Public, Push},
	{Private, Pull}, {Public, Pull},
}

// reportOrder is the order bucket labels appear in per-repo access strings.
var reportOrder = []struct {
	v Visibility
	l Level
}{
	{Public, Pull}, {Public, Push}, {Public, Admin},
	{Private, Pull}, {Private, Push}, {Private, Admin},
}

// Record is one login's aggregated access. Buckets only grow during a scan.
type Record struct {
	Login string
	Role  Role

	buckets [2][3][]string
}

// NewRecord returns an empty record.
func NewRecord(login string, role Role) *Record {
	return &Record{Login: login, Role: role}
}

// Add appends repo to a bucket unless it is already there.
func (r *Record) Add(v Visibility, l Level, repo string) {
	if slices.Contains(r.buckets[v][l], repo) {
		return
	}
	r.buckets[v][l] = append(r.buckets[v][l], repo)
}

// Repos returns the bucket contents in insertion order.
func (r *Record) Repos(v Visibility, l Level) []string {
	return r.buckets[v][l]
}

// Has reports whether repo (plain or archived-marked) is in a bucket.
func (r *Record) Has(v Visibility, l Level, repo string) bool {
	b := r.buckets[v][l]
	return slices.Contains(b, repo) || slices.Contains(b, ArchivedMarker+repo)
}

// Counts summarizes a record.
type Counts struct {
	Public  int
	Private int
	// Bucket holds per-label counts keyed by Label.
	Bucket map[string]int
}

// Counts returns per-visibility totals and per-bucket sizes.
func (r *Record) Counts() Counts {
	c := Counts{Bucket: make(map[string]int, 6)}
	for _, v := range []Visibility{Public, Private} {
		for _, l := range []Level{Pull, Push, Admin} {
			n := len(r.buckets[v][l])
			c.Bucket[Label(v, l)] = n
			if v == Public {
				c.Public += n
			} else {
				c.Private += n
			}
		}
	}
	return c
}

// TopPermission returns the single highest label r holds on repo, following
// privadmin > pubadmin > privpush > pubpush > privpull > pubpull.
func TopPermission(r *Record, repo string) (string, bool) {
	for _, o := range topOrder {
		if r.Has(o.v, o.l, repo) {
			return Label(o.v, o.l), true
		}
	}
	return "", false
}

// TopPermissions returns "repo:label" for every repo r can reach, in the
// order repos first appear across the buckets.
func TopPermissions(r *Record) []string {
	var (
		seen []string
		out  []string
	)
	for _, o := range reportOrder {
		for _, name := range r.buckets[o.v][o.l] {
			plain := strings.TrimPrefix(name, ArchivedMarker)
			if slices.Contains(seen, plain) {
				continue
			}
			seen = append(seen, plain)
			top, _ := TopPermission(r, plain)
			out = append(out, name+":"+top)
		}
	}
	return out
}

// AccessString lists every label r holds on repo, comma separated, in
// pubpull..privadmin order. It is empty when r has no access.
func AccessString(r *Record, repo string) string {
	var labels []string
	for _, o := range reportOrder {
		if r.Has(o.v, o.l, repo) {
			labels = append(labels, Label(o.v, o.l))
		}
	}
	return strings.Join(labels, ",")
}

// Seed builds the initial user map from org members and owners. Owners win
// when a login is in both lists.
func Seed(members, admins []string) map[string]*Record {
	users := make(map[string]*Record, len(members)+len(admins))
	for _, m := range members {
		users[m] = NewRecord(m, RoleMember)
	}
	for _, a := range admins {
		users[a] = NewRecord(a, RoleAdmin)
	}
	return users
}

// Sorted returns the records ordered by login.
func Sorted(users map[string]*Record) []*Record {
	out := make([]*Record, 0, len(users))
	for _, r := range users {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Record) int { return strings.Compare(a.Login, b.Login) })
	return out
}
