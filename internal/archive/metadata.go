// Package archive implements the reversible repository archive workflow.
//
// Archiving labels and closes every open issue and pull request, marks the
// repository with sentinel topics and a description prefix, then flips the
// archived flag. Unarchiving reverses all of it from the label name and the
// description prefix alone; no other state is stored.
package archive

import (
	"slices"
	"strings"
)

const (
	// LabelName is the sentinel label applied to closed items.
	LabelName        = "ARCHIVED"
	LabelColor       = "c41a1a"
	LabelDescription = "CLOSED at time of archiving"

	deprecatedPrefix = "DEPRECATED"
	inactivePrefix   = "INACTIVE"
	separator        = " - "
)

// archiveTopics are appended on archive. restoreTopics are stripped on
// unarchive and also cover the older "inactive" marker.
var (
	archiveTopics = []string{"abandoned", "unmaintained"}
	restoreTopics = []string{"unmaintained", "abandoned", "inactive"}
)

// Metadata is the part of a repository the workflow rewrites.
type Metadata struct {
	Topics      []string
	Description *string
	Label       string
}

// Label returns the sentinel label for an optional custom suffix.
func Label(custom string) string {
	if custom == "" {
		return LabelName
	}
	return LabelName + separator + custom
}

// suffix recovers the custom part of a sentinel label.
func suffix(label string) string {
	s, ok := strings.CutPrefix(label, LabelName+separator)
	if !ok {
		return ""
	}
	return s
}

// ArchiveMetadata returns m as it looks after archiving with the custom
// label suffix (may be empty).
func ArchiveMetadata(m Metadata, suffix string) Metadata {
	out := Metadata{Label: Label(suffix), Topics: slices.Clone(m.Topics)}
	for _, t := range archiveTopics {
		if !slices.Contains(out.Topics, t) {
			out.Topics = append(out.Topics, t)
		}
	}

	prefix := deprecatedPrefix
	if suffix != "" {
		prefix = suffix
	}
	desc := prefix
	if m.Description != nil && *m.Description != "" {
		desc = prefix + separator + *m.Description
	}
	out.Description = &desc
	return out
}

// RestoreMetadata undoes ArchiveMetadata using m.Label to find a custom
// prefix. A nil description stays nil.
func RestoreMetadata(m Metadata) Metadata {
	out := Metadata{Label: m.Label, Topics: make([]string, 0, len(m.Topics))}
	for _, t := range m.Topics {
		if !slices.Contains(restoreTopics, t) {
			out.Topics = append(out.Topics, t)
		}
	}
	if m.Description == nil {
		return out
	}

	desc := *m.Description
	prefix := deprecatedPrefix
	if custom := suffix(m.Label); custom != "" {
		prefix = custom
	}
	stripped, ok := cutMarker(desc, prefix)
	if !ok {
		// Repositories archived by older tooling carry INACTIVE instead.
		stripped, _ = cutMarker(desc, inactivePrefix)
	}
	out.Description = &stripped
	return out
}

// cutMarker removes marker from the start of desc, either followed by the
// separator or as the whole description.
func cutMarker(desc, marker string) (string, bool) {
	if rest, ok := strings.CutPrefix(desc, marker+separator); ok {
		return rest, true
	}
	if desc == marker {
		return "", true
	}
	return desc, false
}
