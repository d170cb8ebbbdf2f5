package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Cloner clones repositories into memory to read their history.
type Cloner struct {
	// Token authenticates as x-access-token over HTTPS. Empty clones
	// anonymously.
	Token string
	// Depth limits history; 0 clones all of it.
	Depth int
}

// WikiURL returns the clone URL of a repository's wiki.
func WikiURL(cloneURL string) string {
	return strings.TrimSuffix(cloneURL, ".git") + ".wiki.git"
}

// LastCommit clones url and returns the newest commit time reachable from
// HEAD. ok is false when the remote has no commits.
func (c Cloner) LastCommit(ctx context.Context, url string) (t time.Time, ok bool, err error) {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        c.Depth,
		SingleBranch: true,
		NoCheckout:   true,
		Tags:         git.NoTags,
	}
	if c.Token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: c.Token}
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, opts)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("clone %s: %w", url, err)
	}
	return Newest(repo)
}

// Newest returns the newest committer time in the history of HEAD.
func Newest(repo *git.Repository) (time.Time, bool, error) {
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var newest time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Committer.When.After(newest) {
			newest = c.Committer.When
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("walk log: %w", err)
	}
	return newest, !newest.IsZero(), nil
}
