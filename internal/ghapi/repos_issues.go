// Package ghapi provides GitHub API client functionality.
//
// This file (repos_issues.go) contains the issue, label, topic and repository
// edit calls used by the archive workflows and close-issues.
package ghapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
)

// Issue states accepted by Issues and SetIssueState.
const (
	IssueOpen   = "open"
	IssueClosed = "closed"
)

// Labels lists the label names of owner/repo.
func (c *Client) Labels(ctx context.Context, owner, repo string) ([]string, error) {
	raw, err := Paginate(ctx, c, "list labels of "+owner+"/"+repo,
		func(ctx context.Context, lo github.ListOptions) ([]*github.Label, *github.Response, error) {
			return c.REST.Issues.ListLabels(ctx, owner, repo, &lo)
		})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for _, l := range raw {
		names = append(names, l.GetName())
	}
	return names, nil
}

// CreateLabel creates a label. color is hex without the leading '#'.
func (c *Client) CreateLabel(ctx context.Context, owner, repo, name, color, description string) error {
	_, err := c.Do(ctx, "create label", func() (*github.Response, error) {
		_, resp, err := c.REST.Issues.CreateLabel(ctx, owner, repo, &github.Label{
			Name:        github.Ptr(name),
			Color:       github.Ptr(color),
			Description: github.Ptr(description),
		})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to create label %q on %s/%s: %w", name, owner, repo, err)
	}
	return nil
}

// DeleteLabel deletes a label. A missing label keeps its 404 status.
func (c *Client) DeleteLabel(ctx context.Context, owner, repo, name string) error {
	_, err := c.Do(ctx, "delete label", func() (*github.Response, error) {
		return c.REST.Issues.DeleteLabel(ctx, owner, repo, name)
	})
	if err != nil {
		return fmt.Errorf("failed to delete label %q on %s/%s: %w", name, owner, repo, err)
	}
	return nil
}

// Issues lists issues and pull requests in state, optionally filtered by
// labels.
func (c *Client) Issues(ctx context.Context, owner, repo, state string, labels []string) ([]Issue, error) {
	raw, err := Paginate(ctx, c, "list issues of "+owner+"/"+repo,
		func(ctx context.Context, lo github.ListOptions) ([]*github.Issue, *github.Response, error) {
			return c.REST.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
				State:       state,
				Labels:      labels,
				ListOptions: lo,
			})
		})
	if err != nil {
		return nil, err
	}
	out := make([]Issue, 0, len(raw))
	for _, i := range raw {
		out = append(out, issueFromGitHub(i))
	}
	return out, nil
}

// AddLabel adds label to issue number.
func (c *Client) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	_, err := c.Do(ctx, "label issue", func() (*github.Response, error) {
		_, resp, err := c.REST.Issues.AddLabelsToIssue(ctx, owner, repo, number, []string{label})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to label %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// RemoveLabel removes label from issue number.
func (c *Client) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	_, err := c.Do(ctx, "unlabel issue", func() (*github.Response, error) {
		return c.REST.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label)
	})
	if err != nil {
		return fmt.Errorf("failed to unlabel %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// SetIssueState opens or closes issue number. A 422 keeps its status so
// callers can tell an unprocessable item from a failure.
func (c *Client) SetIssueState(ctx context.Context, owner, repo string, number int, state string) error {
	_, err := c.Do(ctx, state+" issue", func() (*github.Response, error) {
		_, resp, err := c.REST.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{State: github.Ptr(state)})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to set %s/%s#%d %s: %w", owner, repo, number, state, err)
	}
	return nil
}

// Comment posts body on issue number.
func (c *Client) Comment(ctx context.Context, owner, repo string, number int, body string) error {
	_, err := c.Do(ctx, "comment on issue", func() (*github.Response, error) {
		_, resp, err := c.REST.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.Ptr(body)})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// ReplaceTopics sets the topics of owner/repo.
func (c *Client) ReplaceTopics(ctx context.Context, owner, repo string, topics []string) error {
	if topics == nil {
		topics = []string{}
	}
	_, err := c.Do(ctx, "replace topics", func() (*github.Response, error) {
		_, resp, err := c.REST.Repositories.ReplaceAllTopics(ctx, owner, repo, topics)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to replace topics of %s/%s: %w", owner, repo, err)
	}
	return nil
}

// EditRepo sets the description of owner/repo and, when archive is true,
// archives it in the same call.
func (c *Client) EditRepo(ctx context.Context, owner, repo string, description *string, archive bool) error {
	patch := &github.Repository{Description: description}
	if archive {
		patch.Archived = github.Ptr(true)
	}
	if description == nil {
		patch.Description = github.Ptr("")
	}
	_, err := c.Do(ctx, "edit repository", func() (*github.Response, error) {
		_, resp, err := c.REST.Repositories.Edit(ctx, owner, repo, patch)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to edit %s/%s: %w", owner, repo, err)
	}
	return nil
}
