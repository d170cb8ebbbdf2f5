// Package ghapi provides GitHub API client functionality.
//
// This file (core_errors.go) classifies API failures. Callers decide per
// class whether to swallow (expected 404s), skip (5xx) or abort.
package ghapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
)

// Sentinel errors for responses without a go-github error type.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnprocessable = errors.New("unprocessable entity")
	ErrServer        = errors.New("server error")
)

// QueryError is a GraphQL request that did not return HTTP 200.
type QueryError struct {
	StatusCode int
	Query      string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed to run by returning code of %d: %s", e.StatusCode, compact(e.Query))
}

// PayloadError is a GraphQL response whose shape is not what the caller
// expected, or one that carries an errors array.
type PayloadError struct {
	Path    []string
	Reason  string
	Payload map[string]any
}

func (e *PayloadError) Error() string {
	dump, err := json.MarshalIndent(e.Payload, "", "  ")
	if err != nil {
		dump = []byte(fmt.Sprintf("%v", e.Payload))
	}
	return fmt.Sprintf("unexpected GraphQL payload at %s: %s\n%s", strings.Join(e.Path, "."), e.Reason, dump)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) && rl.Response != nil {
		return rl.Response.StatusCode
	}
	var ab *github.AbuseRateLimitError
	if errors.As(err, &ab) && ab.Response != nil {
		return ab.Response.StatusCode
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.StatusCode
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServer):
		return http.StatusInternalServerError
	}
	return 0
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnprocessable reports a 422.
func IsUnprocessable(err error) bool {
	return StatusCode(err) == http.StatusUnprocessableEntity
}

// IsServerError reports any 5xx.
func IsServerError(err error) bool {
	return StatusCode(err) >= 500
}

// IsRateLimited reports a primary or secondary rate limit rejection.
func IsRateLimited(err error) bool {
	var rl *github.RateLimitError
	var ab *github.AbuseRateLimitError
	return errors.As(err, &rl) || errors.As(err, &ab)
}

// IsExpected404 reports whether a 404 for repo is normal. Repositories
// created for security advisories (temporary private forks named
// "<repo>-ghsa-xxxx") disappear or deny collaborator access routinely.
func IsExpected404(repo string) bool {
	return strings.Contains(repo, "-ghsa-")
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
