package orgfile

import (
	"fmt"
	"regexp"
)

// namePattern matches GitHub organization and user names: alphanumerics
// and single hyphens, never at either end.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// ValidateName checks an organization or owner name against GitHub's rules:
//   - 1-39 characters long
//   - only alphanumeric characters and hyphens
//   - no leading or trailing hyphen
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("organization name cannot be empty")
	}
	if len(name) > 39 {
		return fmt.Errorf("organization name too long (max 39 characters): %s", name)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid organization name format: %s (must contain only alphanumeric characters and hyphens, cannot start/end with hyphen)", name)
	}
	return nil
}

// normalize validates names and drops duplicates, keeping first occurrence.
func normalize(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			return nil, err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
