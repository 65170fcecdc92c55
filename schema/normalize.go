package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeSessionRequest trims and validates the repo name and session title.
// Both must be non-empty and free of control characters.
func NormalizeSessionRequest(repo, title string) (SessionRequest, error) {
	name, err := normalizeLabel("repo", repo)
	if err != nil {
		return SessionRequest{}, err
	}
	t, err := normalizeLabel("title", title)
	if err != nil {
		return SessionRequest{}, err
	}
	return SessionRequest{Repo: RepoRef{Name: RepoName(name)}, Title: t}, nil
}

func normalizeLabel(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %s contains control characters", ErrInvalidRequest, field)
		}
	}
	return trimmed, nil
}
