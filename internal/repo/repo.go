package repo

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for links that are not a GitHub repository URL
var ErrInvalidURL = errors.New("invalid GitHub repository URL")

var githubURL = regexp.MustCompile(`^https?://github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`)

// Ref identifies a GitHub repository
type Ref struct {
	Owner string
	Name  string
	URL   string // As given by the caller, trimmed
}

// FullName returns owner/name
func (r Ref) FullName() string {
	return r.Owner + "/" + r.Name
}

// ID returns the lower-cased owner/name. GitHub names are case-insensitive,
// so every per-repository store is keyed by ID.
func (r Ref) ID() string {
	return strings.ToLower(r.FullName())
}

// CloneURL returns the https clone URL
func (r Ref) CloneURL() string {
	return "https://github.com/" + r.FullName() + ".git"
}

// ParseURL validates a GitHub repository link
func ParseURL(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	m := githubURL.FindStringSubmatch(raw)
	if m == nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if m[2] == "." || m[2] == ".." || m[1] == "." || m[1] == ".." {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return Ref{Owner: m[1], Name: m[2], URL: raw}, nil
}
