package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Cloner fetches a repository working tree
type Cloner interface {
	Clone(ctx context.Context, url, dest string) error
	Head(ctx context.Context, dir string) (string, error)
}

// GitCLI implements Cloner with the git binary
type GitCLI struct{}

// Clone clones url into dest
func (GitCLI) Clone(ctx context.Context, url, dest string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", url, dest)
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone %s: %w: %s", url, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Head returns the commit hash checked out in dir
func (GitCLI) Head(ctx context.Context, dir string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// GitLog reads author dates from a local clone
type GitLog struct {
	Dir string
}

// CommitDates returns the author date of every commit reachable from HEAD
func (g GitLog) CommitDates(ctx context.Context) ([]time.Time, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", g.Dir, "log", "--format=%aI").Output()
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}

	var dates []time.Time
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, line)
		if err != nil {
			return nil, fmt.Errorf("parse commit date %q: %w", line, err)
		}
		dates = append(dates, ts)
	}
	return dates, nil
}
