package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/originality/internal/model"
)

// Repository is a fetched working tree and the files read from it
type Repository struct {
	Ref        Ref
	Dir        string
	CommitHash string
	Files      []model.SourceFile
	Readme     string
	License    string
	HasReadme  bool
	HasLicense bool
}

// Fetcher clones repositories and reads their source files
type Fetcher struct {
	cloner     Cloner
	cloneDir   string
	keep       bool
	extensions map[string]bool
	maxBytes   int64
	logger     *slog.Logger
}

// NewFetcher creates a fetcher using the git binary
func NewFetcher(gh model.GitHubConfig, analysis model.AnalysisConfig, logger *slog.Logger) *Fetcher {
	return NewFetcherWithCloner(GitCLI{}, gh, analysis, logger)
}

// NewFetcherWithCloner creates a fetcher with a custom cloner
func NewFetcherWithCloner(cloner Cloner, gh model.GitHubConfig, analysis model.AnalysisConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]bool, len(analysis.Extensions))
	for _, e := range analysis.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Fetcher{
		cloner:     cloner,
		cloneDir:   gh.CloneDir,
		keep:       gh.KeepClones,
		extensions: exts,
		maxBytes:   analysis.MaxFileBytes,
		logger:     logger,
	}
}

// Fetch clones ref into a fresh directory under the clone dir and reads it.
// Each call gets its own directory, so concurrent fetches of the same
// repository do not collide.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) (*Repository, error) {
	if err := os.MkdirAll(f.cloneDir, 0o755); err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	dir, err := os.MkdirTemp(f.cloneDir, SafeName(ref.Name)+"-")
	if err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	dest := filepath.Join(dir, "src")

	if err := f.cloner.Clone(ctx, ref.CloneURL(), dest); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	r := &Repository{Ref: ref, Dir: dest, CommitHash: "unknown"}
	if hash, err := f.cloner.Head(ctx, dest); err == nil && hash != "" {
		r.CommitHash = hash
	} else if err != nil {
		f.logger.Warn("could not resolve HEAD", "repo", ref.FullName(), "error", err)
	}

	if err := f.read(dest, r); err != nil {
		f.Cleanup(r)
		return nil, err
	}

	f.logger.Info("repository fetched",
		"repo", ref.FullName(),
		"commit", r.CommitHash,
		"files", len(r.Files),
		"readme", r.HasReadme,
	)
	return r, nil
}

// Cleanup removes the clone unless clones are kept
func (f *Fetcher) Cleanup(r *Repository) {
	if r == nil || f.keep || r.Dir == "" {
		return
	}
	if err := os.RemoveAll(filepath.Dir(r.Dir)); err != nil {
		f.logger.Warn("failed to remove clone", "dir", r.Dir, "error", err)
	}
}

// read walks the tree collecting source files, README.md and LICENSE
func (f *Fetcher) read(root string, r *Repository) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			f.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		name := strings.ToLower(d.Name())
		isReadme := name == "readme.md"
		isLicense := name == "license"
		isSource := f.extensions[strings.ToLower(filepath.Ext(name))]
		if !isReadme && !isLicense && !isSource {
			return nil
		}

		if f.maxBytes > 0 {
			if info, err := d.Info(); err == nil && info.Size() > f.maxBytes {
				f.logger.Debug("skipping large file", "path", path, "bytes", info.Size())
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			f.logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		if !utf8.Valid(data) {
			f.logger.Debug("skipping non UTF-8 file", "path", path)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		rel = filepath.ToSlash(rel)

		switch {
		case isReadme:
			// The top-level README wins over nested ones
			if !r.HasReadme || !strings.Contains(rel, "/") {
				r.Readme = string(data)
				r.HasReadme = true
			}
		case isLicense:
			if !r.HasLicense || !strings.Contains(rel, "/") {
				r.License = string(data)
				r.HasLicense = true
			}
		default:
			r.Files = append(r.Files, model.SourceFile{Path: rel, Content: string(data)})
		}
		return nil
	})
}

// SafeName replaces characters unsafe in file names
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "repo"
	}
	return b.String()
}
