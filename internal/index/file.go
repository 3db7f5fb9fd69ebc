package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/originality/internal/model"
)

const (
	vectorsSuffix   = ".vectors.json"
	fragmentsSuffix = ".fragments.json"
)

// vectorsFile is the on-disk vector sequence of one repository
type vectorsFile struct {
	RepoID    string      `json:"repo_id"`
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

// fragmentsFile is the parallel text sequence, same order as vectorsFile
type fragmentsFile struct {
	RepoID string   `json:"repo_id"`
	Texts  []string `json:"texts"`
}

type fileStamp struct {
	vecMod   int64
	vecSize  int64
	fragMod  int64
	fragSize int64
}

// snapshot is a parsed, validated repository store
type snapshot struct {
	stamp  fileStamp
	repoID string
	texts  []string
	hashes map[string]struct{}
	flat   *FlatIndex
}

// FileStore keeps one pair of JSON files per repository under dir
type FileStore struct {
	dir    string
	logger *slog.Logger
	locks  *keyedMutex

	mu     sync.Mutex
	loaded map[string]*snapshot
}

// NewFileStore creates a file-backed store rooted at dir
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger,
		locks:  newKeyedMutex(),
		loaded: make(map[string]*snapshot),
	}, nil
}

// Append adds entries to the repository's store. Entries whose text is
// already stored for the repository are skipped. Returns the number added.
func (s *FileStore) Append(ctx context.Context, repoID string, entries []model.IndexEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	id := SafeID(repoID)
	unlock := s.locks.Lock(id)
	defer unlock()

	snap, err := s.load(id)
	if err != nil {
		return 0, err
	}

	dim := snap.flat.Dimension()
	if dim == 0 {
		dim = len(entries[0].Vector)
	}

	texts := append([]string(nil), snap.texts...)
	vectors := append([][]float32(nil), snap.flat.vectors...)
	seen := make(map[string]struct{}, len(snap.hashes)+len(entries))
	for h := range snap.hashes {
		seen[h] = struct{}{}
	}

	added := 0
	for _, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return 0, fmt.Errorf("append to %s: got dimension %d, store has %d: %w", id, len(e.Vector), dim, ErrDimensionMismatch)
		}
		h := TextHash(e.Text)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		texts = append(texts, e.Text)
		vectors = append(vectors, e.Vector)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	// Fragments land first; a crash between the renames leaves a count
	// mismatch that load treats as corrupt.
	if err := writeJSONAtomic(s.fragmentsPath(id), fragmentsFile{RepoID: repoID, Texts: texts}); err != nil {
		return 0, fmt.Errorf("write fragments for %s: %w", id, err)
	}
	if err := writeJSONAtomic(s.vectorsPath(id), vectorsFile{RepoID: repoID, Dimension: dim, Vectors: vectors}); err != nil {
		return 0, fmt.Errorf("write vectors for %s: %w", id, err)
	}

	s.forget(id)
	s.logger.Debug("index append", "repo", id, "added", added, "total", len(texts))
	return added, nil
}

// Query returns, per input vector, the k nearest entries of one repository
func (s *FileStore) Query(ctx context.Context, repoID string, vectors [][]float32, k int) ([][]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := SafeID(repoID)
	snap, err := s.loadShared(id)
	if err != nil {
		return nil, err
	}
	return snap.query(vectors, k)
}

// Search runs the query across every repository except excludeRepoID and
// merges the per-vector results by ascending distance. Stores with a
// different dimension are skipped.
func (s *FileStore) Search(ctx context.Context, excludeRepoID string, vectors [][]float32, k int) ([][]Neighbor, error) {
	repos, err := s.Repositories(ctx)
	if err != nil {
		return nil, err
	}

	exclude := SafeID(excludeRepoID)
	results := emptyResults(len(vectors))
	for _, id := range repos {
		if id == exclude {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.Query(ctx, id, vectors, k)
		if err != nil {
			s.logger.Warn("skipping index", "repo", id, "error", err)
			continue
		}
		results = mergeNeighbors(results, res, k)
	}
	return results, nil
}

// Delete removes the repository's store
func (s *FileStore) Delete(ctx context.Context, repoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := SafeID(repoID)
	unlock := s.locks.Lock(id)
	defer unlock()

	for _, path := range []string{s.vectorsPath(id), s.fragmentsPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", path, err)
		}
	}
	s.forget(id)
	return nil
}

// Repositories lists repositories with a persisted store, sorted
func (s *FileStore) Repositories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list index dir: %w", err)
	}

	repos := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), vectorsSuffix) {
			continue
		}
		repos = append(repos, strings.TrimSuffix(e.Name(), vectorsSuffix))
	}
	sort.Strings(repos)
	return repos, nil
}

// Stats reports entry counts and dimensions per repository
func (s *FileStore) Stats(ctx context.Context) ([]RepoStats, error) {
	repos, err := s.Repositories(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]RepoStats, 0, len(repos))
	for _, id := range repos {
		snap, err := s.loadShared(id)
		if err != nil {
			return nil, err
		}
		stats = append(stats, RepoStats{RepoID: id, Entries: snap.flat.Len(), Dimension: snap.flat.Dimension()})
	}
	return stats, nil
}

// Close releases nothing; the store holds no open handles
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) vectorsPath(id string) string {
	return filepath.Join(s.dir, id+vectorsSuffix)
}

func (s *FileStore) fragmentsPath(id string) string {
	return filepath.Join(s.dir, id+fragmentsSuffix)
}

func (s *FileStore) forget(id string) {
	s.mu.Lock()
	delete(s.loaded, id)
	s.mu.Unlock()
}

// loadShared loads the store under the repository's read lock, so a reader
// never sees the fragments of one append next to the vectors of another
func (s *FileStore) loadShared(id string) (*snapshot, error) {
	unlock := s.locks.RLock(id)
	defer unlock()
	return s.load(id)
}

// load returns the parsed store, reusing the cached parse while the files
// are unchanged. Missing stores and corrupt stores load as empty.
func (s *FileStore) load(id string) (*snapshot, error) {
	stamp, present, err := s.stat(id)
	if err != nil {
		return nil, err
	}
	if !present {
		return emptySnapshot(id), nil
	}

	s.mu.Lock()
	cached, ok := s.loaded[id]
	s.mu.Unlock()
	if ok && cached.stamp == stamp {
		return cached, nil
	}

	snap, err := s.read(id)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			s.logger.Warn("corrupt index treated as empty", "repo", id, "error", err)
			return emptySnapshot(id), nil
		}
		return nil, err
	}
	snap.stamp = stamp

	s.mu.Lock()
	s.loaded[id] = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *FileStore) stat(id string) (fileStamp, bool, error) {
	vi, verr := os.Stat(s.vectorsPath(id))
	fi, ferr := os.Stat(s.fragmentsPath(id))
	if os.IsNotExist(verr) && os.IsNotExist(ferr) {
		return fileStamp{}, false, nil
	}
	if verr != nil && !os.IsNotExist(verr) {
		return fileStamp{}, false, fmt.Errorf("stat vectors: %w", verr)
	}
	if ferr != nil && !os.IsNotExist(ferr) {
		return fileStamp{}, false, fmt.Errorf("stat fragments: %w", ferr)
	}

	var stamp fileStamp
	if vi != nil {
		stamp.vecMod, stamp.vecSize = vi.ModTime().UnixNano(), vi.Size()
	}
	if fi != nil {
		stamp.fragMod, stamp.fragSize = fi.ModTime().UnixNano(), fi.Size()
	}
	return stamp, true, nil
}

func (s *FileStore) read(id string) (*snapshot, error) {
	var vf vectorsFile
	if err := readJSON(s.vectorsPath(id), &vf); err != nil {
		return nil, err
	}
	var ff fragmentsFile
	if err := readJSON(s.fragmentsPath(id), &ff); err != nil {
		return nil, err
	}

	if len(vf.Vectors) != len(ff.Texts) {
		return nil, fmt.Errorf("%d vectors but %d texts: %w", len(vf.Vectors), len(ff.Texts), ErrCorrupt)
	}

	flat := NewFlatIndex(vf.Dimension)
	if err := flat.Add(vf.Vectors...); err != nil {
		return nil, fmt.Errorf("ragged vectors (%v): %w", err, ErrCorrupt)
	}

	repoID := vf.RepoID
	if repoID == "" {
		repoID = id
	}
	snap := &snapshot{
		repoID: repoID,
		texts:  ff.Texts,
		hashes: make(map[string]struct{}, len(ff.Texts)),
		flat:   flat,
	}
	for _, t := range ff.Texts {
		snap.hashes[TextHash(t)] = struct{}{}
	}
	return snap, nil
}

func emptySnapshot(id string) *snapshot {
	return &snapshot{
		repoID: id,
		hashes: map[string]struct{}{},
		flat:   NewFlatIndex(0),
	}
}

func (snap *snapshot) query(vectors [][]float32, k int) ([][]Neighbor, error) {
	results := emptyResults(len(vectors))
	if snap.flat.Len() == 0 {
		return results, nil
	}
	for i, v := range vectors {
		hits, err := snap.flat.Search(v, k)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", snap.repoID, err)
		}
		for _, h := range hits {
			results[i] = append(results[i], Neighbor{
				RepoID:   snap.repoID,
				Position: h.Position,
				Distance: h.Distance,
				Entry: model.IndexEntry{
					Vector: snap.flat.vectors[h.Position],
					Text:   snap.texts[h.Position],
					RepoID: snap.repoID,
				},
			})
		}
	}
	return results, nil
}

// TextHash identifies stored content for dedupe
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("missing %s: %w", filepath.Base(path), ErrCorrupt)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty %s: %w", filepath.Base(path), ErrCorrupt)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s (%v): %w", filepath.Base(path), err, ErrCorrupt)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
