package verify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Entry describes one regular file under a scanned root.
type Entry struct {
	// Name is the slash-separated path relative to the root.
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	Digest  string
	Algo    Algorithm
}

// Scanner walks a directory and digests its regular files with caching.
type Scanner struct {
	maxConcurrency int64
	algo           Algorithm
	cache          *digestCache
}

type digestCache struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	digest  string
	modTime int64
	size    int64
}

// NewScanner creates a scanner with the given concurrency limit and digest.
// A non-positive limit uses twice GOMAXPROCS.
func NewScanner(maxConcurrency int, algo Algorithm) *Scanner {
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.GOMAXPROCS(0) * 2
	}

	return &Scanner{
		maxConcurrency: int64(maxConcurrency),
		algo:           algo,
		cache: &digestCache{
			cache: make(map[string]cacheEntry),
		},
	}
}

// Scan walks root and returns its regular files sorted by name. Files that
// vanish or cannot be read mid-scan are skipped.
func (s *Scanner) Scan(ctx context.Context, root string) ([]*Entry, error) {
	var (
		entries []*Entry
		mu      sync.Mutex
	)

	sem := semaphore.NewWeighted(s.maxConcurrency)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}

		go func() {
			defer sem.Release(1)

			entry, err := s.Entry(root, path)
			if err != nil {
				return
			}

			mu.Lock()

			entries = append(entries, entry)

			mu.Unlock()
		}()

		return nil
	})

	// Drain in-flight digests even when the walk stopped early.
	_ = sem.Acquire(context.Background(), s.maxConcurrency)
	sem.Release(s.maxConcurrency)

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries, nil
}

// Entry stats and digests one file under root. Symlinks are not followed,
// so a link never makes a file outside root look like part of it.
func (s *Scanner) Entry(root, path string) (*Entry, error) {
	stat, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, fmt.Errorf("failed to relate %s to %s: %w", path, root, err)
	}

	entry := &Entry{
		Name:    filepath.ToSlash(rel),
		Path:    path,
		Size:    stat.Size(),
		ModTime: stat.ModTime(),
	}

	if s.algo.Enabled() {
		digest, err := s.digest(path, entry)
		if err != nil {
			return nil, err
		}

		entry.Digest = digest
		entry.Algo = s.algo
	}

	return entry, nil
}

func (s *Scanner) digest(path string, entry *Entry) (string, error) {
	s.cache.mu.RLock()

	if cached, exists := s.cache.cache[path]; exists {
		if cached.modTime == entry.ModTime.UnixNano() && cached.size == entry.Size {
			s.cache.mu.RUnlock()
			return cached.digest, nil
		}
	}

	s.cache.mu.RUnlock()

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	digest, _, err := Reader(s.algo, file)
	if err != nil {
		return "", fmt.Errorf("failed to calculate checksum for %s: %w", path, err)
	}

	s.cache.mu.Lock()
	s.cache.cache[path] = cacheEntry{
		digest:  digest,
		modTime: entry.ModTime.UnixNano(),
		size:    entry.Size,
	}
	s.cache.mu.Unlock()

	return digest, nil
}

// Forget drops the cached digest for path.
func (s *Scanner) Forget(path string) {
	s.cache.mu.Lock()
	delete(s.cache.cache, path)
	s.cache.mu.Unlock()
}

// CacheStats returns the number of cached digests and the bytes they cover.
func (s *Scanner) CacheStats() (int, int64) {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	var total int64
	for _, entry := range s.cache.cache {
		total += entry.size
	}

	return len(s.cache.cache), total
}
