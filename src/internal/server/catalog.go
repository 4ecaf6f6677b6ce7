package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/codeslinger/sendfile/src/internal/verify"
)

// Catalog maps request names to the regular files under a root directory.
type Catalog struct {
	root    string
	scanner *verify.Scanner
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[string]*verify.Entry
}

// NewCatalog creates an empty catalog for root. Call Refresh to fill it.
func NewCatalog(root string, scanner *verify.Scanner, logger *zap.Logger) (*Catalog, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", root, err)
	}

	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", abs, err)
	}

	if !st.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	if scanner == nil {
		scanner = verify.NewScanner(0, verify.None)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Catalog{
		root:    abs,
		scanner: scanner,
		logger:  logger,
		entries: make(map[string]*verify.Entry),
	}, nil
}

// Root returns the absolute catalog root.
func (c *Catalog) Root() string {
	return c.root
}

// Refresh rescans the whole root and replaces the catalog.
func (c *Catalog) Refresh(ctx context.Context) error {
	entries, err := c.scanner.Scan(ctx, c.root)
	if err != nil {
		return err
	}

	next := make(map[string]*verify.Entry, len(entries))
	for _, e := range entries {
		next[e.Name] = e
	}

	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()

	c.logger.Info("catalog refreshed", zap.String("root", c.root), zap.Int("files", len(next)))

	return nil
}

// CleanName normalizes a request name. Absolute names and names that climb
// out of the root are rejected.
func CleanName(name string) (string, bool) {
	if name == "" || strings.Contains(name, "\\") || path.IsAbs(name) {
		return "", false
	}

	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}

	return clean, true
}

// Lookup returns the entry for a request name.
func (c *Catalog) Lookup(name string) (*verify.Entry, bool) {
	clean, ok := CleanName(name)
	if !ok {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[clean]

	return e, ok
}

// Len returns the number of files in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Entries returns the catalog sorted by name.
func (c *Catalog) Entries() []*verify.Entry {
	c.mu.RLock()

	out := make([]*verify.Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}

	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// update re-reads one path after a change notification.
func (c *Catalog) update(p string) {
	rel, err := filepath.Rel(c.root, p)
	if err != nil {
		return
	}

	name := filepath.ToSlash(rel)

	entry, err := c.scanner.Entry(c.root, p)
	if err != nil {
		c.scanner.Forget(p)

		c.mu.Lock()
		_, existed := c.entries[name]
		delete(c.entries, name)
		c.mu.Unlock()

		if existed {
			c.logger.Debug("catalog entry removed", zap.String("name", name))
		}

		return
	}

	c.mu.Lock()
	c.entries[name] = entry
	c.mu.Unlock()

	c.logger.Debug("catalog entry updated", zap.String("name", name), zap.Int64("size", entry.Size))
}

// removePrefix drops every entry under a directory that went away.
func (c *Catalog) removePrefix(p string) {
	rel, err := filepath.Rel(c.root, p)
	if err != nil {
		return
	}

	prefix := filepath.ToSlash(rel) + "/"

	c.mu.Lock()
	for name, e := range c.entries {
		if strings.HasPrefix(name, prefix) {
			c.scanner.Forget(e.Path)
			delete(c.entries, name)
		}
	}
	c.mu.Unlock()
}

// Watch keeps the catalog in sync with the file system until ctx is done.
// Events on one path are coalesced over the debounce delay.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	d := &eventDebouncer{delay: debounce, pending: make(map[string]*time.Timer)}
	defer d.stop()

	if err := c.addTree(watcher, c.root); err != nil {
		return err
	}

	c.logger.Info("watching catalog", zap.String("root", c.root), zap.Duration("debounce", debounce))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			c.handleEvent(watcher, d, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			c.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (c *Catalog) handleEvent(watcher *fsnotify.Watcher, d *eventDebouncer, event fsnotify.Event) {
	name := event.Name

	if event.Op&fsnotify.Create == fsnotify.Create {
		if st, err := os.Lstat(name); err == nil && st.IsDir() {
			// New directories need a watch of their own, and may already
			// hold files that were created before the watch existed.
			if err := c.addTree(watcher, name); err != nil {
				c.logger.Warn("failed to watch new directory", zap.String("path", name), zap.Error(err))
			}

			d.debounce(name, func() { c.scanTree(name) })

			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		c.removePrefix(name)
	}

	d.debounce(name, func() { c.update(name) })
}

func (c *Catalog) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", p, err)
		}

		return nil
	})
}

func (c *Catalog) scanTree(root string) {
	_ = filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err == nil && entry.Type().IsRegular() {
			c.update(p)
		}

		return nil
	})
}

type eventDebouncer struct {
	delay   time.Duration
	pending map[string]*time.Timer
	mu      sync.Mutex
}

func (d *eventDebouncer) debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.pending[key]; exists {
		timer.Stop()
	}

	d.pending[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
}

func (d *eventDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, timer := range d.pending {
		timer.Stop()
	}

	d.pending = make(map[string]*time.Timer)
}
