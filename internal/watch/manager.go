package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nclack/mirror/internal/eventloop"
	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/pipeline"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileHandler receives every regular file found under the root.
type FileHandler interface {
	Handle(path string)
}

type Options struct {
	DirScanDelay time.Duration
	PurgeDelay   time.Duration
	Trash        *pipeline.Matcher
	Ignore       *pipeline.Matcher
}

// Entry is one directory under watch.
type Entry struct {
	Path  string    `json:"path"`
	Since time.Time `json:"since"`
}

// Manager owns the set of watched directories below root. Everything except
// Start and Close runs on the event loop.
type Manager struct {
	loop      *eventloop.Loop
	fw        *fsnotify.Watcher
	root      string
	opts      Options
	debouncer *pipeline.Debouncer
	handler   FileHandler

	entries map[string]*Entry
	add     func(string) error
	doneCh  chan struct{}
}

func NewManager(loop *eventloop.Loop, root string, debouncer *pipeline.Debouncer, handler FileHandler, opts Options) (*Manager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("source directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", absRoot)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	m := &Manager{
		loop:      loop,
		fw:        fw,
		root:      absRoot,
		opts:      opts,
		debouncer: debouncer,
		handler:   handler,
		entries:   make(map[string]*Entry),
		doneCh:    make(chan struct{}),
	}
	m.add = fw.Add

	return m, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Start pumps notifications onto the loop and scans the root.
func (m *Manager) Start(ctx context.Context) {
	go m.run(ctx)

	m.loop.Post(func() {
		if !m.Watch(m.root) {
			logger.Log.Error("cannot watch source root", zap.String("root", m.root))
			return
		}
		logger.Log.Info("watcher started", zap.String("root", m.root))
		m.scan(m.root)
	})
}

func (m *Manager) Close() error {
	select {
	case <-m.doneCh:
	default:
		close(m.doneCh)
	}
	return m.fw.Close()
}

func (m *Manager) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.doneCh:
			return

		case ev, ok := <-m.fw.Events:
			if !ok {
				return
			}

			// deletions and renames-away are not interesting
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			path := ev.Name
			m.loop.Post(func() { m.handlePath(path) })

		case err, ok := <-m.fw.Errors:
			if !ok {
				return
			}
			logger.Log.Error("watcher error", zap.Error(err))
		}
	}
}

// Watch starts monitoring dir. It reports false if the directory could not be
// subscribed, typically because it vanished after being listed.
func (m *Manager) Watch(dir string) bool {
	if _, ok := m.entries[dir]; ok {
		return true
	}

	if err := m.add(dir); err != nil {
		logger.Log.Warn("failed to watch directory, skipping",
			zap.String("path", dir),
			zap.Error(err))
		return false
	}

	m.entries[dir] = &Entry{Path: dir, Since: time.Now()}
	logger.Log.Debug("watching directory", zap.String("path", dir))
	return true
}

// Unwatch closes the watch on dir. Unknown or already closed watches are ignored.
func (m *Manager) Unwatch(dir string) {
	if _, ok := m.entries[dir]; !ok {
		return
	}
	delete(m.entries, dir)

	if err := m.fw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		logger.Log.Debug("failed to remove watch", zap.String("path", dir), zap.Error(err))
	}
}

func (m *Manager) IsWatched(dir string) bool {
	_, ok := m.entries[dir]
	return ok
}

func (m *Manager) Len() int {
	return len(m.entries)
}

func (m *Manager) Watched() []string {
	dirs := make([]string, 0, len(m.entries))
	for dir := range m.entries {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

type statResult struct {
	info fs.FileInfo
	err  error
}

// handlePath classifies a notified or listed path.
func (m *Manager) handlePath(path string) {
	if !m.debouncer.ShouldHandle(path) {
		logger.Log.Debug("duplicate notification suppressed", zap.String("path", path))
		return
	}

	eventloop.Async(m.loop, func() statResult {
		info, err := os.Stat(path)
		return statResult{info: info, err: err}
	}, func(r statResult) {
		switch {
		case r.err != nil:
			// usually deleted or renamed before we got here
			logger.Log.Debug("stat failed, dropping", zap.String("path", path), zap.Error(r.err))
		case r.info.IsDir():
			m.onDirectory(path)
		case r.info.Mode().IsRegular():
			m.handler.Handle(path)
		default:
			logger.Log.Debug("not a regular file, skipping",
				zap.String("path", path),
				zap.Stringer("mode", r.info.Mode()))
		}
	})
}

func (m *Manager) onDirectory(dir string) {
	if m.opts.Ignore.Match(filepath.Base(dir)) {
		logger.Log.Debug("ignored directory", zap.String("path", dir))
		return
	}

	if !m.Watch(dir) {
		return
	}

	// a subtree copied in from elsewhere may already be populated
	m.loop.After(m.opts.DirScanDelay, func() { m.scan(dir) })
}

type listing struct {
	names []string
	err   error
}

func (m *Manager) scan(dir string) {
	eventloop.Async(m.loop, func() listing {
		entries, err := os.ReadDir(dir)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return listing{names: names, err: err}
	}, func(l listing) {
		if l.err != nil {
			logger.Log.Warn("failed to list directory", zap.String("path", dir), zap.Error(l.err))
			return
		}
		for _, name := range l.names {
			m.handlePath(filepath.Join(dir, name))
		}
	})
}

type purgeListing struct {
	remaining int
	trashed   int
	err       error
}

// AttemptPurge removes dir once it holds nothing but trash, then tries the
// parent if the parent is under watch too. The root itself is never removed.
func (m *Manager) AttemptPurge(dir string) {
	if dir == m.root || !m.IsWatched(dir) {
		return
	}

	eventloop.Async(m.loop, func() purgeListing {
		return m.clearTrash(dir)
	}, func(l purgeListing) {
		switch {
		case errors.Is(l.err, fs.ErrNotExist):
			m.Unwatch(dir)
			m.debouncer.Forget(dir)
			m.purgeParent(dir)
			return
		case l.err != nil:
			logger.Log.Warn("failed to list directory for purge", zap.String("path", dir), zap.Error(l.err))
			return
		case l.remaining > 0:
			logger.Log.Debug("directory not empty, kept",
				zap.String("path", dir),
				zap.Int("entries", l.remaining))
			return
		}

		if !m.IsWatched(dir) {
			return
		}
		m.Unwatch(dir)

		eventloop.Async(m.loop, func() error {
			return os.Remove(dir)
		}, func(err error) {
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.Log.Warn("failed to remove directory, keeping watch",
					zap.String("path", dir),
					zap.Error(err))
				if m.Watch(dir) {
					m.scan(dir)
				}
				return
			}

			logger.Log.Info("purged empty directory",
				zap.String("path", dir),
				zap.Int("trash", l.trashed))
			m.debouncer.Forget(dir)
			m.purgeParent(dir)
		})
	})
}

func (m *Manager) purgeParent(dir string) {
	parent := filepath.Dir(dir)
	if parent == dir || !m.IsWatched(parent) {
		return
	}
	m.loop.After(m.opts.PurgeDelay, func() { m.AttemptPurge(parent) })
}

func (m *Manager) clearTrash(dir string) purgeListing {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return purgeListing{err: err}
	}

	var l purgeListing
	for _, e := range entries {
		if e.IsDir() || !m.opts.Trash.Match(e.Name()) {
			l.remaining++
			continue
		}

		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Log.Warn("failed to delete trash file", zap.String("path", path), zap.Error(err))
			l.remaining++
			continue
		}
		l.trashed++
	}

	return l
}
