package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nclack/mirror/internal/eventloop"
	"github.com/nclack/mirror/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	paths []string
}

func (h *recordingHandler) Handle(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = append(h.paths, path)
}

func (h *recordingHandler) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]string(nil), h.paths...)
	sort.Strings(out)
	return out
}

func (h *recordingHandler) Count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, p := range h.paths {
		if p == path {
			n++
		}
	}
	return n
}

type fixture struct {
	loop    *eventloop.Loop
	mgr     *Manager
	handler *recordingHandler
	root    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	trash, err := pipeline.NewMatcher([]string{".DS_Store", "Thumbs.db", "._*"})
	require.NoError(t, err)
	ignore, err := pipeline.NewMatcher([]string{"$RECYCLE.BIN", ".Trashes"})
	require.NoError(t, err)

	root := t.TempDir()
	f := &fixture{
		loop:    eventloop.New(),
		handler: &recordingHandler{},
		root:    root,
	}

	f.mgr, err = NewManager(f.loop, root, pipeline.NewDebouncer(time.Minute), f.handler, Options{
		DirScanDelay: 10 * time.Millisecond,
		PurgeDelay:   time.Millisecond,
		Trash:        trash,
		Ignore:       ignore,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go f.loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-f.loop.Done()
		_ = f.mgr.Close()
	})

	return f
}

func (f *fixture) start(ctx context.Context) {
	f.mgr.Start(ctx)
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (f *fixture) mkdir(t *testing.T, rel string) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(path, 0755))
	return path
}

func (f *fixture) watched(t *testing.T, dir string) bool {
	t.Helper()
	var ok bool
	require.NoError(t, f.loop.Do(context.Background(), func() { ok = f.mgr.IsWatched(dir) }))
	return ok
}

func (f *fixture) watch(t *testing.T, dir string) bool {
	t.Helper()
	var ok bool
	require.NoError(t, f.loop.Do(context.Background(), func() { ok = f.mgr.Watch(dir) }))
	return ok
}

func (f *fixture) purge(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, f.loop.Do(context.Background(), func() { f.mgr.AttemptPurge(dir) }))
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func TestNewManager_RejectsMissingRoot(t *testing.T) {
	_, err := NewManager(eventloop.New(), filepath.Join(t.TempDir(), "nope"), pipeline.NewDebouncer(time.Second), &recordingHandler{}, Options{})
	assert.Error(t, err)
}

func TestManager_StartupScanFindsExistingFiles(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "a.txt", "a")
	b := f.write(t, filepath.Join("sub", "b.txt"), "b")

	f.start(context.Background())

	require.Eventually(t, func() bool { return len(f.handler.Paths()) == 2 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{a, b}, f.handler.Paths())
	assert.True(t, f.watched(t, f.root))
	assert.True(t, f.watched(t, filepath.Join(f.root, "sub")))
}

func TestManager_NotifiedFileHandled(t *testing.T) {
	f := newFixture(t)
	f.start(context.Background())
	require.Eventually(t, func() bool { return f.watched(t, f.root) }, time.Second, 5*time.Millisecond)

	c := f.write(t, "c.txt", "new")

	require.Eventually(t, func() bool { return f.handler.Count(c) == 1 }, 3*time.Second, 5*time.Millisecond)
}

func TestManager_NewPopulatedDirectoryHandledOnce(t *testing.T) {
	f := newFixture(t)
	f.start(context.Background())
	require.Eventually(t, func() bool { return f.watched(t, f.root) }, time.Second, 5*time.Millisecond)

	// moved in from elsewhere already holding a file
	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "batch"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "batch", "d.txt"), []byte("d"), 0644))
	require.NoError(t, os.Rename(filepath.Join(staging, "batch"), filepath.Join(f.root, "batch")))

	d := filepath.Join(f.root, "batch", "d.txt")
	require.Eventually(t, func() bool { return f.handler.Count(d) == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.True(t, f.watched(t, filepath.Join(f.root, "batch")))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.handler.Count(d))
}

func TestManager_IgnoredDirectorySkipped(t *testing.T) {
	f := newFixture(t)
	f.write(t, filepath.Join("$RECYCLE.BIN", "junk.txt"), "x")
	keep := f.write(t, "keep.txt", "k")

	f.start(context.Background())

	require.Eventually(t, func() bool { return f.handler.Count(keep) == 1 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{keep}, f.handler.Paths())
	assert.False(t, f.watched(t, filepath.Join(f.root, "$RECYCLE.BIN")))
}

func TestManager_WatchFailureSkipsDirectory(t *testing.T) {
	f := newFixture(t)
	gone := filepath.Join(f.root, "vanished")

	assert.False(t, f.watch(t, gone))
	assert.False(t, f.watched(t, gone))
}

func TestManager_WatchIdempotentAndUnwatchSafe(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, "x")

	assert.True(t, f.watch(t, dir))
	assert.True(t, f.watch(t, dir))

	var n int
	require.NoError(t, f.loop.Do(context.Background(), func() {
		n = f.mgr.Len()
		f.mgr.Unwatch(dir)
		f.mgr.Unwatch(dir)
	}))
	assert.Equal(t, 1, n)
	assert.False(t, f.watched(t, dir))
}

func TestManager_PurgeRemovesTrashOnlyDirectory(t *testing.T) {
	f := newFixture(t)
	sub := f.mkdir(t, "sub")
	f.write(t, filepath.Join("sub", ".DS_Store"), "meta")
	f.write(t, filepath.Join("sub", "._a.txt"), "fork")
	require.True(t, f.watch(t, f.root))
	require.True(t, f.watch(t, sub))

	f.purge(t, sub)

	require.Eventually(t, func() bool { return missing(sub) }, time.Second, 5*time.Millisecond)
	assert.False(t, f.watched(t, sub))
	assert.False(t, missing(f.root))
}

func TestManager_PurgeCascadesToWatchedParents(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, "a")
	ab := f.mkdir(t, filepath.Join("a", "b"))
	require.True(t, f.watch(t, f.root))
	require.True(t, f.watch(t, a))
	require.True(t, f.watch(t, ab))

	f.purge(t, ab)

	require.Eventually(t, func() bool { return missing(a) }, time.Second, 5*time.Millisecond)
	assert.False(t, missing(f.root))
	assert.True(t, f.watched(t, f.root))
}

func TestManager_PurgeStopsAtUnwatchedParent(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, "a")
	ab := f.mkdir(t, filepath.Join("a", "b"))
	require.True(t, f.watch(t, ab))

	f.purge(t, ab)

	require.Eventually(t, func() bool { return missing(ab) }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, missing(a))
}

func TestManager_PurgeKeepsNonEmptyDirectory(t *testing.T) {
	f := newFixture(t)
	sub := f.mkdir(t, "sub")
	f.write(t, filepath.Join("sub", "real.txt"), "data")
	f.write(t, filepath.Join("sub", "Thumbs.db"), "thumbs")
	require.True(t, f.watch(t, sub))

	f.purge(t, sub)

	require.Eventually(t, func() bool { return missing(filepath.Join(sub, "Thumbs.db")) }, time.Second, 5*time.Millisecond)
	assert.False(t, missing(filepath.Join(sub, "real.txt")))
	assert.True(t, f.watched(t, sub))
}

func TestManager_PurgeNeverRemovesRoot(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.watch(t, f.root))

	f.purge(t, f.root)
	time.Sleep(20 * time.Millisecond)

	assert.False(t, missing(f.root))
	assert.True(t, f.watched(t, f.root))
}

func TestManager_PurgeIgnoresUnwatchedDirectory(t *testing.T) {
	f := newFixture(t)
	sub := f.mkdir(t, "sub")

	f.purge(t, sub)
	time.Sleep(20 * time.Millisecond)

	assert.False(t, missing(sub))
}
