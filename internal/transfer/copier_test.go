package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nclack/mirror/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLocked = errors.New("file is locked by another process")

func isLocked(err error) bool { return errors.Is(err, errLocked) }

// lockedFor fails to open the first n times, as a writer holding the file would.
func lockedFor(n int32) (func(string) (*os.File, error), *atomic.Int32) {
	var calls atomic.Int32
	return func(name string) (*os.File, error) {
		if calls.Add(1) <= n {
			return nil, &os.PathError{Op: "open", Path: name, Err: errLocked}
		}
		return os.Open(name)
	}, &calls
}

func TestCopier_Copy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "a.txt")
	dst := filepath.Join(dir, "dst", "x", "y", "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("0123456789"), 0640))

	c := NewCopier(retry.Forever(time.Millisecond, 0))
	require.NoError(t, c.Copy(context.Background(), src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
}

func TestCopier_ExistingParentIsFine(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "out", "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	c := NewCopier(retry.Forever(time.Millisecond, 0))
	assert.NoError(t, c.Copy(context.Background(), src, dst))
}

func TestCopier_RetriesLockedSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "out", "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	c := NewCopier(retry.Forever(time.Millisecond, 2))
	open, calls := lockedFor(3)
	c.open = open
	c.transient = isLocked

	require.NoError(t, c.Copy(context.Background(), src, dst))
	assert.Equal(t, int32(4), calls.Load())

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestCopier_PermanentErrorReturnedOnce(t *testing.T) {
	dir := t.TempDir()

	c := NewCopier(retry.Forever(time.Millisecond, 0))
	err := c.Copy(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopier_BoundedPolicyGivesUp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	c := NewCopier(retry.Policy{Delay: time.Millisecond, MaxAttempts: 2})
	c.open, _ = lockedFor(100)
	c.transient = isLocked

	err := c.Copy(context.Background(), src, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, errLocked)
}

func TestCopier_CancelStopsRetrying(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	c := NewCopier(retry.Forever(time.Hour, 0))
	c.open, _ = lockedFor(100)
	c.transient = isLocked

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Copy(ctx, src, filepath.Join(dir, "out")) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("copy did not stop on cancel")
	}
}

func TestCopier_RemoveMissingIsNotAnError(t *testing.T) {
	c := NewCopier(retry.Forever(time.Millisecond, 0))
	assert.NoError(t, c.Remove(context.Background(), filepath.Join(t.TempDir(), "gone")))
}
