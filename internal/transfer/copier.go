package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/retry"
	"github.com/nclack/mirror/internal/util"

	"go.uber.org/zap"
)

// Copier moves bytes and removes sources, waiting out locked files and
// dropped network connections according to its retry policy.
type Copier struct {
	retry     retry.Policy
	open      func(name string) (*os.File, error)
	remove    func(name string) error
	transient func(error) bool
}

func NewCopier(rp retry.Policy) *Copier {
	return &Copier{
		retry:     rp,
		open:      os.Open,
		remove:    os.Remove,
		transient: util.IsTransient,
	}
}

// Copy writes src to dst, creating dst's parent directories. It returns once,
// with nil or the first non-transient error.
func (c *Copier) Copy(ctx context.Context, src, dst string) error {
	return c.withRetry(ctx, "copy", src, func() error {
		return c.copyOnce(src, dst)
	})
}

// Remove deletes path. A path that is already gone is not an error.
func (c *Copier) Remove(ctx context.Context, path string) error {
	return c.withRetry(ctx, "remove", path, func() error {
		if err := c.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

func (c *Copier) copyOnce(src, dst string) error {
	f, err := c.open(src)
	if err != nil {
		return fmt.Errorf("failed to open src: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat src: %w", err)
	}

	return util.AtomicWrite(dst, f, info.Mode().Perm())
}

func (c *Copier) withRetry(ctx context.Context, op, path string, fn func() error) error {
	attempt := c.retry.Begin()

	for {
		err := fn()
		if err == nil || !c.transient(err) {
			return err
		}

		delay, ok := attempt.Fail()
		if !ok {
			return fmt.Errorf("%s gave up after %d attempts: %w", op, attempt.Count, err)
		}

		log := logger.Log.Debug
		if attempt.Escalate() {
			log = logger.Log.Warn
		}
		log("transient error, retrying",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("attempt", attempt.Count),
			zap.Duration("elapsed", attempt.Elapsed()),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
