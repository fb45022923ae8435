// Package eventloop runs every state mutation of the daemon on one goroutine.
// Blocking I/O runs elsewhere and posts its completion back with Async.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nclack/mirror/internal/logger"

	"go.uber.org/zap"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop is a single-consumer FIFO of closures.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	notify  chan struct{}
	done    chan struct{}
	stopped bool
}

func New() *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks; tasks posted after the loop exits are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// After posts fn once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Async runs work on its own goroutine and delivers the result to then on the loop.
// A panic in work is logged and then is never called.
func Async[T any](l *Loop, work func() T, then func(T)) {
	go func() {
		defer recovered("async task")
		res := work()
		l.Post(func() { then(res) })
	}()
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run executes tasks until ctx is cancelled. Pending tasks are abandoned.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				return
			}
			l.exec(fn)
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer recovered("event loop")
	fn()
}

func recovered(where string) {
	if r := recover(); r != nil {
		logger.Log.Error("uncaught fault in "+where,
			zap.Time("at", time.Now()),
			zap.Error(fmt.Errorf("%v", r)),
			zap.Stack("stack"))
	}
}
