package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()

	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	return l
}

func TestLoop_RunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}

	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_After(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Bool
	l.After(20*time.Millisecond, func() { fired.Store(true) })

	assert.False(t, fired.Load())
	assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
}

func TestLoop_AsyncDeliversOnLoop(t *testing.T) {
	l := startLoop(t)

	results := make(chan int, 1)
	Async(l, func() int { return 42 }, func(v int) { results <- v })

	select {
	case v := <-results:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("async result never delivered")
	}
}

func TestLoop_RecoversPanic(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("boom") })

	var ran bool
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestAsync_RecoversPanicInWork(t *testing.T) {
	l := startLoop(t)

	var delivered atomic.Bool
	Async(l, func() int { panic("disk on fire") }, func(int) { delivered.Store(true) })

	done := make(chan int, 1)
	Async(l, func() int { return 7 }, func(v int) { done <- v })

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("loop stopped delivering after a panicking task")
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.False(t, delivered.Load())
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()

	err := l.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}
