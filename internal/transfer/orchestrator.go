package transfer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nclack/mirror/internal/eventloop"
	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/model"
	"github.com/nclack/mirror/internal/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Purger is told when a directory may have become empty.
type Purger interface {
	AttemptPurge(dir string)
}

type PurgeFunc func(dir string)

func (f PurgeFunc) AttemptPurge(dir string) { f(dir) }

// Forgetter drops what is remembered about a path so the next notification
// for it is handled.
type Forgetter interface {
	Forget(path string)
}

// Recorder persists finished transfers.
type Recorder interface {
	Save(result model.TransferResult) error
}

type Options struct {
	SettleDelay      time.Duration
	PurgeDelay       time.Duration
	MismatchRecopies int
}

// Orchestrator drives each file through copy, settle, verify and delete.
// All methods run on the event loop.
type Orchestrator struct {
	ctx        context.Context
	loop       *eventloop.Loop
	paths      PathMap
	copier     *Copier
	comparator *pipeline.Comparator
	tracker    *Tracker
	purger     Purger
	seen       Forgetter
	recorder   Recorder
	opts       Options

	active  map[string]*model.TransferJob
	byDst   map[string]string
	pending map[string]bool
	counts  map[model.TransferState]int
}

func NewOrchestrator(
	ctx context.Context,
	loop *eventloop.Loop,
	paths PathMap,
	copier *Copier,
	comparator *pipeline.Comparator,
	tracker *Tracker,
	purger Purger,
	seen Forgetter,
	recorder Recorder,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		ctx:        ctx,
		loop:       loop,
		paths:      paths,
		copier:     copier,
		comparator: comparator,
		tracker:    tracker,
		purger:     purger,
		seen:       seen,
		recorder:   recorder,
		opts:       opts,
		active:     make(map[string]*model.TransferJob),
		byDst:      make(map[string]string),
		pending:    make(map[string]bool),
		counts:     make(map[model.TransferState]int),
	}
}

// Handle starts a transfer for the file at path. A second request for a source
// that is still in flight is queued behind it.
func (o *Orchestrator) Handle(path string) {
	rel, dst, err := o.paths.Destination(path)
	if err != nil {
		logger.Log.Warn("ignoring file", zap.String("path", path), zap.Error(err))
		return
	}

	if _, busy := o.active[path]; busy {
		o.pending[path] = true
		logger.Log.Debug("transfer already in flight, queued",
			zap.String("src", path))
		return
	}

	if owner, taken := o.byDst[dst]; taken && owner != path {
		logger.Log.Warn("destination claimed by another transfer, rejected",
			zap.String("src", path),
			zap.String("owner", owner),
			zap.String("dst", dst))
		return
	}

	job := &model.TransferJob{
		ID:        uuid.NewString(),
		Src:       path,
		Dst:       dst,
		Rel:       rel,
		StartedAt: time.Now(),
	}
	o.active[path] = job
	o.byDst[dst] = path
	o.tracker.Add(path)

	logger.Log.Info("transfer started",
		zap.Int("outstanding", o.tracker.Len()),
		zap.String("job", job.ID),
		zap.String("src", job.Src),
		zap.String("dst", job.Dst))

	o.copy(job)
}

type copyOutcome struct {
	err     error
	srcGone bool
}

func (o *Orchestrator) copy(job *model.TransferJob) {
	job.State = model.StateCopying
	job.Copies++

	logger.Log.Debug("copying", zap.String("job", job.ID), zap.Int("copy", job.Copies))

	eventloop.Async(o.loop, func() copyOutcome {
		err := o.copier.Copy(o.ctx, job.Src, job.Dst)
		return copyOutcome{err: err, srcGone: err != nil && !exists(job.Src)}
	}, func(out copyOutcome) {
		switch {
		case out.err == nil:
			o.settle(job)
		case out.srcGone:
			o.vanished(job)
		case errors.Is(out.err, context.Canceled):
			// shutting down; the job stays outstanding
		default:
			job.State = model.StateFailed
			logger.Log.Error("copy failed, left outstanding",
				zap.Int("outstanding", o.tracker.Len()),
				zap.String("job", job.ID),
				zap.String("src", job.Src),
				zap.String("dst", job.Dst),
				zap.Error(out.err))
			o.finish(job, nil, out.err)
		}
	})
}

func (o *Orchestrator) settle(job *model.TransferJob) {
	job.State = model.StateSettling
	o.loop.After(o.opts.SettleDelay, func() { o.verify(job) })
}

func (o *Orchestrator) verify(job *model.TransferJob) {
	job.State = model.StateVerifying
	o.comparator.Begin(func(r pipeline.Result) {
		o.verified(job, r)
	}).SideA(job.Src).SideB(job.Dst)
}

func (o *Orchestrator) verified(job *model.TransferJob, r pipeline.Result) {
	if r.Err != nil {
		if !errors.Is(r.Err, pipeline.ErrVanished) {
			job.State = model.StateFailed
			logger.Log.Error("verification failed, left outstanding",
				zap.String("job", job.ID),
				zap.String("src", job.Src),
				zap.Error(r.Err))
			o.finish(job, nil, r.Err)
			return
		}

		eventloop.Async(o.loop, func() bool { return exists(job.Src) }, func(srcExists bool) {
			if !srcExists {
				o.vanished(job)
				return
			}
			// destination disappeared under us
			o.mismatched(job)
		})
		return
	}

	if r.Match {
		o.matched(job)
		return
	}

	o.mismatched(job)
}

func (o *Orchestrator) matched(job *model.TransferJob) {
	job.State = model.StateMatched
	match := true

	logger.Log.Info("verified, deleting source",
		zap.Int("outstanding", o.tracker.Len()),
		zap.String("job", job.ID),
		zap.String("src", job.Src))

	eventloop.Async(o.loop, func() error {
		return o.copier.Remove(o.ctx, job.Src)
	}, func(err error) {
		if err != nil {
			logger.Log.Error("failed to delete verified source, left outstanding",
				zap.String("job", job.ID),
				zap.String("src", job.Src),
				zap.Error(err))
			o.finish(job, &match, err)
			return
		}

		o.tracker.Remove(job.Src)
		o.forget(job.Src)
		parent := filepath.Dir(job.Src)
		o.loop.After(o.opts.PurgeDelay, func() { o.purger.AttemptPurge(parent) })

		logger.Log.Info("transfer complete",
			zap.Int("outstanding", o.tracker.Len()),
			zap.String("job", job.ID),
			zap.String("dst", job.Dst),
			zap.Duration("took", time.Since(job.StartedAt)))
		o.finish(job, &match, nil)
	})
}

func (o *Orchestrator) mismatched(job *model.TransferJob) {
	if job.Copies <= o.opts.MismatchRecopies {
		logger.Log.Warn("content differs, copying again",
			zap.String("job", job.ID),
			zap.String("src", job.Src),
			zap.Int("copy", job.Copies+1))
		o.copy(job)
		return
	}

	job.State = model.StateMismatched
	match := false
	logger.Log.Error("!!! DIFFERENT: source and destination diverge, left in place",
		zap.Int("outstanding", o.tracker.Len()),
		zap.String("job", job.ID),
		zap.String("src", job.Src),
		zap.String("dst", job.Dst),
		zap.Int("copies", job.Copies))
	o.finish(job, &match, nil)
}

func (o *Orchestrator) vanished(job *model.TransferJob) {
	job.State = model.StateVanished
	o.tracker.Remove(job.Src)
	o.forget(job.Src)
	logger.Log.Info("source disappeared, nothing left to transfer",
		zap.Int("outstanding", o.tracker.Len()),
		zap.String("job", job.ID),
		zap.String("src", job.Src))
	o.finish(job, nil, nil)
}

func (o *Orchestrator) finish(job *model.TransferJob, match *bool, err error) {
	delete(o.active, job.Src)
	if o.byDst[job.Dst] == job.Src {
		delete(o.byDst, job.Dst)
	}
	o.counts[job.State]++

	if o.recorder != nil {
		res := model.TransferResult{
			Job:      *job,
			Match:    match,
			Err:      err,
			Duration: time.Since(job.StartedAt),
		}
		if err := o.recorder.Save(res); err != nil {
			logger.Log.Warn("failed to save history", zap.Error(err))
		}
	}

	if o.pending[job.Src] {
		delete(o.pending, job.Src)
		src := job.Src
		eventloop.Async(o.loop, func() bool { return exists(src) }, func(ok bool) {
			if ok {
				o.Handle(src)
			}
		})
	}
}

// forget lets a file later created under the same name start a new transfer.
func (o *Orchestrator) forget(src string) {
	if o.seen != nil {
		o.seen.Forget(src)
	}
}

// Active returns the number of jobs not yet terminal.
func (o *Orchestrator) Active() int {
	return len(o.active)
}

// Job returns a copy of the in-flight job for src.
func (o *Orchestrator) Job(src string) (model.TransferJob, bool) {
	job, ok := o.active[src]
	if !ok {
		return model.TransferJob{}, false
	}
	return *job, true
}

// Counts returns how many jobs ended in each terminal state.
func (o *Orchestrator) Counts() map[model.TransferState]int {
	out := make(map[model.TransferState]int, len(o.counts))
	for k, v := range o.counts {
		out[k] = v
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
