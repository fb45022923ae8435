package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nclack/mirror/internal/config"
	"github.com/nclack/mirror/internal/eventloop"
	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/model"
	"github.com/nclack/mirror/internal/pipeline"
	"github.com/nclack/mirror/internal/retry"
	"github.com/nclack/mirror/internal/transfer"
	"github.com/nclack/mirror/internal/watch"

	"go.uber.org/zap"
)

// Daemon mirrors one source tree into one destination tree.
type Daemon struct {
	cfg       *config.Config
	paths     transfer.PathMap
	loop      *eventloop.Loop
	debouncer *pipeline.Debouncer
	tracker   *transfer.Tracker
	orch      *transfer.Orchestrator
	watcher   *watch.Manager
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, src, dst string, recorder transfer.Recorder) (*Daemon, error) {
	paths, err := transfer.NewPathMap(src, dst)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(paths.SrcRoot)
	if err != nil {
		return nil, fmt.Errorf("source directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", paths.SrcRoot)
	}

	if err := os.MkdirAll(paths.DstRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	trash, err := pipeline.NewMatcher(cfg.TrashList)
	if err != nil {
		return nil, fmt.Errorf("invalid trash_list: %w", err)
	}
	ignore, err := pipeline.NewMatcher(cfg.IgnoreList)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore_list: %w", err)
	}

	policy := pipeline.PolicyHash
	if cfg.Verify == config.VerifySize {
		policy = pipeline.PolicySize
	}

	ctx, cancel := context.WithCancel(context.Background())
	rp := retry.Forever(cfg.RetryDelay, cfg.EscalateEvery)

	d := &Daemon{
		cfg:       cfg,
		paths:     paths,
		loop:      eventloop.New(),
		debouncer: pipeline.NewDebouncer(cfg.DebounceTimeout),
		tracker:   transfer.NewTracker(),
		ctx:       ctx,
		cancel:    cancel,
	}

	// the watcher and the orchestrator refer to each other
	purge := transfer.PurgeFunc(func(dir string) { d.watcher.AttemptPurge(dir) })

	d.orch = transfer.NewOrchestrator(ctx, d.loop, paths,
		transfer.NewCopier(rp),
		pipeline.NewComparator(d.loop, policy, rp),
		d.tracker,
		purge,
		d.debouncer,
		recorder,
		transfer.Options{
			SettleDelay:      cfg.SettleDelay,
			PurgeDelay:       cfg.PurgeDelay,
			MismatchRecopies: cfg.MismatchRecopies,
		})

	d.watcher, err = watch.NewManager(d.loop, paths.SrcRoot, d.debouncer, d.orch, watch.Options{
		DirScanDelay: cfg.DirScanDelay,
		PurgeDelay:   cfg.PurgeDelay,
		Trash:        trash,
		Ignore:       ignore,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	return d, nil
}

func (d *Daemon) Start() {
	d.startedAt = time.Now()

	go d.loop.Run(d.ctx)
	go d.debouncer.Run(d.ctx, d.cfg.DebounceSweep)
	d.watcher.Start(d.ctx)

	logger.Log.Info("mirroring",
		zap.String("src", d.paths.SrcRoot),
		zap.String("dst", d.paths.DstRoot),
		zap.String("verify", d.cfg.Verify))
}

// Stop halts all work and returns whatever was still outstanding.
func (d *Daemon) Stop() []model.OutstandingEntry {
	d.cancel()
	<-d.loop.Done()

	if err := d.watcher.Close(); err != nil {
		logger.Log.Debug("failed to close watcher", zap.Error(err))
	}

	outstanding := d.tracker.Snapshot()
	logger.Log.Info("daemon stopped", zap.Int("outstanding", len(outstanding)))
	return outstanding
}

func (d *Daemon) Outstanding() []model.OutstandingEntry {
	return d.tracker.Snapshot()
}

func (d *Daemon) Paths() transfer.PathMap {
	return d.paths
}
