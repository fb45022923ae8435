package daemon

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nclack/mirror/internal/model"
)

// Snapshot collects the loop-owned counters through the loop itself.
func (d *Daemon) Snapshot(ctx context.Context) (model.StatusSnapshot, error) {
	snap := model.StatusSnapshot{
		Src:         d.paths.SrcRoot,
		Dst:         d.paths.DstRoot,
		StartedAt:   d.startedAt,
		Verify:      d.cfg.Verify,
		Outstanding: d.tracker.Snapshot(),
	}

	err := d.loop.Do(ctx, func() {
		snap.Watches = d.watcher.Len()
		snap.Active = d.orch.Active()

		counts := d.orch.Counts()
		snap.Matched = counts[model.StateMatched]
		snap.Mismatched = counts[model.StateMismatched]
		snap.Failed = counts[model.StateFailed]
		snap.Vanished = counts[model.StateVanished]
	})
	if err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("daemon not responding: %w", err)
	}

	return snap, nil
}

// PrintOutstanding writes the files that never completed.
func PrintOutstanding(w io.Writer, entries []model.OutstandingEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "nothing outstanding")
		return
	}

	_, _ = fmt.Fprintf(w, "%d outstanding:\n", len(entries))
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "  %s  (since %s, %s)\n",
			e.Path,
			e.StartedAt.Format("2006-01-02 15:04:05"),
			time.Since(e.StartedAt).Round(time.Second))
	}
}
