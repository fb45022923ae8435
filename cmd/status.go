package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nclack/mirror/internal/daemon"
	"github.com/nclack/mirror/internal/model"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var snap model.StatusSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		printStatus(cmd.OutOrStdout(), snap)
		return nil
	},
}

func printStatus(w io.Writer, snap model.StatusSnapshot) {
	_, _ = fmt.Fprintf(w, "%s -> %s\n", snap.Src, snap.Dst)
	_, _ = fmt.Fprintf(w, "uptime: %s  verify: %s  watches: %d  active: %d\n",
		time.Since(snap.StartedAt).Round(time.Second), snap.Verify, snap.Watches, snap.Active)
	_, _ = fmt.Fprintf(w, "matched: %d  mismatched: %d  failed: %d  vanished: %d\n",
		snap.Matched, snap.Mismatched, snap.Failed, snap.Vanished)
	daemon.PrintOutstanding(w, snap.Outstanding)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
