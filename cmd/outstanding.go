package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nclack/mirror/internal/daemon"
	"github.com/nclack/mirror/internal/model"

	"github.com/spf13/cobra"
)

var outstandingCmd = &cobra.Command{
	Use:   "outstanding",
	Short: "List files the daemon has not finished moving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/outstanding"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var entries []model.OutstandingEntry
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			return fmt.Errorf("failed to decode outstanding response: %w", err)
		}

		daemon.PrintOutstanding(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(outstandingCmd)
}
