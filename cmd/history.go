package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nclack/mirror/internal/model"

	"github.com/spf13/cobra"
)

var (
	historyN          int
	historyUnresolved bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View transfer history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("%s?n=%d", daemonURL("/history"), historyN)
		if historyUnresolved {
			url = daemonURL("/history/unresolved")
		}

		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var histories []model.History
		if err := json.NewDecoder(resp.Body).Decode(&histories); err != nil {
			return err
		}

		printHistory(cmd.OutOrStdout(), histories)
		return nil
	},
}

func printHistory(w io.Writer, histories []model.History) {
	if len(histories) == 0 {
		_, _ = fmt.Fprintln(w, "no history yet")
		return
	}

	for _, h := range histories {
		mark := "✓"
		switch h.Outcome {
		case model.StateMismatched, model.StateFailed:
			mark = "✗"
		case model.StateVanished:
			mark = "-"
		}

		_, _ = fmt.Fprintf(w, "%s [%s] %-10s %s\n",
			mark,
			h.FinishedAt.Format("2006-01-02 15:04:05"),
			h.Outcome,
			h.SrcPath,
		)
		if h.ErrMsg != "" {
			_, _ = fmt.Fprintf(w, "    %s\n", h.ErrMsg)
		}
	}
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().BoolVar(&historyUnresolved, "unresolved", false, "show only mismatched and failed transfers")
	rootCmd.AddCommand(historyCmd)
}
