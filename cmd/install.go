package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nclack/mirror/internal/autostart"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <src> <dst>",
	Short: "Register the daemon to start on login",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		src, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		dst, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}

		as := autostart.New()
		if err := as.Install(execPath, src, dst); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mirror daemon registered for autostart: %s -> %s\n", src, dst)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
