package cmd

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nclack/mirror/internal/daemon"
	"github.com/nclack/mirror/internal/db"
	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()
	defer func() { _ = db.Close() }()

	histRepo := repository.NewHistoryRepository()

	d, err := daemon.New(cfg, args[0], args[1], histRepo)
	if err != nil {
		return err
	}
	d.Start()

	srv := daemon.NewServer(d, histRepo, cfg.DaemonPort)
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	waitForShutdown(sigCh, srv.StopCh(), os.Stdin, cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Log.Warn("control server shutdown", zap.Error(err))
	}

	daemon.PrintOutstanding(cmd.OutOrStdout(), d.Stop())
	return nil
}

// waitForShutdown returns once termination is confirmed. An interrupt asks
// first; SIGTERM and a stop request do not, even while a question is pending.
func waitForShutdown(sigCh <-chan os.Signal, stopCh <-chan struct{}, in io.Reader, out io.Writer) {
	answers := bufio.NewReader(in)
	var pending <-chan bool

	for {
		select {
		case sig := <-sigCh:
			if sig != os.Interrupt {
				logger.Log.Info("shutting down", zap.String("signal", sig.String()))
				return
			}
			if pending == nil {
				pending = ask(answers, out, "terminate? [y/N] ")
			}

		case yes := <-pending:
			pending = nil
			if !yes {
				logger.Log.Info("interrupt declined, still running")
				continue
			}
			logger.Log.Info("shutting down", zap.String("signal", os.Interrupt.String()))
			return

		case <-stopCh:
			logger.Log.Info("stop requested via API")
			return
		}
	}
}
