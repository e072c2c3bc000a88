package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/logger"
	"github.com/oddsmith/arbiter/scan"
	"github.com/oddsmith/arbiter/server"
	"github.com/oddsmith/arbiter/watch"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd starts the daemon: job controller, scheduler ticker, and
// HTTP control surface.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arbiter daemon",
	Long: `Start the arbiter daemon in foreground mode.

The daemon will:
- Run the job controller with all four scan kinds registered
- Trigger a watchlist poll on startup
- Run the scheduler ticker for interval-based triggers
- Serve the HTTP control surface and websocket job feed
- Reload scan intervals when the config file changes
- Run until interrupted (Ctrl+C) with graceful shutdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		controller := job.NewController(ctx, database, cfg.Jobs, logger.ComponentLogger("job"))
		watchStore := watch.NewStore(database)
		source := watch.SyntheticSource{}

		controller.Register(job.KindScan, scan.NewScanner(watchStore, source, logger.Logger).Run)
		controller.Register(job.KindInvestmentScan, scan.NewInvestor(watchStore, 0, logger.Logger).Run)
		controller.Register(job.KindEndoArbScan, scan.NewEndoArb(watchStore, logger.Logger).Run)
		controller.Register(job.KindWatchPoll, watch.NewPoller(watchStore, source, cfg.Watch, logger.Logger).Run)

		// Refresh the watchlist immediately on boot. A conflict means a
		// poll is already live under this database, which is fine.
		if _, err := controller.Trigger(ctx, job.KindWatchPoll, job.SourceStartup); err != nil && !errors.IsConflictError(err) {
			logger.Warnw("Startup watch poll failed", "error", err)
		}

		ticker := job.NewTicker(ctx, controller, cfg.Jobs, logger.ComponentLogger("ticker"))
		ticker.Start()

		watcher := startConfigWatcher(ticker)

		srv := server.New(database, cfg, controller, watchStore, logger.ComponentLogger("server"))
		serveErr := make(chan error, 1)
		go func() {
			serveErr <- srv.Start()
		}()

		fmt.Printf("Arbiter daemon started\n")
		fmt.Printf("  Database: %s\n", cfg.Database.Path)
		fmt.Printf("  HTTP:     http://localhost:%d\n", cfg.Server.Port)
		fmt.Printf("\nPress Ctrl+C for graceful shutdown\n\n")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
		case err := <-serveErr:
			if err != nil {
				return err
			}
		}

		// Stop components in reverse order of startup.
		if watcher != nil {
			watcher.Stop()
		}
		ticker.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("HTTP shutdown incomplete", "error", err)
		}

		cancel()
		controller.Wait()

		fmt.Println("Arbiter daemon stopped")
		return nil
	},
}

// startConfigWatcher wires config-file edits to the ticker so interval
// changes apply without a restart. Watch failures are logged, not
// fatal: the daemon just runs with boot-time intervals.
func startConfigWatcher(ticker *job.Ticker) *config.Watcher {
	path := config.Path()
	watcher, err := config.NewWatcher(path)
	if err != nil {
		logger.Warnw("Config watcher unavailable", "path", path, "error", err)
		return nil
	}

	watcher.OnReload(func(cfg *config.Config) error {
		ticker.UpdateConfig(cfg.Jobs)
		logger.Infow("Scan intervals reloaded from config")
		return nil
	})
	watcher.Start()
	return watcher
}
