package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prepdhq/prepd/internal/calendar"
	"github.com/prepdhq/prepd/internal/daemon"
	"github.com/prepdhq/prepd/internal/daemon/components"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start prepd in background daemon mode",
	Long:  `Starts prepd as a long-running service using component lifecycle orchestration. It exposes an HTTP API and refreshes meeting prep data in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}

		cal := calendar.NewFileCalendar(filepath.Join(cfg.Daemon.DataPath, "meetings.json"))

		cacheComp := components.NewCacheComponent(cfg)
		protocolComp := components.NewProtocolComponent(cfg)
		prefetchComp := components.NewPrefetchComponent(cfg, cacheComp, protocolComp, cal, nil, nil)
		httpComp := components.NewHTTPServerComponent(daemonMgr, &cfg.Server, cacheComp, prefetchComp, protocolComp)

		daemonMgr.AddComponent(cacheComp)
		daemonMgr.AddComponent(protocolComp)
		daemonMgr.AddComponent(prefetchComp)
		daemonMgr.AddComponent(httpComp)

		slog.Info("Prepd daemon starting up...", "port", cfg.Server.Port, "data_path", cfg.Daemon.DataPath)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			// Cancellation via signal/context is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Prepd daemon stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Prepd daemon stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
