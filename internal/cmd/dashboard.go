package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmdeck/swarmdeck/internal/config"
	"github.com/swarmdeck/swarmdeck/internal/dashboard"
	"github.com/swarmdeck/swarmdeck/internal/logging"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the live board (default command)",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logger.Close()
	}

	app, err := dashboard.New(cfg, logger)
	if err != nil {
		return err
	}
	return app.Run()
}
