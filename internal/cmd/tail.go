package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swarmdeck/swarmdeck/internal/api"
	"github.com/swarmdeck/swarmdeck/internal/config"
	"github.com/swarmdeck/swarmdeck/internal/logging"
	"github.com/swarmdeck/swarmdeck/internal/tail"
)

var tailCmd = &cobra.Command{
	Use:   "tail <worker-id>",
	Short: "Stream a worker's output to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runTail,
}

var tailFollow bool

func init() {
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", true, "keep streaming new lines")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	workerID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := api.New(cfg.Server.Origin)
	client.Token = cfg.Server.Token
	client.Timeout = cfg.Server.RequestTimeout()

	reader := tail.NewReader(workerID, client, tail.Config{
		ServerOrigin: cfg.Server.Origin,
		ReopenDelay:  cfg.Stream.ReopenDelay(),
		Window:       cfg.Stream.Window,
	}, logging.NopLogger())
	defer reader.Close()

	printed := int64(0)
	printNew := func() {
		for _, line := range reader.Lines() {
			if line.LineNumber > printed {
				fmt.Println(line.Line)
				printed = line.LineNumber
			}
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout())
	err = reader.LoadBacklog(ctx, cfg.Stream.BacklogLimit)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load backlog: %w", err)
	}
	printNew()

	if !tailFollow {
		return nil
	}

	notify := make(chan struct{}, 1)
	reader.Watch(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	if err := reader.OpenLive(); err != nil {
		return fmt.Errorf("failed to open live stream: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-notify:
			printNew()
		case <-sigChan:
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
}
