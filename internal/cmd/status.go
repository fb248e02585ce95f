package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/swarmdeck/swarmdeck/internal/api"
	"github.com/swarmdeck/swarmdeck/internal/config"
	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show board and worker status without opening the TUI",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "print raw JSON instead of tables")
	_ = viper.BindPFlag("json", statusCmd.Flags().Lookup("json"))
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := api.New(cfg.Server.Origin)
	client.Token = cfg.Server.Token
	client.Timeout = cfg.Server.RequestTimeout()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout())
	defer cancel()

	cards, err := client.ListCards(ctx, cfg.Server.Project)
	if err != nil {
		return fmt.Errorf("failed to list cards: %w", err)
	}
	workers, err := client.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workers: %w", err)
	}

	if viper.GetBool("json") {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"cards":   cards,
			"workers": workers,
		})
	}

	printCards(cards)
	fmt.Println()
	printWorkers(workers)
	return nil
}

func printCards(cards []domain.Card) {
	counts := make(map[string]int)
	for _, card := range cards {
		counts[card.State]++
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Stage", "Cards"})
	for _, state := range workflow.AllStates {
		if counts[string(state)] > 0 {
			tw.AppendRow(table.Row{string(state), counts[string(state)]})
		}
	}
	tw.AppendFooter(table.Row{"total", len(cards)})
	tw.Render()
}

func printWorkers(workers []domain.Worker) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Worker", "Status", "Card", "Done", "Failed"})
	for _, w := range workers {
		tw.AppendRow(table.Row{w.Name, string(w.Status), w.CardID, w.Completed, w.Failed})
	}
	tw.Render()
}
