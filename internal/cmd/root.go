// Package cmd defines the swarmdeck command-line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/swarmdeck/swarmdeck/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "swarmdeck",
	Short: "Live operator dashboard for multi-agent task orchestration",
	Long: `Swarmdeck connects to an agent orchestration server and renders a
live kanban view of cards moving through the development lifecycle,
with per-worker output streaming and operator-driven stage moves.`,
	RunE: runDashboard,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/swarmdeck/config.yaml)")
	rootCmd.PersistentFlags().StringP("server", "s", "", "orchestration server origin (overrides config)")
	rootCmd.PersistentFlags().StringP("project", "p", "", "project id to scope the view to")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("server.origin", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("server.project", rootCmd.PersistentFlags().Lookup("project"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/swarmdeck")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SWARMDECK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SWARMDECK_SERVER_ORIGIN for server.origin
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
