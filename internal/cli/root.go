// Package cli implements the moose command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moose-rewards/moose/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "moose",
	Short: "Points and bank bot backend",
	Long: `moose runs the backend of two chat bots: a rewards bot whose points
expire oldest first, and a bank bot that records decimal transfers and
windowed statements. Both share one SQLite database under $MOOSE_HOME.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $MOOSE_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config or the default path.
func loadConfig() (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = daemon.ConfigPath()
	}
	return daemon.LoadConfig(path)
}

// openDaemon loads the config and opens the process components.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg, daemon.NewLogger(cfg.Log, os.Stderr))
}
