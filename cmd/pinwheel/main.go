package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	dryRun     bool
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "pinwheel",
	Short: "Apply placement rules to new X11 windows",
	Long: `pinwheel watches the window list of an EWMH window manager and applies
matching rules (position, size, workspace, window states, opacity) to every
window that appears. Rules are read from a YAML file and reloaded on change
or SIGHUP.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDaemon,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $XDG_CONFIG_HOME/pinwheel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (auto, text, json)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the actions rules would take without changing any window")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("pinwheel " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
