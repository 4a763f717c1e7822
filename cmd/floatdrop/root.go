package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/logging"
)

var (
	// Global flags
	configPath string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "floatdrop",
	Short: "Floating drop target for moving files between machines",
	Long: `floatdrop keeps a small always-on-top window on the desktop. Files dropped
on it are uploaded to a relay, and files from the relay can be dragged out
of it. The daemon is driven over a local socket by this CLI and by MCP clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}
		if logLevel != "" {
			return logging.SetLevel(logLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/floatdrop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "window", Title: "Window Commands:"},
		&cobra.Group{ID: "files", Title: "File Commands:"},
		&cobra.Group{ID: "service", Title: "Service Commands:"},
	)

	logrus.SetOutput(os.Stderr)
}

// loadConfig reads --config when given, otherwise the standard location.
func loadConfig() (*config.Config, error) {
	res, err := loadConfigWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

func loadConfigWithSources() (*config.LoadResult, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.LoadWithSources()
}
