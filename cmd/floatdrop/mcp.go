package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/1broseidon/floatdrop/internal/logging"
	"github.com/1broseidon/floatdrop/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Short:   "Model Context Protocol integration",
	GroupID: "service",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio transport)",
	Long: `Start the MCP server on stdio. Tools are forwarded to the running daemon
over its control socket. Designed to be invoked by MCP clients, e.g.:

  claude mcp add floatdrop -- floatdrop mcp serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// stdout carries the protocol; logs go to the configured file or stderr.
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		closer, err := logging.Setup(cfg.Logging)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logrus.WithField("component", "mcp").Info("serving MCP on stdio")
		err = mcp.NewServer(newIPCClient()).Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
