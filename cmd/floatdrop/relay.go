package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/logging"
	"github.com/1broseidon/floatdrop/internal/relay"
	"github.com/1broseidon/floatdrop/internal/transfer"
)

var relayListen string

var relayCmd = &cobra.Command{
	Use:     "relay",
	Short:   "Run or query the upload relay",
	GroupID: "service",
}

var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		closer, err := logging.Setup(cfg.Logging)
		if err != nil {
			return err
		}
		defer closer.Close()

		rc := cfg.Relay
		if relayListen != "" {
			rc.Listen = relayListen
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := relay.NewBackend(ctx, rc)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"listen":  rc.Listen,
			"storage": backend.Type(),
			"ttl":     rc.BlobTTL.String(),
		}).Info("starting relay")
		return relay.NewServer(rc, backend).ListenAndServe(ctx)
	},
}

var (
	listPage  int
	listLimit int
	listType  string
)

var relayListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List files held by the relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := relayClient()
		if err != nil {
			return err
		}
		list, err := client.List(cmd.Context(), transfer.ListParams{
			Page:  listPage,
			Limit: listLimit,
			Type:  transfer.Category(listType),
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(list)
		}
		if len(list.Files) == 0 {
			printWarning("no files")
			return nil
		}
		for _, f := range list.Files {
			fmt.Fprintf(stdout, "%s  %-8s %10s  %-14s %s\n",
				dimColor.Sprint(f.FileID), f.Type, formatSize(f.FileSize), formatAge(f.UploadedAt), f.FileName)
		}
		p := list.Pagination
		fmt.Fprintln(stdout, dimColor.Sprintf("page %d of %d, %d files", p.Page, p.Pages, p.Total))
		return nil
	},
}

var relayDeleteCmd = &cobra.Command{
	Use:   "rm <file-id>...",
	Short: "Delete files from the relay",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := relayClient()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := client.Delete(cmd.Context(), id); err != nil {
				return err
			}
			printSuccess("deleted " + id)
		}
		return nil
	},
}

var relayDownloadCmd = &cobra.Command{
	Use:   "get <download-url> <dest>",
	Short: "Download a relay file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := relayClient()
		if err != nil {
			return err
		}
		n, err := client.Download(cmd.Context(), args[0], args[1], nil)
		if err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("saved %s (%s)", args[1], formatSize(n)))
		return nil
	},
}

var relayPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the relay is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := relayClient()
		if err != nil {
			return err
		}
		if !client.CheckConnection(cmd.Context()) {
			return fmt.Errorf("relay %s is not reachable", client.BaseURL())
		}
		printSuccess("relay " + client.BaseURL() + " is reachable")
		return nil
	},
}

func relayClient() (*transfer.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newRelayClient(cfg.Transfer), nil
}

func newRelayClient(tc config.TransferConfig) *transfer.Client {
	return transfer.NewClient(transfer.ClientConfig{
		BaseURL: tc.BaseURL,
		APIKey:  tc.APIKey,
		Timeout: tc.Timeout.D(),
	})
}

func init() {
	relayServeCmd.Flags().StringVar(&relayListen, "listen", "", "listen address (overrides relay.listen)")
	relayListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	relayListCmd.Flags().IntVar(&listLimit, "limit", 20, "files per page")
	relayListCmd.Flags().StringVar(&listType, "type", "", "filter by type (image, video, audio, document, archive, other)")

	relayCmd.AddCommand(relayServeCmd, relayListCmd, relayDeleteCmd, relayDownloadCmd, relayPingCmd)
	rootCmd.AddCommand(relayCmd)
}
