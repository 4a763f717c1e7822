package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/1broseidon/floatdrop/internal/daemon"
	"github.com/1broseidon/floatdrop/internal/hotkeys"
	"github.com/1broseidon/floatdrop/internal/ipc"
	"github.com/1broseidon/floatdrop/internal/logging"
	"github.com/1broseidon/floatdrop/internal/metrics"
	"github.com/1broseidon/floatdrop/internal/platform"
	"github.com/1broseidon/floatdrop/internal/runtimepath"
)

// eventLooper is implemented by backends that own a blocking X event loop.
type eventLooper interface {
	EventLoop()
	StopEventLoop()
	Disconnect()
}

var metricsAddr string

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	Short:   "Start the floatdrop daemon (foreground)",
	GroupID: "service",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	daemonCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	log := logrus.WithField("component", "main")
	log.WithFields(logrus.Fields{
		"relay":  cfg.Transfer.BaseURL,
		"window": cfg.Window.Class,
	}).Info("configuration loaded")

	backend, err := platform.NewDefault()
	if err != nil {
		return fmt.Errorf("failed to connect to display: %w", err)
	}
	looper, _ := backend.(eventLooper)
	if looper != nil {
		defer looper.Disconnect()
	}

	scratchRoot, err := runtimepath.ScratchRoot(cfg.Scratch.Root)
	if err != nil {
		return err
	}
	stateDir, err := runtimepath.StateDir()
	if err != nil {
		log.WithError(err).Warn("window state will not be persisted")
		stateDir = ""
	}

	app, err := daemon.New(daemon.Options{
		Config:      cfg,
		Backend:     backend,
		StateDir:    stateDir,
		ScratchRoot: scratchRoot,
		LoadConfig:  loadConfig,
	})
	if err != nil {
		return err
	}
	app.InitWindow()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)
	defer app.Stop()

	ctrl := app.Controller()
	hotkeyHandler := hotkeys.NewHandler(backend)
	if err := hotkeyHandler.Register(cfg.Hotkeys, hotkeys.Actions{
		Capture: func(ctx context.Context) error {
			_, err := ctrl.Capture(ctx, nil)
			return err
		},
		ToggleMinimize:   func() { ctrl.ToggleMinimize() },
		ToggleVisibility: func() { ctrl.ToggleVisibility() },
	}); err != nil {
		log.WithError(err).Warn("global hotkeys unavailable")
	}

	ipcServer, err := ipc.NewServer(app)
	if err != nil {
		return fmt.Errorf("failed to create IPC server: %w", err)
	}
	if err := ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer ipcServer.Stop()

	if metricsAddr != "" {
		go serveMetrics(ctx, metricsAddr)
	}

	shutdown := func() {
		cancel()
		ipcServer.Stop()
		if looper != nil {
			looper.StopEventLoop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					log.Info("received SIGHUP, reloading config")
					if err := app.Reload(); err != nil {
						log.WithError(err).Error("config reload failed")
					}
					continue
				}
				log.Info("shutting down floatdrop daemon")
				shutdown()
				return
			}
		}
	}()

	log.WithField("socket", ipcServer.SocketPath()).Info("floatdrop daemon started")
	if looper != nil {
		looper.EventLoop()
	} else {
		<-ctx.Done()
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logrus.WithField("addr", addr).Info("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("metrics endpoint failed")
	}
}
