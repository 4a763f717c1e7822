// Package daemon wires the window store, transfer services and command
// surfaces into the long-running floatdrop process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/clipboard"
	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/controller"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/ipc"
	"github.com/1broseidon/floatdrop/internal/logging"
	"github.com/1broseidon/floatdrop/internal/platform"
	"github.com/1broseidon/floatdrop/internal/runtimepath"
	"github.com/1broseidon/floatdrop/internal/scratch"
	"github.com/1broseidon/floatdrop/internal/statestore"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "daemon")

// Version is reported by GET_APP_CONFIG; set by the CLI at build time.
var Version = "dev"

const (
	defaultAttachInterval     = 2 * time.Second
	defaultConnectionInterval = 30 * time.Second
)

// Options configures an App.
type Options struct {
	Config  *config.Config
	Backend platform.Backend
	// StateDir holds persisted window state; empty disables persistence.
	StateDir string
	// ScratchRoot is the resolved scratch root directory.
	ScratchRoot string
	// Clipboard overrides the system clipboard, mainly for tests.
	Clipboard clipboard.Writer
	// LoadConfig re-reads the config for RELOAD; defaults to config.Load.
	LoadConfig func() (*config.Config, error)

	AttachInterval     time.Duration
	ConnectionInterval time.Duration
}

// App is the running daemon. It implements ipc.Service.
type App struct {
	backend    platform.Backend
	store      *window.Store
	adapter    *window.Adapter
	autoHide   *window.AutoHide
	events     *events.Broadcaster
	client     *transfer.Client
	uploader   *transfer.Uploader
	drag       *drag.Manager
	capture    *capture.Manager
	controller *controller.Controller
	sweeper    *Sweeper
	loadConfig func() (*config.Config, error)

	attachInterval     time.Duration
	connectionInterval time.Duration
	started            time.Time

	mu     sync.RWMutex
	cfg    *config.Config
	winCls string
}

var _ ipc.Service = (*App)(nil)

// ScratchDirs returns the scratch directories and their TTLs for root.
func ScratchDirs(root string, cfg config.ScratchConfig) []scratch.Dir {
	return []scratch.Dir{
		{Name: "drag", Path: runtimepath.DragDir(root), TTL: cfg.DragTTL.D()},
		{Name: "screenshots", Path: runtimepath.ScreenshotDir(root), TTL: cfg.ScreenshotTTL.D()},
		{Name: "share", Path: runtimepath.ShareDir(root), TTL: cfg.ShareTTL.D()},
	}
}

// New builds every component. Nothing touches the window until InitWindow
// and Start.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("platform backend is required")
	}
	cfg := opts.Config

	dirs := ScratchDirs(opts.ScratchRoot, cfg.Scratch)
	if err := scratch.Ensure(dirs...); err != nil {
		return nil, err
	}

	var persist window.Persister
	if opts.StateDir != "" {
		persist = statestore.New(opts.StateDir)
	}

	store := window.NewStore(window.Options{
		Normal:        cfg.Window.Normal,
		Mini:          cfg.Window.Mini,
		Margin:        cfg.Window.Margin,
		SnapThreshold: cfg.Window.SnapThreshold,
		ActiveOpacity: cfg.Window.ActiveOpacity,
		AlwaysOnTop:   cfg.Window.AlwaysOnTop,
		Persist:       persist,
	})
	bc := events.NewBroadcaster()
	adapter := window.NewAdapter(opts.Backend, 0, bc)
	store.Subscribe(adapter.Observe)

	autoHide := window.NewAutoHide(store, cfg.Window.AutoHideDelay.D(), cfg.Window.ActiveOpacity, cfg.Window.FadedOpacity)

	client := transfer.NewClient(transfer.ClientConfig{
		BaseURL: cfg.Transfer.BaseURL,
		APIKey:  cfg.Transfer.APIKey,
		Timeout: cfg.Transfer.Timeout.D(),
	})
	uploader := transfer.NewUploader(client, bc, cfg.Transfer.MaxFileSize)

	clip := opts.Clipboard
	if clip == nil {
		clip = systemClipboard(opts.Backend)
	}
	dragMgr := drag.NewManager(drag.Config{
		Downloader: client,
		Clipboard:  clip,
		Events:     bc,
		TempDir:    dirs[0].Path,
		ShareDir:   dirs[2].Path,
	})

	format, err := capture.ParseFormat(cfg.Capture.Format)
	if err != nil {
		return nil, err
	}
	capMgr := capture.NewManager(opts.Backend, dirs[1].Path, capture.Options{
		Format:    format,
		Quality:   cfg.Capture.Quality,
		MaxWidth:  cfg.Capture.MaxWidth,
		MaxHeight: cfg.Capture.MaxHeight,
	})

	ctrl := controller.New(controller.Config{
		Store:    store,
		AutoHide: autoHide,
		Capturer: capMgr,
		Uploader: uploader,
		Checker:  client,
		Events:   bc,
	})

	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = config.Load
	}

	a := &App{
		backend:            opts.Backend,
		store:              store,
		adapter:            adapter,
		autoHide:           autoHide,
		events:             bc,
		client:             client,
		uploader:           uploader,
		drag:               dragMgr,
		capture:            capMgr,
		controller:         ctrl,
		sweeper:            NewSweeper(SweeperConfig{Interval: cfg.Scratch.SweepInterval.D(), Dirs: dirs}),
		loadConfig:         loadConfig,
		attachInterval:     opts.AttachInterval,
		connectionInterval: opts.ConnectionInterval,
		started:            time.Now(),
		cfg:                cfg,
		winCls:             cfg.Window.Class,
	}
	if a.attachInterval <= 0 {
		a.attachInterval = defaultAttachInterval
	}
	if a.connectionInterval <= 0 {
		a.connectionInterval = defaultConnectionInterval
	}
	return a, nil
}

// systemClipboard prefers owning the X11 selection directly so every
// drag target is offered; clipboard tools are the fallback.
func systemClipboard(b platform.Backend) clipboard.Writer {
	var sel clipboard.Selection
	if p, ok := b.(platform.ClipboardProvider); ok {
		owner, err := p.ClipboardOwner()
		if err != nil {
			log.WithError(err).Warn("cannot own clipboard selection, using clipboard tools")
		} else {
			sel = clipboard.NewX11Selection(owner)
		}
	}
	return clipboard.NewSystem(sel)
}

// Events returns the daemon event broadcaster.
func (a *App) Events() *events.Broadcaster { return a.events }

// Controller returns the tray controller.
func (a *App) Controller() *controller.Controller { return a.controller }

// InitWindow places the window: the primary work area decides the default
// corner, then any persisted state wins, then optional smart placement.
func (a *App) InitWindow() {
	area, err := a.backend.PrimaryWorkArea()
	if err != nil {
		log.WithError(err).Warn("failed to read work area, snapping disabled")
	} else {
		a.store.InitializePosition(area)
	}

	restored, err := a.store.Restore()
	if err != nil {
		log.WithError(err).Warn("failed to restore window state")
	}
	if restored {
		a.store.CheckSnapToEdge(a.config().Window.SnapThreshold)
	} else if a.config().Window.SmartPosition {
		if _, err := a.SmartPosition(); err != nil {
			log.WithError(err).Debug("smart placement skipped")
		}
	}

	st := a.store.State()
	log.WithFields(logrus.Fields{
		"x":         st.Position.X,
		"y":         st.Position.Y,
		"minimized": st.IsMinimized,
		"restored":  restored,
	}).Info("window state initialized")
}

// Attach binds the adapter to the floating window, pushes the full state
// to it and starts watching it. It reports whether the window was found.
func (a *App) Attach() (bool, error) {
	id, err := a.backend.FindWindowByClass(a.windowClass())
	if err != nil {
		if errors.Is(err, platform.ErrWindowNotFound) {
			return false, nil
		}
		return false, err
	}

	a.adapter.SetWindow(id)
	a.adapter.Apply(a.store.State())

	err = a.backend.Watch(id, platform.WindowHandlers{
		Moved: func(bounds platform.Rect) {
			p := geometry.Point{X: bounds.X, Y: bounds.Y}
			if p != a.store.State().Position {
				a.store.SetPosition(p)
			}
		},
		Focus: a.activity,
		Hover: a.activity,
	})
	if err != nil {
		return true, fmt.Errorf("failed to watch window %d: %w", id, err)
	}
	log.WithField("window", id).Info("attached to floating window")
	return true, nil
}

// activity arms auto-hide when the pointer or focus leaves and restores
// full activity when it returns.
func (a *App) activity(active bool) {
	if active {
		a.autoHide.Cancel()
	} else {
		a.autoHide.Start()
	}
}

// attachLoop retries Attach until the window appears or ctx is done.
func (a *App) attachLoop(ctx context.Context) {
	ticker := time.NewTicker(a.attachInterval)
	defer ticker.Stop()
	for {
		ok, err := a.Attach()
		if err != nil {
			log.WithError(err).Warn("window attach failed")
		}
		if ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// connectionLoop keeps the tray status in line with relay reachability.
func (a *App) connectionLoop(ctx context.Context) {
	ticker := time.NewTicker(a.connectionInterval)
	defer ticker.Stop()
	for {
		a.controller.RefreshConnection(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start launches the background loops. They stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	a.sweeper.SweepNow()
	go a.sweeper.Run(ctx)
	go a.attachLoop(ctx)
	go a.connectionLoop(ctx)
}

// Stop disarms timers.
func (a *App) Stop() {
	a.autoHide.Stop()
}

func (a *App) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *App) windowClass() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.winCls
}

// Show implements ipc.Service.
func (a *App) Show() { a.controller.Show() }

// Hide implements ipc.Service.
func (a *App) Hide() { a.controller.Hide() }

// ToggleMinimize implements ipc.Service.
func (a *App) ToggleMinimize() window.State { return a.controller.ToggleMinimize() }

// ToggleVisibility implements ipc.Service.
func (a *App) ToggleVisibility() bool { return a.controller.ToggleVisibility() }

// Capture implements ipc.Service.
func (a *App) Capture(ctx context.Context, region *geometry.Rect) (capture.Shot, error) {
	return a.controller.Capture(ctx, region)
}

// ScreenshotHistory implements ipc.Service.
func (a *App) ScreenshotHistory() ([]capture.Shot, error) {
	return a.capture.History()
}

// StartFileDrag implements ipc.Service.
func (a *App) StartFileDrag(ctx context.Context, desc transfer.FileDescriptor) (string, error) {
	return a.drag.StartFileDrag(ctx, desc)
}

// PrepareDragData implements ipc.Service.
func (a *App) PrepareDragData(ctx context.Context, desc transfer.FileDescriptor) (drag.Payload, error) {
	return a.drag.PrepareDragData(ctx, desc)
}

// DragToExternal implements ipc.Service.
func (a *App) DragToExternal(p drag.Payload) error {
	return a.drag.HandleExternalDrag(p)
}

// UploadFiles implements ipc.Service.
func (a *App) UploadFiles(ctx context.Context, paths []string) ([]transfer.FileDescriptor, error) {
	return a.controller.UploadFiles(ctx, paths)
}

// AppConfig implements ipc.Service.
func (a *App) AppConfig() ipc.AppConfigData {
	return ipc.AppConfigData{
		APIBaseURL:    a.client.BaseURL(),
		MaxFileSize:   a.uploader.MaxSize(),
		WindowClass:   a.windowClass(),
		ScratchDir:    a.drag.TempDir(),
		ScreenshotDir: a.capture.Dir(),
		Version:       Version,
	}
}

// State implements ipc.Service.
func (a *App) State() ipc.StateData {
	return ipc.StateData{
		Window:        a.store.State(),
		WindowID:      uint32(a.adapter.Window()),
		Status:        string(a.controller.Status()),
		AutoHide:      a.autoHide.Phase().String(),
		FadePending:   a.autoHide.Pending(),
		Subscribers:   a.events.Count(),
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
	}
}

// StartAutoHide implements ipc.Service.
func (a *App) StartAutoHide() { a.autoHide.Start() }

// CancelAutoHide implements ipc.Service.
func (a *App) CancelAutoHide() { a.autoHide.Cancel() }

// SmartPosition moves the window to the first corner of the active display
// not covered by another window.
func (a *App) SmartPosition() (bool, error) {
	display, err := a.backend.ActiveDisplay()
	if err != nil {
		return false, fmt.Errorf("failed to resolve active display: %w", err)
	}
	windows, err := a.backend.ListWindowsOnDisplay(display.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list windows: %w", err)
	}
	a.store.SetWorkArea(display.Usable)
	others := platform.OtherWindows(windows, a.adapter.Window())
	return a.store.SmartPosition(others), nil
}

// CleanupTemp implements ipc.Service.
func (a *App) CleanupTemp() map[string]int {
	return a.sweeper.SweepNow()
}

// Reload re-reads the config and applies the settings that can change at
// runtime: relay endpoint and key, size limit, window class and log level.
// Window presets and hotkeys need a restart.
func (a *App) Reload() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := logging.SetLevel(cfg.Logging.Level); err != nil {
		return err
	}

	a.client.SetBaseURL(cfg.Transfer.BaseURL)
	a.client.SetAPIKey(cfg.Transfer.APIKey)
	a.uploader.SetMaxSize(cfg.Transfer.MaxFileSize)

	a.mu.Lock()
	a.cfg = cfg
	a.winCls = cfg.Window.Class
	a.mu.Unlock()

	log.WithFields(logrus.Fields{
		"base_url":      cfg.Transfer.BaseURL,
		"max_file_size": a.uploader.MaxSize(),
	}).Info("config reloaded")
	return nil
}

// Subscribe implements ipc.Service.
func (a *App) Subscribe() chan events.Event { return a.events.Subscribe() }

// Unsubscribe implements ipc.Service.
func (a *App) Unsubscribe(ch chan events.Event) { a.events.Unsubscribe(ch) }
