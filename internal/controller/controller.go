// Package controller is the external entry point for tray actions, global
// hotkeys and IPC: show, hide, toggle, capture and upload status.
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "controller")

// Status is the tray icon state.
type Status string

const (
	StatusNormal    Status = "normal"
	StatusUploading Status = "uploading"
	StatusError     Status = "error"
	StatusOffline   Status = "offline"
)

// Tooltip returns the tray tooltip for s.
func (s Status) Tooltip() string {
	switch s {
	case StatusUploading:
		return "floatdrop: uploading"
	case StatusError:
		return "floatdrop: last transfer failed"
	case StatusOffline:
		return "floatdrop: relay unreachable"
	default:
		return "floatdrop"
	}
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNormal, StatusUploading, StatusError, StatusOffline:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// captureOpacity is applied after a capture so upload progress is visible.
const captureOpacity = 1.0

// Capturer takes screenshots. capture.Manager satisfies it.
type Capturer interface {
	Capture(ctx context.Context, opts capture.Options) (capture.Shot, error)
}

// Uploader uploads a batch of files. transfer.Uploader satisfies it.
type Uploader interface {
	UploadFiles(ctx context.Context, paths []string) []transfer.FileDescriptor
}

// ConnectionChecker checks relay reachability. transfer.Client satisfies it.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) bool
}

// Config wires a Controller. Capturer, Uploader and Checker are optional.
type Config struct {
	Store    *window.Store
	AutoHide *window.AutoHide
	Capturer Capturer
	Uploader Uploader
	Checker  ConnectionChecker
	Events   events.Publisher
}

// Controller routes external commands to the window store and services.
type Controller struct {
	store    *window.Store
	autoHide *window.AutoHide
	capturer Capturer
	uploader Uploader
	checker  ConnectionChecker
	events   events.Publisher

	mu     sync.Mutex
	status Status
}

// New returns a controller with status normal.
func New(cfg Config) *Controller {
	if cfg.Events == nil {
		cfg.Events = events.Discard
	}
	return &Controller{
		store:    cfg.Store,
		autoHide: cfg.AutoHide,
		capturer: cfg.Capturer,
		uploader: cfg.Uploader,
		checker:  cfg.Checker,
		events:   cfg.Events,
		status:   StatusNormal,
	}
}

// Show makes the window visible at active opacity.
func (c *Controller) Show() {
	c.store.Show()
	if c.autoHide != nil {
		c.autoHide.Cancel()
	}
}

// Hide hides the window. A pending fade is dropped.
func (c *Controller) Hide() {
	if c.autoHide != nil {
		c.autoHide.Stop()
	}
	c.store.Hide()
}

// ToggleVisibility flips visibility and returns the new value.
func (c *Controller) ToggleVisibility() bool {
	visible := c.store.ToggleVisibility()
	if c.autoHide != nil {
		if visible {
			c.autoHide.Cancel()
		} else {
			c.autoHide.Stop()
		}
	}
	return visible
}

// ToggleMinimize switches between the normal and mini presets.
func (c *Controller) ToggleMinimize() window.State {
	return c.store.ToggleMinimize()
}

// Capture takes a screenshot of region, or the whole screen when region is
// nil, and brings the window forward fully opaque. Failures are published
// as screenshot-error and returned.
func (c *Controller) Capture(ctx context.Context, region *geometry.Rect) (capture.Shot, error) {
	if c.capturer == nil {
		err := fmt.Errorf("screen capture is not available")
		c.publishCaptureError(err)
		return capture.Shot{}, err
	}

	shot, err := c.capturer.Capture(ctx, capture.Options{Region: region})
	if err != nil {
		log.WithError(err).Error("screenshot failed")
		c.publishCaptureError(err)
		return capture.Shot{}, err
	}

	c.events.Publish(events.New(events.ScreenshotCaptured, events.ScreenshotPayload{
		Path:   shot.Path,
		Width:  shot.Width,
		Height: shot.Height,
	}))

	c.store.Show()
	if c.autoHide != nil {
		c.autoHide.Hold(captureOpacity)
	} else {
		c.store.SetOpacity(captureOpacity)
	}
	return shot, nil
}

func (c *Controller) publishCaptureError(err error) {
	c.events.Publish(events.New(events.ScreenshotError, events.ErrorPayload{Error: err.Error()}))
}

// UploadFiles runs an upload batch, showing the uploading status while it
// runs. The status ends as error when any file failed.
func (c *Controller) UploadFiles(ctx context.Context, paths []string) ([]transfer.FileDescriptor, error) {
	if c.uploader == nil {
		return nil, fmt.Errorf("uploads are not configured")
	}

	c.SetStatus(StatusUploading)
	uploaded := c.uploader.UploadFiles(ctx, paths)
	if len(uploaded) == len(paths) {
		c.SetStatus(StatusNormal)
	} else {
		c.SetStatus(StatusError)
	}
	return uploaded, nil
}

// RefreshConnection checks the relay and switches between offline and
// normal. An error or uploading status is left alone while reachable.
func (c *Controller) RefreshConnection(ctx context.Context) bool {
	if c.checker == nil {
		return true
	}
	ok := c.checker.CheckConnection(ctx)

	c.mu.Lock()
	current := c.status
	c.mu.Unlock()

	switch {
	case !ok:
		c.SetStatus(StatusOffline)
	case current == StatusOffline:
		c.SetStatus(StatusNormal)
	}
	return ok
}

// SetStatus updates the tray status and publishes status-changed when it
// differs from the current one.
func (c *Controller) SetStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	log.WithField("status", s).Debug("tray status changed")
	c.events.Publish(events.New(events.StatusChanged, events.StatusPayload{
		Status:  string(s),
		Tooltip: s.Tooltip(),
	}))
}

// Status returns the current tray status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// State returns the window state.
func (c *Controller) State() window.State {
	return c.store.State()
}
