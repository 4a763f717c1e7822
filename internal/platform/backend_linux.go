//go:build linux

package platform

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/1broseidon/floatdrop/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection

	ownerOnce sync.Once
	owner     *x11.ClipboardOwner
	ownerErr  error
}

var (
	_ Backend           = (*LinuxBackend)(nil)
	_ ClipboardProvider = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// NewDefault opens the backend for the current platform.
func NewDefault() (Backend, error) {
	return NewLinuxBackendFromDisplay()
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// StopEventLoop makes a running EventLoop return.
func (b *LinuxBackend) StopEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, b.displayFromMonitor(m))
	}
	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})
	return displays, nil
}

// ActiveDisplay returns the display holding the focused window or pointer.
func (b *LinuxBackend) ActiveDisplay() (Display, error) {
	conn, err := b.connection()
	if err != nil {
		return Display{}, err
	}
	m, err := conn.ActiveMonitor()
	if err != nil {
		return Display{}, err
	}
	return b.displayFromMonitor(m), nil
}

// PrimaryWorkArea returns the usable area of the primary display.
func (b *LinuxBackend) PrimaryWorkArea() (Rect, error) {
	conn, err := b.connection()
	if err != nil {
		return Rect{}, err
	}
	m, err := conn.PrimaryMonitor()
	if err != nil {
		return Rect{}, err
	}
	return conn.WorkArea(m), nil
}

// ListWindowsOnDisplay lists normal windows whose centers are inside the display bounds.
func (b *LinuxBackend) ListWindowsOnDisplay(displayID int) ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	displays, err := b.Displays()
	if err != nil {
		return nil, err
	}
	var target *Display
	for i := range displays {
		if displays[i].ID == displayID {
			target = &displays[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("display with id %d not found", displayID)
	}

	clients, err := conn.ClientWindows()
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(clients))
	for _, cw := range clients {
		r := cw.Bounds
		if !target.Bounds.Contains(r.X+r.Width/2, r.Y+r.Height/2) {
			continue
		}
		windows = append(windows, Window{
			ID:     WindowID(cw.ID),
			PID:    cw.PID,
			AppID:  cw.Class,
			Title:  cw.Title,
			Bounds: r,
		})
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID < windows[j].ID
	})
	return windows, nil
}

// FindWindowByClass returns the first managed window with the WM_CLASS.
func (b *LinuxBackend) FindWindowByClass(class string) (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	win, ok, err := conn.FindWindowByClass(class)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("class %q: %w", class, ErrWindowNotFound)
	}
	return WindowID(win), nil
}

// MoveResize moves and resizes a window to the specified bounds.
func (b *LinuxBackend) MoveResize(windowID WindowID, bounds Rect) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveResizeWindow(xproto.Window(windowID), bounds)
}

// SetOpacity sets the window opacity in [0,1].
func (b *LinuxBackend) SetOpacity(windowID WindowID, opacity float64) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetOpacity(xproto.Window(windowID), opacity)
}

// Show maps and raises the window.
func (b *LinuxBackend) Show(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MapWindow(xproto.Window(windowID))
}

// Hide unmaps the window.
func (b *LinuxBackend) Hide(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.UnmapWindow(xproto.Window(windowID))
}

// SetAlwaysOnTop toggles the above-others state.
func (b *LinuxBackend) SetAlwaysOnTop(windowID WindowID, on bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetAbove(xproto.Window(windowID), on)
}

// Watch delivers move, focus and hover events for a window. Handlers run
// on the EventLoop goroutine.
func (b *LinuxBackend) Watch(windowID WindowID, h WindowHandlers) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.WatchWindow(xproto.Window(windowID), x11.WatchHandlers{
		Moved: h.Moved,
		Focus: h.Focus,
		Hover: h.Hover,
	})
}

// Capture grabs the root window, optionally cropped to region.
func (b *LinuxBackend) Capture(region *Rect) (image.Image, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	return conn.CaptureRoot(region)
}

// ClipboardOwner lazily creates the hidden selection owner window.
func (b *LinuxBackend) ClipboardOwner() (*x11.ClipboardOwner, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	b.ownerOnce.Do(func() {
		b.owner, b.ownerErr = conn.NewClipboardOwner()
	})
	return b.owner, b.ownerErr
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func (b *LinuxBackend) displayFromMonitor(m x11.Monitor) Display {
	return Display{
		ID:     m.ID,
		Name:   m.Name,
		Bounds: m.Bounds,
		Usable: b.conn.WorkArea(m),
	}
}

