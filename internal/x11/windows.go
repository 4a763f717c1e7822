package x11

import (
	"fmt"
	"strings"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// ClientWindow is a managed top-level window.
type ClientWindow struct {
	ID     xproto.Window
	PID    int
	Class  string
	Title  string
	Bounds geometry.Rect
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, r geometry.Rect) error {
	// Maximized windows ignore move requests on most WMs.
	c.unmaximizeWindow(windowID)

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, r.X, r.Y, r.Width, r.Height); err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(r.X, r.Y, r.Width, r.Height)
	}
	return nil
}

func (c *Connection) unmaximizeWindow(windowID xproto.Window) {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_MAXIMIZED_HORZ" || state == "_NET_WM_STATE_MAXIMIZED_VERT" {
			c.SetWindowState(windowID, state, false)
		}
	}
}

// SetOpacity sets _NET_WM_WINDOW_OPACITY; compositors apply it.
func (c *Connection) SetOpacity(windowID xproto.Window, opacity float64) error {
	opacity = min(max(opacity, 0), 1)
	if err := ewmh.WmWindowOpacitySet(c.XUtil, windowID, opacity); err != nil {
		return fmt.Errorf("failed to set opacity: %w", err)
	}
	return nil
}

// MapWindow shows a window and asks the WM to raise it.
func (c *Connection) MapWindow(windowID xproto.Window) error {
	xwindow.New(c.XUtil, windowID).Map()
	// Some WMs refuse activation requests; mapped is enough.
	_ = c.ActivateWindow(windowID)
	return nil
}

// UnmapWindow hides a window.
func (c *Connection) UnmapWindow(windowID xproto.Window) error {
	xwindow.New(c.XUtil, windowID).Unmap()
	return nil
}

// SetAbove toggles _NET_WM_STATE_ABOVE.
func (c *Connection) SetAbove(windowID xproto.Window, on bool) error {
	return c.SetWindowState(windowID, "_NET_WM_STATE_ABOVE", on)
}

// WindowRect returns a window's geometry in root coordinates.
func (c *Connection) WindowRect(windowID xproto.Window) (geometry.Rect, bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}

	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}

	return geometry.Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, true
}

// FindWindowByClass returns the first managed window whose WM_CLASS class
// or instance equals class (case-insensitive).
func (c *Connection) FindWindowByClass(class string) (xproto.Window, bool, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get client list: %w", err)
	}
	for _, win := range clients {
		wmClass, err := icccm.WmClassGet(c.XUtil, win)
		if err != nil {
			continue
		}
		if strings.EqualFold(wmClass.Class, class) || strings.EqualFold(wmClass.Instance, class) {
			return win, true, nil
		}
	}
	return 0, false, nil
}

// ClientWindows lists normal, visible windows on the current desktop.
func (c *Connection) ClientWindows() ([]ClientWindow, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}

	currentDesktop, desktopErr := ewmh.CurrentDesktopGet(c.XUtil)
	hasCurrentDesktop := desktopErr == nil

	out := make([]ClientWindow, 0, len(clients))
	for _, win := range clients {
		if !c.IsNormalWindow(win) || c.isHidden(win) {
			continue
		}
		if hasCurrentDesktop {
			desktop, err := ewmh.WmDesktopGet(c.XUtil, win)
			// 0xFFFFFFFF means the window is on all desktops (sticky)
			if err == nil && desktop != uint(0xFFFFFFFF) && desktop != currentDesktop {
				continue
			}
		}
		r, ok := c.WindowRect(win)
		if !ok {
			continue
		}

		cw := ClientWindow{ID: win, Bounds: r, Title: c.windowTitle(win)}
		if p, err := ewmh.WmPidGet(c.XUtil, win); err == nil {
			cw.PID = int(p)
		}
		if wmClass, err := icccm.WmClassGet(c.XUtil, win); err == nil {
			cw.Class = strings.TrimSpace(wmClass.Class)
		}
		out = append(out, cw)
	}
	return out, nil
}

func (c *Connection) windowTitle(win xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, win); err == nil && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title, err := icccm.WmNameGet(c.XUtil, win); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

func (c *Connection) isHidden(win xproto.Window) bool {
	states, err := ewmh.WmStateGet(c.XUtil, win)
	if err != nil {
		return false
	}
	for _, state := range states {
		switch state {
		case "_NET_WM_STATE_HIDDEN", "_NET_WM_STATE_FULLSCREEN":
			return true
		}
	}
	return false
}

func (c *Connection) hasWindowType(win xproto.Window, want string) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_UTILITY":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP", "_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH", "_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}

	return len(types) == 0
}
