package x11

import (
	"fmt"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// WatchHandlers receive events for a watched window. Nil handlers are skipped.
type WatchHandlers struct {
	Moved func(bounds geometry.Rect)
	Focus func(focused bool)
	Hover func(inside bool)
}

// WatchWindow subscribes to structure, focus and crossing events on win.
// Callbacks run on the event loop goroutine.
func (c *Connection) WatchWindow(win xproto.Window, h WatchHandlers) error {
	w := xwindow.New(c.XUtil, win)
	if err := w.Listen(
		xproto.EventMaskStructureNotify,
		xproto.EventMaskFocusChange,
		xproto.EventMaskEnterWindow,
		xproto.EventMaskLeaveWindow,
	); err != nil {
		return fmt.Errorf("failed to listen on window %d: %w", win, err)
	}

	if h.Moved != nil {
		xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
			// Reparenting WMs report frame-relative coordinates; resolve
			// against the root instead.
			if r, ok := c.WindowRect(win); ok {
				h.Moved(r)
			}
		}).Connect(c.XUtil, win)
	}

	if h.Focus != nil {
		xevent.FocusInFun(func(xu *xgbutil.XUtil, ev xevent.FocusInEvent) {
			if ignoreFocusDetail(ev.Detail) {
				return
			}
			h.Focus(true)
		}).Connect(c.XUtil, win)
		xevent.FocusOutFun(func(xu *xgbutil.XUtil, ev xevent.FocusOutEvent) {
			if ignoreFocusDetail(ev.Detail) {
				return
			}
			h.Focus(false)
		}).Connect(c.XUtil, win)
	}

	if h.Hover != nil {
		xevent.EnterNotifyFun(func(xu *xgbutil.XUtil, ev xevent.EnterNotifyEvent) {
			h.Hover(true)
		}).Connect(c.XUtil, win)
		xevent.LeaveNotifyFun(func(xu *xgbutil.XUtil, ev xevent.LeaveNotifyEvent) {
			// Moving into a child window is not leaving.
			if ev.Detail == xproto.NotifyDetailInferior {
				return
			}
			h.Hover(false)
		}).Connect(c.XUtil, win)
	}

	return nil
}

func ignoreFocusDetail(detail byte) bool {
	return detail == xproto.NotifyDetailInferior || detail == xproto.NotifyDetailPointer
}
