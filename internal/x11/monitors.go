package x11

import (
	"fmt"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display
type Monitor struct {
	ID      int
	Name    string
	Primary bool
	Bounds  geometry.Rect
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(c.XUtil.Conn(), info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}

		isPrimary := false
		for _, o := range info.Outputs {
			if primary != 0 && o == primary {
				isPrimary = true
			}
		}

		monitors = append(monitors, Monitor{
			ID:      i,
			Name:    name,
			Primary: isPrimary,
			Bounds: geometry.Rect{
				X:      int(info.X),
				Y:      int(info.Y),
				Width:  int(info.Width),
				Height: int(info.Height),
			},
		})
	}

	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors found")
	}
	return monitors, nil
}

// PrimaryMonitor returns the RandR primary output, falling back to the
// first active monitor.
func (c *Connection) PrimaryMonitor() (Monitor, error) {
	monitors, err := c.GetMonitors()
	if err != nil {
		return Monitor{}, err
	}
	for _, m := range monitors {
		if m.Primary {
			return m, nil
		}
	}
	return monitors[0], nil
}

// ActiveMonitor returns the monitor containing the focused window, then
// the pointer, then the first monitor.
func (c *Connection) ActiveMonitor() (Monitor, error) {
	monitors, err := c.GetMonitors()
	if err != nil {
		return Monitor{}, err
	}

	if win, err := ewmh.ActiveWindowGet(c.XUtil); err == nil && win != 0 {
		if r, ok := c.WindowRect(win); ok {
			if m, ok := monitorAt(monitors, r.X+r.Width/2, r.Y+r.Height/2); ok {
				return m, nil
			}
		}
	}

	if pointer, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		if m, ok := monitorAt(monitors, int(pointer.RootX), int(pointer.RootY)); ok {
			return m, nil
		}
	}

	return monitors[0], nil
}

func monitorAt(monitors []Monitor, x, y int) (Monitor, bool) {
	for _, m := range monitors {
		if m.Bounds.Contains(x, y) {
			return m, true
		}
	}
	return Monitor{}, false
}

// WorkArea returns the part of m not covered by panels and docks. Dock
// struts are preferred; _NET_WORKAREA is the fallback.
func (c *Connection) WorkArea(m Monitor) geometry.Rect {
	if area, ok := c.strutWorkArea(m.Bounds); ok {
		return area
	}

	workAreas, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workAreas) == 0 {
		return m.Bounds
	}
	idx := 0
	if desktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(desktop) < len(workAreas) {
		idx = int(desktop)
	}
	wa := workAreas[idx]
	area := geometry.Intersect(m.Bounds, geometry.Rect{
		X:      wa.X,
		Y:      wa.Y,
		Width:  int(wa.Width),
		Height: int(wa.Height),
	})
	if area.Empty() {
		return m.Bounds
	}
	return area
}

type insets struct {
	left, right, top, bottom int
}

func (c *Connection) strutWorkArea(mon geometry.Rect) (geometry.Rect, bool) {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}
	rootW := int(rootGeom.Width)
	rootH := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return geometry.Rect{}, false
	}

	var in insets
	for _, win := range clients {
		if !c.hasWindowType(win, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}
		sp, err := ewmh.WmStrutPartialGet(c.XUtil, win)
		if err != nil {
			// Some docks only set _NET_WM_STRUT (no partial ranges).
			s, err := ewmh.WmStrutGet(c.XUtil, win)
			if err != nil {
				continue
			}
			sp = &ewmh.WmStrutPartial{
				Left: s.Left, Right: s.Right, Top: s.Top, Bottom: s.Bottom,
				LeftEndY: uint(rootH - 1), RightEndY: uint(rootH - 1),
				TopEndX: uint(rootW - 1), BottomEndX: uint(rootW - 1),
			}
		}
		in.add(mon, strutRects(sp, rootW, rootH))
	}

	if in == (insets{}) {
		return geometry.Rect{}, false
	}

	area := geometry.Rect{
		X:      mon.X + in.left,
		Y:      mon.Y + in.top,
		Width:  max(mon.Width-in.left-in.right, 1),
		Height: max(mon.Height-in.top-in.bottom, 1),
	}
	return area, true
}

// strutRects converts a partial strut into the screen rects it reserves,
// in left, right, top, bottom order.
func strutRects(sp *ewmh.WmStrutPartial, rootW, rootH int) [4]geometry.Rect {
	return [4]geometry.Rect{
		{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: int(sp.LeftEndY) - int(sp.LeftStartY) + 1},
		{X: rootW - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: int(sp.RightEndY) - int(sp.RightStartY) + 1},
		{X: int(sp.TopStartX), Y: 0, Width: int(sp.TopEndX) - int(sp.TopStartX) + 1, Height: int(sp.Top)},
		{X: int(sp.BottomStartX), Y: rootH - int(sp.Bottom), Width: int(sp.BottomEndX) - int(sp.BottomStartX) + 1, Height: int(sp.Bottom)},
	}
}

func (in *insets) add(mon geometry.Rect, struts [4]geometry.Rect) {
	if r := geometry.Intersect(mon, struts[0]); !r.Empty() {
		in.left = max(in.left, r.Width)
	}
	if r := geometry.Intersect(mon, struts[1]); !r.Empty() {
		in.right = max(in.right, r.Width)
	}
	if r := geometry.Intersect(mon, struts[2]); !r.Empty() {
		in.top = max(in.top, r.Height)
	}
	if r := geometry.Intersect(mon, struts[3]); !r.Empty() {
		in.bottom = max(in.bottom, r.Height)
	}
}
