package window

import (
	"sync"

	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/platform"
)

// WindowSystem is the subset of the platform backend the adapter drives.
type WindowSystem interface {
	MoveResize(id platform.WindowID, bounds platform.Rect) error
	SetOpacity(id platform.WindowID, opacity float64) error
	Show(id platform.WindowID) error
	Hide(id platform.WindowID) error
	SetAlwaysOnTop(id platform.WindowID, on bool) error
}

// Adapter mirrors Store changes onto the real window and publishes
// window-state-changed. Failures are logged, never returned, so the state
// core stays authoritative.
type Adapter struct {
	sys    WindowSystem
	events events.Publisher

	mu sync.Mutex
	id platform.WindowID
}

// NewAdapter returns an adapter for window id. id may be zero until the
// window is found; changes are then only published.
func NewAdapter(sys WindowSystem, id platform.WindowID, pub events.Publisher) *Adapter {
	if pub == nil {
		pub = events.Discard
	}
	return &Adapter{sys: sys, id: id, events: pub}
}

// SetWindow binds the adapter to a window.
func (a *Adapter) SetWindow(id platform.WindowID) {
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
}

// Window returns the bound window id.
func (a *Adapter) Window() platform.WindowID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Observe is a Store observer.
func (a *Adapter) Observe(old, next State) {
	if id := a.Window(); id != 0 && a.sys != nil {
		a.applyDiff(id, old, next)
	}
	a.events.Publish(events.New(events.WindowStateChanged, next))
}

// Apply pushes the whole state to the window, used after binding.
func (a *Adapter) Apply(st State) {
	id := a.Window()
	if id == 0 || a.sys == nil {
		return
	}
	a.applyDiff(id, State{Opacity: -1, IsVisible: !st.IsVisible, AlwaysOnTop: !st.AlwaysOnTop}, st)
}

func (a *Adapter) applyDiff(id platform.WindowID, old, next State) {
	entry := log.WithField("window", id)

	if old.Bounds() != next.Bounds() {
		if err := a.sys.MoveResize(id, next.Bounds()); err != nil {
			entry.WithError(err).Warn("failed to move window")
		}
	}
	if old.Opacity != next.Opacity {
		if err := a.sys.SetOpacity(id, next.Opacity); err != nil {
			entry.WithError(err).Warn("failed to set opacity")
		}
	}
	if old.AlwaysOnTop != next.AlwaysOnTop {
		if err := a.sys.SetAlwaysOnTop(id, next.AlwaysOnTop); err != nil {
			entry.WithError(err).Warn("failed to set above state")
		}
	}
	if old.IsVisible != next.IsVisible {
		var err error
		if next.IsVisible {
			err = a.sys.Show(id)
		} else {
			err = a.sys.Hide(id)
		}
		if err != nil {
			entry.WithError(err).Warn("failed to change visibility")
		}
	}
}
