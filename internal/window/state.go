// Package window owns the floating window's state: position, size preset,
// opacity and visibility. Store is the pure state core; Adapter applies
// changes to the real window and AutoHide fades it when idle.
package window

import "github.com/1broseidon/floatdrop/internal/geometry"

// State is a snapshot of the floating window.
type State struct {
	IsVisible   bool           `json:"isVisible"`
	IsMinimized bool           `json:"isMinimized"`
	Position    geometry.Point `json:"position"`
	Size        geometry.Size  `json:"size"`
	Opacity     float64        `json:"opacity"`
	AlwaysOnTop bool           `json:"alwaysOnTop"`
}

// Bounds returns the window rect.
func (s State) Bounds() geometry.Rect {
	return geometry.RectAt(s.Position, s.Size)
}

// Observer is notified after every state change with the previous and
// the new snapshot.
type Observer func(old, new State)

// Persister stores small JSON blobs by key. statestore.Store satisfies it.
type Persister interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
}

// Persisted blob shapes.
type savedState struct {
	IsMinimized bool `json:"isMinimized"`
}

type savedPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}
