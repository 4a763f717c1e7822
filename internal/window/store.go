package window

import (
	"fmt"
	"sync"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/statestore"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "window")

// Options configures a Store.
type Options struct {
	Normal        geometry.Size
	Mini          geometry.Size
	Margin        int
	SnapThreshold int
	ActiveOpacity float64
	AlwaysOnTop   bool
	// Persist is optional; nil disables persistence.
	Persist Persister
}

// Store is the single owner of the window state. All methods are safe for
// concurrent use; observers run outside the state lock, in call order.
type Store struct {
	mu    sync.Mutex
	state State
	area  geometry.Rect
	opts  Options

	notifyMu  sync.Mutex
	observers []Observer
}

// NewStore returns a store in the initial state: visible, not minimized,
// at (0,0) with the normal preset.
func NewStore(opts Options) *Store {
	return &Store{
		opts: opts,
		state: State{
			IsVisible:   true,
			Size:        opts.Normal,
			Opacity:     opts.ActiveOpacity,
			AlwaysOnTop: opts.AlwaysOnTop,
		},
	}
}

// Subscribe registers an observer. Observers must not call back into the
// Store.
func (s *Store) Subscribe(o Observer) {
	s.notifyMu.Lock()
	s.observers = append(s.observers, o)
	s.notifyMu.Unlock()
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WorkArea returns the work area used for snapping and placement.
func (s *Store) WorkArea() geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.area
}

// SetWorkArea replaces the work area without moving the window.
func (s *Store) SetWorkArea(area geometry.Rect) {
	s.mu.Lock()
	s.area = area
	s.mu.Unlock()
}

// update applies fn under the lock and notifies observers when the state
// changed. It reports whether anything changed.
func (s *Store) update(fn func(st *State)) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	old := s.state
	fn(&s.state)
	next := s.state
	s.mu.Unlock()

	if old == next {
		return false
	}
	for _, o := range s.observers {
		o(old, next)
	}
	return true
}

// InitializePosition records the work area and places the window in its
// bottom-right corner, inset by the configured margin.
func (s *Store) InitializePosition(area geometry.Rect) {
	s.SetWorkArea(area)
	s.update(func(st *State) {
		st.Position = geometry.CornerPoint(area, st.Size, s.opts.Margin, geometry.BottomRight)
	})
}

// ToggleMinimize flips between the normal and mini presets and persists
// the flag.
func (s *Store) ToggleMinimize() State {
	var next State
	s.update(func(st *State) {
		st.IsMinimized = !st.IsMinimized
		st.Size = s.presetFor(st.IsMinimized)
		next = *st
	})
	s.persistMinimized(next.IsMinimized)
	log.WithField("minimized", next.IsMinimized).Debug("toggled minimize")
	return next
}

func (s *Store) presetFor(minimized bool) geometry.Size {
	if minimized {
		return s.opts.Mini
	}
	return s.opts.Normal
}

// SetPosition records a move, snaps it to nearby work-area edges and
// persists the result.
func (s *Store) SetPosition(p geometry.Point) State {
	area := s.WorkArea()
	var next State
	s.update(func(st *State) {
		st.Position = p
		if !area.Empty() {
			st.Position = geometry.Snap(p, st.Size, area, s.opts.SnapThreshold)
		}
		next = *st
	})
	s.persistPosition(next.Position)
	return next
}

// CheckSnapToEdge pulls the window flush to any work-area edge within
// threshold pixels. It reports whether the position changed.
func (s *Store) CheckSnapToEdge(threshold int) bool {
	area := s.WorkArea()
	if area.Empty() {
		return false
	}
	return s.update(func(st *State) {
		st.Position = geometry.Snap(st.Position, st.Size, area, threshold)
	})
}

// SmartPosition moves the window to the first corner of the work area that
// does not overlap any of others, trying bottom-right, bottom-left,
// top-right then top-left. When every corner overlaps the window stays put
// and false is returned.
func (s *Store) SmartPosition(others []geometry.Rect) bool {
	area := s.WorkArea()
	size := s.State().Size
	candidates := geometry.CornerCandidates(area, size, s.opts.Margin)
	p, ok := geometry.FirstFree(candidates, size, others)
	if !ok {
		log.WithField("windows", len(others)).Debug("no free corner, keeping position")
		return false
	}
	s.update(func(st *State) {
		st.Position = p
	})
	s.persistPosition(p)
	return true
}

// Show makes the window visible.
func (s *Store) Show() {
	s.update(func(st *State) { st.IsVisible = true })
}

// Hide hides the window.
func (s *Store) Hide() {
	s.update(func(st *State) { st.IsVisible = false })
}

// ToggleVisibility flips visibility and returns the new value.
func (s *Store) ToggleVisibility() bool {
	var visible bool
	s.update(func(st *State) {
		st.IsVisible = !st.IsVisible
		visible = st.IsVisible
	})
	return visible
}

// SetOpacity sets the window opacity, clamped to [0,1].
func (s *Store) SetOpacity(opacity float64) {
	opacity = min(max(opacity, 0), 1)
	s.update(func(st *State) { st.Opacity = opacity })
}

// SetAlwaysOnTop sets the above-others flag.
func (s *Store) SetAlwaysOnTop(on bool) {
	s.update(func(st *State) { st.AlwaysOnTop = on })
}

// Restore loads the persisted minimized flag and position. It reports
// whether a saved position was applied. Missing keys are not errors.
func (s *Store) Restore() (bool, error) {
	p := s.opts.Persist
	if p == nil {
		return false, nil
	}

	var saved savedState
	found, err := p.Get(statestore.KeyWindowState, &saved)
	if err != nil {
		return false, fmt.Errorf("failed to restore window state: %w", err)
	}
	if found {
		s.update(func(st *State) {
			st.IsMinimized = saved.IsMinimized
			st.Size = s.presetFor(saved.IsMinimized)
		})
	}

	var pos savedPosition
	found, err = p.Get(statestore.KeyWindowPosition, &pos)
	if err != nil {
		return false, fmt.Errorf("failed to restore window position: %w", err)
	}
	if !found {
		return false, nil
	}
	s.update(func(st *State) {
		st.Position = geometry.Point{X: pos.X, Y: pos.Y}
	})
	return true, nil
}

func (s *Store) persistMinimized(minimized bool) {
	if s.opts.Persist == nil {
		return
	}
	if err := s.opts.Persist.Set(statestore.KeyWindowState, savedState{IsMinimized: minimized}); err != nil {
		log.WithError(err).Warn("failed to persist window state")
	}
}

func (s *Store) persistPosition(p geometry.Point) {
	if s.opts.Persist == nil {
		return
	}
	if err := s.opts.Persist.Set(statestore.KeyWindowPosition, savedPosition{X: p.X, Y: p.Y}); err != nil {
		log.WithError(err).Warn("failed to persist window position")
	}
}
