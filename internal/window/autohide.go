package window

import (
	"sync"
	"time"
)

// Phase is the auto-hide state.
type Phase int

const (
	Active Phase = iota
	Faded
)

func (p Phase) String() string {
	if p == Faded {
		return "faded"
	}
	return "active"
}

// OpacitySetter receives opacity changes. Store satisfies it.
type OpacitySetter interface {
	SetOpacity(opacity float64)
}

// Timer is the stoppable handle returned by a scheduler.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// AutoHide fades the window after a period of inactivity. Start arms a
// single-shot fade; Cancel disarms it and restores full activity. Each arm
// takes a new generation so a stale fire after re-arm or cancel is ignored.
type AutoHide struct {
	mu      sync.Mutex
	target  OpacitySetter
	delay   time.Duration
	active  float64
	faded   float64
	after   AfterFunc
	gen     uint64
	timer   Timer
	phase   Phase
	enabled bool
}

// NewAutoHide returns an auto-hide timer driving target. A zero delay
// disables fading; Cancel still restores the active opacity.
func NewAutoHide(target OpacitySetter, delay time.Duration, active, faded float64) *AutoHide {
	return &AutoHide{
		target:  target,
		delay:   delay,
		active:  active,
		faded:   faded,
		after:   realAfterFunc,
		enabled: delay > 0,
	}
}

// SetAfterFunc replaces the scheduler. Intended for tests.
func (a *AutoHide) SetAfterFunc(f AfterFunc) {
	a.mu.Lock()
	a.after = f
	a.mu.Unlock()
}

// Start clears any pending fade and arms a new one for delay from now.
func (a *AutoHide) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	if !a.enabled {
		return
	}
	a.gen++
	gen := a.gen
	a.timer = a.after(a.delay, func() { a.fire(gen) })
}

func (a *AutoHide) fire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer == nil || a.gen != gen {
		return
	}
	a.timer = nil
	a.phase = Faded
	a.target.SetOpacity(a.faded)
}

// Cancel disarms any pending fade and forces the active opacity.
func (a *AutoHide) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	a.phase = Active
	a.target.SetOpacity(a.active)
}

// Hold disarms any pending fade and applies opacity without going through
// the active level. Used when a flow wants the window fully opaque.
func (a *AutoHide) Hold(opacity float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	a.phase = Active
	a.target.SetOpacity(opacity)
}

// Phase reports whether the window is currently faded.
func (a *AutoHide) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Pending reports whether a fade is armed.
func (a *AutoHide) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Stop disarms any pending fade without changing opacity.
func (a *AutoHide) Stop() {
	a.mu.Lock()
	a.stopLocked()
	a.mu.Unlock()
}

func (a *AutoHide) stopLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
