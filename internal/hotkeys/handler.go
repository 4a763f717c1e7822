package hotkeys

import (
	"context"
	"fmt"
	"sync"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "hotkeys")

// Actions are the controller commands reachable from global accelerators.
// Nil actions are not bound.
type Actions struct {
	Capture          func(ctx context.Context) error
	ToggleMinimize   func()
	ToggleVisibility func()
}

// Binding pairs a key sequence with a named action.
type Binding struct {
	Name string
	Keys string
	Run  func()
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler. Backends without X11 access get
// a handler whose Register fails.
func NewHandler(backend platform.Backend) *Handler {
	var xu *xgbutil.XUtil
	var root xproto.Window
	if accessor, ok := backend.(x11Accessor); ok {
		xu = accessor.XUtil()
		root = accessor.RootWindow()
	}

	if xu != nil {
		ignoreModsOnce.Do(func() {
			configureIgnoreMods(xu)
		})
	}

	return &Handler{
		xu:   xu,
		root: root,
	}
}

// Bindings maps the configured accelerators to actions. Empty key
// sequences and nil actions are skipped. Capture runs off the event loop
// so a slow grab does not stall X event handling.
func Bindings(cfg config.HotkeyConfig, actions Actions) []Binding {
	var out []Binding
	add := func(name, keys string, run func()) {
		if keys != "" && run != nil {
			out = append(out, Binding{Name: name, Keys: keys, Run: run})
		}
	}

	if actions.Capture != nil {
		add("capture", cfg.Capture, func() {
			go func() {
				if err := actions.Capture(context.Background()); err != nil {
					log.WithError(err).Warn("capture hotkey failed")
				}
			}()
		})
	}
	add("toggle_minimize", cfg.ToggleMinimize, actions.ToggleMinimize)
	add("toggle_visible", cfg.ToggleVisible, actions.ToggleVisibility)
	return out
}

// Register binds every accelerator in cfg. It stops at the first failure.
func (h *Handler) Register(cfg config.HotkeyConfig, actions Actions) error {
	for _, b := range Bindings(cfg, actions) {
		if err := h.RegisterFunc(b.Keys, b.Run); err != nil {
			return fmt.Errorf("failed to register %s hotkey %q: %w", b.Name, b.Keys, err)
		}
		log.WithFields(logrus.Fields{"action": b.Name, "keys": b.Keys}).Info("hotkey registered")
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	if h.xu == nil {
		return fmt.Errorf("global hotkeys need an X11 backend")
	}
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		log.WithField("keys", keySequence).Debug("hotkey triggered")
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	xevent.IgnoreMods = ignoreMasks(caps, numLock, scrollLock)
}

// ignoreMasks returns every combination of the lock modifiers, including
// none, so hotkeys fire regardless of lock state.
func ignoreMasks(caps, numLock, scrollLock uint16) []uint16 {
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	ignore := make([]uint16, 0, 1<<len(base))
	for subset := 0; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		ignore = append(ignore, mask)
	}
	return ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
