package platform

import (
	"errors"
	"image"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/x11"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect = geometry.Rect

// ErrWindowNotFound is returned when no window matches a lookup.
var ErrWindowNotFound = errors.New("window not found")

// ErrUnsupported is returned by backends that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported on this platform")

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID     WindowID
	PID    int
	AppID  string
	Title  string
	Bounds Rect
}

// WindowHandlers receive events for a watched window. Nil handlers are
// skipped.
type WindowHandlers struct {
	// Moved fires when the window is moved or resized by the user or WM.
	Moved func(bounds Rect)
	// Focus fires with true on focus-in and false on focus-out.
	Focus func(focused bool)
	// Hover fires with true on pointer enter and false on leave.
	Hover func(inside bool)
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Displays() ([]Display, error)
	ActiveDisplay() (Display, error)
	// PrimaryWorkArea returns the usable area of the primary display.
	PrimaryWorkArea() (Rect, error)
	ListWindowsOnDisplay(displayID int) ([]Window, error)
	FindWindowByClass(class string) (WindowID, error)
	MoveResize(windowID WindowID, bounds Rect) error
	SetOpacity(windowID WindowID, opacity float64) error
	Show(windowID WindowID) error
	Hide(windowID WindowID) error
	SetAlwaysOnTop(windowID WindowID, on bool) error
	Watch(windowID WindowID, handlers WindowHandlers) error
	// Capture grabs the screen, or region when non-nil.
	Capture(region *Rect) (image.Image, error)
}

// ClipboardProvider is implemented by backends that can own the clipboard
// selection themselves instead of shelling out.
type ClipboardProvider interface {
	ClipboardOwner() (*x11.ClipboardOwner, error)
}

// OtherWindows returns the bounds of every window in windows except self.
func OtherWindows(windows []Window, self WindowID) []Rect {
	out := make([]Rect, 0, len(windows))
	for _, w := range windows {
		if w.ID == self {
			continue
		}
		out = append(out, w.Bounds)
	}
	return out
}
