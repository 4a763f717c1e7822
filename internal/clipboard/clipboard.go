// Package clipboard places typed payloads on the system clipboard so other
// applications can paste dragged files, text and images.
package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"

	"github.com/1broseidon/floatdrop/internal/x11"
	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "clipboard")

// Well-known clipboard targets.
const (
	TargetText       = "text/plain"
	TargetHTML       = "text/html"
	TargetURIList    = "text/uri-list"
	TargetGnomeFiles = "x-special/gnome-copied-files"
	TargetPNG        = "image/png"
)

// ErrEmpty is returned when Write is called without items.
var ErrEmpty = errors.New("no clipboard items")

// Item is one representation of the clipboard content.
type Item struct {
	Target string
	Data   []byte
}

// Writer places items on the clipboard. Items are ordered by preference;
// writers that can only offer one target use the first.
type Writer interface {
	Write(items []Item) error
}

// Selection offers several targets at once by owning the clipboard.
type Selection interface {
	Set(items []Item) error
	MaxDataSize() int
}

// Runner executes an external command with stdin.
type Runner func(stdin []byte, name string, args ...string) error

// System writes through an owned selection when one is available and falls
// back to external clipboard tools otherwise.
type System struct {
	selection Selection
	run       Runner
	writeText func(string) error
}

var _ Writer = (*System)(nil)

// NewSystem returns a clipboard writer. sel may be nil.
func NewSystem(sel Selection) *System {
	return &System{
		selection: sel,
		run:       runCommand,
		writeText: clipboard.WriteAll,
	}
}

// Write replaces the clipboard content with items.
func (s *System) Write(items []Item) error {
	if len(items) == 0 {
		return ErrEmpty
	}

	if s.selection != nil && fits(items, s.selection.MaxDataSize()) {
		err := s.selection.Set(items)
		if err == nil {
			log.WithField("targets", targetNames(items)).Debug("clipboard selection updated")
			return nil
		}
		log.WithError(err).Warn("selection owner failed, falling back to clipboard tools")
	}

	return s.writeFallback(items)
}

// writeFallback offers only the preferred item. xclip holds a single
// target per invocation.
func (s *System) writeFallback(items []Item) error {
	first := items[0]
	if first.Target == TargetText {
		if err := s.writeText(string(first.Data)); err != nil {
			return fmt.Errorf("failed to write clipboard text: %w", err)
		}
		return nil
	}

	if err := s.run(first.Data, "xclip", "-selection", "clipboard", "-t", first.Target, "-i"); err != nil {
		return fmt.Errorf("failed to write clipboard %s: %w", first.Target, err)
	}
	if len(items) > 1 {
		log.WithFields(logrus.Fields{
			"target":  first.Target,
			"dropped": targetNames(items[1:]),
		}).Debug("clipboard tool offers a single target")
	}
	return nil
}

func fits(items []Item, limit int) bool {
	for _, it := range items {
		if len(it.Data) > limit {
			return false
		}
	}
	return true
}

func targetNames(items []Item) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Target
	}
	return names
}

func runCommand(stdin []byte, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// x11Selection adapts an X11 clipboard owner to Selection.
type x11Selection struct {
	owner *x11.ClipboardOwner
}

// NewX11Selection wraps owner as a Selection.
func NewX11Selection(owner *x11.ClipboardOwner) Selection {
	return x11Selection{owner: owner}
}

func (s x11Selection) Set(items []Item) error {
	targets := make([]x11.SelectionTarget, len(items))
	for i, it := range items {
		targets[i] = x11.SelectionTarget{Name: it.Target, Data: it.Data}
	}
	return s.owner.Set(targets)
}

func (s x11Selection) MaxDataSize() int {
	return s.owner.MaxDataSize()
}
