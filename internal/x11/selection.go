package x11

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// ErrSelectionTooLarge is returned when a target does not fit in a single
// ChangeProperty request. INCR transfers are not implemented.
var ErrSelectionTooLarge = errors.New("selection data exceeds maximum request size")

// SelectionTarget is one representation offered on the clipboard.
type SelectionTarget struct {
	Name string
	Data []byte
}

// textAliases are the legacy string targets served from text/plain.
var textAliases = []string{"UTF8_STRING", "STRING", "TEXT", "text/plain;charset=utf-8"}

// ClipboardOwner owns the CLIPBOARD selection from a hidden window and
// answers conversion requests for several targets at once.
type ClipboardOwner struct {
	conn *Connection
	win  xproto.Window

	clipboard   xproto.Atom
	targetsAtom xproto.Atom
	maxData     int

	mu      sync.Mutex
	data    map[xproto.Atom][]byte
	offered []xproto.Atom
}

// NewClipboardOwner creates the hidden owner window and connects its
// selection callbacks. Requests are served from the connection's event loop.
func (c *Connection) NewClipboardOwner() (*ClipboardOwner, error) {
	w, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate selection window: %w", err)
	}
	if err := w.CreateChecked(c.Root, -10, -10, 1, 1, 0); err != nil {
		return nil, fmt.Errorf("failed to create selection window: %w", err)
	}

	clipboard, err := c.atom("CLIPBOARD")
	if err != nil {
		return nil, err
	}
	targets, err := c.atom("TARGETS")
	if err != nil {
		return nil, err
	}

	// Length is in 4-byte units and includes the 24 byte request header.
	maxData := int(xproto.Setup(c.XUtil.Conn()).MaximumRequestLength)*4 - 24

	o := &ClipboardOwner{
		conn:        c,
		win:         w.Id,
		clipboard:   clipboard,
		targetsAtom: targets,
		maxData:     maxData,
	}

	xevent.SelectionRequestFun(o.handleRequest).Connect(c.XUtil, w.Id)
	xevent.SelectionClearFun(func(_ *xgbutil.XUtil, _ xevent.SelectionClearEvent) {
		o.mu.Lock()
		o.data = nil
		o.offered = nil
		o.mu.Unlock()
	}).Connect(c.XUtil, w.Id)

	return o, nil
}

// MaxDataSize is the largest single target the owner can serve.
func (o *ClipboardOwner) MaxDataSize() int {
	return o.maxData
}

// Set replaces the offered targets and takes ownership of CLIPBOARD.
// A text/plain target is also offered under the legacy string targets.
func (o *ClipboardOwner) Set(targets []SelectionTarget) error {
	data := make(map[xproto.Atom][]byte, len(targets))
	offered := make([]xproto.Atom, 0, len(targets)+len(textAliases)+1)
	offered = append(offered, o.targetsAtom)

	add := func(name string, payload []byte) error {
		atom, err := o.conn.atom(name)
		if err != nil {
			return err
		}
		if _, dup := data[atom]; dup {
			return nil
		}
		data[atom] = payload
		offered = append(offered, atom)
		return nil
	}

	for _, t := range targets {
		if len(t.Data) > o.maxData {
			return fmt.Errorf("%s (%d bytes): %w", t.Name, len(t.Data), ErrSelectionTooLarge)
		}
		if err := add(t.Name, t.Data); err != nil {
			return err
		}
		if t.Name == "text/plain" {
			for _, alias := range textAliases {
				if err := add(alias, t.Data); err != nil {
					return err
				}
			}
		}
	}

	o.mu.Lock()
	o.data = data
	o.offered = offered
	o.mu.Unlock()

	conn := o.conn.XUtil.Conn()
	if err := xproto.SetSelectionOwnerChecked(conn, o.win, o.clipboard, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("failed to take clipboard ownership: %w", err)
	}
	reply, err := xproto.GetSelectionOwner(conn, o.clipboard).Reply()
	if err != nil {
		return fmt.Errorf("failed to verify clipboard ownership: %w", err)
	}
	if reply.Owner != o.win {
		return errors.New("clipboard ownership was not granted")
	}
	return nil
}

func (o *ClipboardOwner) handleRequest(xu *xgbutil.XUtil, ev xevent.SelectionRequestEvent) {
	conn := xu.Conn()

	// Pre-ICCCM clients pass None and expect the target name as property.
	property := ev.Property
	if property == xproto.AtomNone {
		property = ev.Target
	}

	o.mu.Lock()
	payload, ok := o.data[ev.Target]
	offered := append([]xproto.Atom(nil), o.offered...)
	o.mu.Unlock()

	switch {
	case ev.Selection != o.clipboard:
		property = xproto.AtomNone
	case ev.Target == o.targetsAtom:
		buf := make([]byte, 4*len(offered))
		for i, a := range offered {
			xgb.Put32(buf[i*4:], uint32(a))
		}
		xproto.ChangeProperty(conn, xproto.PropModeReplace, ev.Requestor, property,
			xproto.AtomAtom, 32, uint32(len(offered)), buf)
	case ok:
		xproto.ChangeProperty(conn, xproto.PropModeReplace, ev.Requestor, property,
			ev.Target, 8, uint32(len(payload)), payload)
	default:
		property = xproto.AtomNone
	}

	notify := xproto.SelectionNotifyEvent{
		Time:      ev.Time,
		Requestor: ev.Requestor,
		Selection: ev.Selection,
		Target:    ev.Target,
		Property:  property,
	}
	xproto.SendEvent(conn, false, ev.Requestor, 0, string(notify.Bytes()))
}
