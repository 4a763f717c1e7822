package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// _NET_WM_STATE actions.
const (
	stateRemove = 0
	stateAdd    = 1
)

// sourcePager marks requests as direct user actions so WMs honor them.
const sourcePager = 2

// sendRootMessage sends an EWMH client message about win to the root
// window. The messages are built by hand because the xgbutil ewmh request
// helpers panic on this library version (uint vs int type assertion).
func (c *Connection) sendRootMessage(win xproto.Window, atomName string, data [5]uint32) error {
	atom, err := c.atom(atomName)
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// SetWindowState adds or removes one _NET_WM_STATE atom on win.
func (c *Connection) SetWindowState(win xproto.Window, state string, on bool) error {
	stateAtom, err := c.atom(state)
	if err != nil {
		return err
	}
	action := uint32(stateRemove)
	if on {
		action = stateAdd
	}
	if err := c.sendRootMessage(win, "_NET_WM_STATE", [5]uint32{action, uint32(stateAtom), 0, sourcePager, 0}); err != nil {
		return fmt.Errorf("failed to change %s: %w", state, err)
	}
	return nil
}

// ActivateWindow raises and focuses win using _NET_ACTIVE_WINDOW.
func (c *Connection) ActivateWindow(win xproto.Window) error {
	if err := c.sendRootMessage(win, "_NET_ACTIVE_WINDOW", [5]uint32{sourcePager, 0, 0, 0, 0}); err != nil {
		return fmt.Errorf("failed to activate window: %w", err)
	}
	return nil
}
