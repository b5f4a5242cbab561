package x11

import (
	"github.com/BurntSushi/xgb/xproto"
)

// SendClientMessage sends a format-32 client message about windowID to the
// root window, where a cooperating window manager picks it up.
//
// We build the message manually because the xgbutil ewmh request helpers
// panic on this library version (uint vs int type assertion).
func (c *Connection) SendClientMessage(windowID xproto.Window, msgType xproto.Atom, data [5]uint32) {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   msgType,
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}

	xproto.SendEvent(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	)
}
