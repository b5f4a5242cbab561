package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// maxPropertyLength is the long-length argument for GetProperty, in 32-bit units.
const maxPropertyLength = (1 << 32) - 1

// GetProperty reads a window property of any type.
func (c *Connection) GetProperty(windowID xproto.Window, atom xproto.Atom) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(
		c.XUtil.Conn(),
		false,
		windowID,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		maxPropertyLength,
	).Reply()
}

// ChangeProperty replaces a window property. The request is not checked;
// errors surface asynchronously on the event stream.
func (c *Connection) ChangeProperty(windowID xproto.Window, atom, typ xproto.Atom, format byte, data []byte) {
	unit := uint32(format / 8)
	if unit == 0 {
		unit = 1
	}
	xproto.ChangeProperty(
		c.XUtil.Conn(),
		xproto.PropModeReplace,
		windowID,
		atom,
		typ,
		format,
		uint32(len(data))/unit,
		data,
	)
}

// ClientList returns _NET_CLIENT_LIST in server order. An unset property is
// an empty list, not an error.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	windows, err := ewmh.ClientListGet(c.XUtil)
	if err == nil {
		return windows, nil
	}
	// xprop reports an unset property as an error; tell that apart from a
	// failed request before giving up.
	atom, atomErr := c.Atom("_NET_CLIENT_LIST")
	if atomErr != nil {
		return nil, atomErr
	}
	reply, replyErr := c.GetProperty(c.Root, atom)
	if replyErr == nil && reply.Format == 0 {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to get client list: %w", err)
}

// Geometry returns the window rectangle translated to root coordinates.
func (c *Connection) Geometry(windowID xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}

	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// MoveResizeWindow issues a ConfigureWindow request directly on the client
// window, without going through the EWMH moveresize message.
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) {
	xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
}

// ResizeWindow issues a ConfigureWindow request carrying only width and height.
func (c *Connection) ResizeWindow(windowID xproto.Window, width, height int) {
	xwindow.New(c.XUtil, windowID).Resize(width, height)
}
