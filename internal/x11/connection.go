package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xprop"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	randr bool
}

// NewConnection establishes a connection to the X11 server and subscribes to
// the root-window notifications the daemon reacts to.
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	c := &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}

	// _NET_CLIENT_LIST updates arrive as PropertyNotify on the root window.
	err = xproto.ChangeWindowAttributesChecked(
		xu.Conn(),
		c.Root,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("select root events: %w", err)
	}

	if err := randr.Init(xu.Conn()); err == nil {
		c.randr = true
		randr.SelectInput(xu.Conn(), c.Root, randr.NotifyMaskScreenChange)
	}

	return c, nil
}

// WaitForEvent blocks until the next event or asynchronous error arrives.
// Both return values are nil once the connection has been closed.
func (c *Connection) WaitForEvent() (xgb.Event, xgb.Error) {
	return c.XUtil.Conn().WaitForEvent()
}

// Atom interns name, using the xgbutil atom cache.
func (c *Connection) Atom(name string) (xproto.Atom, error) {
	return xprop.Atm(c.XUtil, name)
}

// Sync performs a round trip so every queued request has reached the server.
func (c *Connection) Sync() error {
	_, err := xproto.GetInputFocus(c.XUtil.Conn()).Reply()
	return err
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// IsBadWindow reports whether err is the server rejecting a request because
// the target window (or drawable) no longer exists.
func IsBadWindow(err error) bool {
	switch err.(type) {
	case xproto.WindowError, xproto.DrawableError:
		return true
	}
	return false
}
