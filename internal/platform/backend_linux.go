//go:build linux

package platform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1broseidon/pinwheel/internal/x11"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// LinuxTransport wraps an X11 connection behind the Transport interface.
type LinuxTransport struct {
	conn       *x11.Connection
	clientList xproto.Atom
	stateAtom  xproto.Atom

	pumpOnce sync.Once
	events   chan Event
}

var _ Transport = (*LinuxTransport)(nil)

// NewLinuxTransport opens a fresh X11 connection.
func NewLinuxTransport() (*LinuxTransport, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}

	clientList, err := conn.Atom("_NET_CLIENT_LIST")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("intern _NET_CLIENT_LIST: %w", err)
	}
	stateAtom, err := conn.Atom("_NET_WM_STATE")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("intern _NET_WM_STATE: %w", err)
	}

	return &LinuxTransport{
		conn:       conn,
		clientList: clientList,
		stateAtom:  stateAtom,
		events:     make(chan Event, 64),
	}, nil
}

// Disconnect closes the underlying X11 connection. The event channel is
// closed once the reader notices.
func (t *LinuxTransport) Disconnect() {
	if t != nil && t.conn != nil {
		t.conn.Close()
	}
}

// Events starts reading the connection and returns the notification stream.
// The channel is closed when the connection ends.
func (t *LinuxTransport) Events() <-chan Event {
	t.pumpOnce.Do(func() {
		go t.pump()
	})
	return t.events
}

func (t *LinuxTransport) pump() {
	defer close(t.events)
	for {
		ev, xerr := t.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			t.events <- Event{Kind: EventOther, Err: xerr}
			continue
		}

		switch e := ev.(type) {
		case xproto.PropertyNotifyEvent:
			if e.Window == t.conn.Root && e.Atom == t.clientList {
				t.events <- Event{Kind: EventClientListChanged}
			}
		case randr.ScreenChangeNotifyEvent:
			t.events <- Event{Kind: EventMonitorsChanged}
		}
	}
}

func (t *LinuxTransport) InternAtom(name string) (Atom, error) {
	atom, err := t.conn.Atom(name)
	if err != nil {
		return 0, err
	}
	return Atom(atom), nil
}

func (t *LinuxTransport) GetProperty(win WindowID, atom Atom) (Property, error) {
	reply, err := t.conn.GetProperty(xproto.Window(win), xproto.Atom(atom))
	if err != nil {
		return Property{}, wrapWindowErr(err)
	}
	return Property{
		Type:   Atom(reply.Type),
		Format: reply.Format,
		Value:  reply.Value,
	}, nil
}

func (t *LinuxTransport) SetProperty(win WindowID, atom Atom, prop Property) error {
	if prop.Format != 8 && prop.Format != 16 && prop.Format != 32 {
		return fmt.Errorf("invalid property format %d", prop.Format)
	}
	t.conn.ChangeProperty(xproto.Window(win), xproto.Atom(atom), xproto.Atom(prop.Type), prop.Format, prop.Value)
	return nil
}

func (t *LinuxTransport) ListTopLevelWindows() ([]WindowID, error) {
	clients, err := t.conn.ClientList()
	if err != nil {
		return nil, err
	}
	out := make([]WindowID, len(clients))
	for i, w := range clients {
		out[i] = WindowID(w)
	}
	return out, nil
}

func (t *LinuxTransport) SendClientMessage(win WindowID, msgType Atom, data [5]uint32) error {
	t.conn.SendClientMessage(xproto.Window(win), xproto.Atom(msgType), data)
	return nil
}

// SendStateMessage sends _NET_WM_STATE with up to two state atoms.
func (t *LinuxTransport) SendStateMessage(win WindowID, action StateAction, states ...Atom) error {
	if len(states) == 0 || len(states) > 2 {
		return fmt.Errorf("state message takes one or two atoms, got %d", len(states))
	}
	const sourceIndication = 2 // pager/direct action
	data := [5]uint32{uint32(action), uint32(states[0]), 0, sourceIndication, 0}
	if len(states) == 2 {
		data[2] = uint32(states[1])
	}
	t.conn.SendClientMessage(xproto.Window(win), t.stateAtom, data)
	return nil
}

func (t *LinuxTransport) ConfigureWindow(win WindowID, geom Rect) error {
	if geom.Width <= 0 || geom.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", geom.Width, geom.Height)
	}
	t.conn.MoveResizeWindow(xproto.Window(win), geom.X, geom.Y, geom.Width, geom.Height)
	return nil
}

// ResizeWindow changes only the window size, leaving placement to the
// window manager.
func (t *LinuxTransport) ResizeWindow(win WindowID, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", width, height)
	}
	t.conn.ResizeWindow(xproto.Window(win), width, height)
	return nil
}

func (t *LinuxTransport) WindowGeometry(win WindowID) (Rect, error) {
	x, y, w, h, err := t.conn.Geometry(xproto.Window(win))
	if err != nil {
		return Rect{}, wrapWindowErr(err)
	}
	return Rect{X: x, Y: y, Width: w, Height: h}, nil
}

// QueryMonitors enumerates RandR outputs. When RandR is unavailable or
// reports nothing, it returns a single monitor spanning the root window
// together with an error wrapping ErrMonitorsUnavailable; the returned
// monitors are usable either way.
func (t *LinuxTransport) QueryMonitors() ([]Monitor, error) {
	monitors, err := t.conn.GetMonitors()
	if err == nil && len(monitors) > 0 {
		out := make([]Monitor, len(monitors))
		for i, m := range monitors {
			out[i] = monitorFromX11(m)
		}
		return out, nil
	}

	root, rootErr := t.conn.RootMonitor()
	if rootErr != nil {
		return nil, rootErr
	}
	if err == nil {
		err = errors.New("no active outputs")
	}
	return []Monitor{monitorFromX11(root)}, fmt.Errorf("%w: %v", ErrMonitorsUnavailable, err)
}

// Flush round-trips to the server so queued requests have been processed.
func (t *LinuxTransport) Flush() error {
	return t.conn.Sync()
}

func monitorFromX11(m x11.Monitor) Monitor {
	return Monitor{
		Index:  m.ID,
		Name:   m.Name,
		X:      m.X,
		Y:      m.Y,
		Width:  m.Width,
		Height: m.Height,
	}
}

func wrapWindowErr(err error) error {
	if x11.IsBadWindow(err) {
		return fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}
	return err
}
