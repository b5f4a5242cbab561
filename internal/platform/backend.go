package platform

import (
	"errors"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Atom is a server-interned identifier for a property or message type name.
type Atom uint32

var (
	// ErrWindowNotFound is returned when a request targets a window that no
	// longer exists on the server.
	ErrWindowNotFound = errors.New("window not found")

	// ErrMonitorsUnavailable is returned when the server cannot enumerate
	// monitors (RandR missing or reporting no active outputs).
	ErrMonitorsUnavailable = errors.New("monitor enumeration unavailable")
)

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Monitor describes one independently addressable display region.
type Monitor struct {
	Index  int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// Bounds returns the monitor geometry as a Rect.
func (m Monitor) Bounds() Rect {
	return Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
}

// Property is the raw value of a window property.
// Format is the item width in bits (8, 16 or 32); zero means the property is unset.
type Property struct {
	Type   Atom
	Format byte
	Value  []byte
}

// Empty reports whether the property is unset or has no data.
func (p Property) Empty() bool {
	return p.Format == 0 || len(p.Value) == 0
}

// Reply returns the property as a GetProperty reply, the form the xprop
// decoders take.
func (p Property) Reply() *xproto.GetPropertyReply {
	reply := &xproto.GetPropertyReply{
		Format: p.Format,
		Type:   xproto.Atom(p.Type),
		Value:  p.Value,
	}
	if unit := int(p.Format) / 8; unit > 0 {
		reply.ValueLen = uint32(len(p.Value) / unit)
	}
	return reply
}

// Uint32s decodes a format-32 property; any other format yields nil.
func (p Property) Uint32s() []uint32 {
	nums, err := xprop.PropValNums(p.Reply(), nil)
	if err != nil {
		return nil
	}
	out := make([]uint32, len(nums))
	for i, n := range nums {
		out[i] = uint32(n)
	}
	return out
}

// Strings splits a format-8 property on NUL bytes, as WM_CLASS is stored.
func (p Property) Strings() []string {
	strs, err := xprop.PropValStrs(p.Reply(), nil)
	if err != nil {
		return nil
	}
	return strs
}

// Cardinals builds a format-32 property from vals.
func Cardinals(typ Atom, vals ...uint32) Property {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		xgb.Put32(buf[i*4:], v)
	}
	return Property{Type: typ, Format: 32, Value: buf}
}

// StateAction is the _NET_WM_STATE action code carried in a state message.
type StateAction uint32

const (
	StateRemove StateAction = 0
	StateAdd    StateAction = 1
	StateToggle StateAction = 2
)

func (a StateAction) String() string {
	switch a {
	case StateRemove:
		return "remove"
	case StateAdd:
		return "add"
	case StateToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// EventKind classifies a protocol notification relevant to the daemon.
type EventKind int

const (
	EventOther EventKind = iota
	EventClientListChanged
	EventMonitorsChanged
)

// Event is a notification read from the display connection.
// Err is set for asynchronous request errors reported by the server.
type Event struct {
	Kind EventKind
	Err  error
}

// Transport abstracts the display-server requests the daemon issues, so a
// recording double can stand in for a live connection.
type Transport interface {
	InternAtom(name string) (Atom, error)
	GetProperty(win WindowID, atom Atom) (Property, error)
	SetProperty(win WindowID, atom Atom, prop Property) error
	ListTopLevelWindows() ([]WindowID, error)
	SendClientMessage(win WindowID, msgType Atom, data [5]uint32) error
	SendStateMessage(win WindowID, action StateAction, states ...Atom) error
	ConfigureWindow(win WindowID, geom Rect) error
	ResizeWindow(win WindowID, width, height int) error
	WindowGeometry(win WindowID) (Rect, error)
	QueryMonitors() ([]Monitor, error)
	Flush() error
}
