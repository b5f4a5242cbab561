// Package platformtest provides an in-memory platform.Transport that records
// every mutating request, for tests of the resolver, applier and daemon.
package platformtest

import (
	"fmt"

	"github.com/1broseidon/pinwheel/internal/platform"
)

// Call is one recorded mutating request.
type Call struct {
	Method string
	Window platform.WindowID
	Atom   string
	Action platform.StateAction
	States []string
	Data   [5]uint32
	Geom   platform.Rect
	Prop   platform.Property
}

// Window is a fake top-level window.
type Window struct {
	Geometry platform.Rect
	Props    map[platform.Atom]platform.Property
}

// Transport is a recording platform.Transport. It is not safe for
// concurrent use; the daemon drives it from a single goroutine.
type Transport struct {
	Windows     map[platform.WindowID]*Window
	ClientList  []platform.WindowID
	Monitors    []platform.Monitor
	MonitorsErr error
	ListErr     error
	// GeometryErr makes WindowGeometry fail for windows that exist.
	GeometryErr error
	// FailMethods makes the named mutating methods return an error.
	FailMethods map[string]error

	Calls   []Call
	Flushes int

	atoms map[string]platform.Atom
	names map[platform.Atom]string
}

var _ platform.Transport = (*Transport)(nil)

// New returns an empty transport with a single 1920x1080 monitor.
func New() *Transport {
	return &Transport{
		Windows: make(map[platform.WindowID]*Window),
		Monitors: []platform.Monitor{
			{Index: 0, Name: "DP-1", Width: 1920, Height: 1080},
		},
		FailMethods: make(map[string]error),
		atoms:       make(map[string]platform.Atom),
		names:       make(map[platform.Atom]string),
	}
}

// Atom returns the atom for name, interning it if needed.
func (t *Transport) Atom(name string) platform.Atom {
	if a, ok := t.atoms[name]; ok {
		return a
	}
	a := platform.Atom(100 + len(t.atoms))
	t.atoms[name] = a
	t.names[a] = name
	return a
}

// AtomName returns the name of an interned atom.
func (t *Transport) AtomName(a platform.Atom) string {
	return t.names[a]
}

// AddWindow creates a window and appends it to the client list.
func (t *Transport) AddWindow(id platform.WindowID, geom platform.Rect) *Window {
	w := &Window{Geometry: geom, Props: make(map[platform.Atom]platform.Property)}
	t.Windows[id] = w
	t.ClientList = append(t.ClientList, id)
	return w
}

// RemoveWindow destroys a window and drops it from the client list.
func (t *Transport) RemoveWindow(id platform.WindowID) {
	delete(t.Windows, id)
	for i, w := range t.ClientList {
		if w == id {
			t.ClientList = append(t.ClientList[:i:i], t.ClientList[i+1:]...)
			break
		}
	}
}

// SetString sets a UTF-8 text property.
func (t *Transport) SetString(id platform.WindowID, name, value string) {
	t.Windows[id].Props[t.Atom(name)] = platform.Property{
		Type:   t.Atom("UTF8_STRING"),
		Format: 8,
		Value:  []byte(value),
	}
}

// SetClass sets WM_CLASS to the instance and class pair.
func (t *Transport) SetClass(id platform.WindowID, instance, class string) {
	t.Windows[id].Props[t.Atom("WM_CLASS")] = platform.Property{
		Type:   t.Atom("STRING"),
		Format: 8,
		Value:  []byte(instance + "\x00" + class + "\x00"),
	}
}

// SetCardinal sets a single-value CARDINAL property.
func (t *Transport) SetCardinal(id platform.WindowID, name string, v uint32) {
	t.Windows[id].Props[t.Atom(name)] = platform.Cardinals(t.Atom("CARDINAL"), v)
}

// SetAtoms sets an ATOM-list property.
func (t *Transport) SetAtoms(id platform.WindowID, name string, values ...string) {
	vals := make([]uint32, len(values))
	for i, v := range values {
		vals[i] = uint32(t.Atom(v))
	}
	t.Windows[id].Props[t.Atom(name)] = platform.Cardinals(t.Atom("ATOM"), vals...)
}

// CallsTo returns the recorded calls to method, in order.
func (t *Transport) CallsTo(method string) []Call {
	var out []Call
	for _, c := range t.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls and flushes.
func (t *Transport) Reset() {
	t.Calls = nil
	t.Flushes = 0
}

func (t *Transport) InternAtom(name string) (platform.Atom, error) {
	return t.Atom(name), nil
}

func (t *Transport) GetProperty(win platform.WindowID, atom platform.Atom) (platform.Property, error) {
	w, ok := t.Windows[win]
	if !ok {
		return platform.Property{}, fmt.Errorf("get property 0x%x: %w", uint32(win), platform.ErrWindowNotFound)
	}
	return w.Props[atom], nil
}

func (t *Transport) SetProperty(win platform.WindowID, atom platform.Atom, prop platform.Property) error {
	t.Calls = append(t.Calls, Call{Method: "SetProperty", Window: win, Atom: t.names[atom], Prop: prop})
	return t.FailMethods["SetProperty"]
}

func (t *Transport) ListTopLevelWindows() ([]platform.WindowID, error) {
	if t.ListErr != nil {
		return nil, t.ListErr
	}
	return append([]platform.WindowID(nil), t.ClientList...), nil
}

func (t *Transport) SendClientMessage(win platform.WindowID, msgType platform.Atom, data [5]uint32) error {
	t.Calls = append(t.Calls, Call{Method: "SendClientMessage", Window: win, Atom: t.names[msgType], Data: data})
	return t.FailMethods["SendClientMessage"]
}

func (t *Transport) SendStateMessage(win platform.WindowID, action platform.StateAction, states ...platform.Atom) error {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = t.names[s]
	}
	t.Calls = append(t.Calls, Call{Method: "SendStateMessage", Window: win, Action: action, States: names})
	return t.FailMethods["SendStateMessage"]
}

func (t *Transport) ConfigureWindow(win platform.WindowID, geom platform.Rect) error {
	t.Calls = append(t.Calls, Call{Method: "ConfigureWindow", Window: win, Geom: geom})
	return t.FailMethods["ConfigureWindow"]
}

func (t *Transport) ResizeWindow(win platform.WindowID, width, height int) error {
	t.Calls = append(t.Calls, Call{Method: "ResizeWindow", Window: win, Geom: platform.Rect{Width: width, Height: height}})
	return t.FailMethods["ResizeWindow"]
}

func (t *Transport) WindowGeometry(win platform.WindowID) (platform.Rect, error) {
	w, ok := t.Windows[win]
	if !ok {
		return platform.Rect{}, fmt.Errorf("get geometry 0x%x: %w", uint32(win), platform.ErrWindowNotFound)
	}
	if t.GeometryErr != nil {
		return platform.Rect{}, t.GeometryErr
	}
	return w.Geometry, nil
}

func (t *Transport) QueryMonitors() ([]platform.Monitor, error) {
	return append([]platform.Monitor(nil), t.Monitors...), t.MonitorsErr
}

func (t *Transport) Flush() error {
	t.Flushes++
	return nil
}
