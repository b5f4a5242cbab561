// Package window builds descriptions of top-level windows from their
// protocol properties.
package window

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/1broseidon/pinwheel/internal/platform"
)

// ErrNotFound is returned when the window no longer exists.
var ErrNotFound = errors.New("window not found")

// Description is a snapshot of the properties rules match against.
type Description struct {
	ID       platform.WindowID
	Instance string
	Class    string
	Title    string
	Role     string
	PID      int
	Process  string
	Type     string
}

// LogValue renders the description as grouped log attributes.
func (d Description) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", fmt.Sprintf("0x%x", uint32(d.ID))),
		slog.String("class", d.Class),
		slog.String("title", d.Title),
		slog.String("process", d.Process),
		slog.String("type", d.Type),
	)
}

// windowTypes maps _NET_WM_WINDOW_TYPE atoms to the names rules use.
var windowTypes = map[string]string{
	"_NET_WM_WINDOW_TYPE_NORMAL":  "normal",
	"_NET_WM_WINDOW_TYPE_DIALOG":  "dialog",
	"_NET_WM_WINDOW_TYPE_DOCK":    "dock",
	"_NET_WM_WINDOW_TYPE_TOOLBAR": "toolbar",
	"_NET_WM_WINDOW_TYPE_MENU":    "menu",
	"_NET_WM_WINDOW_TYPE_UTILITY": "utility",
	"_NET_WM_WINDOW_TYPE_SPLASH":  "splash",
	"_NET_WM_WINDOW_TYPE_DESKTOP": "desktop",
}

// Resolver queries window properties through a Transport.
type Resolver struct {
	transport platform.Transport
	procs     ProcessNamer
	logger    *slog.Logger

	wmClass, wmName, netWMName, role, pid, windowType platform.Atom
	typeNames                                         map[platform.Atom]string
}

// NewResolver interns the atoms it needs up front.
func NewResolver(t platform.Transport, procs ProcessNamer, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		transport: t,
		procs:     procs,
		logger:    logger,
		typeNames: make(map[platform.Atom]string, len(windowTypes)),
	}

	for name, dst := range map[string]*platform.Atom{
		"WM_CLASS":            &r.wmClass,
		"WM_NAME":             &r.wmName,
		"_NET_WM_NAME":        &r.netWMName,
		"WM_WINDOW_ROLE":      &r.role,
		"_NET_WM_PID":         &r.pid,
		"_NET_WM_WINDOW_TYPE": &r.windowType,
	} {
		atom, err := t.InternAtom(name)
		if err != nil {
			return nil, fmt.Errorf("intern %s: %w", name, err)
		}
		*dst = atom
	}
	for name, typ := range windowTypes {
		atom, err := t.InternAtom(name)
		if err != nil {
			return nil, fmt.Errorf("intern %s: %w", name, err)
		}
		r.typeNames[atom] = typ
	}
	return r, nil
}

// Describe reads the window's properties. Missing properties resolve to
// empty values; ErrNotFound is returned only when the window is gone.
func (r *Resolver) Describe(id platform.WindowID) (Description, error) {
	desc := Description{ID: id}

	class, err := r.get(id, r.wmClass)
	if err != nil {
		return Description{}, err
	}
	desc.Instance, desc.Class = splitClass(class)

	title, err := r.get(id, r.netWMName)
	if err != nil {
		return Description{}, err
	}
	if title.Empty() {
		if title, err = r.get(id, r.wmName); err != nil {
			return Description{}, err
		}
	}
	desc.Title = propertyString(title.Value)

	role, err := r.get(id, r.role)
	if err != nil {
		return Description{}, err
	}
	desc.Role = propertyString(role.Value)

	pid, err := r.get(id, r.pid)
	if err != nil {
		return Description{}, err
	}
	if vals := pid.Uint32s(); len(vals) > 0 && vals[0] > 0 {
		desc.PID = int(vals[0])
		desc.Process = r.processName(desc.PID)
	}

	typ, err := r.get(id, r.windowType)
	if err != nil {
		return Description{}, err
	}
	desc.Type = r.typeName(typ)

	return desc, nil
}

// get reads a property, mapping a vanished window to ErrNotFound. Other
// failures are logged and read as an empty property.
func (r *Resolver) get(id platform.WindowID, atom platform.Atom) (platform.Property, error) {
	prop, err := r.transport.GetProperty(id, atom)
	if err == nil {
		return prop, nil
	}
	if errors.Is(err, platform.ErrWindowNotFound) {
		return platform.Property{}, fmt.Errorf("%w: 0x%x", ErrNotFound, uint32(id))
	}
	r.logger.Debug("property query failed", "window", fmt.Sprintf("0x%x", uint32(id)), "atom", atom, "error", err)
	return platform.Property{}, nil
}

func (r *Resolver) processName(pid int) string {
	if r.procs == nil {
		return ""
	}
	name, err := r.procs.ProcessName(pid)
	if err != nil {
		r.logger.Debug("process lookup failed", "pid", pid, "error", err)
		return ""
	}
	return name
}

func (r *Resolver) typeName(prop platform.Property) string {
	vals := prop.Uint32s()
	if len(vals) == 0 {
		return "normal"
	}
	if name, ok := r.typeNames[platform.Atom(vals[0])]; ok {
		return name
	}
	return "unknown"
}

// splitClass splits WM_CLASS ("instance\0class\0") into its two parts.
func splitClass(prop platform.Property) (instance, class string) {
	parts := prop.Strings()
	if len(parts) > 0 {
		instance = parts[0]
	}
	if len(parts) > 1 {
		class = parts[1]
	}
	return instance, class
}

func propertyString(value []byte) string {
	return strings.ToValidUTF8(string(bytes.TrimRight(value, "\x00")), "�")
}
