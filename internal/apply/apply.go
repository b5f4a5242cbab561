// Package apply turns a matched rule's actions into display requests.
package apply

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/1broseidon/pinwheel/internal/geometry"
	"github.com/1broseidon/pinwheel/internal/platform"
)

// Mode selects whether actions are issued or only logged.
type Mode int

const (
	Live Mode = iota
	DryRun
)

func (m Mode) String() string {
	if m == DryRun {
		return "dry-run"
	}
	return "live"
}

const (
	sourcePager  = 2
	iconicState  = 3
	allDesktops  = 0xFFFFFFFF
	motifFlagDec = 2 // MWM_HINTS_DECORATIONS
)

var atomNames = []string{
	"_NET_WM_DESKTOP",
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_STATE_MAXIMIZED_VERT",
	"_NET_WM_STATE_MAXIMIZED_HORZ",
	"_NET_WM_STATE_FULLSCREEN",
	"_NET_WM_STATE_STICKY",
	"_NET_WM_STATE_HIDDEN",
	"_NET_WM_STATE_SHADED",
	"_NET_WM_STATE_ABOVE",
	"_NET_WM_STATE_BELOW",
	"_NET_WM_WINDOW_OPACITY",
	"_MOTIF_WM_HINTS",
	"WM_CHANGE_STATE",
	"CARDINAL",
}

// Applier issues the requests for an action set.
type Applier struct {
	transport platform.Transport
	logger    *slog.Logger
	mode      Mode
	atoms     map[string]platform.Atom
}

// New interns the atoms the applier uses.
func New(t platform.Transport, logger *slog.Logger, mode Mode) (*Applier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Applier{
		transport: t,
		logger:    logger,
		mode:      mode,
		atoms:     make(map[string]platform.Atom, len(atomNames)),
	}
	for _, name := range atomNames {
		atom, err := t.InternAtom(name)
		if err != nil {
			return nil, fmt.Errorf("intern %s: %w", name, err)
		}
		a.atoms[name] = atom
	}
	return a, nil
}

// Mode returns the applier's mode.
func (a *Applier) Mode() Mode {
	return a.mode
}

// Apply issues every requested action for win. Each action is independent:
// a failure is logged and the remaining actions still run.
func (a *Applier) Apply(win platform.WindowID, actions config.Actions, monitors []platform.Monitor) {
	log := a.logger.With("window", fmt.Sprintf("0x%x", uint32(win)))
	if a.mode == DryRun {
		log = log.With("dry_run", true)
	}

	if actions.HasGeometry() {
		a.applyGeometry(log, win, actions, monitors)
	} else if actions.Monitor != nil {
		log.Debug("monitor set without position or size, ignoring", "monitor", actions.Monitor.String())
	}

	if actions.Workspace != nil {
		ws := *actions.Workspace
		a.do(log, "workspace", []any{"desktop", ws}, func() error {
			return a.desktop(win, uint32(ws))
		})
	}
	if v := actions.Maximize; v != nil {
		a.state(log, win, "maximize", *v, "_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ")
	}
	if v := actions.Fullscreen; v != nil {
		a.state(log, win, "fullscreen", *v, "_NET_WM_STATE_FULLSCREEN")
	}
	if v := actions.Pin; v != nil {
		if *v {
			a.do(log, "pin", []any{"desktop", "all"}, func() error {
				return a.desktop(win, allDesktops)
			})
		}
		a.state(log, win, "pin", *v, "_NET_WM_STATE_STICKY")
	}
	if v := actions.Minimize; v != nil {
		a.state(log, win, "minimize", *v, "_NET_WM_STATE_HIDDEN")
		if *v {
			a.do(log, "iconify", nil, func() error {
				return a.transport.SendClientMessage(win, a.atoms["WM_CHANGE_STATE"], [5]uint32{iconicState})
			})
		}
	}
	if v := actions.Shade; v != nil {
		a.state(log, win, "shade", *v, "_NET_WM_STATE_SHADED")
	}
	if v := actions.Above; v != nil {
		a.state(log, win, "above", *v, "_NET_WM_STATE_ABOVE")
	}
	if v := actions.Below; v != nil {
		a.state(log, win, "below", *v, "_NET_WM_STATE_BELOW")
	}
	if v := actions.Decorate; v != nil {
		a.do(log, "decorate", []any{"enabled", *v}, func() error {
			return a.decorate(win, *v)
		})
	}
	if v := actions.Focus; v != nil {
		if *v {
			a.do(log, "focus", nil, func() error {
				return a.transport.SendClientMessage(win, a.atoms["_NET_ACTIVE_WINDOW"], [5]uint32{sourcePager})
			})
		} else {
			log.Debug("focus: false requests nothing")
		}
	}
	if v := actions.Opacity; v != nil {
		value := opacityValue(*v)
		a.do(log, "opacity", []any{"opacity", *v}, func() error {
			return a.transport.SetProperty(win, a.atoms["_NET_WM_WINDOW_OPACITY"], platform.Cardinals(a.atoms["CARDINAL"], value))
		})
	}
}

func (a *Applier) applyGeometry(log *slog.Logger, win platform.WindowID, actions config.Actions, monitors []platform.Monitor) {
	current, err := a.transport.WindowGeometry(win)
	if err != nil {
		if errors.Is(err, platform.ErrWindowNotFound) {
			log.Warn("geometry skipped, window gone", "error", err)
			return
		}
		if actions.Size == nil {
			// Anchors and the configure request both need the current size.
			log.Warn("geometry skipped, window size unknown", "error", err)
			return
		}
		log.Warn("could not read window geometry", "error", err)
	}

	mon, ok := geometry.SelectMonitor(monitors, actions.Monitor, current)
	if !ok {
		log.Warn("geometry skipped, no monitors known")
		return
	}

	target := current
	if actions.Size != nil {
		target.Width, target.Height = geometry.ResolveSize(*actions.Size, mon)
	}

	if actions.Position == nil {
		a.do(log, "geometry", []any{
			"monitor", mon.Name,
			"width", target.Width, "height", target.Height,
		}, func() error {
			return a.transport.ResizeWindow(win, target.Width, target.Height)
		})
		return
	}

	target.X, target.Y = geometry.ResolvePosition(*actions.Position, mon, target.Width, target.Height)
	a.do(log, "geometry", []any{
		"monitor", mon.Name,
		"x", target.X, "y", target.Y,
		"width", target.Width, "height", target.Height,
	}, func() error {
		return a.transport.ConfigureWindow(win, target)
	})
}

func (a *Applier) state(log *slog.Logger, win platform.WindowID, name string, on bool, states ...string) {
	action := platform.StateRemove
	if on {
		action = platform.StateAdd
	}
	atoms := make([]platform.Atom, len(states))
	for i, s := range states {
		atoms[i] = a.atoms[s]
	}
	a.do(log, name, []any{"state", action.String()}, func() error {
		return a.transport.SendStateMessage(win, action, atoms...)
	})
}

func (a *Applier) desktop(win platform.WindowID, index uint32) error {
	return a.transport.SendClientMessage(win, a.atoms["_NET_WM_DESKTOP"], [5]uint32{index, sourcePager})
}

func (a *Applier) decorate(win platform.WindowID, on bool) error {
	var decorations uint32
	if on {
		decorations = 1
	}
	hints := a.atoms["_MOTIF_WM_HINTS"]
	return a.transport.SetProperty(win, hints, platform.Cardinals(hints, motifFlagDec, 0, decorations, 0, 0))
}

// do runs one action, or only logs it in dry-run mode.
func (a *Applier) do(log *slog.Logger, name string, attrs []any, fn func() error) {
	if a.mode == DryRun {
		log.Info("would apply "+name, attrs...)
		return
	}
	if err := fn(); err != nil {
		log.Warn(name+" failed", append(attrs, "error", err)...)
		return
	}
	log.Debug("applied "+name, attrs...)
}

// opacityValue converts a [0,1] opacity to 32-bit fixed point.
func opacityValue(v float64) uint32 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint32(v * float64(0xFFFFFFFF))
}
