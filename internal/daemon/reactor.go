// Package daemon runs the event loop that applies rules to new windows.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/1broseidon/pinwheel/internal/apply"
	"github.com/1broseidon/pinwheel/internal/confwatch"
	"github.com/1broseidon/pinwheel/internal/platform"
	"github.com/1broseidon/pinwheel/internal/rules"
	"github.com/1broseidon/pinwheel/internal/window"
)

// ErrConnectionLost is returned by Run when the display connection ends or
// the window list can no longer be read.
var ErrConnectionLost = errors.New("display connection lost")

// Source identifies which input woke the reactor.
type Source int

const (
	SourceProtocol Source = iota
	SourceSignal
	SourceConfigWatch
)

func (s Source) String() string {
	switch s {
	case SourceProtocol:
		return "protocol"
	case SourceSignal:
		return "signal"
	case SourceConfigWatch:
		return "config-watch"
	default:
		return "unknown"
	}
}

// wake is one readiness notification, tagged by source.
type wake struct {
	source Source
	events []platform.Event // protocol batch; nil with closed means EOF
	closed bool
	signal os.Signal
	config confwatch.Event
}

// Options wires the reactor to its collaborators.
type Options struct {
	Transport    platform.Transport
	Events       <-chan platform.Event
	Signals      <-chan os.Signal
	ConfigEvents <-chan confwatch.Event

	Resolver *window.Resolver
	Applier  *apply.Applier
	Rules    *rules.Store
	Reloader *Reloader
	Logger   *slog.Logger
}

// Reactor owns the window list and drives every cycle from one goroutine.
type Reactor struct {
	transport    platform.Transport
	events       <-chan platform.Event
	signals      <-chan os.Signal
	configEvents <-chan confwatch.Event

	resolver *window.Resolver
	applier  *apply.Applier
	rules    *rules.Store
	reloader *Reloader
	logger   *slog.Logger

	differ   Differ
	monitors []platform.Monitor
}

// New creates a reactor. Nil event channels are never ready.
func New(opts Options) *Reactor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactor{
		transport:    opts.Transport,
		events:       opts.Events,
		signals:      opts.Signals,
		configEvents: opts.ConfigEvents,
		resolver:     opts.Resolver,
		applier:      opts.Applier,
		rules:        opts.Rules,
		reloader:     opts.Reloader,
		logger:       logger,
	}
}

// Run applies rules to the windows that already exist, then handles events
// until a termination signal (nil), ctx cancellation (nil) or a lost
// connection (ErrConnectionLost).
func (r *Reactor) Run(ctx context.Context) error {
	if err := r.start(); err != nil {
		return err
	}
	r.logger.Info("daemon started", "windows", len(r.differ.known), "rules", r.rules.Load().Len(), "mode", r.applier.Mode())

	for {
		w, ok := r.wait(ctx)
		if !ok {
			r.logger.Info("daemon stopped")
			return nil
		}
		stop, err := r.dispatch(w)
		if err != nil {
			return err
		}
		if stop {
			r.logger.Info("daemon stopped")
			return nil
		}
	}
}

// start loads monitors and treats every existing window as new.
func (r *Reactor) start() error {
	r.refreshMonitors()
	if err := r.sync(); err != nil {
		return err
	}
	return r.flush()
}

// wait blocks until one source is ready. Protocol events that are already
// queued are drained into the same wake so a burst costs one cycle.
func (r *Reactor) wait(ctx context.Context) (wake, bool) {
	select {
	case <-ctx.Done():
		return wake{}, false
	case ev, ok := <-r.events:
		if !ok {
			return wake{source: SourceProtocol, closed: true}, true
		}
		batch := []platform.Event{ev}
	drain:
		for {
			select {
			case ev, ok := <-r.events:
				if !ok {
					return wake{source: SourceProtocol, events: batch, closed: true}, true
				}
				batch = append(batch, ev)
			default:
				break drain
			}
		}
		return wake{source: SourceProtocol, events: batch}, true
	case sig := <-r.signals:
		return wake{source: SourceSignal, signal: sig}, true
	case ev := <-r.configEvents:
		return wake{source: SourceConfigWatch, config: ev}, true
	}
}

// dispatch handles one wake. stop is true when the daemon should exit cleanly.
func (r *Reactor) dispatch(w wake) (stop bool, err error) {
	switch w.source {
	case SourceProtocol:
		if err := r.handleProtocol(w.events); err != nil {
			return false, err
		}
		if w.closed {
			return false, ErrConnectionLost
		}
		return false, nil
	case SourceSignal:
		return r.handleSignal(w.signal), nil
	case SourceConfigWatch:
		if r.reloader != nil {
			// Failures are logged by the reloader; the old rules stay active.
			_ = r.reloader.HandleEvent(w.config)
		}
		return false, nil
	default:
		return false, nil
	}
}

func (r *Reactor) handleProtocol(events []platform.Event) error {
	var listChanged, monitorsChanged bool
	for _, ev := range events {
		if ev.Err != nil {
			r.logger.Warn("display request failed", "error", ev.Err)
			continue
		}
		switch ev.Kind {
		case platform.EventClientListChanged:
			listChanged = true
		case platform.EventMonitorsChanged:
			monitorsChanged = true
		}
	}
	if !listChanged && !monitorsChanged {
		return nil
	}

	if monitorsChanged {
		r.refreshMonitors()
	}
	if listChanged {
		if err := r.sync(); err != nil {
			return err
		}
	}
	return r.flush()
}

func (r *Reactor) handleSignal(sig os.Signal) bool {
	if sig == syscall.SIGHUP {
		if r.reloader != nil {
			_ = r.reloader.Reload("received SIGHUP")
		}
		return false
	}
	r.logger.Info("received signal, shutting down", "signal", sig.String())
	return true
}

// sync fetches the window list and processes departures, then arrivals.
func (r *Reactor) sync() error {
	current, err := r.transport.ListTopLevelWindows()
	if err != nil {
		return fmt.Errorf("%w: list windows: %v", ErrConnectionLost, err)
	}
	added, removed := r.differ.Update(current)

	for _, id := range removed {
		r.logger.Debug("window closed", "window", hexID(id))
	}

	// One rule set for the whole cycle, even if a reload lands mid-way.
	set := r.rules.Load()
	for _, id := range added {
		r.handleNewWindow(id, set)
	}
	return nil
}

func (r *Reactor) handleNewWindow(id platform.WindowID, set *rules.RuleSet) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("window handling panic recovered", "window", hexID(id), "panic", p)
		}
	}()

	desc, err := r.resolver.Describe(id)
	if err != nil {
		if errors.Is(err, window.ErrNotFound) {
			r.logger.Warn("window vanished before it could be described, skipping", "window", hexID(id))
			return
		}
		r.logger.Warn("failed to describe window, skipping", "window", hexID(id), "error", err)
		return
	}

	matched := rules.FindMatches(set, desc)
	if len(matched) == 0 {
		r.logger.Debug("no rule matched", "window", desc)
		return
	}
	for _, rule := range matched {
		r.logger.Info("rule matched", "rule", rule.Index, "match", rule.String(), "window", desc)
	}
	actions := rules.MergeActions(matched)
	if actions.Empty() {
		r.logger.Debug("matched rules request no actions", "window", desc)
		return
	}
	r.applier.Apply(id, actions, r.monitors)
}

func (r *Reactor) refreshMonitors() {
	monitors, err := r.transport.QueryMonitors()
	if err != nil {
		if errors.Is(err, platform.ErrMonitorsUnavailable) && len(monitors) > 0 {
			r.logger.Warn("monitor enumeration unavailable, using root window geometry", "error", err)
		} else {
			r.logger.Warn("failed to query monitors, keeping previous list", "error", err)
			return
		}
	}
	r.monitors = monitors
	for _, m := range monitors {
		r.logger.Debug("monitor", "index", m.Index, "name", m.Name, "x", m.X, "y", m.Y, "width", m.Width, "height", m.Height)
	}
}

func (r *Reactor) flush() error {
	if err := r.transport.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrConnectionLost, err)
	}
	return nil
}

func hexID(id platform.WindowID) string {
	return fmt.Sprintf("0x%x", uint32(id))
}
