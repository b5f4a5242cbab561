package daemon

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/1broseidon/pinwheel/internal/apply"
	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/1broseidon/pinwheel/internal/confwatch"
	"github.com/1broseidon/pinwheel/internal/platform"
	"github.com/1broseidon/pinwheel/internal/platform/platformtest"
	"github.com/1broseidon/pinwheel/internal/rules"
	"github.com/1broseidon/pinwheel/internal/window"
)

type fakeProcs map[int]string

func (f fakeProcs) ProcessName(pid int) (string, error) {
	if name, ok := f[pid]; ok {
		return name, nil
	}
	return "", os.ErrNotExist
}

// syncBuffer is a log sink safe to read while Run is writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	transport *platformtest.Transport
	events    chan platform.Event
	signals   chan os.Signal
	config    chan confwatch.Event
	reactor   *Reactor
	reloader  *Reloader
	store     *rules.Store
	path      string
	logs      *syncBuffer
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newHarness(t *testing.T, cfg string, mode apply.Mode, procs fakeProcs) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, cfg)

	res, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	set, err := rules.Compile(res.Config)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tr := platformtest.New()
	resolver, err := window.NewResolver(tr, procs, logger)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	applier, err := apply.New(tr, logger, mode)
	if err != nil {
		t.Fatalf("applier: %v", err)
	}

	store := rules.NewStore(set)
	reloader := NewReloader(path, store, logger)

	h := &harness{
		transport: tr,
		events:    make(chan platform.Event, 8),
		signals:   make(chan os.Signal, 1),
		config:    make(chan confwatch.Event, 1),
		reloader:  reloader,
		store:     store,
		path:      path,
		logs:      logs,
	}
	h.reactor = New(Options{
		Transport:    tr,
		Events:       h.events,
		Signals:      h.signals,
		ConfigEvents: h.config,
		Resolver:     resolver,
		Applier:      applier,
		Rules:        store,
		Reloader:     reloader,
		Logger:       logger,
	})
	return h
}

func (h *harness) addWindow(id platform.WindowID, class, title string, pid uint32) {
	h.transport.AddWindow(id, platform.Rect{X: 50, Y: 50, Width: 800, Height: 600})
	h.transport.SetClass(id, strings.ToLower(class), class)
	h.transport.SetString(id, "_NET_WM_NAME", title)
	if pid != 0 {
		h.transport.SetCardinal(id, "_NET_WM_PID", pid)
	}
}

func (h *harness) clientListChanged(t *testing.T) {
	t.Helper()
	stop, err := h.reactor.dispatch(wake{source: SourceProtocol, events: []platform.Event{{Kind: platform.EventClientListChanged}}})
	if err != nil || stop {
		t.Fatalf("dispatch: stop=%v err=%v", stop, err)
	}
}

func TestReactor_KittyGeometryEndToEnd(t *testing.T) {
	cfg := "rules:\n  - class: \"(?i)kitty\"\n    position: [0, 38]\n    size: [2558, 1401]\n"
	h := newHarness(t, cfg, apply.Live, nil)
	h.transport.Monitors = []platform.Monitor{{Name: "DP-1", Width: 2560, Height: 1440}}
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.addWindow(0x3a00007, "kitty", "~", 0)
	h.clientListChanged(t)

	calls := h.transport.CallsTo("ConfigureWindow")
	if len(calls) != 1 {
		t.Fatalf("expected one configure, got %+v", h.transport.Calls)
	}
	if got := calls[0].Geom; got != (platform.Rect{X: 0, Y: 38, Width: 2558, Height: 1401}) {
		t.Fatalf("unexpected geometry %+v", got)
	}
	if n := len(h.transport.CallsTo("SendStateMessage")); n != 0 {
		t.Fatalf("expected no state messages, got %d", n)
	}
	if h.transport.Flushes != 2 {
		t.Fatalf("expected a flush after start and after the batch, got %d", h.transport.Flushes)
	}
}

func TestReactor_FirefoxWorkspaceAndMaximize(t *testing.T) {
	cfg := "rules:\n  - process: firefox\n    workspace: 1\n    maximize: true\n"
	h := newHarness(t, cfg, apply.Live, fakeProcs{777: "firefox"})
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.addWindow(0x1c00003, "firefox", "Mozilla Firefox", 777)
	h.clientListChanged(t)

	calls := h.transport.Calls
	if len(calls) != 2 {
		t.Fatalf("expected two requests, got %+v", calls)
	}
	if calls[0].Method != "SendClientMessage" || calls[0].Atom != "_NET_WM_DESKTOP" || calls[0].Data[0] != 1 {
		t.Fatalf("expected desktop 1 first, got %+v", calls[0])
	}
	if calls[1].Method != "SendStateMessage" || calls[1].Action != platform.StateAdd ||
		strings.Join(calls[1].States, ",") != "_NET_WM_STATE_MAXIMIZED_VERT,_NET_WM_STATE_MAXIMIZED_HORZ" {
		t.Fatalf("expected maximize state message, got %+v", calls[1])
	}
}

func TestReactor_StartAppliesToExistingWindows(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    above: true\n", apply.Live, nil)
	h.addWindow(1, "XTerm", "a", 0)
	h.addWindow(2, "xterm", "b", 0)
	h.addWindow(3, "xterm", "c", 0)

	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var order []platform.WindowID
	for _, c := range h.transport.CallsTo("SendStateMessage") {
		order = append(order, c.Window)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 3 {
		t.Fatalf("expected windows 2 then 3, got %v", order)
	}
}

func TestReactor_RemovedWindowTriggersNoEvaluation(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	h.addWindow(1, "xterm", "a", 0)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.transport.Reset()

	h.transport.RemoveWindow(1)
	h.clientListChanged(t)

	if len(h.transport.Calls) != 0 {
		t.Fatalf("expected no requests for a removed window, got %+v", h.transport.Calls)
	}
	if len(h.reactor.differ.Known()) != 0 {
		t.Fatalf("expected empty window list, got %v", h.reactor.differ.Known())
	}
}

func TestReactor_WindowGoneMidCycleIsSkipped(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.addWindow(1, "xterm", "a", 0)
	h.addWindow(2, "xterm", "b", 0)
	// Listed but already destroyed.
	delete(h.transport.Windows, 1)
	h.clientListChanged(t)

	calls := h.transport.CallsTo("SendStateMessage")
	if len(calls) != 1 || calls[0].Window != 2 {
		t.Fatalf("expected only window 2 to be handled, got %+v", calls)
	}
	if !strings.Contains(h.logs.String(), "window vanished") {
		t.Fatalf("expected skip warning, got:\n%s", h.logs.String())
	}
}

func TestReactor_DryRunMakesNoRequests(t *testing.T) {
	cfg := strings.Join([]string{
		"rules:",
		"  - class: kitty",
		"    position: center",
		"    size: [\"50%\", \"50%\"]",
		"    workspace: 2",
		"    maximize: true",
		"    opacity: 0.8",
		"  - title: .",
		"    decorate: false",
		"    focus: true",
		"",
	}, "\n")
	h := newHarness(t, cfg, apply.DryRun, nil)
	h.addWindow(1, "kitty", "shell", 0)

	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(h.transport.Calls) != 0 {
		t.Fatalf("expected no mutations in dry-run, got %+v", h.transport.Calls)
	}
	if !strings.Contains(h.logs.String(), "would apply geometry") {
		t.Fatalf("expected dry-run log, got:\n%s", h.logs.String())
	}
}

func TestReactor_MalformedReloadKeepsPreviousRules(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	before := h.store.Load()

	writeFile(t, h.path, "rules:\n  - class: [unclosed\n")
	if stop, err := h.reactor.dispatch(wake{source: SourceConfigWatch, config: confwatch.Event{Path: h.path}}); err != nil || stop {
		t.Fatalf("dispatch: stop=%v err=%v", stop, err)
	}
	if h.store.Load() != before {
		t.Fatalf("expected previous rule set to stay active")
	}
	if !strings.Contains(h.logs.String(), "config change rejected") {
		t.Fatalf("expected rejection to be logged, got:\n%s", h.logs.String())
	}

	h.addWindow(5, "xterm", "next", 0)
	h.clientListChanged(t)
	if len(h.transport.CallsTo("SendStateMessage")) != 1 {
		t.Fatalf("expected previous rules to apply to the next window, got %+v", h.transport.Calls)
	}
}

func TestReactor_BadRegexReloadKeepsPreviousRules(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	before := h.store.Load()

	writeFile(t, h.path, "rules:\n  - class: \"([bad\"\n    shade: true\n")
	if err := h.reloader.Reload("test"); err == nil {
		t.Fatalf("expected reload error")
	}
	if h.store.Load() != before {
		t.Fatalf("expected previous rule set to stay active")
	}
}

func TestReactor_ReloadSwapsRules(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var tracked []string
	h.reloader.OnFiles = func(files []string) error {
		tracked = files
		return nil
	}

	writeFile(t, h.path, "rules:\n  - class: xterm\n    below: true\n  - class: other\n    above: true\n")
	if stop, err := h.reactor.dispatch(wake{source: SourceSignal, signal: syscall.SIGHUP}); err != nil || stop {
		t.Fatalf("SIGHUP should reload, got stop=%v err=%v", stop, err)
	}
	if h.store.Load().Len() != 2 {
		t.Fatalf("expected 2 rules after reload, got %d", h.store.Load().Len())
	}
	if len(tracked) != 1 {
		t.Fatalf("expected watcher to be told about 1 file, got %v", tracked)
	}

	h.addWindow(9, "xterm", "x", 0)
	h.clientListChanged(t)
	calls := h.transport.CallsTo("SendStateMessage")
	if len(calls) != 1 || calls[0].States[0] != "_NET_WM_STATE_BELOW" {
		t.Fatalf("expected new rule to apply, got %+v", calls)
	}
}

func TestReactor_RemovedConfigKeepsRules(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	before := h.store.Load()

	if err := h.reloader.HandleEvent(confwatch.Event{Path: h.path, Kind: confwatch.Removed}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if h.store.Load() != before {
		t.Fatalf("expected rules to be kept")
	}
}

func TestReactor_MonitorChangeRefreshesMonitors(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    position: top-left\n", apply.Live, nil)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.transport.Monitors = []platform.Monitor{{Name: "HDMI-1", X: 3000, Y: 100, Width: 1920, Height: 1080}}
	h.addWindow(4, "xterm", "x", 0)
	stop, err := h.reactor.dispatch(wake{source: SourceProtocol, events: []platform.Event{
		{Kind: platform.EventMonitorsChanged},
		{Kind: platform.EventClientListChanged},
	}})
	if err != nil || stop {
		t.Fatalf("dispatch: stop=%v err=%v", stop, err)
	}

	calls := h.transport.CallsTo("ConfigureWindow")
	if len(calls) != 1 || calls[0].Geom.X != 3000 || calls[0].Geom.Y != 100 {
		t.Fatalf("expected placement on the new monitor, got %+v", calls)
	}
}

func TestReactor_MonitorFallbackIsUsed(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    position: center\n", apply.Live, nil)
	h.transport.Monitors = []platform.Monitor{{Name: "root", Width: 1024, Height: 768}}
	h.transport.MonitorsErr = platform.ErrMonitorsUnavailable
	h.addWindow(1, "xterm", "x", 0)

	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	calls := h.transport.CallsTo("ConfigureWindow")
	if len(calls) != 1 || calls[0].Geom.X != 112 || calls[0].Geom.Y != 84 {
		t.Fatalf("expected centering on the root monitor, got %+v", calls)
	}
}

func TestReactor_ListFailureIsFatal(t *testing.T) {
	h := newHarness(t, "rules: []\n", apply.Live, nil)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.transport.ListErr = errors.New("broken pipe")
	_, err := h.reactor.dispatch(wake{source: SourceProtocol, events: []platform.Event{{Kind: platform.EventClientListChanged}}})
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestReactor_AsyncErrorsAreNotFatal(t *testing.T) {
	h := newHarness(t, "rules: []\n", apply.Live, nil)
	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	flushes := h.transport.Flushes

	stop, err := h.reactor.dispatch(wake{source: SourceProtocol, events: []platform.Event{{Err: errors.New("BadWindow")}}})
	if err != nil || stop {
		t.Fatalf("dispatch: stop=%v err=%v", stop, err)
	}
	if h.transport.Flushes != flushes {
		t.Fatalf("expected no flush for an error-only batch")
	}
}

func TestRun_TerminateSignalExitsCleanly(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)
	h.addWindow(1, "xterm", "x", 0)
	h.signals <- syscall.SIGTERM

	if err := h.reactor.Run(context.Background()); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if len(h.transport.CallsTo("SendStateMessage")) != 1 {
		t.Fatalf("expected existing window to be handled before exit")
	}
	if !strings.Contains(h.logs.String(), "shutting down") {
		t.Fatalf("expected shutdown log, got:\n%s", h.logs.String())
	}
}

func TestRun_ClosedConnectionIsFatal(t *testing.T) {
	h := newHarness(t, "rules: []\n", apply.Live, nil)
	close(h.events)

	err := h.reactor.Run(context.Background())
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestRun_RepeatedListChangesHandleWindowOnce(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n    shade: true\n", apply.Live, nil)

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.addWindow(1, "xterm", "x", 0)
	go func() { done <- h.reactor.Run(ctx) }()

	// The transport is owned by Run until it returns; only channels are
	// touched from here.
	h.events <- platform.Event{Kind: platform.EventClientListChanged}
	h.events <- platform.Event{Kind: platform.EventClientListChanged}

	deadline := time.After(5 * time.Second)
	for !strings.Contains(h.logs.String(), "rule matched") {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for rule application")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if n := len(h.transport.CallsTo("SendStateMessage")); n != 1 {
		t.Fatalf("expected the window to be handled once, got %d", n)
	}
}

func TestReactor_MatchWithoutActionsSendsNothing(t *testing.T) {
	h := newHarness(t, "rules:\n  - class: xterm\n", apply.Live, nil)
	h.addWindow(1, "xterm", "x", 0)

	if err := h.reactor.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(h.transport.Calls) != 0 {
		t.Fatalf("expected no requests, got %+v", h.transport.Calls)
	}
	if !strings.Contains(h.logs.String(), "matched rules request no actions") {
		t.Fatalf("expected no-action log, got:\n%s", h.logs.String())
	}
}
