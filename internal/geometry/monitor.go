package geometry

import (
	"fmt"

	"github.com/1broseidon/pinwheel/internal/platform"
)

// MonitorSelector picks a monitor by index or by RandR output name.
type MonitorSelector struct {
	Index  int
	Name   string
	ByName bool
}

// MonitorIndex selects the monitor at index i in enumeration order.
func MonitorIndex(i int) MonitorSelector {
	return MonitorSelector{Index: i}
}

// MonitorName selects the monitor whose output name equals name.
func MonitorName(name string) MonitorSelector {
	return MonitorSelector{Name: name, ByName: true}
}

func (s MonitorSelector) String() string {
	if s.ByName {
		return fmt.Sprintf("%q", s.Name)
	}
	return fmt.Sprintf("%d", s.Index)
}

func (s MonitorSelector) find(monitors []platform.Monitor) (platform.Monitor, bool) {
	if s.ByName {
		for _, m := range monitors {
			if m.Name == s.Name {
				return m, true
			}
		}
		return platform.Monitor{}, false
	}
	if s.Index >= 0 && s.Index < len(monitors) {
		return monitors[s.Index], true
	}
	return platform.Monitor{}, false
}

// SelectMonitor chooses the monitor a rule's geometry resolves against:
// the explicit selector when it names a known monitor, otherwise the monitor
// containing the window's top-left corner, otherwise the first monitor.
// ok is false only when monitors is empty.
func SelectMonitor(monitors []platform.Monitor, sel *MonitorSelector, window platform.Rect) (m platform.Monitor, ok bool) {
	if len(monitors) == 0 {
		return platform.Monitor{}, false
	}
	if sel != nil {
		if m, ok := sel.find(monitors); ok {
			return m, true
		}
	}
	for _, m := range monitors {
		if m.Bounds().Contains(window.X, window.Y) {
			return m, true
		}
	}
	return monitors[0], true
}
