package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// ErrNoRandR is returned by GetMonitors when the server lacks RandR.
var ErrNoRandR = errors.New("randr extension not available")

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if !c.randr {
		return nil, ErrNoRandR
	}

	// Get screen resources
	resources, err := randr.GetScreenResourcesCurrent(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	for _, output := range resources.Outputs {
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), output, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disconnected outputs
		if outputInfo.Crtc == 0 || outputInfo.Connection != randr.ConnectionConnected {
			continue
		}

		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), outputInfo.Crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 {
			continue
		}

		monitors = append(monitors, Monitor{
			ID:     len(monitors),
			Name:   string(outputInfo.Name),
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		})
	}

	return monitors, nil
}

// RootMonitor describes the whole root window as a single monitor.
func (c *Connection) RootMonitor() (Monitor, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return Monitor{}, fmt.Errorf("failed to get root geometry: %w", err)
	}
	return Monitor{
		ID:     0,
		Name:   "default",
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}
