// Package geometry resolves requested window placement against a monitor.
package geometry

import (
	"fmt"
	"strings"

	"github.com/1broseidon/pinwheel/internal/platform"
)

// Anchor is a named position relative to a monitor.
type Anchor int

const (
	AnchorCenter Anchor = iota
	AnchorTopLeft
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
	AnchorLeft
	AnchorRight
	AnchorTop
	AnchorBottom
)

var anchorNames = []string{
	AnchorCenter:      "center",
	AnchorTopLeft:     "top-left",
	AnchorTopRight:    "top-right",
	AnchorBottomLeft:  "bottom-left",
	AnchorBottomRight: "bottom-right",
	AnchorLeft:        "left",
	AnchorRight:       "right",
	AnchorTop:         "top",
	AnchorBottom:      "bottom",
}

// AnchorNames lists the accepted anchor keywords.
func AnchorNames() []string {
	return append([]string(nil), anchorNames...)
}

// ParseAnchor converts an anchor keyword into an Anchor.
func ParseAnchor(s string) (Anchor, error) {
	for i, name := range anchorNames {
		if name == s {
			return Anchor(i), nil
		}
	}
	return 0, fmt.Errorf("invalid position %q (expected one of: %s)", s, strings.Join(anchorNames, ", "))
}

func (a Anchor) String() string {
	if int(a) < 0 || int(a) >= len(anchorNames) {
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
	return anchorNames[a]
}

// Length is one axis of a position or size: either absolute pixels or a
// fraction of the monitor dimension.
type Length struct {
	Pixels   int
	Fraction float64
	Relative bool
}

// Pixels returns an absolute length.
func Pixels(n int) Length {
	return Length{Pixels: n}
}

// Percent returns a length relative to the monitor; f is a fraction (0.5 = 50%).
func Percent(f float64) Length {
	return Length{Fraction: f, Relative: true}
}

// Resolve returns the length in pixels against a monitor dimension,
// truncating fractional pixels.
func (l Length) Resolve(total int) int {
	if l.Relative {
		return int(l.Fraction * float64(total))
	}
	return l.Pixels
}

func (l Length) String() string {
	if l.Relative {
		return fmt.Sprintf("%g%%", l.Fraction*100)
	}
	return fmt.Sprintf("%d", l.Pixels)
}

// Position is a target window position: either per-axis lengths measured
// from the monitor origin, or a named anchor.
type Position struct {
	X, Y      Length
	Anchor    Anchor
	HasAnchor bool
}

// AnchorPosition returns a position that resolves to the given anchor.
func AnchorPosition(a Anchor) Position {
	return Position{Anchor: a, HasAnchor: true}
}

// AxesPosition returns a position given per-axis lengths.
func AxesPosition(x, y Length) Position {
	return Position{X: x, Y: y}
}

func (p Position) String() string {
	if p.HasAnchor {
		return p.Anchor.String()
	}
	return fmt.Sprintf("[%s, %s]", p.X, p.Y)
}

// Size is a target window size. Anchors are not valid for sizes.
type Size struct {
	Width, Height Length
}

func (s Size) String() string {
	return fmt.Sprintf("[%s, %s]", s.Width, s.Height)
}

// ResolveSize returns the absolute size for spec on monitor m. Relative
// dimensions never resolve below one pixel.
func ResolveSize(spec Size, m platform.Monitor) (w, h int) {
	w = spec.Width.Resolve(m.Width)
	h = spec.Height.Resolve(m.Height)
	if spec.Width.Relative && w < 1 {
		w = 1
	}
	if spec.Height.Relative && h < 1 {
		h = 1
	}
	return w, h
}

// ResolvePosition returns the absolute root coordinates for spec on monitor
// m, for a window of the given size.
func ResolvePosition(spec Position, m platform.Monitor, winW, winH int) (x, y int) {
	if !spec.HasAnchor {
		return m.X + spec.X.Resolve(m.Width), m.Y + spec.Y.Resolve(m.Height)
	}

	left := m.X
	right := m.X + m.Width - winW
	hcenter := m.X + (m.Width-winW)/2
	top := m.Y
	bottom := m.Y + m.Height - winH
	vcenter := m.Y + (m.Height-winH)/2

	switch spec.Anchor {
	case AnchorTopLeft:
		return left, top
	case AnchorTopRight:
		return right, top
	case AnchorBottomLeft:
		return left, bottom
	case AnchorBottomRight:
		return right, bottom
	case AnchorLeft:
		return left, vcenter
	case AnchorRight:
		return right, vcenter
	case AnchorTop:
		return hcenter, top
	case AnchorBottom:
		return hcenter, bottom
	default:
		return hcenter, vcenter
	}
}
