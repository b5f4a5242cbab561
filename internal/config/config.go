package config

import (
	"fmt"

	"github.com/1broseidon/pinwheel/internal/geometry"
)

// MatchField names the window property a matcher is evaluated against.
type MatchField string

const (
	FieldClass   MatchField = "class"
	FieldTitle   MatchField = "title"
	FieldRole    MatchField = "role"
	FieldProcess MatchField = "process"
	FieldType    MatchField = "type"
)

// WindowTypes lists the values accepted by the type matcher.
var WindowTypes = []string{"normal", "dialog", "dock", "toolbar", "menu", "utility", "splash", "desktop"}

// Matcher is an uncompiled pattern for one window field.
type Matcher struct {
	Field   MatchField
	Pattern string
	Source  Source
}

// Actions is the set of changes a rule requests. Nil fields are not
// requested; a false boolean requests the state be removed.
type Actions struct {
	Position  *geometry.Position
	Size      *geometry.Size
	Monitor   *geometry.MonitorSelector
	Workspace *int

	Maximize   *bool
	Fullscreen *bool
	Pin        *bool
	Minimize   *bool
	Shade      *bool
	Above      *bool
	Below      *bool
	Decorate   *bool
	Focus      *bool
	Opacity    *float64
}

// Empty reports whether no action is requested.
func (a Actions) Empty() bool {
	return a == Actions{}
}

// HasGeometry reports whether a position or size is requested.
func (a Actions) HasGeometry() bool {
	return a.Position != nil || a.Size != nil
}

// Summary lists the requested actions as key=value strings in the order
// they are applied.
func (a Actions) Summary() []string {
	var out []string
	if a.Monitor != nil {
		out = append(out, "monitor="+a.Monitor.String())
	}
	if a.Size != nil {
		out = append(out, "size="+a.Size.String())
	}
	if a.Position != nil {
		out = append(out, "position="+a.Position.String())
	}
	if a.Workspace != nil {
		out = append(out, fmt.Sprintf("workspace=%d", *a.Workspace))
	}
	flags := []struct {
		name string
		v    *bool
	}{
		{"maximize", a.Maximize},
		{"fullscreen", a.Fullscreen},
		{"pin", a.Pin},
		{"minimize", a.Minimize},
		{"shade", a.Shade},
		{"above", a.Above},
		{"below", a.Below},
		{"decorate", a.Decorate},
		{"focus", a.Focus},
	}
	for _, f := range flags {
		if f.v != nil {
			out = append(out, fmt.Sprintf("%s=%t", f.name, *f.v))
		}
	}
	if a.Opacity != nil {
		out = append(out, fmt.Sprintf("opacity=%g", *a.Opacity))
	}
	return out
}

// Rule is a validated rule ready for compilation.
type Rule struct {
	Matchers []Matcher
	Actions  Actions
	Source   Source
}

// Describe renders the rule's matchers for logs and the check command.
func (r Rule) Describe() string {
	out := ""
	for i, m := range r.Matchers {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%q", m.Field, m.Pattern)
	}
	return out
}

// Config is the loaded rule configuration.
type Config struct {
	Rules []Rule
}
