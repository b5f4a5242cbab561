package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/pinwheel/internal/geometry"
	"gopkg.in/yaml.v3"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildConfig resolves a merged raw document into typed rules.
func BuildConfig(raw RawConfig) (*Config, error) {
	cfg := &Config{Rules: make([]Rule, 0, len(raw.Rules))}
	for i, rr := range raw.Rules {
		rule, err := buildRule(i, rr)
		if err != nil {
			return nil, err
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	return cfg, nil
}

func buildRule(index int, rr RawRule) (Rule, error) {
	fail := func(key string, err error) error {
		path := fmt.Sprintf("rules[%d]", index)
		if key != "" {
			path += "." + key
		}
		return &ValidationError{Path: path, Source: rr.source(key), Err: err}
	}

	rule := Rule{Source: rr.source("")}
	for _, m := range []struct {
		field MatchField
		value *string
	}{
		{FieldClass, rr.Class},
		{FieldTitle, rr.Title},
		{FieldRole, rr.Role},
		{FieldProcess, rr.Process},
		{FieldType, rr.Type},
	} {
		if m.value == nil {
			continue
		}
		if m.field == FieldType && !isWindowType(*m.value) {
			return Rule{}, fail(string(m.field), fmt.Errorf("type must be one of: %s", strings.Join(WindowTypes, ", ")))
		}
		rule.Matchers = append(rule.Matchers, Matcher{
			Field:   m.field,
			Pattern: *m.value,
			Source:  rr.source(string(m.field)),
		})
	}
	if len(rule.Matchers) == 0 {
		return Rule{}, fail("", fmt.Errorf("no matcher (need class, title, role, process, or type)"))
	}

	a := &rule.Actions
	if rr.Position != nil {
		pos, err := decodePosition(rr.Position)
		if err != nil {
			return Rule{}, fail("position", err)
		}
		a.Position = &pos
	}
	if rr.Size != nil {
		size, err := decodeSize(rr.Size)
		if err != nil {
			return Rule{}, fail("size", err)
		}
		a.Size = &size
	}
	if rr.Monitor != nil {
		sel, err := decodeMonitor(rr.Monitor)
		if err != nil {
			return Rule{}, fail("monitor", err)
		}
		a.Monitor = &sel
	}
	if rr.Workspace != nil {
		if *rr.Workspace < 0 {
			return Rule{}, fail("workspace", fmt.Errorf("workspace must be >= 0"))
		}
		a.Workspace = rr.Workspace
	}
	if rr.Opacity != nil {
		if *rr.Opacity < 0 || *rr.Opacity > 1 {
			return Rule{}, fail("opacity", fmt.Errorf("opacity must be between 0.0 and 1.0"))
		}
		a.Opacity = rr.Opacity
	}
	a.Maximize = rr.Maximize
	a.Fullscreen = rr.Fullscreen
	a.Pin = rr.Pin
	a.Minimize = rr.Minimize
	a.Shade = rr.Shade
	a.Above = rr.Above
	a.Below = rr.Below
	a.Decorate = rr.Decorate
	a.Focus = rr.Focus

	return rule, nil
}

func isWindowType(name string) bool {
	for _, t := range WindowTypes {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// decodePosition tries, in order: a numeric pair, a pair of strings, an
// anchor keyword.
func decodePosition(node *yaml.Node) (geometry.Position, error) {
	if node.Kind == yaml.SequenceNode {
		x, y, err := decodeLengthPair(node, true)
		if err != nil {
			return geometry.Position{}, err
		}
		return geometry.AxesPosition(x, y), nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		anchor, err := geometry.ParseAnchor(node.Value)
		if err != nil {
			return geometry.Position{}, err
		}
		return geometry.AnchorPosition(anchor), nil
	}
	return geometry.Position{}, fmt.Errorf("position must be an anchor name, [x, y], or [\"x%%\", \"y%%\"]")
}

func decodeSize(node *yaml.Node) (geometry.Size, error) {
	if node.Kind != yaml.SequenceNode {
		return geometry.Size{}, fmt.Errorf("size must be [w, h] or [\"w%%\", \"h%%\"]")
	}
	w, h, err := decodeLengthPair(node, false)
	if err != nil {
		return geometry.Size{}, err
	}
	return geometry.Size{Width: w, Height: h}, nil
}

func decodeLengthPair(node *yaml.Node, signed bool) (geometry.Length, geometry.Length, error) {
	if len(node.Content) != 2 {
		return geometry.Length{}, geometry.Length{}, fmt.Errorf("expected exactly two values, got %d", len(node.Content))
	}

	var nums []int
	if err := node.Decode(&nums); err == nil && allTagged(node, "!!int") {
		if err := validatePixels(nums, signed); err != nil {
			return geometry.Length{}, geometry.Length{}, err
		}
		return geometry.Pixels(nums[0]), geometry.Pixels(nums[1]), nil
	}

	var out [2]geometry.Length
	for i, item := range node.Content {
		if item.Kind != yaml.ScalarNode || (item.Tag != "!!str" && item.Tag != "!!int") {
			return geometry.Length{}, geometry.Length{}, fmt.Errorf("values must be integers or strings like \"50%%\"")
		}
		l, err := parseLength(item.Value, signed)
		if err != nil {
			return geometry.Length{}, geometry.Length{}, err
		}
		out[i] = l
	}
	return out[0], out[1], nil
}

func allTagged(node *yaml.Node, tag string) bool {
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode || item.Tag != tag {
			return false
		}
	}
	return true
}

func validatePixels(nums []int, signed bool) error {
	if signed {
		return nil
	}
	for _, n := range nums {
		if n <= 0 {
			return fmt.Errorf("size values must be > 0, got %d", n)
		}
	}
	return nil
}

// parseLength parses "NN%" as a fraction of the monitor dimension and "NN"
// as pixels.
func parseLength(s string, signed bool) (geometry.Length, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return geometry.Length{}, fmt.Errorf("invalid percentage %q", s)
		}
		if v < 0 || v > 100 || (!signed && v == 0) {
			return geometry.Length{}, fmt.Errorf("percentage %q out of range", s)
		}
		return geometry.Percent(v / 100), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return geometry.Length{}, fmt.Errorf("invalid value %q (expected a number or percentage)", s)
	}
	if !signed && n <= 0 {
		return geometry.Length{}, fmt.Errorf("size values must be > 0, got %d", n)
	}
	return geometry.Pixels(n), nil
}

func decodeMonitor(node *yaml.Node) (geometry.MonitorSelector, error) {
	if node.Kind == yaml.ScalarNode {
		switch node.Tag {
		case "!!int":
			var idx int
			if err := node.Decode(&idx); err != nil {
				return geometry.MonitorSelector{}, err
			}
			if idx < 0 {
				return geometry.MonitorSelector{}, fmt.Errorf("monitor index must be >= 0")
			}
			return geometry.MonitorIndex(idx), nil
		case "!!str":
			if strings.TrimSpace(node.Value) == "" {
				return geometry.MonitorSelector{}, fmt.Errorf("monitor name must not be empty")
			}
			return geometry.MonitorName(node.Value), nil
		}
	}
	return geometry.MonitorSelector{}, fmt.Errorf("monitor must be an index or an output name")
}
