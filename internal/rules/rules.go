// Package rules compiles configured rules and matches them against windows.
package rules

import (
	"fmt"
	"regexp"

	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/1broseidon/pinwheel/internal/window"
)

// Matcher is a compiled pattern for one window field.
type Matcher struct {
	Field   config.MatchField
	Pattern *regexp.Regexp
}

// Match reports whether the matcher's pattern matches the window's field.
func (m Matcher) Match(desc window.Description) bool {
	return m.Pattern.MatchString(fieldValue(desc, m.Field))
}

func fieldValue(desc window.Description, field config.MatchField) string {
	switch field {
	case config.FieldClass:
		return desc.Class
	case config.FieldTitle:
		return desc.Title
	case config.FieldRole:
		return desc.Role
	case config.FieldProcess:
		return desc.Process
	case config.FieldType:
		return desc.Type
	default:
		return ""
	}
}

// CompiledRule is an immutable rule with compiled matchers.
type CompiledRule struct {
	Index    int
	Matchers []Matcher
	Actions  config.Actions
	Source   config.Source
	desc     string
}

// Matches reports whether every matcher of the rule matches desc.
func (r *CompiledRule) Matches(desc window.Description) bool {
	for _, m := range r.Matchers {
		if !m.Match(desc) {
			return false
		}
	}
	return true
}

func (r *CompiledRule) String() string {
	return fmt.Sprintf("rule %d (%s)", r.Index, r.desc)
}

// RuleSet is an ordered, immutable list of compiled rules.
type RuleSet struct {
	Rules []*CompiledRule
}

// Len returns the number of rules; a nil set has none.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// Compile builds a RuleSet from cfg. Any pattern that fails to compile
// fails the whole set.
func Compile(cfg *config.Config) (*RuleSet, error) {
	set := &RuleSet{Rules: make([]*CompiledRule, 0, len(cfg.Rules))}
	for i, rule := range cfg.Rules {
		if len(rule.Matchers) == 0 {
			return nil, &config.ValidationError{
				Path:   fmt.Sprintf("rules[%d]", i),
				Source: rule.Source,
				Err:    fmt.Errorf("rule has no matchers"),
			}
		}
		compiled := &CompiledRule{
			Index:   i,
			Actions: rule.Actions,
			Source:  rule.Source,
			desc:    rule.Describe(),
		}
		for _, m := range rule.Matchers {
			re, err := compilePattern(m)
			if err != nil {
				return nil, &config.ValidationError{
					Path:   fmt.Sprintf("rules[%d].%s", i, m.Field),
					Source: m.Source,
					Err:    err,
				}
			}
			compiled.Matchers = append(compiled.Matchers, Matcher{Field: m.Field, Pattern: re})
		}
		set.Rules = append(set.Rules, compiled)
	}
	return set, nil
}

func compilePattern(m config.Matcher) (*regexp.Regexp, error) {
	if m.Field == config.FieldType {
		// Window types are names, not patterns.
		return regexp.Compile("(?i)^" + regexp.QuoteMeta(m.Pattern) + "$")
	}
	re, err := regexp.Compile(m.Pattern)
	if err != nil {
		return nil, fmt.Errorf("bad regex %q: %w", m.Pattern, err)
	}
	return re, nil
}

// FindMatches returns every rule in set that matches desc, in rule order.
func FindMatches(set *RuleSet, desc window.Description) []*CompiledRule {
	if set == nil {
		return nil
	}
	var out []*CompiledRule
	for _, r := range set.Rules {
		if r.Matches(desc) {
			out = append(out, r)
		}
	}
	return out
}

// MergeActions folds the actions of matched rules in order. A field set by a
// later rule replaces the value from an earlier one.
func MergeActions(matched []*CompiledRule) config.Actions {
	var out config.Actions
	for _, r := range matched {
		out = Merge(out, r.Actions)
	}
	return out
}

// Merge returns base with every field set in over applied on top.
func Merge(base, over config.Actions) config.Actions {
	if over.Position != nil {
		base.Position = over.Position
	}
	if over.Size != nil {
		base.Size = over.Size
	}
	if over.Monitor != nil {
		base.Monitor = over.Monitor
	}
	if over.Workspace != nil {
		base.Workspace = over.Workspace
	}
	if over.Maximize != nil {
		base.Maximize = over.Maximize
	}
	if over.Fullscreen != nil {
		base.Fullscreen = over.Fullscreen
	}
	if over.Pin != nil {
		base.Pin = over.Pin
	}
	if over.Minimize != nil {
		base.Minimize = over.Minimize
	}
	if over.Shade != nil {
		base.Shade = over.Shade
	}
	if over.Above != nil {
		base.Above = over.Above
	}
	if over.Below != nil {
		base.Below = over.Below
	}
	if over.Decorate != nil {
		base.Decorate = over.Decorate
	}
	if over.Focus != nil {
		base.Focus = over.Focus
	}
	if over.Opacity != nil {
		base.Opacity = over.Opacity
	}
	return base
}
