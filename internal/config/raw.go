package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RawConfig mirrors the on-disk YAML document. Multi-shaped values are kept
// as nodes and resolved by buildConfig so errors can point at the source.
type RawConfig struct {
	Include IncludeList `yaml:"include"`
	Rules   []RawRule   `yaml:"rules"`
}

// IncludeList is a YAML field that accepts either a string or a list of strings.
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// RawRule is one entry of the rules list.
type RawRule struct {
	Class   *string `yaml:"class"`
	Title   *string `yaml:"title"`
	Role    *string `yaml:"role"`
	Process *string `yaml:"process"`
	Type    *string `yaml:"type"`

	Position  *yaml.Node `yaml:"position"`
	Size      *yaml.Node `yaml:"size"`
	Monitor   *yaml.Node `yaml:"monitor"`
	Workspace *int       `yaml:"workspace"`

	Maximize   *bool    `yaml:"maximize"`
	Fullscreen *bool    `yaml:"fullscreen"`
	Pin        *bool    `yaml:"pin"`
	Minimize   *bool    `yaml:"minimize"`
	Shade      *bool    `yaml:"shade"`
	Above      *bool    `yaml:"above"`
	Below      *bool    `yaml:"below"`
	Decorate   *bool    `yaml:"decorate"`
	Focus      *bool    `yaml:"focus"`
	Opacity    *float64 `yaml:"opacity"`

	// sources maps a rule key ("" for the rule itself) to where it was written.
	sources map[string]Source
}

func (r RawRule) source(key string) Source {
	if src, ok := r.sources[key]; ok {
		return src
	}
	return r.sources[""]
}

// merge appends other's rules after r's. Includes are merged first, so an
// including file's rules come after the rules it pulls in.
func (r RawConfig) merge(other RawConfig) RawConfig {
	out := RawConfig{Rules: make([]RawRule, 0, len(r.Rules)+len(other.Rules))}
	out.Rules = append(out.Rules, r.Rules...)
	out.Rules = append(out.Rules, other.Rules...)
	return out
}
