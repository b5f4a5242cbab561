package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the config file does not exist.
var ErrNotFound = errors.New("config not found")

// Source is a position in a config file.
type Source struct {
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	if s.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

type LoadResult struct {
	Config *Config
	Files  []string // all loaded files, in load order
}

// LoadFromPath reads path and its includes and returns validated rules.
func LoadFromPath(path string) (*LoadResult, error) {
	if exists, err := pathExists(path); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	raw, files, err := loadRawMerged(path, make(map[string]struct{}), nil)
	if err != nil {
		return nil, err
	}

	cfg, err := BuildConfig(raw)
	if err != nil {
		return nil, err
	}

	return &LoadResult{Config: cfg, Files: files}, nil
}

type includeRef struct {
	Value  string
	Source Source
}

func loadRawMerged(path string, seen map[string]struct{}, stack []string) (RawConfig, []string, error) {
	canon, err := canonicalPath(path)
	if err != nil {
		return RawConfig{}, nil, err
	}
	for _, existing := range stack {
		if existing == canon {
			return RawConfig{}, nil, fmt.Errorf("include cycle detected: %s -> %s", strings.Join(stack, " -> "), canon)
		}
	}
	if _, ok := seen[canon]; ok {
		// Already merged through another include; rules are not duplicated.
		return RawConfig{}, nil, nil
	}
	seen[canon] = struct{}{}

	data, err := os.ReadFile(canon)
	if err != nil {
		return RawConfig{}, nil, fmt.Errorf("%s: failed to read: %w", canon, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawConfig{}, nil, fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
	}

	var raw RawConfig
	if err := decodeStrictYAML(data, &raw); err != nil {
		return RawConfig{}, nil, fmt.Errorf("%s: %w", canon, err)
	}

	ruleSources := collectRuleSources(&doc, canon)
	for i := range raw.Rules {
		if i < len(ruleSources) {
			raw.Rules[i].sources = ruleSources[i]
		}
	}

	merged := RawConfig{}
	var files []string
	for _, ref := range collectIncludeRefs(&doc, canon) {
		paths, err := expandInclude(canon, ref.Value)
		if err != nil {
			return RawConfig{}, nil, fmt.Errorf("%s: include %q: %w", ref.Source, ref.Value, err)
		}
		for _, incPath := range paths {
			incRaw, incFiles, err := loadRawMerged(incPath, seen, append(stack, canon))
			if err != nil {
				return RawConfig{}, nil, err
			}
			merged = merged.merge(incRaw)
			files = append(files, incFiles...)
		}
	}

	// This file's rules follow the rules it includes.
	merged = merged.merge(raw)
	files = append(files, canon)

	return merged, files, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	return real, nil
}

// expandInclude resolves an include entry relative to baseFile. A directory
// expands to its *.yaml and *.yml files in lexical order.
func expandInclude(baseFile string, include string) ([]string, error) {
	path, err := resolvePathRelativeToFile(baseFile, include)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		if ent.IsDir() || !IsConfigFileName(ent.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, ent.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// IsConfigFileName reports whether name has a YAML extension.
func IsConfigFileName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func resolvePathRelativeToFile(baseFile string, include string) (string, error) {
	if include == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(include, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if include == "~" {
			include = home
		} else if strings.HasPrefix(include, "~/") {
			include = filepath.Join(home, include[2:])
		}
	}
	if filepath.IsAbs(include) {
		return include, nil
	}
	return filepath.Join(filepath.Dir(baseFile), include), nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func rootMapping(doc *yaml.Node) *yaml.Node {
	if doc == nil {
		return nil
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	return node
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func sourceOf(node *yaml.Node, file string) Source {
	return Source{File: file, Line: node.Line, Column: node.Column}
}

// collectRuleSources returns, for each entry of the rules list, the position
// of the entry ("" key) and of each of its values.
func collectRuleSources(doc *yaml.Node, file string) []map[string]Source {
	root := rootMapping(doc)
	if root == nil {
		return nil
	}
	seq := mappingValue(root, "rules")
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}

	out := make([]map[string]Source, len(seq.Content))
	for i, item := range seq.Content {
		sources := map[string]Source{"": sourceOf(item, file)}
		if item.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(item.Content); j += 2 {
				sources[item.Content[j].Value] = sourceOf(item.Content[j+1], file)
			}
		}
		out[i] = sources
	}
	return out
}

func collectIncludeRefs(doc *yaml.Node, file string) []includeRef {
	root := rootMapping(doc)
	if root == nil {
		return nil
	}
	valNode := mappingValue(root, "include")
	if valNode == nil {
		return nil
	}

	switch valNode.Kind {
	case yaml.ScalarNode:
		return []includeRef{{Value: valNode.Value, Source: sourceOf(valNode, file)}}
	case yaml.SequenceNode:
		refs := make([]includeRef, 0, len(valNode.Content))
		for _, item := range valNode.Content {
			if item.Kind != yaml.ScalarNode {
				continue
			}
			refs = append(refs, includeRef{Value: item.Value, Source: sourceOf(item, file)})
		}
		return refs
	default:
		return nil
	}
}
