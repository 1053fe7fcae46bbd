package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes and validates a scenario document.
// Unknown fields are rejected to catch typos like "selectr:".
func Parse(data []byte, source string) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing %s: empty document", source)
		}
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	sc.Source = source

	if err := Validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", source, err)
	}

	return &sc, nil
}

// LoadFile reads and parses a scenario YAML file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return Parse(data, path)
}

// LoadDir loads all *.yaml and *.yml files of a directory, sorted by file name.
// Scenario names must be unique within the directory.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory: %w", err)
	}

	var (
		scenarios []*Scenario
		seen      = make(map[string]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !isScenarioFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		sc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if other, exists := seen[sc.Name]; exists {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, other, path)
		}
		seen[sc.Name] = path
		scenarios = append(scenarios, sc)
	}

	return scenarios, nil
}

// Load resolves a reference to scenarios. A reference is a builtin name,
// a scenario file or a directory of scenario files.
func Load(ref string) ([]*Scenario, error) {
	if slices.Contains(List(), ref) {
		sc, err := Builtin(ref)
		if err != nil {
			return nil, err
		}
		return []*Scenario{sc}, nil
	}

	info, err := os.Stat(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%q is neither a builtin scenario nor a file", ref)
		}
		return nil, fmt.Errorf("loading %s: %w", ref, err)
	}
	if info.IsDir() {
		return LoadDir(ref)
	}

	sc, err := LoadFile(ref)
	if err != nil {
		return nil, err
	}
	return []*Scenario{sc}, nil
}

func isScenarioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
