// Package dsl implements the DSL Binding (spec.md §4.10): parsing a
// `.qutest.yaml` script into a closed, ordered list of typed steps (the
// "closed enum of DSL operations" option from spec.md §9's design note,
// chosen because no embeddable scripting engine exists anywhere in the
// retrieval pack) and elaborating each step into exactly one Command API
// or Script Runner call.
package dsl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Script is one parsed `.qutest.yaml` document, with any `include`d files
// already merged in.
type Script struct {
	Include []string   `yaml:"include,omitempty"`
	Tests   []TestCase `yaml:"tests"`

	dir string // directory the script was loaded from, for include resolution
}

// TestCase is one `tests[]` entry, possibly expressed via BDD sugar
// (spec.md §4.10 "SCENARIO/GIVEN/WHEN/THEN/AND").
type TestCase struct {
	Name     string   `yaml:"name,omitempty"`
	Scenario string   `yaml:"scenario,omitempty"`
	Given    string   `yaml:"given,omitempty"`
	When     string   `yaml:"when,omitempty"`
	Then     string   `yaml:"then,omitempty"`
	And      []string `yaml:"and,omitempty"`
	Opt      []string `yaml:"opt,omitempty"`
	Steps    []Step   `yaml:"steps"`
}

// Title returns the effective test title: the BDD scenario name when
// present, otherwise the plain name.
func (tc TestCase) Title() string {
	if tc.Scenario != "" {
		return tc.Scenario
	}
	return tc.Name
}

// Notes returns the indented GIVEN/WHEN/THEN/AND lines desugared at parse
// time into plain notes (spec.md §4.10: "no additional control flow").
func (tc TestCase) Notes() []string {
	var notes []string
	if tc.Given != "" {
		notes = append(notes, "GIVEN "+tc.Given)
	}
	if tc.When != "" {
		notes = append(notes, "WHEN "+tc.When)
	}
	if tc.Then != "" {
		notes = append(notes, "THEN "+tc.Then)
	}
	for _, a := range tc.And {
		notes = append(notes, "AND "+a)
	}
	return notes
}

// HasOpt reports whether name (e.g. "NORESET") is present in the test's
// opt list.
func (tc TestCase) HasOpt(name string) bool {
	for _, o := range tc.Opt {
		if strings.EqualFold(o, name) {
			return true
		}
	}
	return false
}

// Load parses path and resolves any `include` entries relative to its
// directory, merging their tests in before the including file's own
// (spec.md §4.10 "include(path): compile and execute another script file
// in the current DSL scope").
func Load(path string) (*Script, error) {
	return load(path, map[string]bool{})
}

func load(path string, seen map[string]bool) (*Script, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("dsl: resolve path %s: %w", path, err)
	}
	if seen[abs] {
		return nil, fmt.Errorf("dsl: include cycle at %s", abs)
	}
	seen[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("dsl: read %s: %w", abs, err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dsl: parse %s: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)

	var merged []TestCase
	for _, inc := range s.Include {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(s.dir, incPath)
		}
		child, err := load(incPath, seen)
		if err != nil {
			return nil, fmt.Errorf("dsl: include %s: %w", inc, err)
		}
		merged = append(merged, child.Tests...)
	}
	s.Tests = append(merged, s.Tests...)
	return &s, nil
}

// Dir is the directory the top-level script was loaded from (spec.md
// §4.10 test_dir()).
func (s *Script) Dir() string { return s.dir }
