// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source describes the design under analysis and drives the
// external elaborator.
//
// A Manager records the source files, include directories, and macro
// defines handed to the elaborator, and - once elaboration has run - the
// path of the JSON AST it produced. The manager persists verbatim into
// the formal-driver script, which re-analyzes the same file set.
package source

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileListExtensions are input extensions interpreted as source list
// files rather than designs: one source path per line, resolved relative
// to the list file's directory.
var fileListExtensions = map[string]bool{
	".list":     true,
	".filelist": true,
	".txt":      true,
}

// Manager is the input descriptor for one analysis run.
type Manager struct {
	files        []string
	includeDirs  []string
	macros       map[string]string
	jsonFilename string
}

// NewManager builds a manager from the raw input paths. A single input
// with a list extension is expanded line-by-line; every path is
// absolutized so the formal script is location independent.
func NewManager(inputs, includeDirs []string) (*Manager, error) {
	m := &Manager{macros: make(map[string]string)}

	if len(inputs) == 1 && isFileList(inputs[0]) {
		files, err := readFileList(inputs[0])
		if err != nil {
			return nil, err
		}
		m.files = files
	} else {
		for _, input := range inputs {
			abs, err := filepath.Abs(input)
			if err != nil {
				return nil, fmt.Errorf("resolving input %s: %w", input, err)
			}
			m.files = append(m.files, abs)
		}
	}

	for _, dir := range includeDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving include dir %s: %w", dir, err)
		}
		m.includeDirs = append(m.includeDirs, abs)
	}
	return m, nil
}

// Files returns the resolved source file list.
func (m *Manager) Files() []string { return m.files }

// IncludeDirs returns the resolved include directories.
func (m *Manager) IncludeDirs() []string { return m.includeDirs }

// DefineMacro records a pre-defined macro for elaboration.
func (m *Manager) DefineMacro(name, value string) {
	m.macros[name] = value
}

// Macros returns the defines in deterministic name order as NAME=VALUE
// pairs.
func (m *Manager) Macros() []string {
	names := make([]string, 0, len(m.macros))
	for name := range m.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+m.macros[name])
	}
	return pairs
}

// SetJSONFilename records the elaborator output path.
func (m *Manager) SetJSONFilename(path string) { m.jsonFilename = path }

// JSONFilename returns the elaborator output path, empty before
// elaboration.
func (m *Manager) JSONFilename() string { return m.jsonFilename }

// IsJSONInput reports whether path is already elaborator output and can
// skip elaboration entirely.
func IsJSONInput(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func isFileList(path string) bool {
	return fileListExtensions[strings.ToLower(filepath.Ext(path))]
}

func readFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file list: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(dir, line)
		}
		abs, err := filepath.Abs(line)
		if err != nil {
			return nil, fmt.Errorf("resolving list entry %s: %w", line, err)
		}
		files = append(files, abs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file list %s: %w", path, err)
	}
	return files, nil
}
