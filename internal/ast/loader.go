// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// record is one kind-tagged AST object.
type record = map[string]any

// Load reads an elaborator JSON file into its generic tree form. Numbers
// are kept as json.Number so 64-bit symbol addresses survive intact.
func Load(path string) (record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening elaborator output: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var doc record
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing elaborator output %s: %w", path, err)
	}
	return doc, nil
}

// schemaPanic aborts the lowering with a *SchemaError; Lower recovers it
// into an error return. The panic keeps the dispatch free of error
// plumbing on a path that indicates elaborator breakage, not user input.
func schemaPanic(kind, field string) {
	panic(&SchemaError{Kind: kind, Field: field})
}

// kindOf returns the record's kind tag.
func kindOf(v record) string {
	s, ok := v["kind"].(string)
	if !ok {
		schemaPanic("<unknown>", "kind")
	}
	return s
}

// fieldRecord returns a required child object.
func fieldRecord(v record, kind, name string) record {
	child, ok := v[name].(map[string]any)
	if !ok {
		schemaPanic(kind, name)
	}
	return child
}

// optRecord returns a child object when present.
func optRecord(v record, name string) (record, bool) {
	child, ok := v[name].(map[string]any)
	return child, ok
}

// fieldString returns a required string field.
func fieldString(v record, kind, name string) string {
	s, ok := v[name].(string)
	if !ok {
		schemaPanic(kind, name)
	}
	return s
}

// optString returns a string field when present.
func optString(v record, name string) (string, bool) {
	s, ok := v[name].(string)
	return s, ok
}

// fieldBool returns a required boolean field.
func fieldBool(v record, kind, name string) bool {
	b, ok := v[name].(bool)
	if !ok {
		schemaPanic(kind, name)
	}
	return b
}

// fieldArray returns a required array field.
func fieldArray(v record, kind, name string) []any {
	a, ok := v[name].([]any)
	if !ok {
		schemaPanic(kind, name)
	}
	return a
}

// fieldAddr returns the record's integer addr, the graph key of every
// scope-introducing node.
func fieldAddr(v record, kind string) uint64 {
	num, ok := v["addr"].(json.Number)
	if !ok {
		schemaPanic(kind, "addr")
	}
	addr, err := strconv.ParseUint(num.String(), 10, 64)
	if err != nil {
		schemaPanic(kind, "addr")
	}
	return addr
}

// hasField reports field presence without type checking.
func hasField(v record, name string) bool {
	_, ok := v[name]
	return ok
}

// symbolAddr extracts the address from an "<address> <name>" symbol
// reference.
func symbolAddr(kind, symbol string) uint64 {
	fields := strings.Fields(symbol)
	if len(fields) != 2 {
		schemaPanic(kind, "symbol")
	}
	addr, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		schemaPanic(kind, "symbol")
	}
	return addr
}

// symbolName extracts the name from an "<address> <name>" symbol
// reference.
func symbolName(kind, symbol string) string {
	fields := strings.Fields(symbol)
	if len(fields) != 2 {
		schemaPanic(kind, "symbol")
	}
	return fields[1]
}
