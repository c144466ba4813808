// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast lowers the external elaborator's AST (JSON) into the design
// graph.
//
// The AST is a tree of kind-tagged records. Lower dispatches over the kind
// string of every record, producing graph nodes and edges; a running parent
// argument provides the enclosing module or control scope. The vocabulary
// of recognized kinds, and what each lowers to, is documented on the
// dispatch function in lower.go.
//
// # Failure Semantics
//
// A required field missing from a record we dispatched on is a schema
// mismatch: the lowering stops and Lower returns a *SchemaError naming the
// AST kind and the field. Locally-recoverable anomalies (unknown kinds,
// unsupported custom tasks, over-long string literals, constant
// replication) log a one-shot warning and lowering continues: unknown
// kinds lower to nothing, a custom task still lowers to its call node, a
// long string literal to a truncated constant, and a replication to its
// operand.
package ast

import (
	"errors"
	"fmt"
)

// ErrInvalidRoot is returned when the document root is not the
// elaborator's "$root" compilation unit.
var ErrInvalidRoot = errors.New("invalid elaborator output: root is not $root")

// SchemaError reports a required field missing from an AST record.
type SchemaError struct {
	// Kind is the AST kind of the record being lowered.
	Kind string

	// Field is the missing or ill-typed field.
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ast schema mismatch: kind %q missing field %q", e.Kind, e.Field)
}
