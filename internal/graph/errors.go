// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the typed design graph for hardware elaboration
// analysis.
//
// The graph is a directed multigraph whose nodes are signals, constants,
// operators, control points, assignments, and module instances, and whose
// edges carry assignment and control-flow semantics. It is produced by the
// ast package from an elaborated design and consumed by the fsm and codegen
// packages.
//
// # Ownership Model
//
// The Graph owns every Node and Edge for its lifetime:
//   - Nodes live in an arena slice owned by the Graph; lookups go through
//     a key map (the elaborator's symbol addresses, plus synthetic ids).
//   - Edges are owned by their source Node (EdgesTo); the sink holds a
//     back-reference (EdgesFrom) for fan-in queries.
//   - Nothing is ever deleted. Analyses allocate auxiliary nodes but the
//     graph is append-only.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent mutation. It is designed for
// single-writer access during lowering, then read-only access during
// analysis. Analyses may set Node.Kind bits (idempotent writes) but must
// not add or remove edges. The Select name cache is built lazily under a
// sync.Once so concurrent readers are safe after lowering completes.
//
// # Lifecycle
//
//  1. Create with New()
//  2. Populate via AddNode/AddEdge during AST lowering
//  3. Query with Select, the traversal functions, and the fsm analyses
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound is returned by Select when no node matches the
	// requested hierarchical name.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEmptySelector is returned by Select for an empty name.
	ErrEmptySelector = errors.New("empty hierarchical selector")
)
