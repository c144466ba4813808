// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fsm detects finite-state machines in a lowered design graph.
//
// An FSM here is a named storage signal whose set of reaching data
// drivers is exactly a small set of integer constants. Detection layers
// four analyses over the graph:
//
//  1. Register identification: named storage driven by non-blocking
//     assignment.
//  2. Constant-driver analysis: does the register's transitive fan-in
//     terminate exclusively in constants?
//  3. Classification: explicit state versus counter, from the shape of
//     the assign chain.
//  4. Arc extraction: the syntactically provable (from, to) transitions,
//     from comparison sites and control-scope containment.
//
// Detection and arc extraction parallelize over candidates; the graph is
// read-only during both, except for the idempotent Register kind bit.
package fsm

import (
	"sort"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// Arc is one syntactically provable state transition: both endpoints are
// constant nodes carrying the state values.
type Arc struct {
	From *graph.Node
	To   *graph.Node
}

// Result is one detected FSM.
type Result struct {
	// Node is the state register.
	Node *graph.Node

	// ConstSrcs are the reaching constant-source edges: for each, From is
	// the constant and To its immediate consumer in the register's driver
	// chain.
	ConstSrcs []*graph.Edge

	// Counter reports arithmetic next-state logic. Counters contribute
	// reachability properties only.
	Counter bool

	arcs     []Arc
	arcsDone bool
}

// UniqueStates returns the distinct state constants, deduplicated by
// value (a literal and an enum member with equal values are one state,
// with the named node preferred) and sorted by value.
func (r *Result) UniqueStates() []*graph.Node {
	byValue := make(map[int64]*graph.Node)
	for _, e := range r.ConstSrcs {
		c := e.From
		if cur, ok := byValue[c.Value]; !ok || (cur.Name == "" && c.Name != "") {
			byValue[c.Value] = c
		}
	}
	states := make([]*graph.Node, 0, len(byValue))
	for _, n := range byValue {
		states = append(states, n)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Value < states[j].Value })
	return states
}

// CompConsts returns the constants the state register is compared
// against, deduplicated by value and sorted by value. For counters these
// drive the reachability properties.
func (r *Result) CompConsts() []*graph.Node {
	byValue := make(map[int64]*graph.Node)
	for _, ce := range comparisons(r.Node) {
		c := constFromComparison(ce.To)
		if c == nil {
			continue
		}
		if cur, ok := byValue[c.Value]; !ok || (cur.Name == "" && c.Name != "") {
			byValue[c.Value] = c
		}
	}
	consts := make([]*graph.Node, 0, len(byValue))
	for _, n := range byValue {
		consts = append(consts, n)
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i].Value < consts[j].Value })
	return consts
}

// CounterValues returns the observable values of a counter FSM: the
// comparison constants, since a counter's full range is not enumerable
// from its drivers.
func (r *Result) CounterValues() []*graph.Node {
	return r.CompConsts()
}

// SyntaxArcs returns the syntactically provable transitions, computed on
// first use and cached. Safe for concurrent reads only after the arc
// extraction phase has run (see Detector.ExtractArcs).
func (r *Result) SyntaxArcs() []Arc {
	if !r.arcsDone {
		r.arcs = extractArcs(r)
		r.arcsDone = true
	}
	return r.arcs
}

// mergeArcsFrom absorbs another result's arcs, deduplicating by value
// pair. Used by pipeline merging: the head keeps the union.
func (r *Result) mergeArcsFrom(other *Result) {
	seen := make(map[[2]int64]bool, len(r.arcs))
	for _, a := range r.arcs {
		seen[[2]int64{a.From.Value, a.To.Value}] = true
	}
	for _, a := range other.SyntaxArcs() {
		key := [2]int64{a.From.Value, a.To.Value}
		if !seen[key] {
			seen[key] = true
			r.arcs = append(r.arcs, a)
		}
	}
	sortArcs(r.arcs)
}

func sortArcs(arcs []Arc) {
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].From.Value != arcs[j].From.Value {
			return arcs[i].From.Value < arcs[j].From.Value
		}
		return arcs[i].To.Value < arcs[j].To.Value
	})
}
