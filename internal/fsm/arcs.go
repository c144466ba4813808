// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fsm

import (
	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// extractArcs computes the syntactically provable transition set of an
// explicit-state FSM.
//
// The contract is soundness, not completeness: every emitted arc
// corresponds to a guarded assignment visible in the source. Arcs can be
// missed (comparisons routed through concatenation or slicing abandon the
// derivation), but never fabricated.
func extractArcs(r *Result) []Arc {
	state := r.Node
	seen := make(map[[2]int64]bool)
	var arcs []Arc

	for _, ce := range comparisons(state) {
		comp := ce.To
		from := constFromComparison(comp)
		if from == nil {
			continue
		}
		gates := gatesOf(comp)
		if len(gates) == 0 {
			continue
		}
		for _, e := range r.ConstSrcs {
			assign := e.To
			for _, gate := range gates {
				if !assign.IsChildOf(gate) {
					continue
				}
				if inFalseBranch(assign, gate) {
					continue
				}
				key := [2]int64{from.Value, e.From.Value}
				if !seen[key] {
					seen[key] = true
					arcs = append(arcs, Arc{From: from, To: e.From})
				}
			}
		}
	}
	sortArcs(arcs)
	return arcs
}

// comparisons finds every comparison-against-constant rooted at the state
// register: assign edges whose target carries the Equal operator and is
// fed by a constant. The walk never descends past a populated expression
// (a multi-input node with a real operator) so unrelated arithmetic stays
// out of scope.
func comparisons(state *graph.Node) []*graph.Edge {
	match := func(e *graph.Edge) bool {
		return e.IsAssign() &&
			e.To.Op == graph.OpEqual &&
			constFromComparison(e.To) != nil
	}
	terminate := func(e *graph.Edge) bool {
		return e.IsAssign() &&
			e.To.Op != graph.OpIgnore &&
			len(e.To.EdgesFrom) > 1
	}
	return graph.FindConnectionCond(state, match, terminate)
}

// constFromComparison returns the constant feeding an Equal node,
// directly or through the short expression chain a case item builds.
func constFromComparison(comp *graph.Node) *graph.Node {
	for _, e := range comp.EdgesFrom {
		if !e.IsAssign() {
			continue
		}
		if e.From.Kind.Has(graph.KindConstant) {
			return e.From
		}
	}
	for _, e := range comp.EdgesFrom {
		if !e.IsAssign() {
			continue
		}
		for _, e2 := range e.From.EdgesFrom {
			if e2.IsAssign() && e2.From.Kind.Has(graph.KindConstant) {
				return e2.From
			}
		}
	}
	return nil
}

// gatesOf derives the control nodes gated by a comparison.
//
// Three shapes:
//   - the comparison node is itself a control point (case items);
//   - its fan-out feeds a control node directly (if statements);
//   - its fan-out lands in a named wire first (front ends that
//     materialize a boolean), in which case the gate set is every control
//     reached through and/or combinations. Negations block propagation:
//     a negated comparison gates the opposite branch, which this
//     derivation must not claim.
//
// A comparison routed through reshaping (concatenation, slicing) returns
// no gates at all; the transition is simply not provable here.
func gatesOf(comp *graph.Node) []*graph.Node {
	if comp.Kind.Has(graph.KindControl) {
		return []*graph.Node{comp}
	}

	var out *graph.Node
	for _, e := range comp.EdgesTo {
		if e.IsAssign() {
			out = e.To
			break
		}
	}
	if out == nil {
		return nil
	}
	if out.Kind.Has(graph.KindControl) {
		return []*graph.Node{out}
	}

	// boolean-wire shape: BFS outward through and/or combinations
	var gates []*graph.Node
	visited := map[*graph.Node]bool{out: true}
	queue := []*graph.Node{out}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cur.EdgesTo {
			if e.Kind == graph.EdgeSlice {
				return nil
			}
			t := e.To
			if visited[t] {
				continue
			}
			if t.Kind.Has(graph.KindControl) {
				if t.Parent != nil {
					gates = append(gates, t)
				}
				continue
			}
			switch {
			case t.Op == graph.OpLogicalNot || t.Op == graph.OpBitwiseNot:
				// blocked: the negation inverts the gating sense
				continue
			case t.Op == graph.OpBinaryAnd || t.Op == graph.OpBinaryOr:
			case t.Kind.Has(graph.KindAssign):
			case t.Kind.Has(graph.KindVariable) && t.Name != "":
			case t.Kind == graph.KindNet && t.Name != "":
			default:
				// reshaping: abandon the whole derivation
				return nil
			}
			visited[t] = true
			queue = append(queue, t)
		}
	}
	return gates
}

// inFalseBranch reports whether the assignment hangs under the gate's
// false-branch successor: those assignments execute when the comparison
// fails, so they prove nothing about this arc.
func inFalseBranch(assign, gate *graph.Node) bool {
	for _, e := range gate.EdgesTo {
		if e.Kind == graph.EdgeFalse && (assign == e.To || assign.IsChildOf(e.To)) {
			return true
		}
	}
	return false
}
