// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codegen builds the SVA property set and the wrapper module the
// formal tool consumes.
//
// Two artifact families come out of here:
//   - Property values: one SVA cover target each, either single-state
//     reachability or a pairwise transition.
//   - The wrapper module named TOP, which re-exposes the detected top's
//     ports, instantiates it, and carries every property at module scope.
package codegen

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// TopName is the wrapper module's name; every hierarchical handle in the
// emitted properties is rooted here.
const TopName = "TOP"

// PropertyLabelPrefix prefixes cover labels; the log parser keys on it.
const PropertyLabelPrefix = "FSM_STATE_"

const indentation = "  "

// Property is one candidate SVA cover target.
//
// StateVar2/StateValue2 are nil for single-state reachability; when set,
// the property is a transition with the given delay. Delay 0 means a
// combinational implication, >=1 means next-cycle (with ##(delay-1)
// padding beyond one).
type Property struct {
	ID        uint32
	ClockName string
	Delay     uint32

	StateVar1   *graph.Node
	StateValue1 *graph.Node
	StateVar2   *graph.Node
	StateValue2 *graph.Node

	// ShouldBeValid marks transitions found by syntactic extraction,
	// expected to be proven reachable.
	ShouldBeValid bool

	// Valid is set by the formal driver after log parsing.
	Valid bool
}

// Name returns the SVA property identifier, fsm_state_<id>.
func (p *Property) Name() string {
	return fmt.Sprintf("fsm_state_%d", p.ID)
}

// Label returns the cover label, FSM_STATE_<id>.
func (p *Property) Label() string {
	return fmt.Sprintf("%s%d", PropertyLabelPrefix, p.ID)
}

// IsTransition reports whether the property covers a state pair rather
// than a single state.
func (p *Property) IsTransition() bool {
	return p.StateVar2 != nil && p.StateValue2 != nil
}

// String serializes the property as an SVA block:
//
//	property fsm_state_<id>;
//	  @(posedge <clk>) <lhs> <op> <rhs>;
//	endproperty
//	FSM_STATE_<id>: cover property (fsm_state_<id>);
//
// The operator is |-> for delay 0, |=> for delay 1, and |=> ##(delay-1)
// beyond that. Handles root at the wrapper module.
func (p *Property) String() string {
	if p.ClockName == "" {
		panic("codegen: property without a clock")
	}
	if p.StateVar1 == nil || p.StateValue1 == nil {
		panic("codegen: property without a state")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "property %s;\n", p.Name())
	fmt.Fprintf(&b, "%s@(posedge %s) %s == %d",
		indentation, p.ClockName, handle(p.StateVar1), p.StateValue1.Value)
	if p.IsTransition() {
		op := "|->"
		if p.Delay >= 1 {
			op = "|=>"
			if p.Delay > 1 {
				op = fmt.Sprintf("%s ##%d", op, p.Delay-1)
			}
		}
		fmt.Fprintf(&b, " %s %s == %d", op, handle(p.StateVar2), p.StateValue2.Value)
	}
	b.WriteString(";\n")
	b.WriteString("endproperty\n")
	fmt.Fprintf(&b, "%s: cover property (%s);\n", p.Label(), p.Name())
	return b.String()
}

// handle returns the formal tool's address of a signal from the wrapper:
// the wrapper name joined with the signal's hierarchical path.
func handle(n *graph.Node) string {
	return TopName + "." + n.HandleName()
}
