// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fsmdetect/internal/fsm"
	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// testDesign is a hand-built two-state FSM in a top module with clock
// and reset ports, the shape the lowering produces for a case statement.
type testDesign struct {
	g     *graph.Graph
	mod   *graph.Node
	state *graph.Node
}

func buildDesign(t *testing.T, resetPort string) *testDesign {
	t.Helper()
	g := graph.New()
	mod := g.AddNode(1, "mod", graph.WithKind(graph.KindModule))
	mod.ModuleDef = &graph.ModuleDef{Name: "mod", Params: map[string]*graph.Node{}}

	addPort := func(key uint64, name string) *graph.Node {
		p := g.AddNode(key, name,
			graph.WithKind(graph.KindVariable), graph.WithParent(mod))
		p.Port = graph.PortInput
		p.WireType = "logic"
		return p
	}
	addPort(2, "clk")
	if resetPort != "" {
		addPort(3, resetPort)
	}
	out := g.AddNode(4, "out",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	out.Port = graph.PortOutput
	out.WireType = "logic"

	state := g.AddNode(5, "state",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	red := g.AddNode(50, "Red", graph.WithKind(graph.KindConstant))
	blue := g.AddNode(51, "Blue", graph.WithKind(graph.KindConstant))
	red.Value = 0
	blue.Value = 1

	item := func(compare, drive *graph.Node) {
		expr := g.AddNode(g.FreeID(), "", graph.WithParent(mod))
		g.AddEdge(compare, expr, graph.EdgeBlocking)
		ctrl := g.AddNode(g.FreeID(), "",
			graph.WithKind(graph.KindControl), graph.WithParent(mod))
		ctrl.Op = graph.OpEqual
		g.AddEdge(expr, ctrl, graph.EdgeBlocking)
		g.AddEdge(state, ctrl, graph.EdgeBlocking)

		assign := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindAssign))
		assign.Parent = ctrl
		g.AddEdge(drive, assign, graph.EdgeBlocking)
		g.AddEdge(ctrl, assign, graph.EdgeControl)
		g.AddEdge(assign, state, graph.EdgeNonBlocking)
	}
	item(red, blue)
	item(blue, red)

	return &testDesign{g: g, mod: mod, state: state}
}

func detect(t *testing.T, g *graph.Graph) []*fsm.Result {
	t.Helper()
	d := fsm.NewDetector(fsm.WithWorkers(2))
	results, err := d.Identify(context.Background(), g)
	require.NoError(t, err)
	d.ExtractArcs(context.Background(), results)
	return results
}

func TestNewVerilogModule_SingleTop(t *testing.T) {
	design := buildDesign(t, "rst")

	m, err := NewVerilogModule(design.g, "")
	require.NoError(t, err)
	assert.Equal(t, "mod", m.Name)

	ports := m.Ports()
	require.Len(t, ports, 3)
	assert.Equal(t, "clk", ports[0].Name)
	assert.Equal(t, "out", ports[1].Name)
	assert.Equal(t, "rst", ports[2].Name)
}

func TestNewVerilogModule_NamedTopMissing(t *testing.T) {
	design := buildDesign(t, "rst")
	_, err := NewVerilogModule(design.g, "nope")
	assert.Error(t, err)
}

func TestNewVerilogModule_AmbiguousTopPicksFirst(t *testing.T) {
	design := buildDesign(t, "rst")
	design.g.AddNode(90, "aaa_top", graph.WithKind(graph.KindModule))

	m, err := NewVerilogModule(design.g, "")
	require.NoError(t, err)
	assert.Equal(t, "aaa_top", m.Name, "first in name order wins")
}

func TestAnalyzePins_ActiveLowReset(t *testing.T) {
	design := buildDesign(t, "rst_n")

	m, err := NewVerilogModule(design.g, "")
	require.NoError(t, err)
	m.AnalyzePins()

	assert.Equal(t, "clk", m.ClockName())
	assert.Equal(t, "rst_n", m.ResetName())
	assert.Equal(t, ResetNegedge, m.ResetKindResolved())
}

func TestAnalyzePins_EventSinkFallback(t *testing.T) {
	design := buildDesign(t, "rst")
	g := design.g

	// the reset fans out to an edge-sensitive signal
	rst, err := g.Select("mod.rst")
	require.NoError(t, err)
	sink := g.AddNode(g.FreeID(), "rst_sync")
	sink.Event = graph.EventNegedge
	g.AddEdge(rst, sink, graph.EdgeBlocking)

	m, err := NewVerilogModule(g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	assert.Equal(t, ResetNegedge, m.ResetKindResolved())
}

func TestAnalyzePins_NoResetSignalKeepsDefault(t *testing.T) {
	design := buildDesign(t, "")

	m, err := NewVerilogModule(design.g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	assert.Equal(t, "clk", m.ClockName())
	assert.Empty(t, m.ResetName())
	assert.Equal(t, ResetDefault, m.ResetKindResolved())
}

func TestCreateProperties_ExplicitFSM(t *testing.T) {
	design := buildDesign(t, "rst")
	results := detect(t, design.g)
	require.Len(t, results, 1)

	m, err := NewVerilogModule(design.g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	m.SetFSMResults(results)
	m.CreateProperties(context.Background(), 2)

	props := m.Properties()
	// 2 reachability + 2 ordered distinct transitions
	require.Len(t, props, 4)

	reach, trans := 0, 0
	for _, p := range props {
		if p.IsTransition() {
			trans++
			assert.Equal(t, uint32(1), p.Delay)
			assert.True(t, p.ShouldBeValid, "both toggle arcs are proven")
		} else {
			reach++
			assert.Equal(t, uint32(0), p.Delay)
		}
	}
	assert.Equal(t, 2, reach)
	assert.Equal(t, 2, trans)

	// ids are dense and ordered
	for i, p := range props {
		assert.Equal(t, uint32(i), p.ID)
	}

	lookup := m.TransitionProperty(design.state, 0, 1)
	require.NotNil(t, lookup)
	assert.True(t, lookup.ShouldBeValid)
}

// A register driven by two constants with no comparisons still yields
// the full property grid, with nothing marked provable.
func TestCreateProperties_NoComparisons(t *testing.T) {
	g := graph.New()
	mod := g.AddNode(1, "mod", graph.WithKind(graph.KindModule))
	clk := g.AddNode(2, "clk",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	clk.Port = graph.PortInput
	in := g.AddNode(3, "in",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	in.Port = graph.PortInput

	state := g.AddNode(4, "state",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	a := g.AddNode(50, "", graph.WithKind(graph.KindConstant))
	b := g.AddNode(51, "", graph.WithKind(graph.KindConstant))
	a.Value = 0
	b.Value = 1

	// the branch condition mixes state and in, with no equality anywhere
	mix := g.AddNode(g.FreeID(), "")
	g.AddEdge(state, mix, graph.EdgeBlocking)
	g.AddEdge(in, mix, graph.EdgeBlocking)
	ctrl := g.AddNode(g.FreeID(), "",
		graph.WithKind(graph.KindControl), graph.WithParent(mod))
	g.AddEdge(mix, ctrl, graph.EdgeBlocking)

	wire := func(drive *graph.Node, parent *graph.Node) {
		assign := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindAssign))
		assign.Parent = parent
		g.AddEdge(drive, assign, graph.EdgeBlocking)
		g.AddEdge(parent, assign, graph.EdgeControl)
		g.AddEdge(assign, state, graph.EdgeNonBlocking)
	}
	wire(a, ctrl)
	negate := g.AddNode(g.FreeID(), "",
		graph.WithKind(graph.KindControl), graph.WithParent(ctrl))
	negate.Op = graph.OpLogicalNot
	g.AddEdge(ctrl, negate, graph.EdgeFalse)
	wire(b, negate)

	results := detect(t, g)
	require.Len(t, results, 1)
	assert.False(t, results[0].Counter)
	assert.Empty(t, results[0].SyntaxArcs())

	m, err := NewVerilogModule(g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	m.SetFSMResults(results)
	m.CreateProperties(context.Background(), 1)

	props := m.Properties()
	require.Len(t, props, 4)
	for _, p := range props {
		assert.False(t, p.ShouldBeValid)
	}
}

// A counter with a wraparound comparison gets reachability properties
// only, and only for the compared value.
func TestCreateProperties_Counter(t *testing.T) {
	g := graph.New()
	mod := g.AddNode(1, "mod", graph.WithKind(graph.KindModule))
	clk := g.AddNode(2, "clk",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	clk.Port = graph.PortInput

	cnt := g.AddNode(3, "cnt",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	one := g.AddNode(4, "", graph.WithKind(graph.KindConstant))
	one.Value = 1
	zero := g.AddNode(5, "", graph.WithKind(graph.KindConstant))
	max := g.AddNode(6, "MAX", graph.WithKind(graph.KindConstant))
	max.Value = 3

	// cnt + 1 -> cnt
	add := g.AddNode(g.FreeID(), "")
	add.Op = graph.OpAdd
	g.AddEdge(cnt, add, graph.EdgeBlocking)
	g.AddEdge(one, add, graph.EdgeBlocking)
	inc := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindAssign))
	g.AddEdge(add, inc, graph.EdgeBlocking)
	g.AddEdge(inc, cnt, graph.EdgeNonBlocking)

	// if (cnt == MAX) cnt <= 0
	eq := g.AddNode(g.FreeID(), "")
	eq.Op = graph.OpEqual
	g.AddEdge(cnt, eq, graph.EdgeBlocking)
	g.AddEdge(max, eq, graph.EdgeBlocking)
	ctrl := g.AddNode(g.FreeID(), "",
		graph.WithKind(graph.KindControl), graph.WithParent(mod))
	g.AddEdge(eq, ctrl, graph.EdgeBlocking)
	wrap := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindAssign))
	wrap.Parent = ctrl
	g.AddEdge(zero, wrap, graph.EdgeBlocking)
	g.AddEdge(ctrl, wrap, graph.EdgeControl)
	g.AddEdge(wrap, cnt, graph.EdgeNonBlocking)

	results := detect(t, g)
	require.Len(t, results, 1)
	require.True(t, results[0].Counter)

	m, err := NewVerilogModule(g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	m.SetFSMResults(results)
	m.CreateProperties(context.Background(), 1)

	props := m.Properties()
	require.Len(t, props, 1)
	assert.False(t, props[0].IsTransition())
	assert.Equal(t, int64(3), props[0].StateValue1.Value)
}

func TestCreateProperties_CrossProperties(t *testing.T) {
	design := buildDesign(t, "rst")
	g := design.g

	// second FSM influenced by the first
	other := g.AddNode(g.FreeID(), "other",
		graph.WithKind(graph.KindVariable|graph.KindRegister),
		graph.WithParent(design.mod))
	results := detect(t, g)
	require.Len(t, results, 1)

	zero := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindConstant))
	oneC := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindConstant))
	oneC.Value = 1
	a1 := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindAssign))
	a2 := g.AddNode(g.FreeID(), "", graph.WithKind(graph.KindAssign))
	e1 := g.AddEdge(zero, a1, graph.EdgeBlocking)
	e2 := g.AddEdge(oneC, a2, graph.EdgeBlocking)
	g.AddEdge(a1, other, graph.EdgeNonBlocking)
	g.AddEdge(a2, other, graph.EdgeNonBlocking)

	otherResult := &fsm.Result{Node: other, ConstSrcs: []*graph.Edge{e1, e2}}

	m, err := NewVerilogModule(g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	m.SetFSMResults(results)
	m.SetCouplings([]fsm.Coupling{
		{FSM: results[0], Linked: []*fsm.Result{otherResult}},
	})
	m.CreateProperties(context.Background(), 2)

	var cross []*Property
	for _, p := range m.Properties() {
		if p.IsTransition() && p.Delay == 0 {
			cross = append(cross, p)
		}
	}
	// 2 states x 2 states
	require.Len(t, cross, 4)
	for _, p := range cross {
		assert.Same(t, design.state, p.StateVar1)
		assert.Same(t, other, p.StateVar2)
	}
}

func TestProperty_String(t *testing.T) {
	g := graph.New()
	mod := g.AddNode(1, "mod", graph.WithKind(graph.KindModule))
	state := g.AddNode(2, "state",
		graph.WithKind(graph.KindVariable), graph.WithParent(mod))
	val := g.AddNode(3, "", graph.WithKind(graph.KindConstant))
	val.Value = 2

	p := &Property{ID: 7, ClockName: "clk", StateVar1: state, StateValue1: val}
	text := p.String()
	assert.Contains(t, text, "property fsm_state_7;")
	assert.Contains(t, text, "@(posedge clk) TOP.mod.state == 2;")
	assert.Contains(t, text, "FSM_STATE_7: cover property (fsm_state_7);")

	next := g.AddNode(4, "", graph.WithKind(graph.KindConstant))
	next.Value = 3
	p2 := &Property{
		ID: 8, ClockName: "clk", Delay: 1,
		StateVar1: state, StateValue1: val,
		StateVar2: state, StateValue2: next,
	}
	assert.Contains(t, p2.String(),
		"TOP.mod.state == 2 |=> TOP.mod.state == 3;")

	p2.Delay = 3
	assert.Contains(t, p2.String(), "|=> ##2")

	p2.Delay = 0
	assert.Contains(t, p2.String(), "|->")
}

func TestWrapper_String(t *testing.T) {
	design := buildDesign(t, "rst")
	results := detect(t, design.g)

	m, err := NewVerilogModule(design.g, "")
	require.NoError(t, err)
	m.AnalyzePins()
	m.SetFSMResults(results)
	m.SetParamOverride("WIDTH", "8")
	m.CreateProperties(context.Background(), 1)

	text := m.String()
	assert.Contains(t, text, "module TOP(")
	assert.Contains(t, text, "input logic clk,")
	assert.Contains(t, text, "output logic out")
	assert.Contains(t, text, "mod #(.WIDTH(8)) mod (")
	assert.Contains(t, text, ".clk(clk)")
	assert.Contains(t, text, "endmodule")
	assert.Contains(t, text, "FSM_STATE_0: cover property")
}
