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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

const ternaryModule = `{
  "name": "$root",
  "members": [
    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
     "members": [
       {"kind": "Port", "name": "sel", "addr": 2, "type": "logic", "direction": "In"},
       {"kind": "Variable", "name": "q", "addr": 3, "type": "logic"},
       {"kind": "ContinuousAssign", "assignment": {
          "kind": "Assignment", "isNonBlocking": false,
          "left": {"kind": "NamedValue", "symbol": "3 q"},
          "right": {"kind": "ConditionalOp",
            "pred":  {"kind": "NamedValue", "symbol": "2 sel"},
            "left":  {"kind": "IntegerLiteral", "constant": "1'b1"},
            "right": {"kind": "IntegerLiteral", "constant": "1'b0"}}}}
     ]}
  ]
}`

func TestLower_Ternary(t *testing.T) {
	g := lowerDoc(t, ternaryModule)

	q := mustSelect(t, g, "mod.q")
	require.NotEmpty(t, q.EdgesFrom)

	// q <- assign <- selector (Control|Assign, OpTernary)
	assign := q.EdgesFrom[0].From
	require.True(t, assign.Kind.Has(graph.KindAssign))
	var sel *graph.Node
	for _, e := range assign.EdgesFrom {
		if e.From.Kind.Has(graph.KindControl) && e.From.Kind.Has(graph.KindAssign) {
			sel = e.From
		}
	}
	require.NotNil(t, sel, "ternary selector node")
	assert.Equal(t, graph.OpTernary, sel.Op)

	// the predicate reaches the selector through a plain control node
	selPort := mustSelect(t, g, "mod.sel")
	assert.True(t, graph.HasPath(selPort, sel))
}

const selectModule = `{
  "name": "$root",
  "members": [
    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
     "members": [
       {"kind": "Variable", "name": "bus", "addr": 2, "type": "logic [7:0]"},
       {"kind": "Variable", "name": "idx", "addr": 3, "type": "logic [2:0]"},
       {"kind": "Variable", "name": "bit_out", "addr": 4, "type": "logic"},
       {"kind": "Variable", "name": "nib_out", "addr": 5, "type": "logic [3:0]"},
       {"kind": "ContinuousAssign", "assignment": {
          "kind": "Assignment", "isNonBlocking": false,
          "left": {"kind": "NamedValue", "symbol": "4 bit_out"},
          "right": {"kind": "ElementSelect",
            "value": {"kind": "NamedValue", "symbol": "2 bus"},
            "selector": {"kind": "NamedValue", "symbol": "3 idx"}}}},
       {"kind": "ContinuousAssign", "assignment": {
          "kind": "Assignment", "isNonBlocking": false,
          "left": {"kind": "NamedValue", "symbol": "5 nib_out"},
          "right": {"kind": "RangeSelect",
            "value": {"kind": "NamedValue", "symbol": "2 bus"},
            "left":  {"kind": "IntegerLiteral", "constant": "3"},
            "right": {"kind": "IntegerLiteral", "constant": "0"}}}}
     ]}
  ]
}`

func TestLower_Selects(t *testing.T) {
	g := lowerDoc(t, selectModule)

	bus := mustSelect(t, g, "mod.bus")
	idx := mustSelect(t, g, "mod.idx")
	bitOut := mustSelect(t, g, "mod.bit_out")

	// the selector feeds the selected value over a slice edge; the value
	// itself flows on to the destination
	sliceEdges := 0
	for _, e := range bus.EdgesFrom {
		if e.Kind == graph.EdgeSlice {
			sliceEdges++
		}
	}
	assert.Equal(t, 3, sliceEdges, "one element index, two range bounds")
	require.NotEmpty(t, idx.EdgesTo)
	assert.Equal(t, graph.EdgeSlice, idx.EdgesTo[0].Kind)

	assert.True(t, graph.HasPath(bus, bitOut))
}

const concatCallModule = `{
  "name": "$root",
  "members": [
    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
     "members": [
       {"kind": "Variable", "name": "a", "addr": 2, "type": "logic"},
       {"kind": "Variable", "name": "b", "addr": 3, "type": "logic"},
       {"kind": "Variable", "name": "w", "addr": 4, "type": "logic [1:0]"},
       {"kind": "ContinuousAssign", "assignment": {
          "kind": "Assignment", "isNonBlocking": false,
          "left": {"kind": "NamedValue", "symbol": "4 w"},
          "right": {"kind": "Concatenation", "operands": [
            {"kind": "NamedValue", "symbol": "2 a"},
            {"kind": "NamedValue", "symbol": "3 b"}]}}},
       {"kind": "ProceduralBlock", "addr": 5, "body": {
          "kind": "ExpressionStatement", "expr": {
            "kind": "Call", "subroutine": "$display",
            "arguments": [{"kind": "NamedValue", "symbol": "4 w"}]}}},
       {"kind": "ProceduralBlock", "addr": 6, "body": {
          "kind": "ExpressionStatement", "expr": {
            "kind": "Call", "subroutine": "77 my_task",
            "arguments": []}}}
     ]}
  ]
}`

func TestLower_ConcatenationAndCalls(t *testing.T) {
	g := lowerDoc(t, concatCallModule)

	a := mustSelect(t, g, "mod.a")
	b := mustSelect(t, g, "mod.b")
	w := mustSelect(t, g, "mod.w")

	// both operands reach the destination through the concat node
	assert.True(t, graph.HasPath(a, w))
	assert.True(t, graph.HasPath(b, w))

	// the display argument flows into a synthetic call node
	foundCall := false
	for _, e := range w.EdgesTo {
		if len(e.To.EdgesTo) == 0 && !e.To.Kind.Has(graph.KindVariable) {
			foundCall = true
		}
	}
	assert.True(t, foundCall, "call node receives the argument")
}

const memberAccessModule = `{
  "name": "$root",
  "members": [
    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
     "members": [
       {"kind": "Variable", "name": "pkt", "addr": 2,
        "type": "struct packed{logic hdr;logic body;}t$1"},
       {"kind": "Variable", "name": "hdr_out", "addr": 3, "type": "logic"},
       {"kind": "ContinuousAssign", "assignment": {
          "kind": "Assignment", "isNonBlocking": false,
          "left": {"kind": "NamedValue", "symbol": "3 hdr_out"},
          "right": {"kind": "MemberAccess",
            "field": "900 hdr",
            "value": {"kind": "NamedValue", "symbol": "2 pkt"}}}}
     ]}
  ]
}`

func TestLower_MemberAccess(t *testing.T) {
	g := lowerDoc(t, memberAccessModule)

	hdr := mustSelect(t, g, "mod.pkt.hdr")
	hdrOut := mustSelect(t, g, "mod.hdr_out")
	assert.True(t, graph.HasPath(hdr, hdrOut))
}

const generateModule = `{
  "name": "$root",
  "members": [
    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
     "members": [
       {"kind": "Genvar", "name": "gi", "addr": 2},
       {"kind": "GenerateBlockArray", "name": "blk", "members": [
         {"kind": "GenerateBlock", "isInstantiated": true, "members": [
           {"kind": "Parameter", "name": "gi", "addr": 10, "value": "0", "isPort": false},
           {"kind": "Variable", "name": "x", "addr": 11, "type": "logic"}
         ]},
         {"kind": "GenerateBlock", "isInstantiated": true, "members": [
           {"kind": "Parameter", "name": "gi", "addr": 20, "value": "1", "isPort": false},
           {"kind": "Variable", "name": "x", "addr": 21, "type": "logic"}
         ]}
       ]},
       {"kind": "GenerateBlock", "isInstantiated": false, "members": [
         {"kind": "Variable", "name": "dead", "addr": 30, "type": "logic"}
       ]}
     ]}
  ]
}`

func TestLower_GenerateBlockArray(t *testing.T) {
	g := lowerDoc(t, generateModule)

	// one synthetic module per instantiated block, indexed by the loop
	// parameter
	for i := 0; i < 2; i++ {
		n := mustSelect(t, g, "mod.blk["+string(rune('0'+i))+"].x")
		assert.Equal(t, "x", n.Name)
	}

	// uninstantiated blocks lower to nothing
	_, err := g.Select("mod.dead")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

const loopModule = `{
  "name": "$root",
  "members": [
    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
     "members": [
       {"kind": "Variable", "name": "src", "addr": 2, "type": "logic [3:0]"},
       {"kind": "Variable", "name": "dst", "addr": 3, "type": "logic [3:0]"},
       {"kind": "ProceduralBlock", "addr": 4, "body": {
          "kind": "ForLoop", "body": {
            "kind": "ExpressionStatement", "expr": {
              "kind": "Assignment", "isNonBlocking": true,
              "left": {"kind": "NamedValue", "symbol": "3 dst"},
              "right": {"kind": "NamedValue", "symbol": "2 src"}}}}}
     ]}
  ]
}`

func TestLower_ForLoopBodyOnce(t *testing.T) {
	g := lowerDoc(t, loopModule)

	src := mustSelect(t, g, "mod.src")
	dst := mustSelect(t, g, "mod.dst")
	assert.True(t, graph.HasPath(src, dst))
	// no unrolling: a single assignment node carries the loop body
	assert.Len(t, dst.EdgesFrom, 1)
}

func TestLower_UnaryOp(t *testing.T) {
	src := `{
	  "name": "$root",
	  "members": [
	    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
	     "members": [
	       {"kind": "Variable", "name": "a", "addr": 2, "type": "logic"},
	       {"kind": "Variable", "name": "q", "addr": 3, "type": "logic"},
	       {"kind": "ContinuousAssign", "assignment": {
	          "kind": "Assignment", "isNonBlocking": false,
	          "left": {"kind": "NamedValue", "symbol": "3 q"},
	          "right": {"kind": "UnaryOp", "op": "LogicalNot",
	            "operand": {"kind": "NamedValue", "symbol": "2 a"}}}}
	     ]}
	  ]
	}`
	g := lowerDoc(t, src)

	a := mustSelect(t, g, "mod.a")
	require.NotEmpty(t, a.EdgesTo)
	assert.Equal(t, graph.OpLogicalNot, a.EdgesTo[0].To.Op)
}

func TestLower_BinaryOpMapping(t *testing.T) {
	src := `{
	  "name": "$root",
	  "members": [
	    {"kind": "ModuleInstance", "name": "mod", "addr": 1, "definition": "100 mod",
	     "members": [
	       {"kind": "Variable", "name": "a", "addr": 2, "type": "logic [3:0]"},
	       {"kind": "Variable", "name": "q", "addr": 3, "type": "logic [3:0]"},
	       {"kind": "ContinuousAssign", "assignment": {
	          "kind": "Assignment", "isNonBlocking": false,
	          "left": {"kind": "NamedValue", "symbol": "3 q"},
	          "right": {"kind": "BinaryOp", "op": "Add",
	            "left":  {"kind": "NamedValue", "symbol": "2 a"},
	            "right": {"kind": "IntegerLiteral", "constant": "1"}}}}
	     ]}
	  ]
	}`
	g := lowerDoc(t, src)

	a := mustSelect(t, g, "mod.a")
	require.NotEmpty(t, a.EdgesTo)
	add := a.EdgesTo[0].To
	assert.Equal(t, graph.OpAdd, add.Op)
	assert.Len(t, add.EdgesFrom, 2)
}
