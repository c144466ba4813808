// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fsmdetect/internal/fsm"
	"github.com/AleutianAI/fsmdetect/internal/graph"
)

func buildResult(t *testing.T) (*fsm.Result, *fsm.Result) {
	t.Helper()
	g := graph.New()
	mod := g.AddNode(1, "mod", graph.WithKind(graph.KindModule))
	state := g.AddNode(2, "state",
		graph.WithKind(graph.KindVariable|graph.KindRegister),
		graph.WithParent(mod))
	other := g.AddNode(3, "other",
		graph.WithKind(graph.KindVariable|graph.KindRegister),
		graph.WithParent(mod))

	idle := g.AddNode(4, "IDLE", graph.WithKind(graph.KindConstant))
	run := g.AddNode(5, "RUN", graph.WithKind(graph.KindConstant))
	run.Value = 1
	a1 := g.AddNode(6, "", graph.WithKind(graph.KindAssign))
	a2 := g.AddNode(7, "", graph.WithKind(graph.KindAssign))
	e1 := g.AddEdge(idle, a1, graph.EdgeBlocking)
	e2 := g.AddEdge(run, a2, graph.EdgeBlocking)
	g.AddEdge(a1, state, graph.EdgeNonBlocking)
	g.AddEdge(a2, state, graph.EdgeNonBlocking)

	return &fsm.Result{Node: state, ConstSrcs: []*graph.Edge{e1, e2}},
		&fsm.Result{Node: other}
}

func TestBuild(t *testing.T) {
	r, other := buildResult(t)

	entries := Build([]*fsm.Result{r},
		[]fsm.Coupling{{FSM: r, Linked: []*fsm.Result{other}}})

	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "mod.state", e.Name)
	require.Len(t, e.States, 2)
	assert.Equal(t, State{Value: 0, Name: "IDLE"}, e.States[0])
	assert.Equal(t, State{Value: 1, Name: "RUN"}, e.States[1])
	assert.Equal(t, []string{"mod.other"}, e.Linked)
}

func TestBuild_EmptyLinkedIsArray(t *testing.T) {
	r, _ := buildResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Build([]*fsm.Result{r}, nil)))

	// linked must serialize as [] rather than null
	assert.Contains(t, buf.String(), `"linked": []`)

	var decoded []Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.NotNil(t, decoded[0].Linked)
}

func TestWriteText(t *testing.T) {
	r, other := buildResult(t)

	var buf bytes.Buffer
	WriteText(&buf, []*fsm.Result{r, other},
		[]fsm.Coupling{{FSM: r, Linked: []*fsm.Result{other}}})

	out := buf.String()
	assert.Contains(t, out, "State variable name: mod.state")
	assert.Contains(t, out, "State: IDLE (0)")
	assert.Contains(t, out, "State: RUN (1)")
	assert.Contains(t, out, "mod.state:")
	assert.Contains(t, out, "  - mod.other")
}

func TestWriteText_Counter(t *testing.T) {
	r, _ := buildResult(t)
	r.Counter = true

	var buf bytes.Buffer
	WriteText(&buf, []*fsm.Result{r}, nil)
	assert.Contains(t, buf.String(), "State: counter")
}
