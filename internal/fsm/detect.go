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
	"context"
	"runtime"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// DefaultWorkers is the default analysis pool size: half the hardware
// threads, at least one.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// Detector runs the FSM analyses over one graph.
type Detector struct {
	workers int
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithWorkers overrides the analysis pool size.
func WithWorkers(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDetector creates a detector with the default worker count.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{workers: DefaultWorkers()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IdentifyRegisters promotes storage nodes to registers: named nets and
// variables with at least one non-blocking fan-in and no blocking fan-in
// from an assignment node (combinational nets assign with blocking
// edges). The Register kind bit is idempotent; re-running is a no-op.
func IdentifyRegisters(g *graph.Graph) []*graph.Node {
	var registers []*graph.Node
	for _, n := range g.Nodes() {
		if n.Name == "" {
			continue
		}
		if !n.Kind.Has(graph.KindNet) && !n.Kind.Has(graph.KindVariable) {
			continue
		}
		if len(n.EdgesFrom) == 0 {
			continue
		}
		nonBlocking, blockingAssign := false, false
		for _, e := range n.EdgesFrom {
			switch {
			case e.Kind == graph.EdgeNonBlocking:
				nonBlocking = true
			case e.Kind == graph.EdgeBlocking && e.From.Kind.Has(graph.KindAssign):
				blockingAssign = true
			}
		}
		if nonBlocking && !blockingAssign {
			n.Kind |= graph.KindRegister
			registers = append(registers, n)
		}
	}
	return registers
}

// ConstantSources walks the register's transitive fan-in and collects the
// reaching constant-source edges. ok is false when any terminal fan-in is
// not a constant, i.e. the node is not constant-driven.
//
// The walk follows assign, variable, and expression nodes:
//   - slice edges are skipped (the whole signal stands in for its parts);
//   - control edges, and gating from control nodes, are permitted but
//     never recursed through: control does not disqualify constant data;
//   - self-loops on n are allowed (the next-state expression commonly
//     reads the register it drives);
//   - an anonymous expression net with a real operator is followed only
//     when it is small (two operands, the `state + 1` shape); operator-less
//     reshaping nets are followed and left for the classifier to flag;
//   - a node with no fan-in that is not a constant (an input port) ends
//     the analysis.
func ConstantSources(n *graph.Node) (sources []*graph.Edge, ok bool) {
	// pure gating with no data source disqualifies outright
	if len(n.EdgesFrom) > 0 {
		allControl := true
		for _, e := range n.EdgesFrom {
			if !e.From.Kind.Has(graph.KindControl) {
				allControl = false
				break
			}
		}
		if allControl {
			return nil, false
		}
	}

	visited := map[*graph.Node]bool{n: true}
	queue := []*graph.Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cur.EdgesFrom {
			if e.Kind == graph.EdgeSlice || e.Kind.IsControl() {
				continue
			}
			src := e.From
			if src == n {
				continue
			}
			if src.Kind.Has(graph.KindConstant) {
				sources = append(sources, e)
				continue
			}
			if src.Kind.Has(graph.KindControl) && !src.Kind.Has(graph.KindAssign) {
				continue
			}
			if src.Kind == graph.KindNet && src.Name == "" {
				if src.Op != graph.OpIgnore && len(src.EdgesFrom) > 2 {
					return nil, false
				}
			}
			if len(src.EdgesFrom) == 0 {
				// a terminal that is not a constant: an undriven input
				return nil, false
			}
			if !visited[src] {
				visited[src] = true
				queue = append(queue, src)
			}
		}
	}
	return sources, true
}

// IsCounter classifies a constant-driven register as a counter when its
// driver chain contains arithmetic feeding back into the register, or an
// operator-less reshaping net (concatenation-style next state, which
// this analysis cannot turn into transitions).
func IsCounter(state *graph.Node, sources []*graph.Edge) bool {
	for _, src := range sources {
		visited := make(map[*graph.Node]bool)
		queue := []*graph.Node{src.To}
		for len(queue) > 0 {
			m := queue[0]
			queue = queue[1:]
			switch {
			case (m.Op == graph.OpAdd || m.Op == graph.OpSubtract) &&
				graph.Reachable(m, state) && graph.Reachable(state, m):
				return true
			case m.Kind == graph.KindNet && m.Name == "" && m.Op == graph.OpIgnore &&
				graph.Reachable(m, state):
				return true
			}
			if m == state {
				// the walk stops at the register; downstream logic is not
				// part of the driver chain
				continue
			}
			for _, e := range m.EdgesTo {
				if e.Kind.IsControl() || visited[e.To] {
					continue
				}
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return false
}

// Identify runs FSM detection: every register whose reaching constants
// number at least two and whose surroundings form a control loop becomes
// a result. Candidates are analysed in parallel; output order is the
// deterministic hierarchical-name order.
func (d *Detector) Identify(ctx context.Context, g *graph.Graph) ([]*Result, error) {
	ctx, span := tracer.Start(ctx, "fsm.Identify")
	defer span.End()

	registers := IdentifyRegisters(g)
	span.SetAttributes(attribute.Int("registers", len(registers)))

	var (
		mu      sync.Mutex
		results []*Result
	)
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)
	for _, reg := range registers {
		eg.Go(func() error {
			sources, ok := ConstantSources(reg)
			if !ok || len(sources) < 2 {
				return nil
			}
			if !graph.HasControlLoop(reg) {
				return nil
			}
			r := &Result{
				Node:      reg,
				ConstSrcs: sources,
				Counter:   IsCounter(reg, sources),
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Node.HandleName() < results[j].Node.HandleName()
	})
	span.SetAttributes(attribute.Int("fsms", len(results)))
	recordIdentified(ctx, len(registers), len(results))
	return results, nil
}

// ExtractArcs computes every explicit-state FSM's syntax arcs in
// parallel. Each task touches a disjoint result, so no locking is needed
// beyond the join.
func (d *Detector) ExtractArcs(ctx context.Context, results []*Result) {
	ctx, span := tracer.Start(ctx, "fsm.ExtractArcs")
	defer span.End()

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)
	for _, r := range results {
		if r.Counter {
			continue
		}
		eg.Go(func() error {
			r.SyntaxArcs()
			return nil
		})
	}
	_ = eg.Wait()

	total := 0
	for _, r := range results {
		total += len(r.arcs)
	}
	span.SetAttributes(attribute.Int("arcs", total))
	recordArcs(ctx, total)
}
