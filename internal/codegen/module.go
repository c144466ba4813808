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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fsmdetect/internal/fsm"
	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// WrapperFilename is the emitted wrapper's base name in the OS temp
// directory.
const WrapperFilename = "fsm_wrapper.sv"

// ResetKind is the reset style driven into the formal script.
type ResetKind int

const (
	// ResetNone omits the reset declaration entirely.
	ResetNone ResetKind = iota

	// ResetDefault defers to pin analysis: trace the reset fan-out for an
	// edge-sensitive sink, fall back to active high.
	ResetDefault

	ResetPosedge
	ResetNegedge
)

// clockNames and resetNames are the pin-name heuristics for inference.
var (
	clockNames = []string{"clk", "clock", "clk_in"}
	resetNames = []string{"rst", "rst_n", "reset", "resetn", "reset_in"}

	// activeLowResets are reset names presumed active low.
	activeLowResets = map[string]bool{"rst_n": true, "resetn": true}
)

// VerilogModule is the detected top module plus everything needed to
// emit the wrapper: port signatures, clock/reset naming, parameter
// overrides, and the property set.
type VerilogModule struct {
	// Name is the top module's instance name.
	Name string

	root  *graph.Node
	graph *graph.Graph

	fsms      []*fsm.Result
	couplings []fsm.Coupling

	properties map[uint32]*Property

	clockName string
	resetName string
	resetKind ResetKind

	paramOverrides map[string]string
}

// NewVerilogModule resolves the top module. With an empty topName, a
// single root module is taken as the top; multiple roots warn and the
// first in name order wins. A named top that does not exist is an error.
func NewVerilogModule(g *graph.Graph, topName string) (*VerilogModule, error) {
	candidates := make(map[string]*graph.Node)
	for _, n := range g.Nodes() {
		if n.Kind.Has(graph.KindModule) && (n.Parent == nil || n.Name == topName) {
			candidates[n.Name] = n
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no top module found")
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	var root *graph.Node
	switch {
	case topName != "":
		var ok bool
		root, ok = candidates[topName]
		if !ok {
			return nil, fmt.Errorf("top module %s not found", topName)
		}
	case len(candidates) > 1:
		slog.Warn("multiple top modules, picking the first",
			slog.String("chosen", names[0]),
			slog.String("candidates", strings.Join(names, ", ")),
		)
		root = candidates[names[0]]
	default:
		root = candidates[names[0]]
	}

	m := &VerilogModule{
		Name:           root.Name,
		root:           root,
		graph:          g,
		properties:     make(map[uint32]*Property),
		resetKind:      ResetDefault,
		paramOverrides: make(map[string]string),
	}
	return m, nil
}

// Root returns the top module node.
func (m *VerilogModule) Root() *graph.Node { return m.root }

// Ports returns the top module's ports in name order.
func (m *VerilogModule) Ports() []*graph.Node {
	var ports []*graph.Node
	for _, n := range m.graph.Nodes() {
		if n.Parent == m.root && n.Port != graph.PortNone {
			ports = append(ports, n)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports
}

// SetFSMResults installs the detection results the properties are built
// from.
func (m *VerilogModule) SetFSMResults(results []*fsm.Result) { m.fsms = results }

// SetCouplings installs the coupled-FSM groups for cross-property
// generation.
func (m *VerilogModule) SetCouplings(couplings []fsm.Coupling) { m.couplings = couplings }

// SetClockName / SetResetName force pin names, bypassing inference.
func (m *VerilogModule) SetClockName(name string) { m.clockName = name }

// SetResetName forces the reset pin name.
func (m *VerilogModule) SetResetName(name string) { m.resetName = name }

// SetResetKind forces the reset style.
func (m *VerilogModule) SetResetKind(kind ResetKind) { m.resetKind = kind }

// SetParamOverride records a parameter override for the wrapper's
// instantiation.
func (m *VerilogModule) SetParamOverride(name, value string) {
	m.paramOverrides[name] = value
}

// ClockName returns the resolved clock pin, empty before AnalyzePins.
func (m *VerilogModule) ClockName() string { return m.clockName }

// ResetName returns the resolved reset pin, possibly empty.
func (m *VerilogModule) ResetName() string { return m.resetName }

// ResetKindResolved returns the reset style after pin analysis.
func (m *VerilogModule) ResetKindResolved() ResetKind { return m.resetKind }

// AnalyzePins infers clock and reset pins by name when they were not
// forced, and resolves ResetDefault by tracing the reset's fan-out for
// an edge-sensitive sink.
func (m *VerilogModule) AnalyzePins() {
	ports := m.Ports()
	byName := make(map[string]*graph.Node, len(ports))
	for _, p := range ports {
		byName[p.Name] = p
	}

	if m.clockName == "" {
		for _, name := range clockNames {
			if _, ok := byName[name]; ok {
				m.clockName = name
				break
			}
		}
	}
	if m.resetName == "" {
		for _, name := range resetNames {
			if _, ok := byName[name]; ok {
				m.resetName = name
				break
			}
		}
	}
	if m.resetKind != ResetDefault || m.resetName == "" {
		return
	}

	if activeLowResets[m.resetName] {
		m.resetKind = ResetNegedge
		return
	}
	reset := byName[m.resetName]
	if reset != nil {
		for _, sink := range graph.FindSinks(reset, 0) {
			switch sink.Event {
			case graph.EventPosedge:
				m.resetKind = ResetPosedge
				return
			case graph.EventNegedge:
				m.resetKind = ResetNegedge
				return
			}
		}
	}
	slog.Warn("unable to infer reset polarity, assuming active high",
		slog.String("reset", m.resetName))
	m.resetKind = ResetPosedge
}

// Property returns the property with the given id.
func (m *VerilogModule) Property(id uint32) *Property { return m.properties[id] }

// Properties returns every property in id order.
func (m *VerilogModule) Properties() []*Property {
	props := make([]*Property, 0, len(m.properties))
	for _, p := range m.properties {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].ID < props[j].ID })
	return props
}

// TransitionProperty finds the transition property for (node, from, to).
func (m *VerilogModule) TransitionProperty(node *graph.Node, from, to int64) *Property {
	for _, p := range m.Properties() {
		if p.StateVar1 == node && p.IsTransition() &&
			p.StateValue1.Value == from && p.StateValue2.Value == to {
			return p
		}
	}
	return nil
}

// CreateProperties builds the property set:
//
//   - per explicit-state FSM, one reachability property per unique state
//     and one delay-1 transition property per ordered pair of distinct
//     states, with ShouldBeValid set on syntactically proven arcs;
//   - per counter FSM, one reachability property per comparison constant;
//   - per coupled pair, delay-0 cross properties over the state product,
//     one direction per unordered pair.
//
// Per-FSM batches build in parallel; ids are assigned on the emitting
// thread in FSM order, so output is deterministic.
func (m *VerilogModule) CreateProperties(ctx context.Context, workers int) {
	ctx, span := tracer.Start(ctx, "codegen.CreateProperties")
	defer span.End()

	batches := make([][]*Property, len(m.fsms))
	var mu sync.Mutex

	eg, _ := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	eg.SetLimit(workers)
	for i, r := range m.fsms {
		eg.Go(func() error {
			batch := m.fsmProperties(r)
			mu.Lock()
			batches[i] = batch
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	var id uint32
	for _, batch := range batches {
		for _, p := range batch {
			p.ID = id
			m.properties[id] = p
			id++
		}
	}
	for _, p := range m.crossProperties() {
		p.ID = id
		m.properties[id] = p
		id++
	}

	span.SetAttributes(attribute.Int("properties", len(m.properties)))
	recordProperties(ctx, len(m.properties))
}

// fsmProperties builds one FSM's batch, ids unassigned.
func (m *VerilogModule) fsmProperties(r *fsm.Result) []*Property {
	var batch []*Property
	if r.Counter {
		for _, value := range r.CounterValues() {
			batch = append(batch, &Property{
				ClockName:   m.clockName,
				StateVar1:   r.Node,
				StateValue1: value,
			})
		}
		return batch
	}

	states := r.UniqueStates()
	for _, state := range states {
		batch = append(batch, &Property{
			ClockName:   m.clockName,
			StateVar1:   r.Node,
			StateValue1: state,
		})
	}

	proven := make(map[[2]int64]bool)
	for _, arc := range r.SyntaxArcs() {
		proven[[2]int64{arc.From.Value, arc.To.Value}] = true
	}
	for _, from := range states {
		for _, to := range states {
			if from.Value == to.Value {
				continue
			}
			batch = append(batch, &Property{
				ClockName:     m.clockName,
				Delay:         1,
				StateVar1:     r.Node,
				StateValue1:   from,
				StateVar2:     r.Node,
				StateValue2:   to,
				ShouldBeValid: proven[[2]int64{from.Value, to.Value}],
			})
		}
	}
	return batch
}

// crossProperties builds the coupled-FSM implications, one direction per
// unordered node pair.
func (m *VerilogModule) crossProperties() []*Property {
	type nodePair [2]*graph.Node
	seen := make(map[nodePair]bool)
	var props []*Property

	for _, coupling := range m.couplings {
		a := coupling.FSM
		for _, b := range coupling.Linked {
			key := nodePair{a.Node, b.Node}
			if a.Node.HandleName() > b.Node.HandleName() {
				key = nodePair{b.Node, a.Node}
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			for _, av := range fsmStates(a) {
				for _, bv := range fsmStates(b) {
					props = append(props, &Property{
						ClockName:   m.clockName,
						Delay:       0,
						StateVar1:   a.Node,
						StateValue1: av,
						StateVar2:   b.Node,
						StateValue2: bv,
					})
				}
			}
		}
	}
	return props
}

// fsmStates returns the enumerable values of an FSM: unique states for
// explicit machines, comparison constants for counters.
func fsmStates(r *fsm.Result) []*graph.Node {
	if r.Counter {
		return r.CounterValues()
	}
	return r.UniqueStates()
}

// String emits the wrapper module: the detected top's ports re-exposed
// verbatim, the top instantiated under its own name (so hierarchical
// handles stay valid), and every property at module scope.
func (m *VerilogModule) String() string {
	ports := m.Ports()

	var b strings.Builder
	fmt.Fprintf(&b, "module %s(\n", TopName)
	for i, port := range ports {
		dir := "input"
		if port.Port == graph.PortOutput {
			dir = "output"
		}
		wireType := port.WireType
		if wireType == "" {
			wireType = "logic"
		}
		fmt.Fprintf(&b, "%s%s %s %s", indentation, dir, wireType, port.Name)
		if i != len(ports)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n\n")

	// instantiate the top under its own name
	defName := m.Name
	if m.root.ModuleDef != nil {
		defName = m.root.ModuleDef.Name
	}
	b.WriteString(defName)
	if len(m.paramOverrides) > 0 {
		names := make([]string, 0, len(m.paramOverrides))
		for name := range m.paramOverrides {
			names = append(names, name)
		}
		sort.Strings(names)
		overrides := make([]string, 0, len(names))
		for _, name := range names {
			overrides = append(overrides, fmt.Sprintf(".%s(%s)", name, m.paramOverrides[name]))
		}
		fmt.Fprintf(&b, " #(%s)", strings.Join(overrides, ", "))
	}
	fmt.Fprintf(&b, " %s (\n", m.Name)
	for i, port := range ports {
		fmt.Fprintf(&b, "%s.%s(%s)", indentation, port.Name, port.Name)
		if i != len(ports)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n\n")

	for _, p := range m.Properties() {
		b.WriteString(p.String())
		b.WriteString("\n")
	}
	b.WriteString("endmodule\n")
	return b.String()
}

// WriteWrapper emits the wrapper into the OS temp directory and returns
// its path.
func (m *VerilogModule) WriteWrapper() (string, error) {
	path := filepath.Join(os.TempDir(), WrapperFilename)
	if err := os.WriteFile(path, []byte(m.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing wrapper: %w", err)
	}
	return path, nil
}
