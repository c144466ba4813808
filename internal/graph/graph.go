// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"math"
	"strings"
	"sync"
)

// Graph owns every node and edge of a lowered design.
//
// See the package doc for the ownership and thread-safety contract.
type Graph struct {
	// byKey maps elaborator symbol addresses (and synthetic ids, and
	// aliases) to nodes. Multiple keys may point at the same node.
	byKey map[uint64]*Node

	// nodes is the arena, in creation order. Deterministic iteration
	// depends on it.
	nodes []*Node

	// freeID allocates synthetic ids downward from MaxUint64 so they can
	// never collide with the elaborator's address space.
	freeID uint64

	// byName is the lazy Select index; built once after lowering.
	byName     map[string][]*Node
	byNameOnce sync.Once

	edgeCount int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		byKey:  make(map[uint64]*Node),
		freeID: math.MaxUint64,
	}
}

// NodeOption configures a node at AddNode time.
type NodeOption func(*Node)

// WithKind sets the node kind. Without this option new nodes default to
// KindNet, matching the lowering's anonymous expression nodes.
func WithKind(k Kind) NodeOption {
	return func(n *Node) { n.Kind = k }
}

// WithParent sets the enclosing scope.
func WithParent(p *Node) NodeOption {
	return func(n *Node) { n.Parent = p }
}

// AddNode returns the node for key, creating it if necessary.
//
// If the key already exists the node's fields are updated in place from
// name and the options rather than creating a duplicate; this is how the
// lowering upgrades forward references (a NamedValue seen before its
// declaration). Appending the node to its parent's children list happens
// once per (node, parent) pair.
func (g *Graph) AddNode(key uint64, name string, opts ...NodeOption) *Node {
	n, ok := g.byKey[key]
	if !ok {
		n = &Node{ID: key, Kind: KindNet}
		g.byKey[key] = n
		g.nodes = append(g.nodes, n)
		nodesCreated(context.Background())
	}
	prevParent := n.Parent
	n.Name = name
	for _, opt := range opts {
		opt(n)
	}
	if n.Parent != nil && n.Parent != prevParent {
		n.Parent.Children = append(n.Parent.Children, n)
	}
	return n
}

// AliasNode installs an additional lookup key for an existing node. The
// elaborator emits both "symbol" and "address" references for the same
// signal; both must resolve to one node.
func (g *Graph) AliasNode(key uint64, n *Node) {
	if _, ok := g.byKey[key]; ok {
		return
	}
	g.byKey[key] = n
}

// HasNode reports whether key resolves to a node.
func (g *Graph) HasNode(key uint64) bool {
	_, ok := g.byKey[key]
	return ok
}

// GetNode returns the node for key, creating an anonymous net if the key
// has not been seen. Auto-creation is the NamedValue contract: a symbol
// reference may precede (or lack) its declaration.
func (g *Graph) GetNode(key uint64) *Node {
	if n, ok := g.byKey[key]; ok {
		return n
	}
	return g.AddNode(key, "")
}

// FreeID allocates a synthetic id, counting down from MaxUint64.
func (g *Graph) FreeID() uint64 {
	id := g.freeID
	g.freeID--
	return id
}

// AddEdge creates a directed edge and wires both endpoint lists.
func (g *Graph) AddEdge(from, to *Node, kind EdgeKind) *Edge {
	e := &Edge{From: from, To: to, Kind: kind}
	from.EdgesTo = append(from.EdgesTo, e)
	to.EdgesFrom = append(to.EdgesFrom, e)
	g.edgeCount++
	edgesCreated(context.Background())
	return e
}

// Nodes returns the arena in creation order. Callers must not mutate the
// slice.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NumNodes returns the number of distinct nodes (aliases not counted).
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int { return g.edgeCount }

// Select resolves a "."-separated hierarchical name.
//
// The first segment is matched against every named node (so a signal can
// be selected without its full module prefix); each following segment
// narrows into the matched node's children by name. The first full match
// in creation order wins.
//
// Select builds a name index lazily on first use; it must not be called
// before lowering is complete.
func (g *Graph) Select(name string) (*Node, error) {
	if name == "" {
		return nil, ErrEmptySelector
	}
	g.byNameOnce.Do(g.buildNameIndex)

	segments := strings.Split(name, ".")
	for _, root := range g.byName[segments[0]] {
		if n := narrow(root, segments[1:]); n != nil {
			return n, nil
		}
	}
	return nil, ErrNodeNotFound
}

func (g *Graph) buildNameIndex() {
	g.byName = make(map[string][]*Node)
	for _, n := range g.nodes {
		if n.Name != "" {
			g.byName[n.Name] = append(g.byName[n.Name], n)
		}
	}
}

func narrow(n *Node, segments []string) *Node {
	for _, seg := range segments {
		var next *Node
		for _, child := range n.Children {
			if child.Name == seg {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}
