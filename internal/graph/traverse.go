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

// maxTraversalDepth bounds the DFS primitives. The design graph is rife
// with back-edges (register self-feedback, control loops); the visited set
// terminates them, the bound terminates pathological fan-out.
const maxTraversalDepth = 1 << 20

// HasPath reports whether to is reachable from from over any edges.
// Reaching to requires traversing at least one edge, so HasPath(n, n)
// holds only when n sits on a cycle.
func HasPath(from, to *Node) bool {
	return HasPathCond(from, to, nil)
}

// HasPathCond is HasPath restricted to edges accepted by pred. A nil pred
// accepts every edge.
func HasPathCond(from, to *Node, pred func(*Edge) bool) bool {
	visited := make(map[*Node]bool)
	stack := []*Node{from}
	var steps uint64
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if steps++; steps > maxTraversalDepth {
			return false
		}
		for _, e := range n.EdgesTo {
			if pred != nil && !pred(e) {
				continue
			}
			if e.To == to {
				return true
			}
			if !visited[e.To] {
				visited[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// Reachable reports whether to is reachable from from, by BFS. A node
// with empty fan-out short-circuits to false.
func Reachable(from, to *Node) bool {
	if len(from.EdgesTo) == 0 {
		return false
	}
	visited := make(map[*Node]bool)
	queue := []*Node{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.EdgesTo {
			if e.To == to {
				return true
			}
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return false
}

// HasLoop reports whether n sits on any cycle.
func HasLoop(n *Node) bool { return Reachable(n, n) }

// HasControlLoop reports whether there is a cycle through n that passes
// through at least one control node. Registers whose next-state logic is
// gated by a branch satisfy this; pass-through pipeline stages do not.
func HasControlLoop(n *Node) bool { return ReachableControlLoop(n, n) }

// ReachableControlLoop reports whether to is reachable from from along a
// path that includes at least one control node.
//
// Two passes: the first labels every control node reachable from from;
// the second walks outward from the labeled set, which marks exactly the
// nodes reachable "through a control node". The answer is whether to
// picks up the mark.
func ReachableControlLoop(from, to *Node) bool {
	// pass 1: control nodes reachable from from
	controls := make(map[*Node]bool)
	visited := make(map[*Node]bool)
	queue := []*Node{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.EdgesTo {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			if e.To.Kind.Has(KindControl) {
				controls[e.To] = true
			}
			queue = append(queue, e.To)
		}
	}
	if len(controls) == 0 {
		return false
	}
	if controls[to] {
		return true
	}

	// pass 2: propagate the marked bit from the control set
	marked := make(map[*Node]bool)
	queue = queue[:0]
	for c := range controls {
		marked[c] = true
		queue = append(queue, c)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.EdgesTo {
			if e.To == to {
				return true
			}
			if !marked[e.To] {
				marked[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return false
}

// FindSinks collects every node reachable from n without traversing
// control edges, in BFS order. A depth of 0 means unbounded.
func FindSinks(n *Node, depth int) []*Node {
	var sinks []*Node
	visited := map[*Node]bool{n: true}
	level := []*Node{n}
	for d := 0; len(level) > 0 && (depth == 0 || d < depth); d++ {
		var next []*Node
		for _, cur := range level {
			for _, e := range cur.EdgesTo {
				if e.Kind.IsControl() || visited[e.To] {
					continue
				}
				visited[e.To] = true
				sinks = append(sinks, e.To)
				next = append(next, e.To)
			}
		}
		level = next
	}
	return sinks
}

// FindConnectionCond walks outward from n and returns, in BFS order,
// every edge accepted by match. Edges for which terminate holds are never
// descended through (their match result is still recorded), which keeps
// the walk from wandering into unrelated expressions.
func FindConnectionCond(n *Node, match, terminate func(*Edge) bool) []*Edge {
	var result []*Edge
	visited := map[*Node]bool{n: true}
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cur.EdgesTo {
			if match(e) {
				result = append(result, e)
			}
			if terminate != nil && terminate(e) {
				continue
			}
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return result
}

// Route returns an explicit node path from from to to over edges accepted
// by pred, or nil when none exists within maxDepth BFS levels. A nil pred
// accepts every edge; maxDepth 0 means unbounded.
func Route(from, to *Node, pred func(*Edge) bool, maxDepth int) []*Node {
	parent := map[*Node]*Node{from: nil}
	level := []*Node{from}
	for d := 0; len(level) > 0 && (maxDepth == 0 || d < maxDepth); d++ {
		var next []*Node
		for _, cur := range level {
			for _, e := range cur.EdgesTo {
				if pred != nil && !pred(e) {
					continue
				}
				if e.To == to {
					path := []*Node{to}
					for n := cur; n != nil; n = parent[n] {
						path = append(path, n)
					}
					for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
						path[i], path[j] = path[j], path[i]
					}
					return path
				}
				if _, seen := parent[e.To]; !seen {
					parent[e.To] = cur
					next = append(next, e.To)
				}
			}
		}
		level = next
	}
	return nil
}

// InDirectAssignChain reports whether from reaches to through non-control
// edges such that every assignment node on the way has exactly one direct
// assign fan-in. This identifies straight-line value forwarding with no
// merge points.
func InDirectAssignChain(from, to *Node) bool {
	visited := make(map[*Node]bool)
	queue := []*Node{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.EdgesTo {
			if e.Kind.IsControl() {
				continue
			}
			if e.To == to {
				return true
			}
			if visited[e.To] {
				continue
			}
			if e.To.Kind.Has(KindAssign) && countAssignFanIn(e.To) != 1 {
				continue
			}
			visited[e.To] = true
			queue = append(queue, e.To)
		}
	}
	return false
}

func countAssignFanIn(n *Node) int {
	count := 0
	for _, e := range n.EdgesFrom {
		if e.IsAssign() {
			count++
		}
	}
	return count
}
