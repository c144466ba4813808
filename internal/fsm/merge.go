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
	"sort"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// MergePipelined collapses pipelined FSM groups: registers that merely
// re-time another FSM's state through a direct non-blocking chain. The
// pipeline head survives, absorbing the syntax arcs of every stage it
// feeds; the stages are dropped from the result list.
func MergePipelined(results []*Result) []*Result {
	if len(results) < 2 {
		return results
	}

	uf := newUnionFind(len(results))
	for i, a := range results {
		for j, b := range results {
			if i == j {
				continue
			}
			if isPipelined(a.Node, b.Node) {
				// a drives b: a's root becomes the head of b's group
				uf.union(i, j)
			}
		}
	}

	heads := make(map[int]*Result)
	var merged []*Result
	for i, r := range results {
		root := uf.find(i)
		if root == i {
			heads[i] = r
			merged = append(merged, r)
		}
	}
	for i, r := range results {
		root := uf.find(i)
		if root != i {
			heads[root].mergeArcsFrom(r)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Node.HandleName() < merged[j].Node.HandleName()
	})
	return merged
}

// isPipelined reports whether a's state is re-timed directly into b:
// a path over non-control edges whose intermediate nodes are neither
// control points nor expression nets, ending with a non-blocking edge
// into b. Any branching logic on the way makes b a real FSM of its own.
func isPipelined(a, b *graph.Node) bool {
	visited := make(map[*graph.Node]bool)
	queue := []*graph.Node{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cur.EdgesTo {
			if e.Kind.IsControl() {
				continue
			}
			if e.To == b {
				if e.Kind == graph.EdgeNonBlocking {
					return true
				}
				continue
			}
			if visited[e.To] {
				continue
			}
			if e.To.Kind.Has(graph.KindControl) || e.To.Kind == graph.KindNet {
				continue
			}
			visited[e.To] = true
			queue = append(queue, e.To)
		}
	}
	return false
}

// unionFind is a plain union-find over result indices. Union is
// directional: the first argument's root absorbs the second's, keeping
// the pipeline head as representative.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(head, child int) {
	rootHead, rootChild := uf.find(head), uf.find(child)
	if rootHead != rootChild {
		uf.parent[rootChild] = rootHead
	}
}
