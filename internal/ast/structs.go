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
	"strings"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// packedStructMarker identifies a typedef whose expansion carries packed
// struct members worth modelling.
const packedStructMarker = "struct packed"

// structMember is a node of the micro-grammar parse tree: nested braces
// with semicolon-terminated members.
type structMember struct {
	parent   *structMember
	children []*structMember
	name     string
}

// parseStructString scans a type string of nested `{...}` groups with
// `;`-separated members and installs one member node per leaf into root,
// recursively for nested packed structs.
//
// The grammar is deliberately tiny: the elaborator has already expanded
// the typedef, so the string is well-formed, and the only information we
// need is the member naming tree. Types inside members are discarded (a
// member's last identifier before `;` is its name).
func parseStructString(s string, root *graph.Node, g *graph.Graph) {
	var parent *structMember
	var name string
	for _, c := range s {
		switch c {
		case '{':
			name = ""
			n := &structMember{parent: parent}
			if parent != nil {
				parent.children = append(parent.children, n)
			}
			parent = n
		case ' ':
			name = ""
		case ';':
			if parent == nil {
				return
			}
			last := len(parent.children) - 1
			if last >= 0 && parent.children[last].name == "" {
				// the member is itself a nested struct that just closed
				parent.children[last].name = name
			} else {
				parent.children = append(parent.children,
					&structMember{parent: parent, name: name})
			}
			name = ""
		case '}':
			if parent != nil && parent.parent != nil {
				parent = parent.parent
			}
		default:
			name += string(c)
		}
	}
	if parent == nil {
		return
	}

	// install the member tree under root, breadth first
	type pending struct {
		member *structMember
		node   *graph.Node
	}
	queue := []pending{{parent, root}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range cur.member.children {
			if child.name == "" {
				continue
			}
			if existing, ok := cur.node.Members[child.name]; ok {
				queue = append(queue, pending{child, existing})
				continue
			}
			n := g.AddNode(g.FreeID(), child.name)
			cur.node.AddMember(child.name, n)
			queue = append(queue, pending{child, n})
		}
	}
}

// hasPackedStruct reports whether a type string expands a packed struct.
func hasPackedStruct(s string) bool {
	return strings.Contains(s, packedStructMarker)
}
