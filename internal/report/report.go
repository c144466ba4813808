// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders detection results for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AleutianAI/fsmdetect/internal/fsm"
	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// State is one observable state value of an FSM.
type State struct {
	Value int64  `json:"value"`
	Name  string `json:"name"`
}

// Entry is one detected FSM in the JSON report.
type Entry struct {
	// Name is the state register's hierarchical handle.
	Name string `json:"name"`

	// States are the unique state values (comparison constants for
	// counters), value ordered.
	States []State `json:"states"`

	// Linked holds the handles of coupled FSMs, empty when grouping was
	// not requested.
	Linked []string `json:"linked"`
}

// Build assembles the report entries from detection results and
// couplings.
func Build(results []*fsm.Result, couplings []fsm.Coupling) []Entry {
	linkedByNode := make(map[*fsm.Result][]string)
	for _, c := range couplings {
		for _, l := range c.Linked {
			linkedByNode[c.FSM] = append(linkedByNode[c.FSM], l.Node.HandleName())
		}
	}

	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		var states []State
		for _, s := range stateNodes(r) {
			states = append(states, State{Value: s.Value, Name: s.Name})
		}
		linked := linkedByNode[r]
		if linked == nil {
			linked = []string{}
		}
		entries = append(entries, Entry{
			Name:   r.Node.HandleName(),
			States: states,
			Linked: linked,
		})
	}
	return entries
}

// WriteJSON renders the entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteText renders the human-readable report: per-FSM state lists, then
// the coupled groups.
func WriteText(w io.Writer, results []*fsm.Result, couplings []fsm.Coupling) {
	for i, r := range results {
		fmt.Fprintf(w, "State variable name: %s\n", r.Node.HandleName())
		if r.Counter {
			fmt.Fprintln(w, "  State: counter")
		} else {
			for _, s := range r.UniqueStates() {
				if s.Name != "" {
					fmt.Fprintf(w, "  State: %s (%d)\n", s.Name, s.Value)
				} else {
					fmt.Fprintf(w, "  State: %d\n", s.Value)
				}
			}
		}
		if i != len(results)-1 {
			fmt.Fprintln(w)
		}
	}

	if len(couplings) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, c := range couplings {
		fmt.Fprintf(w, "%s:\n", c.FSM.Node.HandleName())
		for _, l := range c.Linked {
			fmt.Fprintf(w, "  - %s\n", l.Node.HandleName())
		}
		if i != len(couplings)-1 {
			fmt.Fprintln(w)
		}
	}
}

// stateNodes mirrors the property builder's notion of enumerable states:
// unique states for explicit machines, comparison constants for counters.
func stateNodes(r *fsm.Result) []*graph.Node {
	if r.Counter {
		return r.CounterValues()
	}
	return r.UniqueStates()
}
