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
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fsmdetect/internal/graph"
)

// coupled reports whether b's state register is influenced by a's.
func coupled(a, b *Result, slow bool) bool {
	if slow {
		return graph.ReachableControlLoop(a.Node, b.Node)
	}
	return graph.Reachable(a.Node, b.Node)
}

// Coupling is one FSM together with the FSMs its state can influence.
type Coupling struct {
	FSM    *Result
	Linked []*Result
}

// Group computes coupled-FSM groups: B is linked to A when B's state
// register is reachable from A's. Fast mode tests plain reachability;
// slow mode additionally requires a control node on the path, which
// discards couplings that are pure data forwarding.
//
// Pairs are tested in parallel; the output contains only FSMs with at
// least one link, ordered by hierarchical name.
func (d *Detector) Group(ctx context.Context, results []*Result, slow bool) []Coupling {
	ctx, span := tracer.Start(ctx, "fsm.Group")
	defer span.End()

	n := len(results)
	linked := make([][]bool, n)
	for i := range linked {
		linked[i] = make([]bool, n)
	}

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)
	for i := range results {
		for j := range results {
			if i == j {
				continue
			}
			eg.Go(func() error {
				linked[i][j] = coupled(results[i], results[j], slow)
				return nil
			})
		}
	}
	_ = eg.Wait()

	var groups []Coupling
	for i, r := range results {
		var links []*Result
		for j := range results {
			if linked[i][j] {
				links = append(links, results[j])
			}
		}
		if len(links) == 0 {
			continue
		}
		sort.Slice(links, func(a, b int) bool {
			return links[a].Node.HandleName() < links[b].Node.HandleName()
		})
		groups = append(groups, Coupling{FSM: r, Linked: links})
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].FSM.Node.HandleName() < groups[b].FSM.Node.HandleName()
	})

	span.SetAttributes(attribute.Int("groups", len(groups)))
	return groups
}
