// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fsmdetect/internal/ast"
	"github.com/AleutianAI/fsmdetect/internal/codegen"
	"github.com/AleutianAI/fsmdetect/internal/formal"
	"github.com/AleutianAI/fsmdetect/internal/fsm"
	"github.com/AleutianAI/fsmdetect/internal/graph"
	"github.com/AleutianAI/fsmdetect/internal/report"
	"github.com/AleutianAI/fsmdetect/internal/source"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	flagInputs       []string
	flagIncludeDirs  []string
	flagJSONOut      string
	flagCoupled      bool
	flagFormal       bool
	flagTop          string
	flagClock        string
	flagReset        string
	flagParams       []string
	flagDefines      []string
	flagCPUs         int
	flagResetType    string
	flagDoubleEdge   bool
	flagTimeLimitSec int
	flagTrace        bool
	flagMetrics      bool
	flagVerbose      bool
)

// errNoFSM is the "analysis ran fine, found nothing" outcome; it still
// exits non-zero so scripts can branch on it.
var errNoFSM = errors.New("No FSM detected")

var rootCmd = &cobra.Command{
	Use:   "fsmdetect",
	Short: "Detect FSMs in SystemVerilog and emit formal cover properties",
	Long: `fsmdetect statically detects finite-state machines in synthesizable
SystemVerilog/Verilog and emits SystemVerilog Assertions (cover
properties) for state reachability and transitions, optionally proving
them with JasperGold.

Examples:
  fsmdetect -i design.sv
  fsmdetect -i files.filelist -I rtl/include --top soc_core
  fsmdetect -i design.sv --json - -c
  fsmdetect -i design.sv --formal -t 30 -R negedge --reset rst_n`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDetect,
}

func init() {
	f := rootCmd.Flags()
	f.StringSliceVarP(&flagInputs, "input", "i", nil, "SystemVerilog design files (or a .list/.filelist/.txt list)")
	f.StringSliceVarP(&flagIncludeDirs, "include", "I", nil, "include search directories")
	f.StringVar(&flagJSONOut, "json", "", "write the FSM report as JSON to the given file, - for stdout")
	f.BoolVarP(&flagCoupled, "coupled", "c", false, "compute coupled-FSM groups")
	f.BoolVar(&flagFormal, "formal", false, "run the formal prover over the emitted properties")
	f.StringVar(&flagTop, "top", "", "top module name (required when the design has several roots)")
	f.StringVar(&flagClock, "clock", "", "clock pin name (default: inferred)")
	f.StringVar(&flagReset, "reset", "", "reset pin name (default: inferred)")
	f.StringSliceVarP(&flagParams, "param", "P", nil, "parameter override NAME=VALUE for the top instantiation")
	f.StringSliceVarP(&flagDefines, "define", "D", nil, "macro define NAME[=VALUE] for elaboration")
	f.IntVarP(&flagCPUs, "cpus", "n", 0, "analysis worker count (default: half the hardware threads)")
	f.StringVarP(&flagResetType, "reset-type", "R", "default", "reset type: none, default, posedge, negedge")
	f.BoolVar(&flagDoubleEdge, "double-edge-clock", false, "declare the clock on both edges")
	f.IntVarP(&flagTimeLimitSec, "time-limit", "t", 0, "per-property prover time limit in seconds")
	f.BoolVar(&flagTrace, "trace", false, "emit OpenTelemetry spans to stderr")
	f.BoolVar(&flagMetrics, "metrics", false, "dump Prometheus metrics to stderr at exit")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// resetKinds maps the -R flag onto the codegen reset styles.
var resetKinds = map[string]codegen.ResetKind{
	"none":    codegen.ResetNone,
	"default": codegen.ResetDefault,
	"posedge": codegen.ResetPosedge,
	"negedge": codegen.ResetNegedge,
}

func runDetect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level})))

	if len(flagInputs) == 0 {
		return fmt.Errorf("no input files: pass -i")
	}
	resetKind, ok := resetKinds[flagResetType]
	if !ok {
		return fmt.Errorf("unknown reset type %q", flagResetType)
	}

	shutdown, err := setupTelemetry(ctx, flagTrace, flagMetrics)
	if err != nil {
		return err
	}
	defer shutdown(ctx)

	// ---- elaborate ----------------------------------------------------
	mgr, err := source.NewManager(flagInputs, flagIncludeDirs)
	if err != nil {
		return err
	}
	for _, define := range flagDefines {
		name, value, found := strings.Cut(define, "=")
		if !found {
			value = "1"
		}
		mgr.DefineMacro(name, value)
	}

	if len(mgr.Files()) == 1 && source.IsJSONInput(mgr.Files()[0]) {
		mgr.SetJSONFilename(mgr.Files()[0])
	} else {
		slog.Info("elaborating design", slog.Int("files", len(mgr.Files())))
		if err := source.Elaborate(ctx, mgr); err != nil {
			return err
		}
	}

	// ---- lower --------------------------------------------------------
	doc, err := ast.Load(mgr.JSONFilename())
	if err != nil {
		return err
	}
	g := graph.New()
	if err := ast.Lower(ctx, g, doc); err != nil {
		return err
	}
	slog.Debug("design lowered",
		slog.Int("nodes", g.NumNodes()), slog.Int("edges", g.NumEdges()))

	// ---- detect -------------------------------------------------------
	workers := flagCPUs
	if workers <= 0 {
		workers = fsm.DefaultWorkers()
	}
	detector := fsm.NewDetector(fsm.WithWorkers(workers))
	results, err := detector.Identify(ctx, g)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errNoFSM
	}
	detector.ExtractArcs(ctx, results)
	results = fsm.MergePipelined(results)

	var couplings []fsm.Coupling
	if flagCoupled {
		couplings = detector.Group(ctx, results, false)
	}

	// ---- properties ---------------------------------------------------
	module, err := codegen.NewVerilogModule(g, flagTop)
	if err != nil {
		return err
	}
	if flagClock != "" {
		module.SetClockName(flagClock)
	}
	if flagReset != "" {
		module.SetResetName(flagReset)
	}
	module.SetResetKind(resetKind)
	module.AnalyzePins()
	for _, override := range flagParams {
		name, value, found := strings.Cut(override, "=")
		if !found {
			return fmt.Errorf("malformed parameter override %q, want NAME=VALUE", override)
		}
		module.SetParamOverride(name, value)
	}
	module.SetFSMResults(results)
	module.SetCouplings(couplings)
	module.CreateProperties(ctx, workers)

	// ---- formal -------------------------------------------------------
	if flagFormal {
		if module.ClockName() == "" {
			return fmt.Errorf("design does not have a recognizable clock; pass --clock")
		}
		driver := formal.NewJasperGold(module, mgr)
		driver.BothEdgeClock = flagDoubleEdge
		driver.PerPropertyTimeLimit = time.Duration(flagTimeLimitSec) * time.Second
		switch err := driver.Run(ctx); {
		case errors.Is(err, formal.ErrProverNotFound):
			slog.Warn("formal pass requested but no prover found, skipping")
		case err != nil:
			return err
		}
	}

	// ---- report -------------------------------------------------------
	if flagJSONOut != "" {
		entries := report.Build(results, couplings)
		out := os.Stdout
		if flagJSONOut != "-" {
			f, err := os.Create(flagJSONOut)
			if err != nil {
				return fmt.Errorf("creating report: %w", err)
			}
			defer f.Close()
			out = f
		}
		if err := report.WriteJSON(out, entries); err != nil {
			return err
		}
	} else {
		report.WriteText(os.Stdout, results, couplings)
	}
	return nil
}
