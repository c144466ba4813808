// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package formal drives the external model checker.
//
// The driver emits a Tcl script (sources, wrapper, clock, reset, prove
// task), runs the prover as a subprocess in a scratch working directory,
// and parses the session log back onto the property set, marking each
// cover target reachable or unreachable.
package formal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/fsmdetect/internal/codegen"
	"github.com/AleutianAI/fsmdetect/internal/source"
)

// ErrProverNotFound is returned when no JasperGold binary can be
// resolved.
var ErrProverNotFound = errors.New("unable to find jaspergold")

var tracer = otel.Tracer("fsmdetect.formal")

const (
	// scriptFilename is the generated Tcl script's base name.
	scriptFilename = "fsm_jg.tcl"

	// workDirName is the prover scratch directory under the OS temp dir,
	// wiped before every invocation.
	workDirName = "fsm_jg"

	// sessionLogPath is where the prover writes its session log,
	// relative to the working directory.
	sessionLogPath = "sessionLogs/session_0/jg_session_0.log"

	// proverEnvVar overrides prover resolution.
	proverEnvVar = "JASPERGOLD"
)

// JasperGold runs one formal pass over a wrapper module's property set.
type JasperGold struct {
	module *codegen.VerilogModule
	source *source.Manager

	// PerPropertyTimeLimit bounds each cover proof; zero means no limit.
	PerPropertyTimeLimit time.Duration

	// BothEdgeClock declares the clock on both edges.
	BothEdgeClock bool
}

// NewJasperGold creates a driver for the module and its source set.
func NewJasperGold(m *codegen.VerilogModule, src *source.Manager) *JasperGold {
	return &JasperGold{module: m, source: src}
}

// FindProver resolves the JasperGold binary: the JASPERGOLD environment
// variable, then "jaspergold" and "jg" on PATH.
func FindProver() (string, error) {
	if path := os.Getenv(proverEnvVar); path != "" {
		return path, nil
	}
	for _, name := range []string{"jaspergold", "jg"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrProverNotFound
}

// HasProver reports whether a prover binary is available.
func HasProver() bool {
	_, err := FindProver()
	return err == nil
}

// Script renders the Tcl command file for the given wrapper path.
func (j *JasperGold) Script(wrapperPath string) string {
	var b strings.Builder

	b.WriteString("analyze -sv")
	for _, f := range j.source.Files() {
		b.WriteString(" " + f)
	}
	for _, dir := range j.source.IncludeDirs() {
		b.WriteString(" +incdir+" + dir)
	}
	b.WriteString(" " + wrapperPath + "\n")

	fmt.Fprintf(&b, "elaborate -top %s\n", codegen.TopName)

	if j.BothEdgeClock {
		fmt.Fprintf(&b, "clock -both_edges %s\n", j.module.ClockName())
	} else {
		fmt.Fprintf(&b, "clock %s\n", j.module.ClockName())
	}

	if reset := j.module.ResetName(); reset != "" &&
		j.module.ResetKindResolved() != codegen.ResetNone {
		expr := reset
		if j.module.ResetKindResolved() == codegen.ResetNegedge {
			expr = "~" + reset
		}
		fmt.Fprintf(&b, "reset -expression {%s}\n", expr)
	}

	if j.PerPropertyTimeLimit > 0 {
		fmt.Fprintf(&b, "set_prove_per_property_max_time_limit %ds\n",
			int(j.PerPropertyTimeLimit.Seconds()))
	}

	b.WriteString("prove -task {<embedded>}\n")
	b.WriteString("exit -force\n")
	return b.String()
}

// WorkDir returns the prover scratch directory.
func WorkDir() string {
	return filepath.Join(os.TempDir(), workDirName)
}

// Run emits the wrapper and script, invokes the prover, and parses the
// session log back onto the module's properties.
//
// A missing prover returns ErrProverNotFound without touching the
// properties; callers requested a formal pass they cannot have and
// decide how loudly to say so. A non-zero prover exit surfaces as an
// error with the exit status.
func (j *JasperGold) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "formal.Run",
		trace.WithAttributes(
			attribute.Bool("both_edge_clock", j.BothEdgeClock),
			attribute.Float64("time_limit_seconds", j.PerPropertyTimeLimit.Seconds()),
		),
	)
	defer span.End()

	prover, err := FindProver()
	if err != nil {
		return err
	}

	wrapperPath, err := j.module.WriteWrapper()
	if err != nil {
		return err
	}

	workDir := WorkDir()
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("wiping prover work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating prover work dir: %w", err)
	}

	scriptPath := filepath.Join(workDir, scriptFilename)
	if err := os.WriteFile(scriptPath, []byte(j.Script(wrapperPath)), 0o644); err != nil {
		return fmt.Errorf("writing prover script: %w", err)
	}

	slog.Info("running formal verification",
		slog.String("prover", prover),
		slog.Int("properties", len(j.module.Properties())),
	)
	start := time.Now()
	cmd := exec.CommandContext(ctx, prover, "-batch", "-tcl", scriptPath)
	cmd.Dir = workDir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("prover failed: %w", err)
	}
	span.SetAttributes(attribute.Float64("prover_seconds", time.Since(start).Seconds()))

	return j.ParseLogFile(filepath.Join(workDir, sessionLogPath))
}

// ParseLogFile reads a session log and applies it to the property set.
func (j *JasperGold) ParseLogFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading prover log: %w", err)
	}
	j.ParseLog(string(data))
	return nil
}
