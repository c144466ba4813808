// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrElaboratorNotFound is returned when no slang binary can be resolved
// from $SLANG or PATH.
var ErrElaboratorNotFound = errors.New("unable to find slang driver")

// slangEnvVar overrides elaborator resolution.
const slangEnvVar = "SLANG"

// FindElaborator resolves the slang binary: the SLANG environment
// variable wins, then "slang" and "slang-driver" on PATH.
func FindElaborator() (string, error) {
	if path := os.Getenv(slangEnvVar); path != "" {
		return path, nil
	}
	for _, name := range []string{"slang", "slang-driver"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrElaboratorNotFound
}

// HasElaborator reports whether an elaborator is available.
func HasElaborator() bool {
	_, err := FindElaborator()
	return err == nil
}

// Elaborate runs the external elaborator over the manager's file set and
// records the produced JSON AST path on the manager.
//
// The output lands in the OS temp directory under a per-run unique name
// so concurrent analyses cannot clobber each other.
func Elaborate(ctx context.Context, m *Manager) error {
	slang, err := FindElaborator()
	if err != nil {
		return err
	}

	outPath := filepath.Join(os.TempDir(),
		fmt.Sprintf("fsmdetect-%s.json", uuid.NewString()))

	args := make([]string, 0, len(m.Files())+2*len(m.IncludeDirs())+2*len(m.Macros())+2)
	args = append(args, m.Files()...)
	for _, dir := range m.IncludeDirs() {
		args = append(args, "-I", dir)
	}
	for _, macro := range m.Macros() {
		args = append(args, "-D", macro)
	}
	args = append(args, "--ast-json", outPath)

	slog.Debug("running elaborator",
		slog.String("binary", slang),
		slog.Int("files", len(m.Files())),
		slog.String("output", outPath),
	)

	cmd := exec.CommandContext(ctx, slang, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("unable to parse %s: %w",
			strings.Join(m.Files(), " "), err)
	}
	m.SetJSONFilename(outPath)
	return nil
}
