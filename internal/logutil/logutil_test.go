// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarnOnce(t *testing.T) {
	defer ResetWarnings()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	WarnOnce("k1", "first warning", "detail", "a")
	WarnOnce("k1", "first warning", "detail", "b")
	WarnOnce("k2", "second warning")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "first warning"))
	assert.Equal(t, 1, strings.Count(out, "second warning"))
}
