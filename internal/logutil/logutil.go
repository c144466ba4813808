// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logutil provides small slog helpers shared by the analysis
// packages.
package logutil

import (
	"log/slog"
	"sync"
)

var warned sync.Map

// WarnOnce logs msg at warning level the first time key is seen and is a
// no-op afterwards. Parse anomalies (unknown AST kinds, unsupported custom
// tasks, long string literals) repeat thousands of times across a large
// design; one line per distinct anomaly is enough.
func WarnOnce(key, msg string, args ...any) {
	if _, loaded := warned.LoadOrStore(key, struct{}{}); !loaded {
		slog.Warn(msg, args...)
	}
}

// ResetWarnings clears the dedup set. Test helper.
func ResetWarnings() {
	warned.Range(func(k, _ any) bool {
		warned.Delete(k)
		return true
	})
}
