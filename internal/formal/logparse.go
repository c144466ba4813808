// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package formal

import (
	"strconv"
	"strings"

	"github.com/AleutianAI/fsmdetect/internal/codegen"
)

// coverLinePrefix anchors the prover's verdict lines:
//
//	The cover property "TOP.FSM_STATE_<id>" was proven unreachable ...
const coverLinePrefix = `The cover property "` + codegen.TopName + "." + codegen.PropertyLabelPrefix

// ParseLog scans prover output line-wise and sets each mentioned
// property's Valid flag: false when the line reports the cover
// unreachable, true otherwise.
func (j *JasperGold) ParseLog(log string) {
	for _, line := range strings.Split(log, "\n") {
		id, ok := parseCoverLine(line)
		if !ok {
			continue
		}
		p := j.module.Property(id)
		if p == nil {
			continue
		}
		p.Valid = !strings.Contains(line, "unreachable")
	}
}

// parseCoverLine extracts the property id from a verdict line.
func parseCoverLine(line string) (uint32, bool) {
	idx := strings.Index(line, coverLinePrefix)
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len(coverLinePrefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(rest[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
