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
	"errors"
	"strconv"
	"strings"

	"github.com/AleutianAI/fsmdetect/internal/logutil"
)

// ParseNumLiteral evaluates a Verilog numeric literal of the form
//
//	<size>'[s][bodh]<digits>
//
// Size and sign are ignored. An absent base tag means decimal. Literals
// containing x or z bits evaluate to 0; out-of-range values saturate to
// the all-ones pattern.
func ParseNumLiteral(s string) int64 {
	// the size prefix, if any, sits before the quote
	if idx := strings.LastIndexByte(s, '\''); idx >= 0 {
		s = s[idx+1:]
	}
	if s == "" {
		return 0
	}
	if s[0] == 's' || s[0] == 'S' {
		s = s[1:]
	}
	base := 10
	if s != "" {
		switch s[0] {
		case 'b', 'B':
			base, s = 2, s[1:]
		case 'h', 'H':
			base, s = 16, s[1:]
		case 'o', 'O':
			base, s = 8, s[1:]
		case 'd', 'D':
			base, s = 10, s[1:]
		}
	}
	if strings.ContainsAny(s, "xXzZ") {
		return 0
	}
	s = strings.ReplaceAll(s, "_", "")
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			// saturate to the all-ones pattern, 0xFFFF_FFFF_FFFF_FFFF
			return -1
		}
		return 0
	}
	return v
}

// parseStringLiteral packs a string literal into an integer, little
// endian, one byte per character. Anything past eight bytes is dropped
// with a one-shot warning.
func parseStringLiteral(s string) int64 {
	if len(s) > 8 {
		logutil.WarnOnce("long-string-literal",
			"unable to cast long string literal to integer", "literal", s)
	}
	var result int64
	for i := 0; i < len(s) && i < 8; i++ {
		result |= int64(s[i]) << (8 * i)
	}
	return result
}
