// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fsmdetect detects finite-state machines in synthesizable
// SystemVerilog and emits formal-verification cover properties for them.
//
// The pipeline:
//
//  1. Elaborate the design with slang (or consume its JSON directly)
//  2. Lower the elaborated AST into a dataflow/control graph
//  3. Identify constant-driven state registers and classify them
//  4. Extract provable transition arcs, merge pipelined FSMs
//  5. Emit SVA cover properties and, with --formal, prove them with
//     JasperGold
//
// Usage:
//
//	fsmdetect -i design.sv
//	fsmdetect -i design.sv -I include/ --top core --json -
//	fsmdetect -i design.filelist --formal -t 30 --clock clk --reset rst_n
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
