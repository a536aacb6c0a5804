// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux holds the warm palette and the status printer shared by the
// warmroom commands and the play UI.
package ux

import (
	"os"
	"strings"
)

// Mode controls how much decoration output carries.
type Mode string

const (
	// ModeRich uses colour and icons.
	ModeRich Mode = "rich"

	// ModePlain uses icons without colour.
	ModePlain Mode = "plain"

	// ModeMachine prints prefixed plain lines for scripts.
	ModeMachine Mode = "machine"
)

// OutputEnv overrides mode detection when set.
const OutputEnv = "WARMROOM_OUTPUT"

// ParseMode converts a string to a Mode. Unknown values are ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "color", "colour":
		return ModeRich
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks the mode for a stream.
//
// # Description
//
// WARMROOM_OUTPUT wins when set. Otherwise a terminal gets ModeRich, or
// ModePlain when NO_COLOR is set, and anything else gets ModeMachine.
func DetectMode(terminal bool) Mode {
	if env := os.Getenv(OutputEnv); env != "" {
		return ParseMode(env)
	}
	if !terminal {
		return ModeMachine
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return ModePlain
	}
	return ModeRich
}
