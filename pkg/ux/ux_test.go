// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"rich":    ModeRich,
		"Colour":  ModeRich,
		"machine": ModeMachine,
		" q ":     ModeMachine,
		"plain":   ModePlain,
		"":        ModePlain,
		"sparkly": ModePlain,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), in)
	}
}

func TestDetectMode(t *testing.T) {
	t.Setenv(OutputEnv, "")
	t.Setenv("NO_COLOR", "")

	assert.Equal(t, ModeMachine, DetectMode(false))
	assert.Equal(t, ModePlain, DetectMode(true), "NO_COLOR is set, even when empty")

	t.Setenv(OutputEnv, "rich")
	assert.Equal(t, ModeRich, DetectMode(false), "explicit override wins")
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Success("saved %d zones", 5)
	p.Warning("server unreachable")
	p.Error("boom")
	p.Info("plain %s", "line")
	p.Box("Title", "body")

	assert.Equal(t, "OK: saved 5 zones\nWARN: server unreachable\nERROR: boom\nplain line\nTitle: body\n", buf.String())
	assert.Equal(t, "2/5", p.Progress(2, 5, 10))
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Success("done")
	p.Warning("careful")
	assert.Equal(t, "✓ done\n⚠ careful\n", buf.String())
	assert.Equal(t, "████░░░░░░ 2/5", p.Progress(2, 5, 10))
	assert.Equal(t, "██████████ 5/5", p.Progress(7, 5, 10), "clamped to total")
}

func TestPrinter_RichContainsText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeRich)
	p.Success("letter ready")
	p.Box("A Letter", "Dear visitor")

	out := buf.String()
	assert.Contains(t, out, "letter ready")
	assert.Contains(t, out, "A Letter")
	assert.Contains(t, out, "Dear visitor")
	assert.Equal(t, ModeRich, p.Mode())
}
