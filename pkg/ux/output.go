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
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes status lines in one Mode.
//
// # Thread Safety
//
// A Printer is as safe as its writer.
type Printer struct {
	out  io.Writer
	mode Mode
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{out: out, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Success prints a completed step.
func (p *Printer) Success(format string, args ...any) {
	p.status(IconSuccess, "OK", Styles.Success, format, args...)
}

// Warning prints a non-fatal problem.
func (p *Printer) Warning(format string, args ...any) {
	p.status(IconWarning, "WARN", Styles.Warning, format, args...)
}

// Error prints a failure.
func (p *Printer) Error(format string, args ...any) {
	p.status(IconError, "ERROR", Styles.Error, format, args...)
}

func (p *Printer) status(icon Icon, prefix string, style lipgloss.Style, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.out, "%s: %s\n", prefix, text)
	case ModePlain:
		fmt.Fprintf(p.out, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Info prints an undecorated line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Box frames text under a title. ModeMachine prints "title: text".
func (p *Printer) Box(title, text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.out, "%s: %s\n", title, text)
	case ModePlain:
		fmt.Fprintf(p.out, "%s\n%s\n", title, text)
	default:
		fmt.Fprintln(p.out, Styles.Box.Width(64).Render(Styles.Title.Render(title)+"\n"+text))
	}
}

// Progress renders "done/total" as a bar of width cells, or as digits in
// ModeMachine.
func (p *Printer) Progress(done, total, width int) string {
	if p.mode == ModeMachine || total <= 0 {
		return fmt.Sprintf("%d/%d", done, total)
	}
	if done > total {
		done = total
	}
	filled := done * width / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if p.mode == ModeRich {
		bar = Styles.Key.Render(strings.Repeat("█", filled)) + Styles.Help.Render(strings.Repeat("░", width-filled))
	}
	return fmt.Sprintf("%s %d/%d", bar, done, total)
}
