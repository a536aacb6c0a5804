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

import "github.com/charmbracelet/lipgloss"

// Warm room palette: lamplight, brick and old paper.
var (
	ColorEmber  = lipgloss.Color("209") // option keys, highlights
	ColorLamp   = lipgloss.Color("215") // titles
	ColorBrass  = lipgloss.Color("178") // banners
	ColorPaper  = lipgloss.Color("223") // prompts
	ColorLinen  = lipgloss.Color("252") // body text
	ColorAsh    = lipgloss.Color("245") // reflections
	ColorSmoke  = lipgloss.Color("241") // help and muted text
	ColorBrick  = lipgloss.Color("203") // notices and errors
	ColorSage   = lipgloss.Color("114") // success
	ColorAmber  = lipgloss.Color("220") // warnings
	ColorBorder = lipgloss.Color("137")
)

// Styles are the shared lipgloss styles.
var Styles = struct {
	Title      lipgloss.Style
	Banner     lipgloss.Style
	Body       lipgloss.Style
	Prompt     lipgloss.Style
	Key        lipgloss.Style
	Reflection lipgloss.Style
	Notice     lipgloss.Style
	Help       lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Box        lipgloss.Style
}{
	Title:      lipgloss.NewStyle().Bold(true).Foreground(ColorLamp),
	Banner:     lipgloss.NewStyle().Bold(true).Foreground(ColorBrass),
	Body:       lipgloss.NewStyle().Foreground(ColorLinen),
	Prompt:     lipgloss.NewStyle().Bold(true).Foreground(ColorPaper),
	Key:        lipgloss.NewStyle().Bold(true).Foreground(ColorEmber),
	Reflection: lipgloss.NewStyle().Italic(true).Foreground(ColorAsh),
	Notice:     lipgloss.NewStyle().Foreground(ColorBrick),
	Help:       lipgloss.NewStyle().Foreground(ColorSmoke),
	Success:    lipgloss.NewStyle().Foreground(ColorSage),
	Warning:    lipgloss.NewStyle().Foreground(ColorAmber),
	Error:      lipgloss.NewStyle().Foreground(ColorBrick),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
	IconLamp    Icon = "☼"
)

// Render colours the icon for ModeRich.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconLamp:
		return Styles.Banner.Render(string(i))
	default:
		return string(i)
	}
}
