// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
)

// ErrMissingVariant is returned when the variants have no text for a key.
var ErrMissingVariant = errors.New("missing letter variant")

// Patterns is the short summary printed under the letter.
type Patterns struct {
	Orientation    string `json:"orientation"`
	DecisionPhrase string `json:"decisionPhrase"`
	ProductLens    string `json:"productLens"`
}

// Letter is a composed closing letter.
type Letter struct {
	Paragraphs  []string `json:"paragraphs"`
	Signature   string   `json:"signature,omitempty"`
	NoticingKey string   `json:"noticingKey"`
	Patterns    Patterns `json:"patterns"`
}

// Compose selects the letter text for an outcome.
//
// # Description
//
// Paragraphs are, in order: opening[orientation], ambiguity[ambiguity],
// decisionStyle[decisionStyle], noticing[key], connection, invitation.
// When the variants lack the selected noticing key, the default key's text
// is used instead.
//
// # Outputs
//
//   - Letter: the composed letter.
//   - error: wraps ErrMissingVariant naming the first lookup that failed.
func Compose(o Outcome, v content.LetterVariants) (Letter, error) {
	orientation := o.Dominants[traits.Orientation]
	ambiguity := o.Dominants[traits.Ambiguity]
	decision := o.Dominants[traits.DecisionStyle]

	lookups := []struct {
		name  string
		table map[string]string
		key   string
	}{
		{"opening", v.Opening, orientation},
		{"ambiguity", v.Ambiguity, ambiguity},
		{"decisionStyle", v.DecisionStyle, decision},
		{"decisionPhrase", v.DecisionPhrase, decision},
	}
	text := make(map[string]string, len(lookups))
	for _, l := range lookups {
		s, ok := l.table[l.key]
		if !ok || s == "" {
			return Letter{}, fmt.Errorf("%w: %s[%q]", ErrMissingVariant, l.name, l.key)
		}
		text[l.name] = s
	}

	noticingKey := o.NoticingKey
	noticing, ok := v.Noticing[noticingKey]
	if !ok || noticing == "" {
		noticingKey = DefaultNoticingKey
		noticing, ok = v.Noticing[noticingKey]
		if !ok || noticing == "" {
			return Letter{}, fmt.Errorf("%w: noticing[%q]", ErrMissingVariant, o.NoticingKey)
		}
	}

	return Letter{
		Paragraphs: []string{
			text["opening"],
			text["ambiguity"],
			text["decisionStyle"],
			noticing,
			v.Connection,
			v.Invitation,
		},
		Signature:   v.Signature,
		NoticingKey: noticingKey,
		Patterns: Patterns{
			Orientation:    orientation,
			DecisionPhrase: text["decisionPhrase"],
			ProductLens:    o.Dominants[traits.ProductLens],
		},
	}, nil
}

// CheckVariants lists noticing keys the table can select but the variants
// do not define. Such keys fall back to the default text at compose time.
func CheckVariants(v content.LetterVariants) []string {
	var missing []string
	for _, k := range NoticingKeys() {
		if v.Noticing[k] == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// VariantWarnings describes each noticing key CheckVariants reports, in
// the form content validation prints its warnings.
func VariantWarnings(c *content.Catalog) []string {
	var warnings []string
	for _, k := range CheckVariants(c.Letters) {
		warnings = append(warnings, fmt.Sprintf("letters.noticing has no variant for %q, the %q text is used instead",
			k, DefaultNoticingKey))
	}
	return warnings
}

// Text renders the letter as plain text.
func (l Letter) Text() string {
	var b strings.Builder
	for _, p := range l.Paragraphs {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	if l.Signature != "" {
		b.WriteString("- ")
		b.WriteString(l.Signature)
		b.WriteString("\n\n")
	}
	b.WriteString("Patterns we noticed\n")
	fmt.Fprintf(&b, "  * You tend to notice %s first\n", l.Patterns.Orientation)
	fmt.Fprintf(&b, "  * When uncertain, you %s\n", l.Patterns.DecisionPhrase)
	fmt.Fprintf(&b, "  * You're drawn to %s thinking\n", l.Patterns.ProductLens)
	return b.String()
}
