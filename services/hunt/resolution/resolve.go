// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolution turns a trait scorecard into letter-variant keys.
//
// # Description
//
// Every function here is a pure function of the counters in a traits.State.
// Ties are broken by the fixed enumeration order in package traits, so the
// same counters always produce the same letter.
package resolution

import (
	"sort"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
)

// =============================================================================
// Dominant Traits
// =============================================================================

// Dominant returns the trait-option with the strictly highest counter in d.
//
// # Description
//
// Iterates options in enumeration order and only replaces the current
// leader on a strictly greater value, so the first-enumerated option wins
// any tie. When every counter is zero the first option is returned.
//
// # Outputs
//
//   - string: the dominant option, or "" only if d is not a known dimension.
func Dominant(s traits.State, d traits.Dimension) string {
	opts := traits.Options(d)
	if len(opts) == 0 {
		return ""
	}
	best, bestVal := opts[0], s.Count(d, opts[0])
	for _, o := range opts[1:] {
		if v := s.Count(d, o); v > bestVal {
			best, bestVal = o, v
		}
	}
	return best
}

// Dominants resolves every dimension.
func Dominants(s traits.State) map[traits.Dimension]string {
	out := make(map[traits.Dimension]string, len(traits.Dimensions()))
	for _, d := range traits.Dimensions() {
		out[d] = Dominant(s, d)
	}
	return out
}

// Ranked is one scored cell.
type Ranked struct {
	traits.Cell
	Value int `json:"value"`
}

// TopTraits returns the n highest cells across all dimensions.
//
// Cells are flattened in enumeration order and stable-sorted by value,
// descending; equal values keep enumeration order. n larger than the number
// of cells returns every cell.
func TopTraits(s traits.State, n int) []Ranked {
	var all []Ranked
	for _, d := range traits.Dimensions() {
		for _, o := range traits.Options(d) {
			all = append(all, Ranked{Cell: traits.Cell{Dimension: d, Option: o}, Value: s.Count(d, o)})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Value > all[j].Value })
	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// =============================================================================
// Noticing Pattern
// =============================================================================

// DefaultNoticingKey is selected when no pattern matches the top pair.
const DefaultNoticingKey = content.DefaultNoticingKey

// noticingPattern matches when both cells are in the top pair, in either
// order.
type noticingPattern struct {
	key  string
	a, b traits.Cell
}

// noticingTable is evaluated top to bottom; the first match wins.
var noticingTable = []noticingPattern{
	{"systemsRoot", cell(traits.Orientation, traits.Systems), cell(traits.ChangeInstinct, traits.RootCause)},
	{"peopleUX", cell(traits.Orientation, traits.People), cell(traits.ProductLens, traits.UX)},
	{"outcomeBusiness", cell(traits.Orientation, traits.Outcome), cell(traits.ProductLens, traits.Business)},
	{"systemsRedesign", cell(traits.Orientation, traits.Systems), cell(traits.ChangeInstinct, traits.Redesign)},
	{"peopleDeliberate", cell(traits.Orientation, traits.People), cell(traits.DecisionStyle, traits.Deliberate)},
	{"outcomeDecisive", cell(traits.Orientation, traits.Outcome), cell(traits.DecisionStyle, traits.Decisive)},
}

func cell(d traits.Dimension, o string) traits.Cell {
	return traits.Cell{Dimension: d, Option: o}
}

// NoticingKeys returns every key the noticing table can select, in
// priority order.
func NoticingKeys() []string {
	keys := make([]string, len(noticingTable))
	for i, p := range noticingTable {
		keys[i] = p.key
	}
	return keys
}

// NoticingKey matches the top pair against the priority table.
//
// Fewer than two cells, or no matching row, yields DefaultNoticingKey.
func NoticingKey(top []Ranked) string {
	if len(top) < 2 {
		return DefaultNoticingKey
	}
	x, y := top[0].Cell, top[1].Cell
	for _, p := range noticingTable {
		if (x == p.a && y == p.b) || (x == p.b && y == p.a) {
			return p.key
		}
	}
	return DefaultNoticingKey
}

// =============================================================================
// Outcome
// =============================================================================

// Outcome is everything the letter needs from a scorecard.
type Outcome struct {
	Dominants   map[traits.Dimension]string `json:"dominants"`
	Top         []Ranked                    `json:"top"`
	NoticingKey string                      `json:"noticingKey"`
}

// Resolve computes the Outcome for s.
func Resolve(s traits.State) Outcome {
	top := TopTraits(s, 2)
	return Outcome{
		Dominants:   Dominants(s),
		Top:         top,
		NoticingKey: NoticingKey(top),
	}
}
