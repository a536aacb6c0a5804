// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traits holds the visitor's accumulated profile for the hunt.
//
// # Description
//
// A State is the scorecard the progression engine mutates: one non-negative
// counter per (dimension, trait-option) cell, an append-only choice history,
// the set of completed zones and the zone the visitor is currently in.
//
// The set of dimensions and the trait-options inside each dimension is fixed.
// Their enumeration order is significant: the resolution engine breaks ties
// by it, so the order here must never be shuffled.
//
// # Thread Safety
//
// State is a plain value type and is NOT safe for concurrent mutation. The
// engine owns the live copy; everything else works on Clone()s.
package traits

// =============================================================================
// Dimensions
// =============================================================================

// Dimension names one axis of the profile.
type Dimension string

const (
	// Orientation is what the visitor notices first.
	Orientation Dimension = "orientation"

	// ProductLens is the lens the visitor judges a product through.
	ProductLens Dimension = "productLens"

	// ChangeInstinct is how the visitor reacts to something broken.
	ChangeInstinct Dimension = "changeInstinct"

	// DecisionStyle is how the visitor commits under uncertainty.
	DecisionStyle Dimension = "decisionStyle"

	// Ambiguity is how comfortable the visitor is with gaps.
	Ambiguity Dimension = "ambiguity"
)

// Trait-option names, grouped by dimension.
const (
	Systems = "systems"
	People  = "people"
	Outcome = "outcome"

	UX       = "ux"
	Business = "business"
	System   = "system"

	RootCause = "rootCause"
	Redesign  = "redesign"
	Symptoms  = "symptoms"

	Deliberate = "deliberate"
	Decisive   = "decisive"
	Iterative  = "iterative"

	Avoids   = "avoids"
	Manages  = "manages"
	Explores = "explores"
)

// dimensionOrder is the fixed enumeration order of dimensions.
var dimensionOrder = []Dimension{
	Orientation,
	ProductLens,
	ChangeInstinct,
	DecisionStyle,
	Ambiguity,
}

// traitOrder is the fixed enumeration order of trait-options per dimension.
var traitOrder = map[Dimension][]string{
	Orientation:    {Systems, People, Outcome},
	ProductLens:    {UX, Business, System},
	ChangeInstinct: {RootCause, Redesign, Symptoms},
	DecisionStyle:  {Deliberate, Decisive, Iterative},
	Ambiguity:      {Avoids, Manages, Explores},
}

// Dimensions returns the fixed dimension set in enumeration order.
//
// The returned slice is a copy; callers may modify it.
func Dimensions() []Dimension {
	out := make([]Dimension, len(dimensionOrder))
	copy(out, dimensionOrder)
	return out
}

// Options returns the trait-options of a dimension in enumeration order.
//
// Returns nil for an unknown dimension.
func Options(d Dimension) []string {
	opts, ok := traitOrder[d]
	if !ok {
		return nil
	}
	out := make([]string, len(opts))
	copy(out, opts)
	return out
}

// IsDimension reports whether d is one of the fixed dimensions.
func IsDimension(d Dimension) bool {
	_, ok := traitOrder[d]
	return ok
}

// IsCell reports whether (d, option) names a recognised counter cell.
func IsCell(d Dimension, option string) bool {
	for _, o := range traitOrder[d] {
		if o == option {
			return true
		}
	}
	return false
}

// Cell addresses a single counter.
type Cell struct {
	Dimension Dimension `json:"dimension"`
	Option    string    `json:"option"`
}

// String renders the cell as "dimension.option".
func (c Cell) String() string {
	return string(c.Dimension) + "." + c.Option
}
