// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traits

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidState is returned by Validate for a state that breaks an invariant.
var ErrInvalidState = errors.New("invalid trait state")

// Scorecard maps dimension → trait-option → counter.
type Scorecard map[Dimension]map[string]int

// Choice is one recorded answer in the history.
//
// Timestamp is Unix milliseconds (UTC).
type Choice struct {
	Zone      string `json:"zone"`
	MomentID  string `json:"momentId"`
	ChoiceKey string `json:"choiceKey"`
	Timestamp int64  `json:"timestamp"`
}

// State is the visitor's accumulated profile.
//
// # Description
//
// State is the unit that is persisted locally and mirrored to the
// persistence service. Its JSON shape is the wire shape.
//
// # Invariants
//
//   - Every counter is non-negative and never decreases.
//   - A choice increments exactly the recognised cells it names.
//   - History is append-only and chronological.
//   - CompletedZones has no duplicates.
//   - UserID never changes once minted.
type State struct {
	UserID         string    `json:"userId"`
	CurrentZone    string    `json:"currentZone"`
	Traits         Scorecard `json:"traits"`
	History        []Choice  `json:"history"`
	CompletedZones []string  `json:"completedZones"`
}

// New returns a zeroed State for userID.
func New(userID string) State {
	return State{
		UserID:         userID,
		Traits:         zeroScorecard(),
		History:        []Choice{},
		CompletedZones: []string{},
	}
}

func zeroScorecard() Scorecard {
	sc := make(Scorecard, len(dimensionOrder))
	for _, d := range dimensionOrder {
		cells := make(map[string]int, len(traitOrder[d]))
		for _, o := range traitOrder[d] {
			cells[o] = 0
		}
		sc[d] = cells
	}
	return sc
}

// Count returns the counter at (d, option); unknown cells read as zero.
func (s State) Count(d Dimension, option string) int {
	return s.Traits[d][option]
}

// DimensionTotal returns the sum of all counters in a dimension.
func (s State) DimensionTotal(d Dimension) int {
	total := 0
	for _, o := range traitOrder[d] {
		total += s.Traits[d][o]
	}
	return total
}

// Increment adds one to the counter at (d, option).
//
// Unrecognised cells are ignored and reported with false; this is not an
// error because content may name cells this build does not know about.
func (s *State) Increment(d Dimension, option string) bool {
	if !IsCell(d, option) {
		return false
	}
	if s.Traits == nil {
		s.Traits = zeroScorecard()
	}
	if s.Traits[d] == nil {
		s.Traits[d] = make(map[string]int, len(traitOrder[d]))
	}
	s.Traits[d][option]++
	return true
}

// Record appends a choice to the history.
func (s *State) Record(c Choice) {
	s.History = append(s.History, c)
}

// IsZoneCompleted reports whether zoneID is in CompletedZones.
func (s State) IsZoneCompleted(zoneID string) bool {
	return slices.Contains(s.CompletedZones, zoneID)
}

// MarkZoneCompleted adds zoneID to CompletedZones.
//
// Returns false, and changes nothing, when the zone is already present.
func (s *State) MarkZoneCompleted(zoneID string) bool {
	if s.IsZoneCompleted(zoneID) {
		return false
	}
	s.CompletedZones = append(s.CompletedZones, zoneID)
	return true
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		UserID:      s.UserID,
		CurrentZone: s.CurrentZone,
	}
	if s.Traits != nil {
		out.Traits = make(Scorecard, len(s.Traits))
		for d, cells := range s.Traits {
			copied := make(map[string]int, len(cells))
			for o, v := range cells {
				copied[o] = v
			}
			out.Traits[d] = copied
		}
	}
	if s.History != nil {
		out.History = slices.Clone(s.History)
	}
	if s.CompletedZones != nil {
		out.CompletedZones = slices.Clone(s.CompletedZones)
	}
	return out
}

// Normalize fills in any missing dimension or cell with zero and replaces
// nil slices with empty ones.
//
// States written by older clients may lack cells; normalising them keeps
// resolution deterministic without touching existing counters.
func (s *State) Normalize() {
	if s.Traits == nil {
		s.Traits = make(Scorecard, len(dimensionOrder))
	}
	for _, d := range dimensionOrder {
		if s.Traits[d] == nil {
			s.Traits[d] = make(map[string]int, len(traitOrder[d]))
		}
		for _, o := range traitOrder[d] {
			if _, ok := s.Traits[d][o]; !ok {
				s.Traits[d][o] = 0
			}
		}
	}
	if s.History == nil {
		s.History = []Choice{}
	}
	if s.CompletedZones == nil {
		s.CompletedZones = []string{}
	}
}

// Validate checks the invariants that can be checked on a snapshot.
//
// # Outputs
//
//   - error: wraps ErrInvalidState naming the first violation, or nil.
func (s State) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("%w: empty userId", ErrInvalidState)
	}
	for d, cells := range s.Traits {
		for o, v := range cells {
			if v < 0 {
				return fmt.Errorf("%w: negative counter %s.%s=%d", ErrInvalidState, d, o, v)
			}
		}
	}
	seen := make(map[string]struct{}, len(s.CompletedZones))
	for _, z := range s.CompletedZones {
		if _, dup := seen[z]; dup {
			return fmt.Errorf("%w: zone %q completed twice", ErrInvalidState, z)
		}
		seen[z] = struct{}{}
	}
	for i := 1; i < len(s.History); i++ {
		if s.History[i].Timestamp < s.History[i-1].Timestamp {
			return fmt.Errorf("%w: history out of order at %d", ErrInvalidState, i)
		}
	}
	return nil
}
