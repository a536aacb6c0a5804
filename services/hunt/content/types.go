// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package content supplies the static story content of the hunt.
//
// # Description
//
// A Catalog holds the five zones (each an ordered list of moments) and the
// letter variants used to compose the closing letter. Catalogs are loaded
// from YAML or JSON, validated once, and never mutated afterwards. The Store
// hands out the current catalog; a Watcher may swap in a freshly loaded one,
// but a catalog already handed out stays unchanged.
//
// # Thread Safety
//
// Catalog values are read-only after Parse returns and are safe to share.
// Store is safe for concurrent use.
package content

import (
	"fmt"
	"slices"
	"sort"
)

// zoneOrder is the fixed traversal order of the journey.
var zoneOrder = []string{"zone1", "zone2", "zone3", "zone4", "zone5"}

// ZoneOrder returns the fixed zone traversal order.
func ZoneOrder() []string {
	return slices.Clone(zoneOrder)
}

// =============================================================================
// Catalog Types
// =============================================================================

// Catalog is the whole content store.
type Catalog struct {
	// Zones maps zone id to its definition.
	Zones map[string]Zone `json:"zones" yaml:"zones" validate:"required,dive"`

	// Letters holds the closing-letter fragments.
	Letters LetterVariants `json:"letters" yaml:"letters"`
}

// Zone is one ordered section of the journey.
type Zone struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Title   string   `json:"title" yaml:"title" validate:"required"`
	Moments []Moment `json:"moments" yaml:"moments" validate:"required,min=1,dive"`
}

// Moment is one prompt/choice step inside a zone.
type Moment struct {
	ID      string            `json:"id" yaml:"id" validate:"required"`
	Story   string            `json:"story" yaml:"story"`
	Prompt  string            `json:"prompt" yaml:"prompt" validate:"required"`
	Options map[string]Option `json:"options" yaml:"options" validate:"required,min=2,dive"`
}

// Option is one answer to a moment.
//
// Traits maps a dimension name to the single trait-option the answer
// increments in that dimension. Being a map, it can never name two options
// in the same dimension.
type Option struct {
	Text               string            `json:"text" yaml:"text" validate:"required"`
	Traits             map[string]string `json:"traits" yaml:"traits"`
	Player             string            `json:"player,omitempty" yaml:"player,omitempty"`
	FeedbackStory      string            `json:"feedbackStory" yaml:"feedbackStory"`
	FeedbackReflection string            `json:"feedbackReflection" yaml:"feedbackReflection"`
}

// DefaultNoticingKey names the noticing fragment used when no pattern
// matches. Every catalog must define it.
const DefaultNoticingKey = "systemsRoot"

// LetterVariants are the fragments the closing letter is assembled from.
type LetterVariants struct {
	// Opening is keyed by dominant orientation.
	Opening map[string]string `json:"opening" yaml:"opening" validate:"required"`

	// Ambiguity is keyed by dominant ambiguity.
	Ambiguity map[string]string `json:"ambiguity" yaml:"ambiguity" validate:"required"`

	// DecisionStyle is keyed by dominant decision style.
	DecisionStyle map[string]string `json:"decisionStyle" yaml:"decisionStyle" validate:"required"`

	// Noticing is keyed by the noticing-pattern key.
	Noticing map[string]string `json:"noticing" yaml:"noticing" validate:"required"`

	// DecisionPhrase is the short "when uncertain, you ..." phrase keyed by
	// dominant decision style.
	DecisionPhrase map[string]string `json:"decisionPhrase" yaml:"decisionPhrase" validate:"required"`

	Connection string `json:"connection" yaml:"connection" validate:"required"`
	Invitation string `json:"invitation" yaml:"invitation" validate:"required"`
	Signature  string `json:"signature" yaml:"signature"`
}

// =============================================================================
// Lookups
// =============================================================================

// Zone returns the zone with the given id.
func (c *Catalog) Zone(id string) (Zone, bool) {
	z, ok := c.Zones[id]
	return z, ok
}

// Moment returns moment idx of zone zoneID.
//
// # Outputs
//
//   - Moment: the moment, zero value on error.
//   - error: ErrUnknownZone or ErrUnknownMoment.
func (c *Catalog) Moment(zoneID string, idx int) (Moment, error) {
	z, ok := c.Zones[zoneID]
	if !ok {
		return Moment{}, fmt.Errorf("%w: %q", ErrUnknownZone, zoneID)
	}
	if idx < 0 || idx >= len(z.Moments) {
		return Moment{}, fmt.Errorf("%w: %s[%d]", ErrUnknownMoment, zoneID, idx)
	}
	return z.Moments[idx], nil
}

// ZoneIndex returns the position of zoneID in the fixed order, or -1.
func ZoneIndex(zoneID string) int {
	return slices.Index(zoneOrder, zoneID)
}

// NextZone returns the zone after zoneID in the fixed order.
//
// Returns false when zoneID is the last zone or not part of the order.
func NextZone(zoneID string) (string, bool) {
	i := ZoneIndex(zoneID)
	if i < 0 || i+1 >= len(zoneOrder) {
		return "", false
	}
	return zoneOrder[i+1], true
}

// OptionKeys returns the moment's choice keys in sorted order.
func (m Moment) OptionKeys() []string {
	keys := make([]string, 0, len(m.Options))
	for k := range m.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MomentIndex returns the position of momentID within the zone, or -1.
func (z Zone) MomentIndex(momentID string) int {
	for i, m := range z.Moments {
		if m.ID == momentID {
			return i
		}
	}
	return -1
}
