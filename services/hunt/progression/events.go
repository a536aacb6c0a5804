// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package progression

import (
	"fmt"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
)

// =============================================================================
// Cursor
// =============================================================================

// Phase is the coarse position in the journey.
type Phase int

const (
	// PhaseLanding is before the first zone is started.
	PhaseLanding Phase = iota

	// PhaseInZone is answering moment Cursor.Moment of Cursor.Zone.
	PhaseInZone

	// PhaseZoneComplete is after the last moment of Cursor.Zone was
	// answered, before the zone is marked completed.
	PhaseZoneComplete

	// PhaseJourneyComplete is after every zone is completed.
	PhaseJourneyComplete

	// PhaseLetterRendered is after the closing letter was composed.
	PhaseLetterRendered
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseLanding:
		return "landing"
	case PhaseInZone:
		return "in_zone"
	case PhaseZoneComplete:
		return "zone_complete"
	case PhaseJourneyComplete:
		return "journey_complete"
	case PhaseLetterRendered:
		return "letter_rendered"
	default:
		return "unknown"
	}
}

// Cursor is the navigation position.
//
// Zone and Moment are meaningful in PhaseInZone and PhaseZoneComplete only.
type Cursor struct {
	Phase  Phase
	Zone   string
	Moment int
}

// String renders the cursor for logs.
func (c Cursor) String() string {
	switch c.Phase {
	case PhaseInZone:
		return fmt.Sprintf("%s(%s,%d)", c.Phase, c.Zone, c.Moment)
	case PhaseZoneComplete:
		return fmt.Sprintf("%s(%s)", c.Phase, c.Zone)
	default:
		return c.Phase.String()
	}
}

// =============================================================================
// Events
// =============================================================================

// EventKind says what changed.
type EventKind int

const (
	// EventResumed follows Resume.
	EventResumed EventKind = iota

	// EventZoneStarted follows a zone being entered at moment 0.
	EventZoneStarted

	// EventChoiceRecorded follows an accepted choice. Option carries the
	// feedback to show.
	EventChoiceRecorded

	// EventZoneFinished follows the last moment of a zone being answered.
	EventZoneFinished

	// EventZoneCompleted follows a zone being added to the completed set.
	EventZoneCompleted

	// EventJourneyComplete follows the last zone being completed.
	EventJourneyComplete

	// EventLetterRendered follows the closing letter being composed.
	EventLetterRendered

	// EventError follows a rejected operation. Err is set; state did not
	// change.
	EventError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventResumed:
		return "resumed"
	case EventZoneStarted:
		return "zone_started"
	case EventChoiceRecorded:
		return "choice_recorded"
	case EventZoneFinished:
		return "zone_finished"
	case EventZoneCompleted:
		return "zone_completed"
	case EventJourneyComplete:
		return "journey_complete"
	case EventLetterRendered:
		return "letter_rendered"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event describes one state change.
//
// Renderers subscribe to events instead of being called by the engine.
type Event struct {
	Kind   EventKind
	Cursor Cursor

	// Zone is the zone the event concerns, if any.
	Zone string

	// Choice and Option are set for EventChoiceRecorded.
	Choice *traits.Choice
	Option *content.Option

	// Letter is set for EventLetterRendered.
	Letter *resolution.Letter

	// Err is set for EventError.
	Err error
}

// Listener receives events. It is called synchronously after the engine
// lock is released, so it may call back into the engine.
type Listener func(Event)
