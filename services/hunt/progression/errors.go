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
	"errors"

	"github.com/AleutianAI/warmroom/services/hunt/content"
)

// Every error below leaves the engine state untouched.
var (
	// ErrUnknownZone is returned for a zone id the catalog does not define.
	ErrUnknownZone = content.ErrUnknownZone

	// ErrUnknownMoment is returned for a moment index outside the zone.
	ErrUnknownMoment = content.ErrUnknownMoment

	// ErrInvalidChoice is returned for a choice key the moment does not offer.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrZoneOutOfOrder is returned when starting a zone other than the
	// next one due.
	ErrZoneOutOfOrder = errors.New("zone out of order")

	// ErrZoneAlreadyCompleted is returned when starting a completed zone.
	ErrZoneAlreadyCompleted = errors.New("zone already completed")

	// ErrZoneNotActive is returned for a choice in a zone that is not the
	// current one.
	ErrZoneNotActive = errors.New("zone not active")

	// ErrMomentOutOfOrder is returned for a choice on a moment other than
	// the current one.
	ErrMomentOutOfOrder = errors.New("moment out of order")

	// ErrZoneIncomplete is returned when completing a zone whose moments
	// have not all been answered.
	ErrZoneIncomplete = errors.New("zone incomplete")

	// ErrJourneyIncomplete is returned when rendering the letter before
	// every zone is completed.
	ErrJourneyIncomplete = errors.New("journey incomplete")
)
