// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package progression drives a visitor through the hunt.
//
// # Description
//
// An Engine owns one session: the catalog it reads moments from, the live
// traits.State and the navigation cursor. It sequences zones in the fixed
// order, applies the trait deltas of each accepted choice, persists after
// every mutation through a Saver and publishes an Event for every change.
//
// The journey is a state machine:
//
//	Landing → InZone(i, j) → ZoneComplete(i) → InZone(i+1, 0) → … →
//	JourneyComplete → LetterRendered
//
// A rejected operation returns a sentinel error, publishes an EventError
// and leaves state and cursor unchanged.
//
// # Thread Safety
//
// Engine methods are safe for concurrent use. Snapshots reach the Saver in
// mutation order, and a snapshot overtaken by a newer one is not saved.
// Listeners run after the lock is released.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
)

// Saver persists a snapshot of the state after each mutation.
//
// A Saver error is logged and otherwise ignored; the in-memory state is
// never rolled back.
type Saver interface {
	Save(ctx context.Context, state traits.State) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, state traits.State) error

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, state traits.State) error {
	return f(ctx, state)
}

// Options configures an Engine.
type Options struct {
	// Logger receives rejected operations and save failures. Nil uses
	// slog.Default().
	Logger *slog.Logger

	// Clock stamps history entries. Nil uses time.Now.
	Clock func() time.Time
}

// Engine is one visitor session.
type Engine struct {
	catalog *content.Catalog
	saver   Saver
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     traits.State
	cursor    Cursor
	listeners map[int]Listener
	nextID    int
	mutations uint64 // numbers snapshots, guarded by mu

	saveMu sync.Mutex
	saved  uint64 // last snapshot handed to saver, guarded by saveMu
}

// New creates an engine for state, positioned at Landing.
//
// # Description
//
// The state is cloned and normalised; the caller's copy is not retained.
// Call Resume to restore the cursor of a previously saved state.
//
// # Inputs
//
//   - catalog: Content to traverse. Must not be nil.
//   - state: Profile to mutate. Must carry a user id.
//   - saver: Persistence hook. Nil disables persistence.
//   - opts: Optional configuration.
//
// # Outputs
//
//   - *Engine: Ready engine.
//   - error: Non-nil for a nil catalog or a state that fails validation.
func New(catalog *content.Catalog, state traits.State, saver Saver, opts *Options) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("progression: nil catalog")
	}
	s := state.Clone()
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("progression: %w", err)
	}

	e := &Engine{
		catalog:   catalog,
		saver:     saver,
		logger:    slog.Default(),
		now:       time.Now,
		state:     s,
		cursor:    Cursor{Phase: PhaseLanding},
		listeners: make(map[int]Listener),
	}
	if opts != nil {
		if opts.Logger != nil {
			e.logger = opts.Logger
		}
		if opts.Clock != nil {
			e.now = opts.Clock
		}
	}
	e.logger = e.logger.With("component", "progression", "user_id", s.UserID)
	return e, nil
}

// =============================================================================
// Accessors
// =============================================================================

// Subscribe registers a listener and returns a function that removes it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Cursor returns the current navigation position.
func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// State returns a copy of the live state.
func (e *Engine) State() traits.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Catalog returns the catalog the engine reads from.
func (e *Engine) Catalog() *content.Catalog {
	return e.catalog
}

// CurrentMoment returns the zone and moment under the cursor.
//
// Returns ErrZoneNotActive outside PhaseInZone.
func (e *Engine) CurrentMoment() (content.Zone, content.Moment, error) {
	c := e.Cursor()
	if c.Phase != PhaseInZone {
		return content.Zone{}, content.Moment{}, fmt.Errorf("%w: cursor at %s", ErrZoneNotActive, c)
	}
	z, _ := e.catalog.Zone(c.Zone)
	m, err := e.catalog.Moment(c.Zone, c.Moment)
	return z, m, err
}

// =============================================================================
// Navigation
// =============================================================================

// Resume restores the cursor from the state.
//
// # Description
//
//   - Every zone completed: JourneyComplete.
//   - Fresh state (no history, no completed zones, no current zone): Landing.
//   - Otherwise the first zone not yet completed, at the moment after the
//     last moment of that zone recorded in history, or ZoneComplete when
//     every moment of it was answered.
func (e *Engine) Resume() Cursor {
	e.mu.Lock()
	e.cursor = e.resumeCursorLocked()
	c := e.cursor
	e.mu.Unlock()

	e.logger.Info("session resumed", "cursor", c.String())
	e.emit(Event{Kind: EventResumed, Cursor: c, Zone: c.Zone})
	return c
}

func (e *Engine) resumeCursorLocked() Cursor {
	zoneID, ok := e.nextDueZoneLocked()
	if !ok {
		return Cursor{Phase: PhaseJourneyComplete}
	}
	s := e.state
	if len(s.History) == 0 && len(s.CompletedZones) == 0 && s.CurrentZone == "" {
		return Cursor{Phase: PhaseLanding}
	}

	z, _ := e.catalog.Zone(zoneID)
	next := 0
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Zone != zoneID {
			continue
		}
		if idx := z.MomentIndex(s.History[i].MomentID); idx >= 0 {
			next = idx + 1
		}
		break
	}
	if next >= len(z.Moments) {
		return Cursor{Phase: PhaseZoneComplete, Zone: zoneID, Moment: len(z.Moments) - 1}
	}
	return Cursor{Phase: PhaseInZone, Zone: zoneID, Moment: next}
}

// nextDueZoneLocked returns the first zone in the fixed order that is not
// completed.
func (e *Engine) nextDueZoneLocked() (string, bool) {
	for _, id := range content.ZoneOrder() {
		if !e.state.IsZoneCompleted(id) {
			return id, true
		}
	}
	return "", false
}

// Begin starts the next zone due. When every zone is already completed the
// cursor moves to JourneyComplete instead.
func (e *Engine) Begin(ctx context.Context) error {
	e.mu.Lock()
	zoneID, ok := e.nextDueZoneLocked()
	if !ok {
		e.cursor = Cursor{Phase: PhaseJourneyComplete}
		c := e.cursor
		e.mu.Unlock()
		e.emit(Event{Kind: EventJourneyComplete, Cursor: c})
		return nil
	}
	e.mu.Unlock()
	return e.StartZone(ctx, zoneID)
}

// StartZone enters zoneID at moment 0.
//
// # Description
//
// Only the next zone due in the fixed order may be started, so zones can
// neither be skipped nor revisited. Restarting the active zone rewinds it
// to moment 0.
//
// # Outputs
//
//   - error: ErrUnknownZone, ErrZoneAlreadyCompleted or ErrZoneOutOfOrder.
func (e *Engine) StartZone(ctx context.Context, zoneID string) error {
	e.mu.Lock()
	if _, ok := e.catalog.Zone(zoneID); !ok || content.ZoneIndex(zoneID) < 0 {
		return e.rejectLocked("start_zone", fmt.Errorf("%w: %q", ErrUnknownZone, zoneID))
	}
	if e.state.IsZoneCompleted(zoneID) {
		return e.rejectLocked("start_zone", fmt.Errorf("%w: %q", ErrZoneAlreadyCompleted, zoneID))
	}
	if due, _ := e.nextDueZoneLocked(); due != zoneID {
		return e.rejectLocked("start_zone", fmt.Errorf("%w: %q requested, %q due", ErrZoneOutOfOrder, zoneID, due))
	}

	e.state.CurrentZone = zoneID
	e.cursor = Cursor{Phase: PhaseInZone, Zone: zoneID, Moment: 0}
	snapshot, seq, c := e.state.Clone(), e.nextMutationLocked(), e.cursor
	e.mu.Unlock()

	e.persist(ctx, seq, snapshot)
	e.emit(Event{Kind: EventZoneStarted, Cursor: c, Zone: zoneID})
	return nil
}

// SubmitChoice applies choiceKey to moment momentIndex of zoneID.
//
// # Description
//
// On success, in order: the choice is appended to history, every
// recognised (dimension, option) pair of the option's trait map is
// incremented by one, the state is persisted, and the cursor advances to
// the next moment or to ZoneComplete after the last one. Unrecognised
// trait pairs are skipped.
//
// # Outputs
//
//   - content.Option: the chosen option, for its feedback text.
//   - error: ErrUnknownZone, ErrZoneNotActive, ErrUnknownMoment,
//     ErrMomentOutOfOrder or ErrInvalidChoice.
func (e *Engine) SubmitChoice(ctx context.Context, zoneID string, momentIndex int, choiceKey string) (content.Option, error) {
	e.mu.Lock()
	z, ok := e.catalog.Zone(zoneID)
	if !ok {
		return content.Option{}, e.rejectLocked("submit_choice", fmt.Errorf("%w: %q", ErrUnknownZone, zoneID))
	}
	if e.cursor.Phase != PhaseInZone || e.cursor.Zone != zoneID {
		return content.Option{}, e.rejectLocked("submit_choice",
			fmt.Errorf("%w: %q while cursor at %s", ErrZoneNotActive, zoneID, e.cursor))
	}
	if momentIndex < 0 || momentIndex >= len(z.Moments) {
		return content.Option{}, e.rejectLocked("submit_choice",
			fmt.Errorf("%w: %s[%d]", ErrUnknownMoment, zoneID, momentIndex))
	}
	if momentIndex != e.cursor.Moment {
		return content.Option{}, e.rejectLocked("submit_choice",
			fmt.Errorf("%w: got %d, current %d", ErrMomentOutOfOrder, momentIndex, e.cursor.Moment))
	}
	moment := z.Moments[momentIndex]
	opt, ok := moment.Options[choiceKey]
	if !ok {
		return content.Option{}, e.rejectLocked("submit_choice",
			fmt.Errorf("%w: %q not offered by %s/%s", ErrInvalidChoice, choiceKey, zoneID, moment.ID))
	}

	choice := traits.Choice{
		Zone:      zoneID,
		MomentID:  moment.ID,
		ChoiceKey: choiceKey,
		Timestamp: e.timestampLocked(),
	}
	e.state.Record(choice)
	for dim, option := range opt.Traits {
		if !e.state.Increment(traits.Dimension(dim), option) {
			e.logger.Debug("ignoring unrecognised trait", "dimension", dim, "option", option)
		}
	}

	finished := momentIndex+1 >= len(z.Moments)
	if finished {
		e.cursor = Cursor{Phase: PhaseZoneComplete, Zone: zoneID, Moment: momentIndex}
	} else {
		e.cursor = Cursor{Phase: PhaseInZone, Zone: zoneID, Moment: momentIndex + 1}
	}
	snapshot, seq, c := e.state.Clone(), e.nextMutationLocked(), e.cursor
	e.mu.Unlock()

	e.persist(ctx, seq, snapshot)
	e.emit(Event{Kind: EventChoiceRecorded, Cursor: c, Zone: zoneID, Choice: &choice, Option: &opt})
	if finished {
		e.emit(Event{Kind: EventZoneFinished, Cursor: c, Zone: zoneID})
	}
	return opt, nil
}

// CompleteZone adds zoneID to the completed set and moves on.
//
// # Description
//
// Completing an already completed zone is a no-op. Otherwise every moment
// of the zone must have been answered. The cursor then moves to the next
// zone at moment 0, or to JourneyComplete after the last zone.
//
// # Outputs
//
//   - error: ErrUnknownZone or ErrZoneIncomplete.
func (e *Engine) CompleteZone(ctx context.Context, zoneID string) error {
	e.mu.Lock()
	if _, ok := e.catalog.Zone(zoneID); !ok || content.ZoneIndex(zoneID) < 0 {
		return e.rejectLocked("complete_zone", fmt.Errorf("%w: %q", ErrUnknownZone, zoneID))
	}
	if e.state.IsZoneCompleted(zoneID) {
		e.mu.Unlock()
		return nil
	}
	if e.cursor.Phase != PhaseZoneComplete || e.cursor.Zone != zoneID {
		return e.rejectLocked("complete_zone",
			fmt.Errorf("%w: %q while cursor at %s", ErrZoneIncomplete, zoneID, e.cursor))
	}

	e.state.MarkZoneCompleted(zoneID)
	events := []Event{}
	if next, ok := content.NextZone(zoneID); ok {
		e.state.CurrentZone = next
		e.cursor = Cursor{Phase: PhaseInZone, Zone: next, Moment: 0}
		events = append(events,
			Event{Kind: EventZoneCompleted, Cursor: e.cursor, Zone: zoneID},
			Event{Kind: EventZoneStarted, Cursor: e.cursor, Zone: next},
		)
	} else {
		e.cursor = Cursor{Phase: PhaseJourneyComplete}
		events = append(events,
			Event{Kind: EventZoneCompleted, Cursor: e.cursor, Zone: zoneID},
			Event{Kind: EventJourneyComplete, Cursor: e.cursor},
		)
	}
	snapshot, seq := e.state.Clone(), e.nextMutationLocked()
	e.mu.Unlock()

	e.persist(ctx, seq, snapshot)
	for _, ev := range events {
		e.emit(ev)
	}
	return nil
}

// RenderLetter composes the closing letter from the current counters.
//
// # Outputs
//
//   - resolution.Letter: the composed letter.
//   - error: ErrJourneyIncomplete before JourneyComplete, or a
//     resolution.ErrMissingVariant from composing.
func (e *Engine) RenderLetter(variants content.LetterVariants) (resolution.Letter, error) {
	e.mu.Lock()
	if e.cursor.Phase != PhaseJourneyComplete && e.cursor.Phase != PhaseLetterRendered {
		return resolution.Letter{}, e.rejectLocked("render_letter",
			fmt.Errorf("%w: cursor at %s", ErrJourneyIncomplete, e.cursor))
	}
	letter, err := resolution.Compose(resolution.Resolve(e.state), variants)
	if err != nil {
		return resolution.Letter{}, e.rejectLocked("render_letter", err)
	}
	e.cursor = Cursor{Phase: PhaseLetterRendered}
	c := e.cursor
	e.mu.Unlock()

	e.emit(Event{Kind: EventLetterRendered, Cursor: c, Letter: &letter})
	return letter, nil
}

// =============================================================================
// Internals
// =============================================================================

// timestampLocked returns a millisecond timestamp never earlier than the
// last history entry.
func (e *Engine) timestampLocked() int64 {
	ts := e.now().UTC().UnixMilli()
	if n := len(e.state.History); n > 0 && e.state.History[n-1].Timestamp > ts {
		ts = e.state.History[n-1].Timestamp
	}
	return ts
}

// rejectLocked logs err, releases the lock, publishes an EventError and
// returns err.
func (e *Engine) rejectLocked(op string, err error) error {
	c := e.cursor
	e.mu.Unlock()

	e.logger.Info("operation rejected", "op", op, "cursor", c.String(), "error", err)
	e.emit(Event{Kind: EventError, Cursor: c, Err: err})
	return err
}

// nextMutationLocked numbers the snapshot being taken.
func (e *Engine) nextMutationLocked() uint64 {
	e.mutations++
	return e.mutations
}

// persist hands snapshot seq to the saver unless a newer one got there
// first.
func (e *Engine) persist(ctx context.Context, seq uint64, snapshot traits.State) {
	if e.saver == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if seq <= e.saved {
		e.logger.Debug("skipping superseded snapshot", "seq", seq, "saved", e.saved)
		return
	}
	e.saved = seq
	if err := e.saver.Save(ctx, snapshot); err != nil {
		e.logger.Warn("state save failed, continuing with in-memory state", "error", err)
	}
}

func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	for id := 0; id < e.nextID; id++ {
		if l, ok := e.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	e.mu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}
