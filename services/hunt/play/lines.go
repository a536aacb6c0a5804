// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package play renders the hunt in a terminal.
//
// # Description
//
// Two renderers drive a progression.Engine: a line renderer for pipes and
// dumb terminals, and a bubbletea TUI for interactive terminals. Both learn
// about state changes by subscribing to engine events; the engine never
// calls into them.
package play

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/progression"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
)

// ErrQuit is returned when the visitor leaves before the letter.
var ErrQuit = errors.New("quit")

// LineRenderer plays the hunt over plain text streams.
type LineRenderer struct {
	engine  *progression.Engine
	letters content.LetterVariants
	in      *bufio.Scanner
	out     io.Writer
}

// NewLineRenderer creates a renderer reading answers from in and writing
// to out.
func NewLineRenderer(engine *progression.Engine, letters content.LetterVariants, in io.Reader, out io.Writer) *LineRenderer {
	return &LineRenderer{
		engine:  engine,
		letters: letters,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// Run plays from the current cursor to the closing letter.
//
// # Outputs
//
//   - resolution.Letter: the rendered letter.
//   - error: ErrQuit when the visitor typed q or input ended, ctx.Err() on
//     cancellation, or a letter composition error.
func (r *LineRenderer) Run(ctx context.Context) (resolution.Letter, error) {
	unsubscribe := r.engine.Subscribe(r.onEvent)
	defer unsubscribe()

	for {
		if err := ctx.Err(); err != nil {
			return resolution.Letter{}, err
		}
		c := r.engine.Cursor()
		switch c.Phase {
		case progression.PhaseLanding:
			r.printf("Welcome to the warm room. Answer with the letter of your choice, or q to leave.\n")
			if err := r.engine.Begin(ctx); err != nil {
				return resolution.Letter{}, err
			}
		case progression.PhaseInZone:
			if err := r.askMoment(ctx, c); err != nil {
				return resolution.Letter{}, err
			}
		case progression.PhaseZoneComplete:
			if err := r.engine.CompleteZone(ctx, c.Zone); err != nil {
				return resolution.Letter{}, err
			}
		case progression.PhaseJourneyComplete, progression.PhaseLetterRendered:
			letter, err := r.engine.RenderLetter(r.letters)
			if err != nil {
				return resolution.Letter{}, err
			}
			r.printf("\n%s", letter.Text())
			return letter, nil
		}
	}
}

func (r *LineRenderer) askMoment(ctx context.Context, c progression.Cursor) error {
	zone, moment, err := r.engine.CurrentMoment()
	if err != nil {
		return err
	}
	if c.Moment == 0 {
		r.printf("\n== %s ==\n", zone.Title)
	}
	if moment.Story != "" {
		r.printf("\n%s\n", moment.Story)
	}
	r.printf("\n%s\n", moment.Prompt)
	for _, k := range moment.OptionKeys() {
		r.printf("  %s) %s\n", k, moment.Options[k].Text)
	}

	for {
		r.printf("> ")
		if !r.in.Scan() {
			if err := r.in.Err(); err != nil {
				return fmt.Errorf("read answer: %w", err)
			}
			return ErrQuit
		}
		answer := strings.ToLower(strings.TrimSpace(r.in.Text()))
		if answer == "q" {
			return ErrQuit
		}
		_, err := r.engine.SubmitChoice(ctx, c.Zone, c.Moment, answer)
		if errors.Is(err, progression.ErrInvalidChoice) {
			continue
		}
		return err
	}
}

func (r *LineRenderer) onEvent(ev progression.Event) {
	switch ev.Kind {
	case progression.EventChoiceRecorded:
		opt := ev.Option
		if opt.Player != "" {
			r.printf("\n%s\n", opt.Player)
		}
		if opt.FeedbackStory != "" {
			r.printf("%s\n", opt.FeedbackStory)
		}
		if opt.FeedbackReflection != "" {
			r.printf("  (%s)\n", opt.FeedbackReflection)
		}
	case progression.EventZoneCompleted:
		r.printf("\n[%s complete]\n", ev.Zone)
	case progression.EventJourneyComplete:
		r.printf("\nEvery zone is behind you. Here is your letter.\n")
	case progression.EventError:
		if errors.Is(ev.Err, progression.ErrInvalidChoice) {
			r.printf("That is not one of the options.\n")
			return
		}
		r.printf("error: %v\n", ev.Err)
	}
}

func (r *LineRenderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
