// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package play

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/warmroom/pkg/ux"
	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/progression"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Stage
// =============================================================================

// stage is what the TUI is showing.
type stage int

const (
	stageLanding stage = iota
	stageMoment
	stageFeedback
	stageZoneDone
	stageLetter
)

// eventFeed buffers engine events until the next Update. Listeners run
// synchronously inside engine calls made from Update, so no locking is
// needed.
type eventFeed struct {
	events []progression.Event
}

func (f *eventFeed) push(ev progression.Event) {
	f.events = append(f.events, ev)
}

func (f *eventFeed) drain() []progression.Event {
	out := f.events
	f.events = nil
	return out
}

// =============================================================================
// Model
// =============================================================================

// TUI is the bubbletea model for the hunt.
type TUI struct {
	ctx     context.Context
	engine  *progression.Engine
	letters content.LetterVariants
	feed    *eventFeed

	stage    stage
	zone     content.Zone
	moment   content.Moment
	feedback *content.Option
	banner   string
	notice   string

	letter   *resolution.Letter
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	quitting bool
	err      error
}

// NewTUI creates the model. The returned unsubscribe function detaches
// it from the engine.
func NewTUI(ctx context.Context, engine *progression.Engine, letters content.LetterVariants) (TUI, func()) {
	m := TUI{
		ctx:     ctx,
		engine:  engine,
		letters: letters,
		feed:    &eventFeed{},
		width:   80,
	}
	unsubscribe := engine.Subscribe(m.feed.push)
	m.syncStage()
	return m, unsubscribe
}

// Letter returns the rendered letter, if the journey got that far.
func (m TUI) Letter() (resolution.Letter, bool) {
	if m.letter == nil {
		return resolution.Letter{}, false
	}
	return *m.letter, true
}

// Err returns the error that stopped the model, if any.
func (m TUI) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m TUI) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.stage == stageLetter {
			m.sizeViewport()
		}
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" || key == "q" || key == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
		m.notice = ""
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		m.absorbEvents()
		return m, cmd
	}

	if m.stage == stageLetter {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m TUI) handleKey(msg tea.KeyMsg) (TUI, tea.Cmd) {
	key := msg.String()
	switch m.stage {
	case stageLanding:
		if key == "enter" {
			if err := m.engine.Begin(m.ctx); err != nil {
				return m.fail(err)
			}
			m.syncStage()
		}

	case stageMoment:
		c := m.engine.Cursor()
		opt, err := m.engine.SubmitChoice(m.ctx, c.Zone, c.Moment, key)
		if errors.Is(err, progression.ErrInvalidChoice) {
			m.notice = fmt.Sprintf("%q is not one of the options", key)
			return m, nil
		}
		if err != nil {
			return m.fail(err)
		}
		m.feedback = &opt
		m.banner = ""
		m.stage = stageFeedback

	case stageFeedback, stageZoneDone:
		if key != "enter" {
			return m, nil
		}
		m.feedback = nil
		if c := m.engine.Cursor(); c.Phase == progression.PhaseZoneComplete {
			if err := m.engine.CompleteZone(m.ctx, c.Zone); err != nil {
				return m.fail(err)
			}
		}
		m.syncStage()

	case stageLetter:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// syncStage moves the model to whatever the engine cursor shows.
func (m *TUI) syncStage() {
	c := m.engine.Cursor()
	switch c.Phase {
	case progression.PhaseLanding:
		m.stage = stageLanding
	case progression.PhaseInZone:
		zone, moment, err := m.engine.CurrentMoment()
		if err != nil {
			m.err = err
			return
		}
		m.zone, m.moment = zone, moment
		m.stage = stageMoment
	case progression.PhaseZoneComplete:
		m.zone, _ = m.engine.Catalog().Zone(c.Zone)
		m.stage = stageZoneDone
	case progression.PhaseJourneyComplete, progression.PhaseLetterRendered:
		letter, err := m.engine.RenderLetter(m.letters)
		if err != nil {
			m.err = err
			return
		}
		m.letter = &letter
		m.stage = stageLetter
		m.sizeViewport()
	}
}

func (m *TUI) absorbEvents() {
	for _, ev := range m.feed.drain() {
		switch ev.Kind {
		case progression.EventZoneCompleted:
			if z, ok := m.engine.Catalog().Zone(ev.Zone); ok {
				m.banner = z.Title + " complete"
			}
		case progression.EventJourneyComplete:
			m.banner = "Every zone is behind you"
		case progression.EventError:
			if !errors.Is(ev.Err, progression.ErrInvalidChoice) {
				m.notice = ev.Err.Error()
			}
		}
	}
}

func (m TUI) fail(err error) (TUI, tea.Cmd) {
	m.err = err
	m.quitting = true
	return m, tea.Quit
}

func (m *TUI) sizeViewport() {
	h := m.height - 4
	if h < 5 {
		h = 20
	}
	w := m.width
	if w <= 0 {
		w = 80
	}
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width, m.viewport.Height = w, h
	}
	if m.letter != nil {
		m.viewport.SetContent(renderLetter(*m.letter, w))
	}
}

// =============================================================================
// View
// =============================================================================

// View implements tea.Model.
func (m TUI) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.banner != "" {
		b.WriteString(bannerStyle.Render(m.banner))
		b.WriteString("\n\n")
	}

	switch m.stage {
	case stageLanding:
		b.WriteString(titleStyle.Render("The Warm Room"))
		b.WriteString("\n\n")
		b.WriteString(storyStyle.Width(m.textWidth()).Render(
			"Five rooms, a handful of moments each. There are no right answers, only yours."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter: begin • q: quit"))

	case stageMoment:
		b.WriteString(titleStyle.Render(m.zone.Title))
		b.WriteString("\n\n")
		if m.moment.Story != "" {
			b.WriteString(storyStyle.Width(m.textWidth()).Render(m.moment.Story))
			b.WriteString("\n\n")
		}
		b.WriteString(promptStyle.Render(m.moment.Prompt))
		b.WriteString("\n\n")
		for _, k := range m.moment.OptionKeys() {
			b.WriteString(keyStyle.Render(k + ")"))
			b.WriteString(" ")
			b.WriteString(m.moment.Options[k].Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("press a letter to choose • q: quit"))

	case stageFeedback:
		if m.feedback != nil {
			if m.feedback.Player != "" {
				b.WriteString(storyStyle.Width(m.textWidth()).Render(m.feedback.Player))
				b.WriteString("\n\n")
			}
			b.WriteString(storyStyle.Width(m.textWidth()).Render(m.feedback.FeedbackStory))
			b.WriteString("\n\n")
			b.WriteString(reflectionStyle.Width(m.textWidth()).Render(m.feedback.FeedbackReflection))
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("enter: continue"))

	case stageZoneDone:
		b.WriteString(titleStyle.Render(m.zone.Title))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("every moment answered • enter: continue"))

	case stageLetter:
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓: scroll • q: quit"))
	}

	if m.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	return b.String()
}

func (m TUI) textWidth() int {
	if m.width > 4 && m.width < 84 {
		return m.width - 4
	}
	return 80
}

// renderLetter lays the letter out for the viewport.
func renderLetter(l resolution.Letter, width int) string {
	w := width - 4
	if w < 20 {
		w = 20
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("A Letter"))
	b.WriteString("\n\n")
	for _, p := range l.Paragraphs {
		b.WriteString(storyStyle.Width(w).Render(p))
		b.WriteString("\n\n")
	}
	if l.Signature != "" {
		b.WriteString(reflectionStyle.Render("- " + l.Signature))
		b.WriteString("\n\n")
	}
	b.WriteString(bannerStyle.Render("Patterns we noticed"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "• You tend to notice %s first\n", keyStyle.Render(l.Patterns.Orientation))
	fmt.Fprintf(&b, "• When uncertain, you %s\n", keyStyle.Render(l.Patterns.DecisionPhrase))
	fmt.Fprintf(&b, "• You're drawn to %s thinking\n", keyStyle.Render(l.Patterns.ProductLens))
	return b.String()
}

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle      = ux.Styles.Title
	bannerStyle     = ux.Styles.Banner
	storyStyle      = ux.Styles.Body
	promptStyle     = ux.Styles.Prompt
	keyStyle        = ux.Styles.Key
	reflectionStyle = ux.Styles.Reflection
	noticeStyle     = ux.Styles.Notice
	helpStyle       = ux.Styles.Help
)

// =============================================================================
// Runner
// =============================================================================

// RunTUI runs the TUI until the visitor quits or reads the letter.
//
// # Outputs
//
//   - resolution.Letter: the letter, when reached.
//   - error: ErrQuit when the visitor left before the letter, or the
//     engine or program error that stopped it.
func RunTUI(ctx context.Context, engine *progression.Engine, letters content.LetterVariants, opts ...tea.ProgramOption) (resolution.Letter, error) {
	model, unsubscribe := NewTUI(ctx, engine, letters)
	defer unsubscribe()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return resolution.Letter{}, fmt.Errorf("run tui: %w", err)
	}
	m, ok := final.(TUI)
	if !ok {
		return resolution.Letter{}, fmt.Errorf("run tui: unexpected model %T", final)
	}
	if m.Err() != nil {
		return resolution.Letter{}, m.Err()
	}
	if letter, ok := m.Letter(); ok {
		return letter, nil
	}
	return resolution.Letter{}, ErrQuit
}
