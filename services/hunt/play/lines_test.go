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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/progression"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*progression.Engine, *content.Catalog) {
	t.Helper()
	catalog, err := content.Default()
	require.NoError(t, err)
	e, err := progression.New(catalog, traits.New("user_play"), nil, nil)
	require.NoError(t, err)
	return e, catalog
}

func momentCount(c *content.Catalog) int {
	n := 0
	for _, z := range c.Zones {
		n += len(z.Moments)
	}
	return n
}

func TestLineRenderer_FullJourney(t *testing.T) {
	e, catalog := newTestEngine(t)
	input := "x\n" + strings.Repeat("A\n", momentCount(catalog))
	var out bytes.Buffer

	letter, err := NewLineRenderer(e, catalog.Letters, strings.NewReader(input), &out).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, letter.Paragraphs, 6)
	assert.Equal(t, progression.PhaseLetterRendered, e.Cursor().Phase)
	assert.Equal(t, content.ZoneOrder(), e.State().CompletedZones)

	text := out.String()
	assert.Contains(t, text, "== The Lab ==")
	assert.Contains(t, text, "That is not one of the options.")
	assert.Contains(t, text, "[zone5 complete]")
	assert.Contains(t, text, "Patterns we noticed")
}

func TestLineRenderer_QuitAndEOF(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"explicit quit", "a\nq\n"},
		{"input ends", "a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, catalog := newTestEngine(t)
			var out bytes.Buffer

			_, err := NewLineRenderer(e, catalog.Letters, strings.NewReader(tt.input), &out).Run(context.Background())
			assert.ErrorIs(t, err, ErrQuit)
			assert.Len(t, e.State().History, 1)
		})
	}
}

func TestLineRenderer_CancelledContext(t *testing.T) {
	e, catalog := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLineRenderer(e, catalog.Letters, strings.NewReader(""), &bytes.Buffer{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
