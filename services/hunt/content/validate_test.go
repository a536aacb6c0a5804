// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package content

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalYAML builds the smallest catalog that passes validation: one
// moment per zone, two options per moment.
func minimalYAML(t *testing.T) []byte {
	t.Helper()
	var b strings.Builder
	b.WriteString("zones:\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, `  zone%d:
    title: "Zone %d"
    moments:
      - id: m1
        prompt: "Pick one"
        options:
          a:
            text: "First"
            traits: { orientation: systems }
          b:
            text: "Second"
            traits: { orientation: people }
`, i, i)
	}
	b.WriteString(`letters:
  opening: { systems: o1, people: o2, outcome: o3 }
  ambiguity: { avoids: a1, manages: a2, explores: a3 }
  decisionStyle: { deliberate: d1, decisive: d2, iterative: d3 }
  decisionPhrase: { deliberate: p1, decisive: p2, iterative: p3 }
  noticing: { systemsRoot: n1 }
  connection: c
  invitation: i
`)
	return []byte(b.String())
}

func TestValidate_Minimal(t *testing.T) {
	_, warnings, err := Parse(minimalYAML(t), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Catalog)
	}{
		{"missing zone", func(c *Catalog) { delete(c.Zones, "zone4") }},
		{"zone id mismatch", func(c *Catalog) {
			z := c.Zones["zone2"]
			z.ID = "zone7"
			c.Zones["zone2"] = z
		}},
		{"zone without moments", func(c *Catalog) {
			z := c.Zones["zone1"]
			z.Moments = nil
			c.Zones["zone1"] = z
		}},
		{"duplicate moment id", func(c *Catalog) {
			z := c.Zones["zone1"]
			z.Moments = append(z.Moments, z.Moments[0])
			c.Zones["zone1"] = z
		}},
		{"single option", func(c *Catalog) {
			delete(c.Zones["zone1"].Moments[0].Options, "b")
		}},
		{"multi-letter choice key", func(c *Catalog) {
			opts := c.Zones["zone1"].Moments[0].Options
			opts["ab"] = opts["a"]
		}},
		{"uppercase choice key", func(c *Catalog) {
			opts := c.Zones["zone1"].Moments[0].Options
			opts["C"] = opts["a"]
		}},
		{"option without text", func(c *Catalog) {
			opts := c.Zones["zone1"].Moments[0].Options
			o := opts["a"]
			o.Text = ""
			opts["a"] = o
		}},
		{"opening not covering orientation", func(c *Catalog) { delete(c.Letters.Opening, "outcome") }},
		{"decision phrase missing", func(c *Catalog) { delete(c.Letters.DecisionPhrase, "iterative") }},
		{"no invitation", func(c *Catalog) { c.Letters.Invitation = "" }},
		{"noticing without default", func(c *Catalog) {
			c.Letters.Noticing = map[string]string{"peopleUX": "n"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, err := Parse(minimalYAML(t), FormatYAML)
			require.NoError(t, err)

			tt.mutate(c)
			_, err = Validate(c)
			assert.ErrorIs(t, err, ErrInvalidContent)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	c, _, err := Parse(minimalYAML(t), FormatYAML)
	require.NoError(t, err)

	c.Zones["zone1"].Moments[0].Options["a"].Traits["mood"] = "sunny"
	c.Zones["bonus"] = Zone{ID: "bonus", Title: "Bonus", Moments: c.Zones["zone1"].Moments}

	warnings, err := Validate(c)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "bonus/m1/a names unrecognised trait mood.sunny")
	assert.Contains(t, warnings[1], "zone \"bonus\" is not part of the journey order")
	assert.Contains(t, warnings[2], "zone1/m1/a names unrecognised trait mood.sunny")
}
