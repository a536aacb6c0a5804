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
	"sort"

	"github.com/AleutianAI/warmroom/services/hunt/traits"
	"github.com/go-playground/validator/v10"
)

// contentValidate is the shared validator instance for catalog structs.
var contentValidate = validator.New()

// Validate checks a decoded catalog.
//
// # Description
//
// Structural rules are enforced through validator tags on the catalog
// types. On top of that:
//   - every zone of the fixed order must exist, and a zone's id must match
//     its key;
//   - moment ids must be unique within a zone;
//   - every choice key must be a single lowercase letter;
//   - letter variants must cover every option of orientation, ambiguity and
//     decisionStyle;
//   - letters.noticing must define DefaultNoticingKey.
//
// Trait cells the build does not recognise are reported as warnings only,
// since the engine ignores them at choice time.
//
// # Outputs
//
//   - []string: warnings, sorted.
//   - error: wraps ErrInvalidContent on the first hard failure.
func Validate(c *Catalog) ([]string, error) {
	if err := contentValidate.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	for _, id := range zoneOrder {
		if _, ok := c.Zones[id]; !ok {
			return nil, fmt.Errorf("%w: missing zone %q", ErrInvalidContent, id)
		}
	}

	var warnings []string
	for key, z := range c.Zones {
		if z.ID != key {
			return nil, fmt.Errorf("%w: zone key %q has id %q", ErrInvalidContent, key, z.ID)
		}
		if ZoneIndex(key) < 0 {
			warnings = append(warnings, fmt.Sprintf("zone %q is not part of the journey order and is unreachable", key))
		}
		seen := make(map[string]struct{}, len(z.Moments))
		for _, m := range z.Moments {
			if _, dup := seen[m.ID]; dup {
				return nil, fmt.Errorf("%w: zone %q repeats moment %q", ErrInvalidContent, key, m.ID)
			}
			seen[m.ID] = struct{}{}
			for choiceKey, opt := range m.Options {
				if !isChoiceKey(choiceKey) {
					return nil, fmt.Errorf("%w: %s/%s choice key %q must be one lowercase letter",
						ErrInvalidContent, key, m.ID, choiceKey)
				}
				for dim, option := range opt.Traits {
					if !traits.IsCell(traits.Dimension(dim), option) {
						warnings = append(warnings, fmt.Sprintf("%s/%s/%s names unrecognised trait %s.%s",
							key, m.ID, choiceKey, dim, option))
					}
				}
			}
		}
	}

	coverage := []struct {
		name      string
		dimension traits.Dimension
		variants  map[string]string
	}{
		{"opening", traits.Orientation, c.Letters.Opening},
		{"ambiguity", traits.Ambiguity, c.Letters.Ambiguity},
		{"decisionStyle", traits.DecisionStyle, c.Letters.DecisionStyle},
		{"decisionPhrase", traits.DecisionStyle, c.Letters.DecisionPhrase},
	}
	for _, cov := range coverage {
		for _, option := range traits.Options(cov.dimension) {
			if cov.variants[option] == "" {
				return nil, fmt.Errorf("%w: letters.%s has no variant for %q", ErrInvalidContent, cov.name, option)
			}
		}
	}

	if c.Letters.Noticing[DefaultNoticingKey] == "" {
		return nil, fmt.Errorf("%w: letters.noticing has no default %q", ErrInvalidContent, DefaultNoticingKey)
	}

	sort.Strings(warnings)
	return warnings, nil
}

func isChoiceKey(k string) bool {
	return len(k) == 1 && k[0] >= 'a' && k[0] <= 'z'
}
