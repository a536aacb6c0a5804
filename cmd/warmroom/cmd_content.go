// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/AleutianAI/warmroom/pkg/ux"
	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/spf13/cobra"
)

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Work with content catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML or JSON content catalog",
		Long: `validate parses a catalog and checks it the way the server does on
startup and reload. Warnings are printed but do not fail the check.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContentValidate(a.printer(cmd.OutOrStdout()), args[0])
		},
	})
	return cmd
}

func runContentValidate(p *ux.Printer, path string) error {
	cat, warnings, err := content.LoadFile(path)
	if err == nil {
		warnings = append(warnings, resolution.VariantWarnings(cat)...)
	}
	for _, w := range warnings {
		p.Warning("%s", w)
	}
	if err != nil {
		p.Error("%s: %v", path, err)
		return fmt.Errorf("%s: %w", path, err)
	}

	moments := 0
	for _, z := range cat.Zones {
		moments += len(z.Moments)
	}
	p.Success("%s: %d zones, %d moments", path, len(cat.Zones), moments)
	return nil
}
