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
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// newResetCmd forgets the local journey. The next play starts fresh under
// a new user id; whatever the server holds is left alone.
func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the journey cached on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, a, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().String("state-dir", "", "directory for the local journey cache")
	return cmd
}

func runReset(cmd *cobra.Command, a *app, yes bool) error {
	defer a.close()
	logger, err := a.newLogger("warmroom", false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	p := a.printer(cmd.OutOrStdout())

	if !yes {
		if !a.isTerminal(cmd.InOrStdin()) {
			return errors.New("refusing to reset without --yes outside a terminal")
		}
		ok, err := a.confirm("Forget your journey?", "Your traits and progress on this machine will be cleared.")
		if err != nil {
			return err
		}
		if !ok {
			p.Info("Nothing changed.")
			return nil
		}
	}

	client, cache := a.persistence(nil, logger)
	if err := client.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	logger.Info("local journey cleared", "path", cache.Path())
	p.Success("Your journey has been cleared. The next `warmroom play` starts fresh.")
	return nil
}

// confirmWithForm asks a yes/no question on the terminal. Aborting with
// ctrl+c counts as no.
func confirmWithForm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes, reset").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}
