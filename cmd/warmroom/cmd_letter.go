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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/warmroom/services/hunt/progression"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
	"github.com/spf13/cobra"
)

// ErrNoJourney is returned when there is no saved state to read.
var ErrNoJourney = errors.New("no saved journey")

// newLetterCmd prints the closing letter of a finished journey.
//
// # Examples
//
//	warmroom letter                  # the journey cached on this machine
//	warmroom letter --user user_...  # a journey saved on the server
//	warmroom letter --json
func newLetterCmd(a *app) *cobra.Command {
	var (
		userID string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "letter",
		Short: "Print the closing letter of a finished journey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLetter(cmd, a, userID, asJSON)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "read this user's journey from the server instead of the local cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the letter as JSON")
	cmd.Flags().String("server", "", "hunt server URL")
	cmd.Flags().String("state-dir", "", "directory for the local journey cache")
	return cmd
}

func runLetter(cmd *cobra.Command, a *app, userID string, asJSON bool) error {
	defer a.close()
	logger, err := a.newLogger("warmroom", false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	api := a.apiClient()
	client, cache := a.persistence(api, logger)

	var state traits.State
	if userID != "" {
		if api == nil {
			return errors.New("--user needs a server: set --server or client.server_url")
		}
		res, err := client.Load(ctx, userID)
		if err != nil {
			return err
		}
		if !res.Exists {
			return fmt.Errorf("%w for %s", ErrNoJourney, userID)
		}
		state = res.State
	} else {
		s, ok, err := cache.Read()
		if err != nil {
			return fmt.Errorf("read local journey: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w on this machine; run `warmroom play` first", ErrNoJourney)
		}
		state = s
	}

	cat, err := a.catalog(ctx, api, logger)
	if err != nil {
		return err
	}
	engine, err := progression.New(cat, state, nil, &progression.Options{Logger: logger})
	if err != nil {
		return err
	}
	engine.Resume()

	letter, err := engine.RenderLetter(cat.Letters)
	if errors.Is(err, progression.ErrJourneyIncomplete) {
		return fmt.Errorf("%w: %d of %d zones explored", err, len(engine.State().CompletedZones), len(cat.Zones))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(letter)
	}
	_, err = fmt.Fprintln(out, letter.Text())
	return err
}
