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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/AleutianAI/warmroom/services/hunt/play"
	"github.com/AleutianAI/warmroom/services/hunt/progression"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// newPlayCmd plays the hunt.
//
// # Description
//
// The journey resumes from the local cache when one exists. Every choice
// is saved locally at once and mirrored to the server in the background;
// a missing server never interrupts play.
//
// An interactive terminal gets the full-screen UI. Anything else, or
// --plain, gets a line-oriented prompt suitable for pipes.
//
// # Examples
//
//	warmroom play
//	warmroom play --server ""        # offline, built-in content
//	printf 'a\nb\n' | warmroom play  # scripted answers
func newPlayCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the hunt in this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, a, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use the line-oriented prompt even on a terminal")
	cmd.Flags().String("server", "", "hunt server URL; empty plays offline")
	cmd.Flags().String("state-dir", "", "directory for the local journey cache")
	return cmd
}

func runPlay(cmd *cobra.Command, a *app, plain bool) error {
	defer a.close()
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	p := a.printer(out)
	useTUI := !plain && a.isTerminal(in) && a.isTerminal(out)

	logger, err := a.newLogger("warmroom-play", useTUI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	api := a.apiClient()
	client, _ := a.persistence(api, logger)
	defer client.Wait()

	state, restored, err := client.Init(ctx)
	if err != nil {
		return fmt.Errorf("start journey: %w", err)
	}
	cat, err := a.catalog(ctx, api, logger)
	if err != nil {
		return err
	}

	engine, err := progression.New(cat, state, progression.SaverFunc(client.Save), &progression.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("start journey: %w", err)
	}
	cursor := engine.Resume()
	if restored && cursor.Phase != progression.PhaseLanding && !useTUI {
		p.Info("Welcome back. %s zones explored.",
			p.Progress(len(engine.State().CompletedZones), len(cat.Zones), 10))
	}

	var letter resolution.Letter
	if useTUI {
		letter, err = play.RunTUI(ctx, engine, cat.Letters)
	} else {
		letter, err = play.NewLineRenderer(engine, cat.Letters, in, out).Run(ctx)
	}
	switch {
	case errors.Is(err, play.ErrQuit), errors.Is(err, context.Canceled):
		p.Info("")
		p.Success("Your progress is saved. Run `warmroom play` to pick up where you left off.")
		return nil
	case err != nil:
		return err
	}

	// The full-screen UI clears on exit; keep the letter on the terminal.
	if useTUI {
		fmt.Fprintln(out, letter.Text())
	}
	return nil
}
