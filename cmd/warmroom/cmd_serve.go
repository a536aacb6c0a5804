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
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/warmroom/services/warmroom"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// newServeCmd runs the persistence service.
//
// # Examples
//
//	warmroom serve
//	warmroom serve --port 8080 --store badger --store-path ./data
//	WARMROOM_CONTENT_PATH=./content.yaml warmroom serve --watch
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve hunt content and saved journeys over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a)
		},
	}
	cmd.Flags().Int("port", 3000, "HTTP port")
	cmd.Flags().String("store", "file", "state backend: file, badger or memory")
	cmd.Flags().String("store-path", "", "state file or badger directory")
	cmd.Flags().String("content", "", "content catalog file (YAML or JSON); empty serves the built-in content")
	cmd.Flags().Bool("watch", false, "reload the content file when it changes")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	defer a.close()
	logger, err := a.newLogger("warmroom", false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg := a.cfg.serviceConfig()
	cfg.Logger = logger
	svc, err := warmroom.New(cfg)
	if err != nil {
		logger.Error("failed to start service", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}
