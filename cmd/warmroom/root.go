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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/warmroom/pkg/logging"
	"github.com/AleutianAI/warmroom/pkg/ux"
	"github.com/AleutianAI/warmroom/services/hunt/apiclient"
	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/persistence"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        appConfig

	// isTerminal reports whether the stream is an interactive terminal.
	isTerminal func(any) bool

	// confirm asks a yes/no question interactively.
	confirm func(title, description string) (bool, error)

	closers []func() error
}

// newRootCmd builds the command tree.
//
// # Description
//
// Configuration is resolved once in PersistentPreRunE: flags override
// WARMROOM_* environment variables, which override the config file, which
// overrides the built-in defaults.
func newRootCmd() *cobra.Command {
	return buildRootCmd(&app{v: newViper(), isTerminal: isTerminal, confirm: confirmWithForm})
}

func buildRootCmd(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:   "warmroom",
		Short: "A warm room for curious people: a five-zone hunt that ends in a letter",
		Long: `warmroom serves the hunt's content and saved journeys, and plays the
hunt in a terminal. Progress is kept locally and mirrored to the server
when one is reachable.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(a.v, cmd); err != nil {
				return err
			}
			explicit := cmd.Flags().Changed("config")
			cfg, err := loadConfig(a.v, a.configPath, explicit)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./"+defaultConfigFile+")")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newPlayCmd(a),
		newLetterCmd(a),
		newResetCmd(a),
		newContentCmd(a),
	)
	return root
}

// =============================================================================
// Shared helpers
// =============================================================================

// newLogger builds the process logger. quiet keeps the console clean for
// the terminal UI; the file, when configured, still receives records.
func (a *app) newLogger(service string, quiet bool, console io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	l, err := logging.New(logging.Config{
		Level:   level,
		Dir:     a.cfg.Log.Dir,
		Service: service,
		JSON:    a.cfg.Log.JSON,
		Quiet:   quiet,
		Console: console,
	})
	if err != nil {
		l.Slog().Warn("file logging disabled", "error", err)
	}
	a.closers = append(a.closers, l.Close)
	slog.SetDefault(l.Slog())
	return l.Slog(), nil
}

// close releases what newLogger opened. Runners defer it.
func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// printer writes status lines to w, decorated only on a terminal.
func (a *app) printer(w io.Writer) *ux.Printer {
	return ux.NewPrinter(w, ux.DetectMode(a.isTerminal(w)))
}

// apiClient returns the server client, or nil when playing offline.
func (a *app) apiClient() *apiclient.Client {
	if a.cfg.Client.ServerURL == "" {
		return nil
	}
	return apiclient.New(a.cfg.Client.ServerURL).WithTimeout(a.cfg.Client.MirrorTimeout)
}

// persistence builds the write-through client over the local cache.
func (a *app) persistence(api *apiclient.Client, logger *slog.Logger) (*persistence.Client, *persistence.FileCache) {
	cache := persistence.NewFileCache(expandHome(a.cfg.Client.StateDir))
	var remote persistence.Remote = persistence.NopRemote{}
	if api != nil {
		remote = persistence.HTTPRemote{API: api}
	}
	client := persistence.NewClient(cache, remote, persistence.Config{
		Logger:        logger,
		MirrorTimeout: a.cfg.Client.MirrorTimeout,
	})
	return client, cache
}

// catalog fetches content from the server, falling back to the embedded
// catalog when offline or when the server is unreachable.
func (a *app) catalog(ctx context.Context, api *apiclient.Client, logger *slog.Logger) (*content.Catalog, error) {
	if api != nil {
		cat, err := api.Catalog(ctx)
		if err == nil {
			return cat, nil
		}
		logger.Warn("content unavailable from server, using built-in content",
			"server", api.BaseURL(), "error", err)
	}
	cat, err := content.Default()
	if err != nil {
		return nil, fmt.Errorf("load built-in content: %w", err)
	}
	return cat, nil
}

// flagKeys maps command-line flags onto configuration keys. Several
// commands share a flag name; only the running command's flags are bound.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"port":       "server.port",
	"store":      "store.backend",
	"store-path": "store.path",
	"content":    "content.path",
	"watch":      "content.watch",
	"server":     "client.server_url",
	"state-dir":  "client.state_dir",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
