/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Tabula Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/google/tabula/core/config"
	"github.com/google/tabula/core/server"
)

var serveAddr string

// serveCmd runs the HTML console
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the table console over HTTP",
	Long: `Serves the HTML console. Tables are loaded from the backend on first
use and edits are saved back after the autosave delay. The configuration
file is watched; changes apply to the next page load.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(logger.Named("backend"))
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, client, server.WithLogger(logger.Named("console")))
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(c *config.Config) {
				if err := srv.SetConfig(context.Background(), c); err != nil {
					logger.Warn("pending saves failed during reload", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("configuration watch stopped", zap.Error(err))
			}
		}()
	}

	addr := cfg.Server.Address
	if serveAddr != "" {
		addr = serveAddr
	}
	logger.Info("starting console",
		zap.String("addr", addr),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Int("tables", len(cfg.Tables)))
	return srv.ListenAndServe(ctx, addr)
}
