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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/google/tabula/demo"
)

var demoAddr string

// demoBackendCmd runs the in-memory REST backend
var demoBackendCmd = &cobra.Command{
	Use:   "demo-backend",
	Short: "Run the in-memory demo REST backend",
	Long: `Runs an in-memory implementation of the REST API the console talks to,
seeded with sample users, roles, credentials, accounts, enterprises,
pipelines and environments. Data is lost on exit.`,
	Args: cobra.NoArgs,
	RunE: runDemoBackend,
}

func init() {
	demoBackendCmd.Flags().StringVar(&demoAddr, "addr", "", "Listen address (default: host of backend.base_url)")
}

func runDemoBackend(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := demoAddr
	if addr == "" {
		u, err := url.Parse(cfg.Backend.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid backend URL: %w", err)
		}
		addr = u.Host
	}

	api, err := demo.NewBackend(logger.Named("demo"))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("demo backend listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
