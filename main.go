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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/google/tabula/core/backend"
	"github.com/google/tabula/core/config"
	"github.com/google/tabula/core/logging"
	"github.com/google/tabula/core/server"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Set up by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tabula",
	Short: "Tabula - data tables for the admin console",
	Long: `Tabula serves editable data tables backed by a REST API.

Tables can be sorted, grouped, filtered and edited; edits are saved to the
backend after a short pause. The same tables can be printed or browsed in
the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tabula.yaml", "Configuration file (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoBackendCmd)
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient(l *zap.Logger) (*backend.Client, error) {
	return backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.GetBackendTimeout()),
		backend.WithLogger(l))
}

// accountFlags are the account context flags shared by the table commands.
type accountFlags struct {
	id   string
	name string
}

func (a *accountFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.id, "account-id", "", "Account id (default from configuration)")
	cmd.Flags().StringVar(&a.name, "account-name", "", "Account name (default from configuration)")
}

func (a *accountFlags) context() backend.RequestContext {
	if a.id == "" && a.name == "" {
		return backend.RequestContext{AccountID: cfg.Account.ID, AccountName: cfg.Account.Name}
	}
	return backend.RequestContext{AccountID: a.id, AccountName: a.name}
}

// openTable loads one configured table from the backend.
func openTable(ctx context.Context, name string, rc backend.RequestContext, l *zap.Logger) (*server.Session, config.TableConfig, error) {
	conf, ok := cfg.Table(name)
	if !ok {
		return nil, conf, fmt.Errorf("table %q is not configured", name)
	}
	client, err := newClient(l)
	if err != nil {
		return nil, conf, err
	}
	sess, err := server.OpenSession(ctx, conf, rc, client, cfg.GetAutosaveDelay(), l)
	if err != nil {
		return nil, conf, err
	}
	return sess, conf, nil
}
