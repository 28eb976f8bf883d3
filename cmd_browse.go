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
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/google/tabula/core/tui"
)

var browseAccount accountFlags

// browseCmd opens a table in the terminal browser
var browseCmd = &cobra.Command{
	Use:   "browse [table]",
	Short: "Browse and edit a table in the terminal",
	Long: `Opens a table in an interactive terminal browser. Changes are saved to
the backend like in the console: edits after the autosave delay, creates
and deletes right away. Pending saves are flushed on exit.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	browseAccount.register(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	// The terminal belongs to the browser; log only when asked to.
	l := zap.NewNop()
	if verbose {
		l = logger
	}
	sess, conf, err := openTable(ctx, args[0], browseAccount.context(), l)
	if err != nil {
		return err
	}

	model := tui.New(sess.Table(),
		tui.WithTitle(conf.DisplayTitle()),
		tui.WithAfterChange(func() string {
			sess.Sync(ctx)
			return sess.TakeNotice()
		}))
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		sess.Close(ctx)
		return fmt.Errorf("browser failed: %w", err)
	}

	if err := sess.Close(ctx); err != nil {
		failed := sess.Failed()
		return fmt.Errorf("could not save %d rows (%s): %w", len(failed), strings.Join(failed, ", "), err)
	}
	return nil
}
