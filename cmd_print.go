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
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/google/tabula/core/csvio"
	"github.com/google/tabula/core/query"
	"github.com/google/tabula/core/rendering"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/tables"
	"github.com/google/tabula/core/views"
)

var printFlags struct {
	account accountFlags
	sort    string
	group   string
	filters map[string]string
	search  string
	limit   int
	csv     bool
}

// printCmd prints one table
var printCmd = &cobra.Command{
	Use:   "print [table]",
	Short: "Print a table as text or CSV",
	Long: `Loads a table from the backend and prints it after grouping, sorting
and filtering.

Example:
  tabula print users --sort name:desc --filter status=Active
  tabula print environments --csv > environments.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runPrint,
}

func init() {
	f := printCmd.Flags()
	printFlags.account.register(printCmd)
	f.StringVar(&printFlags.sort, "sort", "", "Sort order, e.g. name:asc,email:desc (default from configuration)")
	f.StringVar(&printFlags.group, "group", "", "Column to group by, or none (default from configuration)")
	f.StringToStringVar(&printFlags.filters, "filter", nil, "Column filters, e.g. status=Active")
	f.StringVarP(&printFlags.search, "search", "q", "", "Free-text search")
	f.IntVar(&printFlags.limit, "limit", 0, "Maximum rows to print (0 prints all)")
	f.BoolVar(&printFlags.csv, "csv", false, "Write CSV instead of a text table")
}

func runPrint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, conf, err := openTable(ctx, args[0], printFlags.account.context(), logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	params := url.Values{"table": {conf.Name}, "limit": {strconv.Itoa(printFlags.limit)}}
	if printFlags.sort != "" {
		params.Set("sort", printFlags.sort)
	} else if conf.Sort != "" {
		params.Set("sort", conf.Sort)
	}
	if printFlags.group != "" {
		params.Set("group", printFlags.group)
	} else if conf.GroupBy != "" {
		params.Set("group", conf.GroupBy)
	}
	for col, value := range printFlags.filters {
		params.Set("filter:"+col, value)
	}
	if printFlags.search != "" {
		params.Set("q", printFlags.search)
	}
	q := query.NewQuery(&url.URL{Path: "/table", RawQuery: params.Encode()})

	for _, problem := range sess.Apply(q) {
		logger.Warn("ignoring option", zap.String("problem", problem))
	}
	t := sess.Table()

	if printFlags.csv {
		return csvio.ExportRows(os.Stdout, t.Columns().Columns(), displayedRows(t, printFlags.limit))
	}
	vm := views.BuildViewModel(t, conf.DisplayTitle(), q)
	fmt.Fprintln(os.Stdout, vm.Title)
	return rendering.RenderText(os.Stdout, vm)
}

// displayedRows returns the rows of the display list in order, at most
// limit when limit is positive.
func displayedRows(t *tables.Table, limit int) []rows.Row {
	if limit > 0 {
		return t.Top(limit)
	}
	var out []rows.Row
	for _, e := range t.Display().Entries {
		if e.Kind == tables.EntryRow {
			out = append(out, e.Row.Row)
		}
	}
	return out
}
