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

package demo

import (
	"embed"
	"fmt"
	"path"

	"github.com/google/tabula/core/csvio"
	"github.com/google/tabula/core/rows"
)

//go:embed data/*.csv
var dataFS embed.FS

// Collections served by the demo backend, keyed by the last segment of
// their resource path. Each is seeded from data/<file>.
var seedFiles = map[string]string{
	"users":           "users.csv",
	"roles":           "roles.csv",
	"credentials":     "credentials.csv",
	"accounts":        "accounts.csv",
	"enterprises":     "enterprises.csv",
	"pipelines":       "pipelines.csv",
	"environments":    "environments.csv",
	"user-groups":     "user_groups.csv",
	"global-settings": "global_settings.csv",
}

// seedOptions forces text for columns whose values only look numeric.
func seedOptions() csvio.ImportOptions {
	options := csvio.DefaultOptions()
	options.ColumnSources = map[string]csvio.ColumnSource{
		"accountId": {Type: csvio.ColumnTypeString},
		"startDate": {Type: csvio.ColumnTypeString},
		"expires":   {Type: csvio.ColumnTypeString},
		"lastRun":   {Type: csvio.ColumnTypeString},
	}
	return options
}

// loadSeed imports every seed file.
func loadSeed() (map[string][]rows.Row, error) {
	out := make(map[string][]rows.Row, len(seedFiles))
	for collection, file := range seedFiles {
		f, err := dataFS.Open(path.Join("data", file))
		if err != nil {
			return nil, fmt.Errorf("failed to open seed %s: %w", file, err)
		}
		imported, err := csvio.ImportRows(f, seedOptions())
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to import seed %s: %w", file, err)
		}
		out[collection] = imported.Rows
	}
	return out, nil
}
