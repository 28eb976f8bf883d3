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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/sorting"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.GetAutosaveDelay())
	assert.Equal(t, 30*time.Second, cfg.GetBackendTimeout())

	env, ok := cfg.Table("environments")
	require.True(t, ok)
	assert.True(t, env.Tree)
	assert.Equal(t, []sorting.SortColumn{{ID: "name", Direction: sorting.Ascending}}, env.SortOrder())

	_, ok = cfg.Table("nope")
	assert.False(t, ok)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabula.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
autosave:
  debounce_ms: 250
tables:
  - name: people
    resource: /api/users
    sort: "email:desc"
    group_by: team
    columns:
      - {id: email, title: Email, type: email, sortable: true, order: 1}
      - {id: team, type: select, options: [A, B], order: 2}
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.GetAutosaveDelay())
	assert.Equal(t, "http://localhost:8081", cfg.Backend.BaseURL)
	require.Len(t, cfg.Tables, 1)

	people := cfg.Tables[0]
	assert.Equal(t, "people", people.DisplayTitle())
	cs, err := people.ColumnSet()
	require.NoError(t, err)
	team, ok := cs.Get("team")
	require.True(t, ok)
	assert.Equal(t, columns.TypeSelect, team.Type)
	assert.Equal(t, []string{"A", "B"}, team.Options)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TABULA_BACKEND_URL", "https://backend.example.com")
	t.Setenv("TABULA_ACCOUNT_NAME", "acme")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "acme", cfg.Account.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no address", func(c *Config) { c.Server.Address = "" }},
		{"bad backend", func(c *Config) { c.Backend.BaseURL = "ftp://x" }},
		{"bad timeout", func(c *Config) { c.Backend.Timeout = "soon" }},
		{"negative debounce", func(c *Config) { c.Autosave.DebounceMs = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"duplicate table", func(c *Config) { c.Tables = append(c.Tables, c.Tables[0]) }},
		{"relative resource", func(c *Config) { c.Tables[0].Resource = "api/users" }},
		{"unknown group", func(c *Config) { c.Tables[0].GroupBy = "missing" }},
		{"unknown sort", func(c *Config) { c.Tables[0].Sort = "missing:asc" }},
		{"unsortable sort", func(c *Config) { c.Tables[0].Sort = "password:asc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tabula.yaml")
	cfg := DefaultConfig()
	cfg.Account = AccountConfig{ID: "7", Name: "acme"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Account, loaded.Account)
	assert.Equal(t, len(cfg.Tables), len(loaded.Tables))
	assert.Equal(t, columns.TypePassword, loaded.Tables[0].Columns[5].Type)
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabula.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":1\"\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) { reloaded <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":2\"\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":2", cfg.Server.Address)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	cancel()
	require.NoError(t, <-done)
}
