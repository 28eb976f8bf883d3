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

// Package config loads the console configuration from YAML.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/sorting"
)

// Config is the console configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Account  AccountConfig  `yaml:"account"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tables   []TableConfig  `yaml:"tables"`
}

// ServerConfig configures the HTML console.
type ServerConfig struct {
	Address  string `yaml:"address"`
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
}

// BackendConfig locates the REST backend.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"` // Go duration, e.g. "30s"
}

// AccountConfig is the account context used when a request names none.
type AccountConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// AutosaveConfig configures debounced saving of edited rows.
type AutosaveConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// TableConfig defines one table of the console.
type TableConfig struct {
	Name        string           `yaml:"name"`
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Resource    string           `yaml:"resource"` // backend collection path
	Columns     []columns.Column `yaml:"columns"`
	NameField   string           `yaml:"name_field,omitempty"`
	StatusField string           `yaml:"status_field,omitempty"`
	Sort        string           `yaml:"sort,omitempty"` // col:asc,col2:desc
	GroupBy     string           `yaml:"group_by,omitempty"`
	Tree        bool             `yaml:"tree,omitempty"` // rows carry children
	MultiSort   bool             `yaml:"multi_sort,omitempty"`
}

// ColumnSet builds the column set of the table.
func (t TableConfig) ColumnSet() (*columns.ColumnSet, error) {
	return columns.NewColumnSet(t.Columns)
}

// SortOrder returns the default sort order.
func (t TableConfig) SortOrder() []sorting.SortColumn {
	return sorting.ParseOrder(t.Sort)
}

// DisplayTitle returns the title, falling back to the name.
func (t TableConfig) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

// Table returns the table with the given name.
func (c *Config) Table(name string) (TableConfig, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// DefaultConfig returns the configuration of the demo console.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:  "localhost:8080",
			Title:    "Tabula",
			Subtitle: "Enterprise administration console",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8081",
			Timeout: "30s",
		},
		Account: AccountConfig{
			ID:   "0",
			Name: "systiva",
		},
		Autosave: AutosaveConfig{DebounceMs: 1000},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tables: demoTables(),
	}
}

func demoTables() []TableConfig {
	status := columns.Column{ID: "status", Title: "Status", Type: columns.TypeSelect, Width: 110,
		Sortable: true, Filterable: true, Editable: true, Options: []string{"Active", "Inactive"}}
	with := func(c columns.Column, order int) columns.Column {
		c.Order = order
		return c
	}
	return []TableConfig{
		{
			Name:        "users",
			Title:       "Users",
			Description: "People with access to the console, their status and group membership.",
			Resource:    "/api/users",
			Sort:        "name:asc",
			Columns: []columns.Column{
				{ID: "name", Title: "Name", Width: 200, Resizable: true, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "email", Title: "Email", Type: columns.TypeEmail, Width: 240, Resizable: true, Sortable: true, Filterable: true, Editable: true, Order: 2},
				{ID: "groups", Title: "Groups", Type: columns.TypeUserGroup, Width: 180, Filterable: true, Order: 3},
				with(status, 4),
				{ID: "startDate", Title: "Start date", Type: columns.TypeDate, Width: 120, Sortable: true, Editable: true, Order: 5},
				{ID: "password", Title: "Password", Type: columns.TypePassword, Width: 120, Editable: true, Order: 6},
			},
		},
		{
			Name:        "roles",
			Title:       "Roles",
			Description: "Named permission sets assigned to groups.",
			Resource:    "/api/roles",
			Sort:        "name:asc",
			Columns: []columns.Column{
				{ID: "name", Title: "Role", Width: 200, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "description", Title: "Description", Width: 320, Resizable: true, Filterable: true, Editable: true, Order: 2},
				{ID: "scope", Title: "Scope", Type: columns.TypeSelect, Width: 120, Sortable: true, Filterable: true, Editable: true,
					Options: []string{"Account", "Enterprise", "Global"}, Order: 3},
				with(status, 4),
			},
		},
		{
			Name:        "credentials",
			Title:       "Credentials",
			Description: "Connector credentials used by pipelines.",
			Resource:    "/api/credentials",
			GroupBy:     "connector",
			Columns: []columns.Column{
				{ID: "name", Title: "Name", Width: 200, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "connector", Title: "Connector", Type: columns.TypeSelect, Width: 140, Sortable: true, Filterable: true, Editable: true,
					Options: []string{"GitHub", "Jira", "Slack", "AWS"}, Order: 2},
				{ID: "username", Title: "Username", Width: 160, Sortable: true, Filterable: true, Editable: true, Order: 3},
				{ID: "secret", Title: "Secret", Type: columns.TypePassword, Width: 120, Editable: true, Order: 4},
				{ID: "expires", Title: "Expires", Type: columns.TypeDate, Width: 120, Sortable: true, Editable: true, Order: 5},
				with(status, 6),
			},
		},
		{
			Name:        "accounts",
			Title:       "Accounts",
			Description: "Customer accounts and their seat counts.",
			Resource:    "/api/accounts",
			Sort:        "name:asc",
			MultiSort:   true,
			Columns: []columns.Column{
				{ID: "name", Title: "Account", Width: 200, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "enterprise", Title: "Enterprise", Width: 180, Sortable: true, Filterable: true, Editable: true, Order: 2},
				{ID: "seats", Title: "Seats", Type: columns.TypeNumber, Width: 90, Sortable: true, Editable: true, Order: 3},
				{ID: "trial", Title: "Trial", Type: columns.TypeCheckbox, Width: 80, Sortable: true, Filterable: true, Editable: true, Order: 4},
				with(status, 5),
			},
		},
		{
			Name:        "enterprises",
			Title:       "Enterprises",
			Description: "Enterprises grouping several accounts.",
			Resource:    "/api/enterprises",
			Sort:        "name:asc",
			Columns: []columns.Column{
				{ID: "name", Title: "Enterprise", Width: 200, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "domain", Title: "Domain", Width: 200, Sortable: true, Filterable: true, Editable: true, Order: 2},
				{ID: "sso", Title: "SSO", Type: columns.TypeToggle, Width: 80, Sortable: true, Filterable: true, Editable: true, Order: 3},
				with(status, 4),
			},
		},
		{
			Name:        "pipelines",
			Title:       "Pipelines",
			Description: "Pipelines created from templates, with their owner and last run.",
			Resource:    "/api/pipelines",
			Sort:        "lastRun:desc",
			Columns: []columns.Column{
				{ID: "name", Title: "Pipeline", Width: 200, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "template", Title: "Template", Width: 160, Sortable: true, Filterable: true, Order: 2},
				{ID: "owner", Title: "Owner", Width: 180, Sortable: true, Filterable: true, Editable: true, Order: 3},
				{ID: "lastRun", Title: "Last run", Type: columns.TypeDate, Width: 120, Sortable: true, Order: 4},
				with(status, 5),
			},
		},
		{
			Name:        "environments",
			Title:       "Environments",
			Description: "Deployment environments and the services running in them.",
			Resource:    "/api/environments",
			Tree:        true,
			Sort:        "name:asc",
			Columns: []columns.Column{
				{ID: "name", Title: "Name", Width: 240, Sortable: true, Filterable: true, Editable: true, Order: 1},
				{ID: "type", Title: "Type", Type: columns.TypeSelect, Width: 120, Sortable: true, Filterable: true, Editable: true,
					Options: []string{"Environment", "Service", "Job"}, Order: 2},
				{ID: "region", Title: "Region", Width: 120, Sortable: true, Filterable: true, Editable: true, Order: 3},
				{ID: "replicas", Title: "Replicas", Type: columns.TypeNumber, Width: 90, Sortable: true, Editable: true, Order: 4},
				with(status, 5),
			},
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TABULA_ADDR"); addr != "" {
		c.Server.Address = addr
	}
	if u := os.Getenv("TABULA_BACKEND_URL"); u != "" {
		c.Backend.BaseURL = u
	}
	if id := os.Getenv("TABULA_ACCOUNT_ID"); id != "" {
		c.Account.ID = id
	}
	if name := os.Getenv("TABULA_ACCOUNT_NAME"); name != "" {
		c.Account.Name = name
	}
	if level := os.Getenv("TABULA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetBackendTimeout returns the backend request timeout as a duration.
func (c *Config) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetAutosaveDelay returns the autosave debounce window.
func (c *Config) GetAutosaveDelay() time.Duration {
	return time.Duration(c.Autosave.DebounceMs) * time.Millisecond
}

// ValidLevels lists the accepted logging levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address not configured")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid backend base_url %q: must be an http or https URL", c.Backend.BaseURL)
	}
	if c.Backend.Timeout != "" {
		if _, err := time.ParseDuration(c.Backend.Timeout); err != nil {
			return fmt.Errorf("invalid backend timeout %q: %w", c.Backend.Timeout, err)
		}
	}
	if c.Autosave.DebounceMs < 0 {
		return fmt.Errorf("autosave debounce_ms must not be negative, got %d", c.Autosave.DebounceMs)
	}
	if !slices.Contains(ValidLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table without name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		seen[t.Name] = true
		if err := t.validate(); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (t TableConfig) validate() error {
	if !strings.HasPrefix(t.Resource, "/") {
		return fmt.Errorf("resource %q must be an absolute path", t.Resource)
	}
	cs, err := t.ColumnSet()
	if err != nil {
		return err
	}
	if t.GroupBy != "" && t.GroupBy != grouping.NoGrouping {
		if _, ok := cs.Get(t.GroupBy); !ok {
			return fmt.Errorf("group_by names unknown column %q", t.GroupBy)
		}
	}
	for _, sc := range t.SortOrder() {
		col, ok := cs.Get(sc.ID)
		if !ok {
			return fmt.Errorf("sort names unknown column %q", sc.ID)
		}
		if !col.Sortable {
			return fmt.Errorf("sort names unsortable column %q", sc.ID)
		}
	}
	return nil
}
