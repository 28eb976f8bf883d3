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

package filtering

import (
	"testing"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		filter string
		value  string
		exact  bool
		want   bool
	}{
		{"ops", "DevOps", false, true},
		{"ops", "DevOps", true, false},
		{`"devops"`, "DevOps", false, true},
		{`'dev'|'qa'`, "QA Team", false, true},
		{`!"Inactive"`, "Active", true, true},
		{`!"Inactive"`, "inactive", true, false},
		{`'eu'&'west'`, "eu-west-1", false, true},
		{`'eu'&'east'`, "eu-west-1", false, false},
		{"", "anything", false, true},
	}
	for _, tt := range tests {
		if got := Match(tt.filter, tt.value, tt.exact); got != tt.want {
			t.Errorf("Match(%q, %q, exact=%v) = %v, want %v", tt.filter, tt.value, tt.exact, got, tt.want)
		}
	}
}

func userColumns() *columns.ColumnSet {
	return columns.MustColumnSet([]columns.Column{
		{ID: "name", Title: "Name", Filterable: true, Order: 1},
		{ID: "status", Title: "Status", Type: columns.TypeSelect, Filterable: true, Order: 2},
		{ID: "secret", Title: "Secret", Order: 3},
	})
}

func TestApplyColumnFilters(t *testing.T) {
	in := []rows.Row{
		rows.New("1", map[string]any{"name": "Ana", "status": "Active"}),
		rows.New("2", map[string]any{"name": "Bo", "status": "Inactive"}),
		rows.New("3", map[string]any{"name": "Anastasia", "status": "Active", "secret": "x"}),
	}
	got := Apply(in, userColumns(), Filters{Columns: map[string]string{"name": "ana", "status": "active"}})
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("unexpected result %v", got)
	}

	// Select columns match whole values, so "active" does not match "Inactive".
	got = Apply(in, userColumns(), Filters{Columns: map[string]string{"status": "active"}})
	if len(got) != 2 {
		t.Errorf("expected 2 active rows, got %d", len(got))
	}

	// Non-filterable columns ignore their filters.
	got = Apply(in, userColumns(), Filters{Columns: map[string]string{"secret": "x"}})
	if len(got) != 3 {
		t.Errorf("expected filter on secret to be ignored, got %d rows", len(got))
	}
}

func TestApplySearch(t *testing.T) {
	in := []rows.Row{
		rows.New("1", map[string]any{"name": "Ana", "secret": "needle"}),
		rows.New("2", map[string]any{"name": "needle-bo"}),
	}
	got := Apply(in, userColumns(), Filters{Search: "needle"})
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("search must only look at filterable columns, got %v", got)
	}
}

func TestApplyKeepsAncestors(t *testing.T) {
	in := []rows.Row{
		{ID: "prod", Fields: map[string]any{"name": "Production"}, Children: []rows.Row{
			rows.New("eu", map[string]any{"name": "eu-west"}),
			rows.New("us", map[string]any{"name": "us-east"}),
		}},
		rows.New("dev", map[string]any{"name": "Development"}),
	}
	got := Apply(in, userColumns(), Filters{Search: "west"})
	if len(got) != 1 || got[0].ID != "prod" {
		t.Fatalf("expected only prod to survive, got %v", got)
	}
	if len(got[0].Children) != 1 || got[0].Children[0].ID != "eu" {
		t.Errorf("expected children narrowed to eu, got %v", got[0].Children)
	}
	if len(in[0].Children) != 2 {
		t.Error("input children were modified")
	}
}
