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

package views

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/query"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/tables"
)

func newTable(t *testing.T, opts ...tables.Option) *tables.Table {
	t.Helper()
	cols := columns.MustColumnSet([]columns.Column{
		{ID: "name", Title: "Name", Sortable: true, Editable: true, Order: 1},
		{ID: "team", Title: "Team", Type: columns.TypeSelect, Options: []string{"A", "B"}, Order: 2},
		{ID: "secret", Title: "Secret", Type: columns.TypePassword, Editable: true, Order: 3},
	})
	root := rows.New("p", map[string]any{"name": "Parent", "team": "A"})
	root.Expanded = true
	root.Children = []rows.Row{rows.New("c", map[string]any{"name": "Child", "team": "A"})}
	data := []rows.Row{
		root,
		rows.New("x", map[string]any{"name": "Other", "secret": "hunter22"}),
	}
	table, err := tables.New("things", cols, data, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func mustQuery(t *testing.T, s string) *query.Query {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return query.NewQuery(u)
}

func TestBuildViewModel(t *testing.T) {
	table := newTable(t)
	table.SelectRow("x", true)
	vm := BuildViewModel(table, "Things", mustQuery(t, "/table?table=things&columns=name,secret"))

	if len(vm.Headers) != 2 || vm.Headers[0].ID != "name" || vm.Headers[1].ID != "secret" {
		t.Fatalf("unexpected headers %+v", vm.Headers)
	}
	if vm.TotalRows != 3 || vm.DisplayedRows != 3 || vm.HasMoreRows {
		t.Errorf("unexpected counts total=%d displayed=%d more=%v", vm.TotalRows, vm.DisplayedRows, vm.HasMoreRows)
	}
	if vm.Rows[1].ID != "c" || vm.Rows[1].Indent != IndentPerLevel {
		t.Errorf("expected indented child, got %+v", vm.Rows[1])
	}
	if !vm.Rows[2].Selected || vm.SelectedCount != 1 || !vm.SomeSelected {
		t.Errorf("expected row x selected, got %+v", vm.Rows[2])
	}
	if got := vm.Rows[2].Cells[1].Value; got == "hunter22" || got == "" {
		t.Errorf("password must be masked, got %q", got)
	}
	if !strings.Contains(vm.Headers[0].SortURL.String(), "sort=name%3Aasc") {
		t.Errorf("unexpected sort URL %s", vm.Headers[0].SortURL)
	}
}

func TestBuildViewModelGroupedWithLimit(t *testing.T) {
	table := newTable(t, tables.WithGroupBy("team"))
	vm := BuildViewModel(table, "Things", mustQuery(t, "/table?table=things&group=team&limit=2"))

	if !vm.Rows[0].IsGroup || vm.Rows[0].GroupLabel != "A" {
		t.Fatalf("expected group A first, got %+v", vm.Rows[0])
	}
	if vm.DisplayedRows != 2 || !vm.HasMoreRows {
		t.Errorf("expected limit to cut the list, displayed=%d more=%v", vm.DisplayedRows, vm.HasMoreRows)
	}
	if !strings.Contains(vm.Rows[0].GroupURL.String(), "filter%3Ateam") {
		t.Errorf("unexpected group URL %s", vm.Rows[0].GroupURL)
	}
}

func TestBuildViewModelEditing(t *testing.T) {
	table := newTable(t)
	cell, err := table.EditCell("x", "name")
	if err != nil {
		t.Fatal(err)
	}
	cell.SetDraft("Draft")
	vm := BuildViewModel(table, "Things", mustQuery(t, "/table?table=things&columns=name"))
	got := vm.Rows[2].Cells[0]
	if !got.Editing || got.Value != "Draft" {
		t.Errorf("expected editing cell with draft, got %+v", got)
	}
}

func TestMarkFailed(t *testing.T) {
	table := newTable(t, tables.WithGroupBy("team"))
	vm := BuildViewModel(table, "Things", mustQuery(t, "/table?table=things&group=team"))
	vm.MarkFailed([]string{"c", "missing"})
	for _, r := range vm.Rows {
		if r.IsGroup && r.SaveFailed {
			t.Errorf("group header %q must not be flagged", r.GroupLabel)
		}
		if !r.IsGroup && r.SaveFailed != (r.ID == "c") {
			t.Errorf("row %s: SaveFailed=%v", r.ID, r.SaveFailed)
		}
	}
}

func TestGroupSummary(t *testing.T) {
	table := newTable(t, tables.WithGroupBy("name"))
	vm := BuildViewModel(table, "Things", mustQuery(t, "/table?table=things&group=name"))
	var summaries []string
	for _, r := range vm.Rows {
		if r.IsGroup {
			summaries = append(summaries, r.GroupLabel+": "+r.GroupSummary)
		}
	}
	want := []string{"Other: ", "Parent: Team A 2"}
	if strings.Join(summaries, "|") != strings.Join(want, "|") {
		t.Errorf("group summaries = %q, want %q", summaries, want)
	}
}
