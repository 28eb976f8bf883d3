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

package sorting

import (
	"fmt"
	"slices"
	"testing"

	"github.com/google/tabula/core/rows"
)

func ids(in []rows.Row) []string {
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = r.ID
	}
	return out
}

func row(id string, fields map[string]any) rows.Row {
	return rows.New(id, fields)
}

func TestSortNumericAwareStrings(t *testing.T) {
	in := []rows.Row{
		row("a", map[string]any{"name": "item-2"}),
		row("b", map[string]any{"name": "item-10"}),
		row("c", map[string]any{"name": "item-1"}),
	}
	got := Sort(in, "name", Ascending)
	if expected := []string{"c", "a", "b"}; !slices.Equal(ids(got), expected) {
		t.Errorf("expected %v, got %v", expected, ids(got))
	}
	// Input order is untouched.
	if expected := []string{"a", "b", "c"}; !slices.Equal(ids(in), expected) {
		t.Errorf("input was reordered: %v", ids(in))
	}
}

func TestSortIsStableAndIdempotent(t *testing.T) {
	in := []rows.Row{
		row("1", map[string]any{"role": "Viewer"}),
		row("2", map[string]any{"role": "Admin"}),
		row("3", map[string]any{"role": "viewer"}),
		row("4", map[string]any{"role": "Admin"}),
		row("5", map[string]any{"role": "Viewer"}),
	}
	once := Sort(in, "role", Ascending)
	twice := Sort(once, "role", Ascending)
	if !slices.Equal(ids(once), ids(twice)) {
		t.Errorf("re-sorting changed order: %v vs %v", ids(once), ids(twice))
	}
	if expected := []string{"2", "4", "1", "3", "5"}; !slices.Equal(ids(once), expected) {
		t.Errorf("expected ties to keep input order %v, got %v", expected, ids(once))
	}
}

func TestSortMissingValuesFirst(t *testing.T) {
	in := []rows.Row{
		row("a", map[string]any{"email": "b@x.io"}),
		row("b", nil),
		row("c", map[string]any{"email": nil}),
		row("d", map[string]any{"email": "a@x.io"}),
	}
	got := Sort(in, "email", Ascending)
	if expected := []string{"b", "c", "d", "a"}; !slices.Equal(ids(got), expected) {
		t.Errorf("expected %v, got %v", expected, ids(got))
	}
	got = Sort(in, "email", Descending)
	if expected := []string{"a", "d", "b", "c"}; !slices.Equal(ids(got), expected) {
		t.Errorf("expected %v, got %v", expected, ids(got))
	}
}

func TestSortOffKeepsOrder(t *testing.T) {
	in := []rows.Row{row("z", nil), row("a", nil)}
	if got := Sort(in, "name", Off); !slices.Equal(ids(got), []string{"z", "a"}) {
		t.Errorf("Off must not reorder, got %v", ids(got))
	}
}

func TestSortToggleScenario(t *testing.T) {
	data := []rows.Row{
		row("1", map[string]any{"name": "Beta", "qty": float64(5)}),
		row("2", map[string]any{"name": "Alpha", "qty": float64(10)}),
	}
	var state State

	dir := state.Toggle("name")
	got := SortMulti(data, state.Columns())
	if dir != Ascending || !slices.Equal(ids(got), []string{"2", "1"}) {
		t.Errorf("first toggle: dir=%v order=%v", dir, ids(got))
	}

	dir = state.Toggle("name")
	got = SortMulti(data, state.Columns())
	if dir != Descending || !slices.Equal(ids(got), []string{"1", "2"}) {
		t.Errorf("second toggle: dir=%v order=%v", dir, ids(got))
	}

	dir = state.Toggle("name")
	got = SortMulti(data, state.Columns())
	if dir != Off || !slices.Equal(ids(got), []string{"1", "2"}) {
		t.Errorf("third toggle should restore original order: dir=%v order=%v", dir, ids(got))
	}
}

func TestStateSingleVersusMulti(t *testing.T) {
	single := State{}
	single.Toggle("name")
	single.Toggle("qty")
	if got := single.Columns(); len(got) != 1 || got[0].ID != "qty" {
		t.Errorf("single mode should keep only the last column, got %v", got)
	}

	multi := State{Multi: true}
	multi.Toggle("role")
	multi.Toggle("name")
	multi.Toggle("name")
	expected := []SortColumn{{ID: "role", Direction: Ascending}, {ID: "name", Direction: Descending}}
	if got := multi.Columns(); !slices.Equal(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if multi.Priority("name") != 2 {
		t.Errorf("expected name priority 2, got %d", multi.Priority("name"))
	}
	multi.Toggle("role")
	multi.Toggle("role")
	if got := multi.Columns(); len(got) != 1 || got[0].ID != "name" {
		t.Errorf("expected role removed, got %v", got)
	}
}

func TestSortMultiTieBreak(t *testing.T) {
	in := []rows.Row{
		row("1", map[string]any{"role": "Admin", "name": "Zed"}),
		row("2", map[string]any{"role": "Viewer", "name": "Amy"}),
		row("3", map[string]any{"role": "Admin", "name": "Bob"}),
	}
	got := SortMulti(in, []SortColumn{{ID: "role", Direction: Ascending}, {ID: "name", Direction: Ascending}})
	if expected := []string{"3", "1", "2"}; !slices.Equal(ids(got), expected) {
		t.Errorf("expected %v, got %v", expected, ids(got))
	}
}

func TestSortTopKMatchesFullSort(t *testing.T) {
	var in []rows.Row
	for i := 0; i < 50; i++ {
		in = append(in, row(fmt.Sprintf("r%d", i), map[string]any{"bucket": fmt.Sprintf("b%d", (i*7)%5)}))
	}
	order := []SortColumn{{ID: "bucket", Direction: Descending}}
	full := SortMulti(in, order)
	for _, k := range []int{1, 5, 13, 50, 80} {
		got := SortTopK(in, order, k)
		want := full[:min(k, len(full))]
		if !slices.Equal(ids(got), ids(want)) {
			t.Errorf("k=%d: expected %v, got %v", k, ids(want), ids(got))
		}
	}
	if got := SortTopK(in, order, 0); len(got) != 0 {
		t.Errorf("expected empty result for k=0, got %d rows", len(got))
	}
}

func TestSortTreeSortsSiblings(t *testing.T) {
	in := []rows.Row{
		{ID: "b", Fields: map[string]any{"name": "B"}, Children: []rows.Row{
			row("b2", map[string]any{"name": "2"}),
			row("b1", map[string]any{"name": "1"}),
		}},
		row("a", map[string]any{"name": "A"}),
	}
	got := SortTree(in, []SortColumn{{ID: "name", Direction: Ascending}})
	if !slices.Equal(ids(got), []string{"a", "b"}) {
		t.Errorf("roots not sorted: %v", ids(got))
	}
	if !slices.Equal(ids(got[1].Children), []string{"b1", "b2"}) {
		t.Errorf("children not sorted: %v", ids(got[1].Children))
	}
	if !slices.Equal(ids(in[0].Children), []string{"b2", "b1"}) {
		t.Errorf("input children were reordered: %v", ids(in[0].Children))
	}
}

func TestParseOrderRoundTrip(t *testing.T) {
	order := ParseOrder("name:asc,qty:desc,bogus:sideways,,role")
	expected := []SortColumn{
		{ID: "name", Direction: Ascending},
		{ID: "qty", Direction: Descending},
		{ID: "role", Direction: Ascending},
	}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
	if got := FormatOrder(order); got != "name:asc,qty:desc,role:asc" {
		t.Errorf("unexpected format %q", got)
	}
}
