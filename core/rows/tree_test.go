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

package rows

import (
	"errors"
	"testing"
)

func environmentRows() []Row {
	return []Row{
		{
			ID:     "prod",
			Fields: map[string]any{"name": "Production"},
			Children: []Row{
				{
					ID:     "prod-eu",
					Fields: map[string]any{"name": "EU"},
					Children: []Row{
						{ID: "prod-eu-1", Fields: map[string]any{"name": "eu-west-1"}},
					},
				},
				{ID: "prod-us", Fields: map[string]any{"name": "US"}},
			},
		},
		{ID: "dev", Fields: map[string]any{"name": "Development"}},
	}
}

func displayIDs(list []DisplayRow) []string {
	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.Row.ID
	}
	return ids
}

func TestFlattenCollapsedRoot(t *testing.T) {
	tree, err := NewTree(environmentRows())
	if err != nil {
		t.Fatalf("NewTree failed: %v", err)
	}

	list := tree.Flatten()
	if got := displayIDs(list); !equalStrings(got, []string{"prod", "dev"}) {
		t.Errorf("expected [prod dev], got %v", got)
	}
	if !list[0].HasChildren {
		t.Error("expected prod to report children")
	}
	if list[1].HasChildren {
		t.Error("expected dev to be a leaf")
	}
}

func TestFlattenExpandedRoot(t *testing.T) {
	tree, err := NewTree(environmentRows())
	if err != nil {
		t.Fatalf("NewTree failed: %v", err)
	}
	if !tree.ToggleExpand("prod") {
		t.Fatal("ToggleExpand returned false for an existing row")
	}

	list := tree.Flatten()
	expected := []string{"prod", "prod-eu", "prod-us", "dev"}
	if got := displayIDs(list); !equalStrings(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	levels := []int{0, 1, 1, 0}
	for i, d := range list {
		if d.Level != levels[i] {
			t.Errorf("row %s: expected level %d, got %d", d.Row.ID, levels[i], d.Level)
		}
	}

	// Grandchildren appear only once their own parent is expanded.
	tree.ToggleExpand("prod-eu")
	expected = []string{"prod", "prod-eu", "prod-eu-1", "prod-us", "dev"}
	if got := displayIDs(tree.Flatten()); !equalStrings(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestToggleExpandLeavesSiblingsAlone(t *testing.T) {
	tree, _ := NewTree(environmentRows())
	tree.SetExpanded("prod-us", true)
	tree.ToggleExpand("prod-eu")

	eu, _ := tree.Get("prod-eu")
	us, _ := tree.Get("prod-us")
	prod, _ := tree.Get("prod")
	if !eu.Expanded || !us.Expanded {
		t.Errorf("expected both children expanded, got eu=%v us=%v", eu.Expanded, us.Expanded)
	}
	if prod.Expanded {
		t.Error("toggling a child must not expand its parent")
	}
	if tree.ToggleExpand("missing") {
		t.Error("expected ToggleExpand on unknown id to return false")
	}
}

func TestNewTreeLinksParentIDs(t *testing.T) {
	flat := []Row{
		{ID: "c", ParentID: "a"},
		{ID: "a", Expanded: true},
		{ID: "b", ParentID: "unknown"},
	}
	tree, err := NewTree(flat)
	if err != nil {
		t.Fatalf("NewTree failed: %v", err)
	}
	expected := []string{"a", "c", "b"}
	if got := displayIDs(tree.Flatten()); !equalStrings(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	b, _ := tree.Get("b")
	if b.ParentID != "" {
		t.Errorf("orphan should become a root, got parent %q", b.ParentID)
	}
}

func TestNewTreeRejectsDuplicateIDs(t *testing.T) {
	_, err := NewTree([]Row{{ID: "x"}, {ID: "y", Children: []Row{{ID: "x"}}}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRemoveSubtreeAndRetireIDs(t *testing.T) {
	tree, _ := NewTree(environmentRows())
	removed := tree.Remove("prod-eu", "missing")
	if !equalStrings(removed, []string{"prod-eu", "prod-eu-1"}) {
		t.Errorf("unexpected removed ids %v", removed)
	}
	if tree.Len() != 3 {
		t.Errorf("expected 3 live rows, got %d", tree.Len())
	}
	if err := tree.Insert(Row{ID: "prod-eu"}, ""); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected deleted id to stay retired, got %v", err)
	}
}

func TestInsertAfterSibling(t *testing.T) {
	tree, _ := NewTree(environmentRows())
	if err := tree.Insert(Row{ID: "prod-ap"}, "prod-eu"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	tree.SetExpanded("prod", true)
	expected := []string{"prod", "prod-eu", "prod-ap", "prod-us", "dev"}
	if got := displayIDs(tree.Flatten()); !equalStrings(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	ap, _ := tree.Get("prod-ap")
	if ap.ParentID != "prod" {
		t.Errorf("expected parent prod, got %q", ap.ParentID)
	}
}

func TestInsertWithDuplicateChildLeavesTreeUntouched(t *testing.T) {
	tree, _ := NewTree(environmentRows())
	before := tree.Len()
	for _, r := range []Row{
		{ID: "new", Children: []Row{{ID: "prod-eu-1"}}},
		{ID: "new", Children: []Row{{ID: "x"}, {ID: "x"}}},
		{ID: "new", Children: []Row{{ID: ""}}},
	} {
		if err := tree.Insert(r, ""); err == nil {
			t.Errorf("Insert(%v) succeeded", r)
		}
		if tree.Has("new") || tree.Has("x") {
			t.Errorf("failed insert of %v left rows behind", r)
		}
		if tree.Len() != before {
			t.Errorf("expected %d rows, got %d", before, tree.Len())
		}
	}
	if err := tree.Insert(Row{ID: "new", Children: []Row{{ID: "x"}}}, ""); err != nil {
		t.Fatalf("Insert after failures: %v", err)
	}
	if !tree.Has("x") {
		t.Error("expected child x")
	}
}

func TestRowsDoesNotAliasStorage(t *testing.T) {
	tree, _ := NewTree(environmentRows())
	out := tree.Rows()
	out[0].Fields["name"] = "changed"
	out[0].Children[0].Fields["name"] = "changed"

	prod, _ := tree.Get("prod")
	if prod.String("name") != "Production" {
		t.Errorf("tree row was mutated through Rows(): %q", prod.String("name"))
	}
	eu, _ := tree.Get("prod-eu")
	if eu.String("name") != "EU" {
		t.Errorf("tree child was mutated through Rows(): %q", eu.String("name"))
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
