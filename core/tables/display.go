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

package tables

import (
	"github.com/google/tabula/core/filtering"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/sorting"
)

// EntryKind distinguishes group headers from rows in a display list.
type EntryKind int

const (
	EntryRow EntryKind = iota
	EntryGroup
)

// Entry is one line of the display list: a group header or a row.
type Entry struct {
	Kind EntryKind

	// Group header fields.
	Label       string
	Placeholder bool
	Count       int
	Members     []rows.Row // Root rows of the group, with their subtrees

	// Row fields.
	Row      rows.DisplayRow
	Selected bool
}

// View is the derived display list of a table.
type View struct {
	Entries []Entry
	// RowIDs lists the displayed rows in order, group headers excluded.
	RowIDs       []string
	Total        int
	Selected     int
	AllSelected  bool
	SomeSelected bool
}

// Display runs filter, sort, group and flatten over the data and returns
// the display list. Sorting applies to siblings at every depth; grouping
// partitions the roots and subtrees travel with their root. The selection
// is pruned to the displayed rows.
func (t *Table) Display() View {
	var v View
	v.Total = t.tree.Len()
	t.each(func(e Entry) {
		if e.Kind == EntryRow {
			v.RowIDs = append(v.RowIDs, e.Row.Row.ID)
		}
		v.Entries = append(v.Entries, e)
	})
	t.selected.Prune(v.RowIDs)
	for i := range v.Entries {
		if v.Entries[i].Kind == EntryRow {
			v.Entries[i].Selected = t.selected.Has(v.Entries[i].Row.Row.ID)
		}
	}
	v.Selected = t.selected.Len()
	v.AllSelected = t.selected.AllSelected(len(v.RowIDs))
	v.SomeSelected = t.selected.SomeSelected(len(v.RowIDs))
	return v
}

// DisplayIDs returns the ids of the displayed rows in order.
func (t *Table) DisplayIDs() []string {
	var ids []string
	t.each(func(e Entry) {
		if e.Kind == EntryRow {
			ids = append(ids, e.Row.Row.ID)
		}
	})
	return ids
}

func (t *Table) each(fn func(Entry)) {
	data := t.tree.Rows()
	if !t.filters.Empty() {
		data = filtering.Apply(data, t.cols, t.filters)
	}
	if order := t.sort.Columns(); len(order) > 0 {
		data = sorting.SortTree(data, order)
	}
	col, grouped := t.cols.Get(t.groupBy)
	if t.groupBy == grouping.NoGrouping || !grouped {
		for _, dr := range rows.Flatten(data) {
			fn(Entry{Kind: EntryRow, Row: dr})
		}
		return
	}
	for _, b := range grouping.Buckets(data, col) {
		fn(Entry{Kind: EntryGroup, Label: b.Label, Placeholder: b.Placeholder, Count: len(b.Rows), Members: b.Rows})
		for _, dr := range rows.Flatten(b.Rows) {
			fn(Entry{Kind: EntryRow, Row: dr})
		}
	}
}

// Top returns the first k displayed rows, group headers excluded. Flat
// ungrouped tables are ranked with a bounded heap instead of a full sort.
func (t *Table) Top(k int) []rows.Row {
	if k <= 0 {
		return nil
	}
	data := t.tree.Rows()
	_, grouped := t.cols.Get(t.groupBy)
	if len(data) == t.tree.Len() && (t.groupBy == grouping.NoGrouping || !grouped) {
		if !t.filters.Empty() {
			data = filtering.Apply(data, t.cols, t.filters)
		}
		return sorting.SortTopK(data, t.sort.Columns(), k)
	}
	var out []rows.Row
	t.each(func(e Entry) {
		if e.Kind == EntryRow && len(out) < k {
			out = append(out, e.Row.Row)
		}
	})
	return out
}

// SelectRow selects or deselects one displayed row. Rows that are not on
// the display list are ignored.
func (t *Table) SelectRow(id string, selected bool) {
	if !selected {
		t.selected.Select(id, false, nil)
		return
	}
	display := make(map[string]struct{})
	for _, d := range t.DisplayIDs() {
		display[d] = struct{}{}
	}
	t.selected.Select(id, true, func(id string) bool {
		_, ok := display[id]
		return ok
	})
}

// SelectAll selects every displayed row, or clears the selection.
func (t *Table) SelectAll(selected bool) {
	t.selected.SelectAll(t.DisplayIDs(), selected)
}

// IsSelected reports whether row id is selected.
func (t *Table) IsSelected(id string) bool { return t.selected.Has(id) }

// Selected returns the selected ids in display order.
func (t *Table) Selected() []string {
	return t.selected.Ordered(t.DisplayIDs())
}
