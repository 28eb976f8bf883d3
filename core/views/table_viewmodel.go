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
	"slices"
	"strings"

	"github.com/google/safehtml"

	"github.com/google/tabula/core/aggregates"
	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/query"
	"github.com/google/tabula/core/sorting"
	"github.com/google/tabula/core/tables"
)

// IndentPerLevel is the left padding, in pixels, added per tree level.
const IndentPerLevel = 20

// TableViewModel contains the data from the table formatted for template consumption
type TableViewModel struct {
	Title      string
	Table      string
	Headers    []HeaderInfo  // Visible columns in display order
	Rows       []RowInfo     // Group headers and rows in display order
	AllColumns []ColumnInfo  // All available columns with metadata
	GroupBy    []GroupOption // Choices for the group-by selector
	Search     string
	CurrentURL safehtml.URL // Current URL
	ReturnTo   string       // Current URL as form field, the redirect target of actions
	ExportURL  safehtml.URL
	Message    string // Error or notice from the last action

	// Pagination info
	TotalRows     int          // Total number of rows in the table, at every depth
	DisplayedRows int          // Number of rows actually displayed
	HasMoreRows   bool         // True if there are more rows than displayed
	CurrentLimit  int          // Current row limit
	ShowAllURL    safehtml.URL // URL without a row limit

	// Selection info
	SelectedCount int
	AllSelected   bool
	SomeSelected  bool
	BulkActions   []string
	CanCreate     bool
}

// HeaderInfo describes one visible column
type HeaderInfo struct {
	ID           string
	Title        string
	Type         string
	Width        int
	Sortable     bool
	SortDir      string // "asc", "desc" or "" when unsorted
	SortPriority int    // 1-based, 0 when unsorted or only one column is sorted
	SortURL      safehtml.URL
	Filterable   bool
	Filter       string
	Grouped      bool
}

// ColumnInfo contains information about a column for UI display
type ColumnInfo struct {
	Name            string       // Column internal name
	DisplayName     string       // Column display name
	IsVisible       bool         // Whether column is currently visible
	ToggleColumnURL safehtml.URL // URL to toggle column visibility (preserves all query params)
}

// GroupOption is one entry of the group-by selector
type GroupOption struct {
	ID       string
	Title    string
	Selected bool
	URL      safehtml.URL
}

// RowInfo is one line of the table body: a group header or a data row
type RowInfo struct {
	IsGroup      bool
	GroupLabel   string
	GroupCount   int
	GroupSummary string // Aggregates of the visible columns over the group
	Placeholder  bool
	GroupURL     safehtml.URL // Drill into the group

	ID          string
	Level       int
	Indent      int
	Prefix      string // Non-breaking spaces that indent the first cell
	HasChildren bool
	Expanded    bool
	Selected    bool
	SaveFailed  bool // The last autosave of this row failed
	Cells       []CellInfo
}

// CellInfo is one cell of a data row
type CellInfo struct {
	Column   string
	Value    string
	Type     string
	Editable bool
	Editing  bool
	Options  []string // Choices for select cells
	Invalid  string   // Validation message, empty when valid
}

// BulkActionNames lists the bulk actions offered on a selection, in display
// order.
var BulkActionNames = []string{
	string(tables.ActionActivate),
	string(tables.ActionDeactivate),
	string(tables.ActionDuplicate),
	string(tables.ActionExport),
	string(tables.ActionDelete),
}

// visibleColumns returns the columns named by the query, in query order, or
// every column when the query names none.
func visibleColumns(cs *columns.ColumnSet, q *query.Query) []columns.Column {
	if len(q.Columns) == 0 {
		return cs.Columns()
	}
	return cs.Select(q.Columns)
}

// BuildViewModel creates a TableViewModel from a table whose sort, group and
// filter state already reflect q.
func BuildViewModel(t *tables.Table, title string, q *query.Query) TableViewModel {
	vm := TableViewModel{
		Title:        title,
		Table:        t.Name(),
		Search:       q.Search,
		CurrentURL:   q.ToSafeURL(),
		ReturnTo:     q.ToURL(),
		ExportURL:    q.WithPath("/table/export"),
		CurrentLimit: q.Limit,
		ShowAllURL:   q.WithLimit(0),
		BulkActions:  BulkActionNames,
		CanCreate:    true,
	}

	visible := visibleColumns(t.Columns(), q)
	sortOrder := t.SortState()
	for _, col := range visible {
		h := HeaderInfo{
			ID:         col.ID,
			Title:      col.DisplayTitle(),
			Type:       col.Type.String(),
			Width:      col.Width,
			Sortable:   col.Sortable,
			Filterable: col.Filterable,
			Filter:     q.Filters[col.ID],
			Grouped:    t.GroupBy() == col.ID,
		}
		if w, ok := q.ColumnWidths[col.ID]; ok {
			h.Width = w
		}
		if dir := t.SortDirection(col.ID); dir != sorting.Off {
			h.SortDir = dir.String()
			if len(sortOrder) > 1 {
				h.SortPriority = t.SortPriority(col.ID)
			}
		}
		if col.Sortable {
			h.SortURL = q.WithSortToggled(col.ID, t.MultiSort())
		}
		vm.Headers = append(vm.Headers, h)
	}

	visibleIDs := make([]string, len(visible))
	for i, c := range visible {
		visibleIDs[i] = c.ID
	}
	vm.GroupBy = append(vm.GroupBy, GroupOption{
		ID:       grouping.NoGrouping,
		Title:    "None",
		Selected: t.GroupBy() == grouping.NoGrouping,
		URL:      q.WithGroupBy(grouping.NoGrouping),
	})
	for _, col := range t.Columns().Columns() {
		vm.AllColumns = append(vm.AllColumns, ColumnInfo{
			Name:            col.ID,
			DisplayName:     col.DisplayTitle(),
			IsVisible:       slices.Contains(visibleIDs, col.ID),
			ToggleColumnURL: q.WithColumnToggled(col.ID),
		})
		vm.GroupBy = append(vm.GroupBy, GroupOption{
			ID:       col.ID,
			Title:    col.DisplayTitle(),
			Selected: t.GroupBy() == col.ID,
			URL:      q.WithGroupBy(col.ID),
		})
	}

	view := t.Display()
	vm.TotalRows = view.Total
	vm.SelectedCount = view.Selected
	vm.AllSelected = view.AllSelected
	vm.SomeSelected = view.SomeSelected

	editRow, editCol, editCell := t.ActiveEdit()
	for _, e := range view.Entries {
		if q.Limit > 0 && vm.DisplayedRows >= q.Limit {
			vm.HasMoreRows = true
			break
		}
		if e.Kind == tables.EntryGroup {
			ri := RowInfo{
				IsGroup:      true,
				GroupLabel:   e.Label,
				GroupCount:   e.Count,
				Placeholder:  e.Placeholder,
				GroupSummary: aggregates.Format(aggregates.Summarize(visible, e.Members, t.GroupBy())),
			}
			if !e.Placeholder {
				ri.GroupURL = q.WithFilterAndUngrouped(t.GroupBy(), `"`+e.Label+`"`)
			}
			vm.Rows = append(vm.Rows, ri)
			continue
		}
		vm.DisplayedRows++
		r := e.Row
		ri := RowInfo{
			ID:          r.Row.ID,
			Level:       r.Level,
			Indent:      r.Level * IndentPerLevel,
			Prefix:      strings.Repeat("\u00a0\u00a0\u00a0\u00a0", r.Level),
			HasChildren: r.HasChildren,
			Expanded:    r.Row.Expanded,
			Selected:    e.Selected,
		}
		for _, col := range visible {
			value := col.Value(r.Row)
			cell := CellInfo{
				Column:   col.ID,
				Value:    value,
				Type:     col.Type.String(),
				Editable: col.Editable,
				Options:  col.Options,
			}
			if editCell != nil && editRow == r.Row.ID && editCol == col.ID {
				cell.Editing = true
				cell.Value = editCell.Draft()
			}
			if invalid := columns.Validate(col, cell.Value); invalid != nil {
				cell.Invalid = invalid.Message
			}
			if col.Type == columns.TypePassword && !cell.Editing && value != "" {
				cell.Value = "••••••••"
			}
			ri.Cells = append(ri.Cells, cell)
		}
		vm.Rows = append(vm.Rows, ri)
	}
	return vm
}

// MarkFailed flags the rows whose last save failed.
func (vm *TableViewModel) MarkFailed(ids []string) {
	if len(ids) == 0 {
		return
	}
	for i := range vm.Rows {
		if !vm.Rows[i].IsGroup && slices.Contains(ids, vm.Rows[i].ID) {
			vm.Rows[i].SaveFailed = true
		}
	}
}
