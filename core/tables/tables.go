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

// Package tables is the table engine: it owns the rows and columns of one
// table together with its sort, group, filter, selection and edit state, and
// reports every data change to its host through a single callback.
//
// A Table is not safe for concurrent use; each instance belongs to one owner
// (a page, a terminal session, or a server handler holding a lock).
package tables

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/editing"
	"github.com/google/tabula/core/filtering"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/selection"
	"github.com/google/tabula/core/sorting"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotEditable   = errors.New("column is not editable")
	ErrNotSortable   = errors.New("column is not sortable")
	ErrNoExporter    = errors.New("no export handler configured")
)

// Action names the kind of a data change.
type Action string

const (
	ActionEdit       Action = "edit"
	ActionCreate     Action = "create"
	ActionDelete     Action = "delete"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionDuplicate  Action = "duplicate"
	ActionExport     Action = "export"
	ActionExpand     Action = "expand"
)

// ParseAction parses a bulk action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionActivate, ActionDeactivate, ActionDelete, ActionDuplicate, ActionExport:
		return a, nil
	}
	return "", fmt.Errorf("unknown bulk action %q", s)
}

// Status values written by the activate and deactivate bulk actions.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// DataChange describes one mutation.
type DataChange struct {
	Table   string
	Action  Action
	RowIDs  []string   // ids touched by the change
	Changed []rows.Row // snapshots of the touched rows (for deletes, as they were)
	Rows    []rows.Row // the whole data set after the change
}

type options struct {
	onDataChange func(DataChange)
	export       func([]rows.Row) error
	nameField    string
	statusField  string
	multiSort    bool
	edit         editing.Options
	groupBy      string
	sort         []sorting.SortColumn
}

// Option configures a Table.
type Option func(*options)

// WithOnDataChange sets the callback invoked after every data mutation.
func WithOnDataChange(fn func(DataChange)) Option {
	return func(o *options) { o.onDataChange = fn }
}

// WithExport sets the handler of the export bulk action.
func WithExport(fn func([]rows.Row) error) Option {
	return func(o *options) { o.export = fn }
}

// WithNameField sets the display-name field suffixed by duplicate.
func WithNameField(field string) Option {
	return func(o *options) { o.nameField = field }
}

// WithStatusField sets the field written by activate and deactivate.
func WithStatusField(field string) Option {
	return func(o *options) { o.statusField = field }
}

// WithMultiSort keeps earlier sort columns as tie-breakers.
func WithMultiSort(multi bool) Option {
	return func(o *options) { o.multiSort = multi }
}

// WithEditOptions sets the blur and hover behavior of edited cells.
func WithEditOptions(e editing.Options) Option {
	return func(o *options) { o.edit = e }
}

// WithGroupBy sets the initial grouping column.
func WithGroupBy(id string) Option {
	return func(o *options) { o.groupBy = id }
}

// WithSort sets the initial sort order.
func WithSort(order []sorting.SortColumn) Option {
	return func(o *options) { o.sort = order }
}

// activeEdit is the cell currently being edited.
type activeEdit struct {
	rowID    string
	columnID string
	cell     *editing.Cell
}

// Table is an in-memory table.
type Table struct {
	name     string
	cols     *columns.ColumnSet
	tree     *rows.Tree
	sort     sorting.State
	groupBy  string
	filters  filtering.Filters
	selected selection.Set
	active   *activeEdit
	editErr  error // last failed commit of an EditCell cell
	opts     options
}

// New creates a table from column definitions and initial rows. The rows
// are copied; later changes to the caller's slice have no effect.
func New(name string, cols *columns.ColumnSet, data []rows.Row, opts ...Option) (*Table, error) {
	o := options{nameField: "name", statusField: "status", groupBy: grouping.NoGrouping}
	for _, opt := range opts {
		opt(&o)
	}
	tree, err := rows.NewTree(data)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	t := &Table{
		name:    name,
		cols:    cols,
		tree:    tree,
		opts:    o,
		sort:    sorting.State{Multi: o.multiSort},
		groupBy: grouping.NoGrouping,
	}
	if err := t.SetGroupBy(o.groupBy); err != nil {
		return nil, err
	}
	t.sort.Replace(o.sort)
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the column set.
func (t *Table) Columns() *columns.ColumnSet { return t.cols }

// Len returns the number of rows at every depth.
func (t *Table) Len() int { return t.tree.Len() }

// Rows returns a copy of the data in its original order.
func (t *Table) Rows() []rows.Row { return t.tree.Rows() }

// Row returns the row with the given id, without children.
func (t *Table) Row(id string) (rows.Row, bool) { return t.tree.Get(id) }

// NameField returns the display-name field.
func (t *Table) NameField() string { return t.opts.nameField }

// ReplaceRows swaps in freshly fetched data. Expansion state of rows that
// survive is kept and the selection is pruned. No change is reported since
// the data came from the host.
func (t *Table) ReplaceRows(data []rows.Row) error {
	tree, err := rows.NewTree(data)
	if err != nil {
		return fmt.Errorf("table %s: %w", t.name, err)
	}
	for _, id := range t.tree.IDs() {
		if r, ok := t.tree.Get(id); ok && r.Expanded {
			tree.SetExpanded(id, true)
		}
	}
	t.tree = tree
	if t.active != nil && !tree.Has(t.active.rowID) {
		t.active = nil
	}
	t.selected.Prune(t.DisplayIDs())
	return nil
}

func (t *Table) emit(action Action, ids []string, changed []rows.Row) {
	if t.opts.onDataChange == nil {
		return
	}
	t.opts.onDataChange(DataChange{
		Table:   t.name,
		Action:  action,
		RowIDs:  ids,
		Changed: changed,
		Rows:    t.tree.Rows(),
	})
}

// SortState returns the active sort order.
func (t *Table) SortState() []sorting.SortColumn { return t.sort.Columns() }

// SortDirection returns the direction column id is sorted in.
func (t *Table) SortDirection(id string) sorting.Direction { return t.sort.Direction(id) }

// SortPriority returns the 1-based tie-break position of column id.
func (t *Table) SortPriority(id string) int { return t.sort.Priority(id) }

// MultiSort reports whether multi-column sorting is enabled.
func (t *Table) MultiSort() bool { return t.sort.Multi }

// ToggleSort cycles column id through ascending, descending and off.
func (t *Table) ToggleSort(id string) (sorting.Direction, error) {
	col, ok := t.cols.Get(id)
	if !ok {
		return sorting.Off, fmt.Errorf("%w: %s", ErrUnknownColumn, id)
	}
	if !col.Sortable {
		return sorting.Off, fmt.Errorf("%w: %s", ErrNotSortable, id)
	}
	return t.sort.Toggle(id), nil
}

// SetSort replaces the sort order. Unknown and unsortable columns are
// dropped.
func (t *Table) SetSort(order []sorting.SortColumn) {
	valid := make([]sorting.SortColumn, 0, len(order))
	for _, sc := range order {
		if col, ok := t.cols.Get(sc.ID); ok && col.Sortable {
			valid = append(valid, sc)
		}
	}
	t.sort.Replace(valid)
}

// GroupBy returns the grouping column id, grouping.NoGrouping when off.
func (t *Table) GroupBy() string { return t.groupBy }

// SetGroupBy groups by column id; "" or grouping.NoGrouping turns grouping
// off.
func (t *Table) SetGroupBy(id string) error {
	if id == "" || id == grouping.NoGrouping {
		t.groupBy = grouping.NoGrouping
		return nil
	}
	if _, ok := t.cols.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, id)
	}
	t.groupBy = id
	return nil
}

// Filters returns the filter state.
func (t *Table) Filters() filtering.Filters { return t.filters }

// SetFilters replaces the filter state and prunes the selection to the rows
// still displayed.
func (t *Table) SetFilters(f filtering.Filters) {
	t.filters = f
	t.selected.Prune(t.DisplayIDs())
}

// ToggleExpand flips the expansion of row id.
func (t *Table) ToggleExpand(id string) bool {
	if !t.tree.ToggleExpand(id) {
		return false
	}
	r, _ := t.tree.Get(id)
	t.selected.Prune(t.DisplayIDs())
	t.emit(ActionExpand, []string{id}, []rows.Row{r})
	return true
}

// parseValue converts submitted text into the field type of col.
func parseValue(col columns.Column, value string) any {
	switch col.Type {
	case columns.TypeNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case columns.TypeCheckbox, columns.TypeToggle:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return value
}

// CommitEdit writes value into one cell. The value is trimmed and converted
// to the column type. Validation is advisory: a failing value is stored and
// reported, and the returned marker lets the caller flag the cell.
func (t *Table) CommitEdit(rowID, columnID, value string) (*columns.ValidationError, error) {
	col, ok := t.cols.Get(columnID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, columnID)
	}
	if !col.Editable {
		return nil, fmt.Errorf("%w: %s", ErrNotEditable, columnID)
	}
	current, ok := t.tree.Get(rowID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rows.ErrNotFound, rowID)
	}
	value = strings.TrimSpace(value)
	invalid := columns.Validate(col, value)
	if current.String(columnID) == value {
		return invalid, nil
	}
	if err := t.tree.SetField(rowID, columnID, parseValue(col, value)); err != nil {
		return nil, err
	}
	updated, _ := t.tree.Get(rowID)
	t.emit(ActionEdit, []string{rowID}, []rows.Row{updated})
	return invalid, nil
}

// EditCell starts editing one cell and returns its edit state. Committing
// the cell goes through CommitEdit. Any other cell being edited is
// cancelled.
func (t *Table) EditCell(rowID, columnID string) (*editing.Cell, error) {
	col, ok := t.cols.Get(columnID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, columnID)
	}
	if !col.Editable {
		return nil, fmt.Errorf("%w: %s", ErrNotEditable, columnID)
	}
	r, ok := t.tree.Get(rowID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rows.ErrNotFound, rowID)
	}
	if t.active != nil {
		t.active.cell.Key(editing.KeyEscape)
	}
	opts := t.opts.edit
	opts.Column = col
	t.editErr = nil
	cell := editing.NewCell(r.String(columnID), opts, func(v string) {
		if _, err := t.CommitEdit(rowID, columnID, v); err != nil {
			t.editErr = fmt.Errorf("edit of %s.%s dropped: %w", rowID, columnID, err)
		}
	})
	cell.Click()
	t.active = &activeEdit{rowID: rowID, columnID: columnID, cell: cell}
	return cell, nil
}

// EditError returns the error of the last commit made through an EditCell
// cell, such as the row having been deleted during the edit.
func (t *Table) EditError() error { return t.editErr }

// ActiveEdit returns the cell being edited, if any, with its coordinates.
func (t *Table) ActiveEdit() (rowID, columnID string, cell *editing.Cell) {
	if t.active == nil || t.active.cell.Mode() != editing.Editing {
		return "", "", nil
	}
	return t.active.rowID, t.active.columnID, t.active.cell
}

// AddRow inserts r after the row named by after (or at the end). A missing
// id is generated.
func (t *Table) AddRow(r rows.Row, after string) (rows.Row, error) {
	if r.ID == "" {
		r.ID = rows.NewID()
	}
	if err := t.tree.Insert(r, after); err != nil {
		return rows.Row{}, err
	}
	stored, _ := t.tree.Subtree(r.ID)
	t.emit(ActionCreate, []string{r.ID}, []rows.Row{stored})
	return stored, nil
}

// DeleteRows removes rows (with their subtrees) and drops them from the
// selection.
func (t *Table) DeleteRows(ids ...string) []string {
	removed := t.deleteRows(ids)
	if len(removed) == 0 {
		return nil
	}
	t.selected.Prune(t.DisplayIDs())
	return removed
}

func (t *Table) deleteRows(ids []string) []string {
	snapshots := make([]rows.Row, 0, len(ids))
	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, ok := t.tree.Subtree(id); ok {
			snapshots = append(snapshots, r)
			targets = append(targets, id)
		}
	}
	removed := t.tree.Remove(targets...)
	if len(removed) == 0 {
		return nil
	}
	t.selected.Remove(removed...)
	if t.active != nil && !t.tree.Has(t.active.rowID) {
		t.active = nil
	}
	t.emit(ActionDelete, removed, snapshots)
	return removed
}
