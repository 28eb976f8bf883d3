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

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/tables"
)

func newModel(t *testing.T, data []rows.Row, opts ...Option) (Model, *tables.Table) {
	t.Helper()
	cs := columns.MustColumnSet([]columns.Column{
		{ID: "name", Title: "Name", Width: 200, Sortable: true, Editable: true, Order: 1},
		{ID: "email", Title: "Email", Type: columns.TypeEmail, Editable: true, Order: 2},
		{ID: "status", Title: "Status", Type: columns.TypeSelect, Options: []string{"Active", "Inactive"}, Order: 3},
	})
	tbl, err := tables.New("users", cs, data)
	require.NoError(t, err)
	return New(tbl, opts...), tbl
}

func users() []rows.Row {
	return []rows.Row{
		rows.New("1", map[string]any{"name": "Cy", "email": "cy@example.com", "status": "Active"}),
		rows.New("2", map[string]any{"name": "Ada", "email": "ada@example.com", "status": "Active"}),
		rows.New("3", map[string]any{"name": "Bob", "email": "bob@example.com", "status": "Inactive"}),
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func TestSortKeepsCursorRow(t *testing.T) {
	m, tbl := newModel(t, users())
	m = press(t, m, "down") // on "Ada"
	m = press(t, m, "s")
	assert.Equal(t, []string{"2", "3", "1"}, tbl.DisplayIDs())
	assert.Equal(t, "2", m.currentRow())
	assert.Contains(t, m.View(), "Name ▲")

	m = press(t, m, "s")
	assert.Equal(t, []string{"1", "3", "2"}, tbl.DisplayIDs())
}

func TestSortUnsortableColumnReportsError(t *testing.T) {
	m, tbl := newModel(t, users())
	m = press(t, m, "right", "s")
	assert.True(t, m.failed)
	assert.Empty(t, tbl.SortState())
}

func TestGroupCycles(t *testing.T) {
	m, tbl := newModel(t, users())
	m = press(t, m, "g")
	assert.Equal(t, "name", tbl.GroupBy())
	m = press(t, m, "g", "g")
	assert.Equal(t, "status", tbl.GroupBy())
	assert.Contains(t, m.View(), "Active (2)")
	press(t, m, "g")
	assert.Equal(t, grouping.NoGrouping, tbl.GroupBy())
}

func TestSelection(t *testing.T) {
	m, tbl := newModel(t, users())
	m = press(t, m, " ")
	assert.Equal(t, []string{"1"}, tbl.Selected())
	assert.Contains(t, m.View(), "3 of 3 rows, 1 selected")

	m = press(t, m, "a")
	assert.Len(t, tbl.Selected(), 3)
	press(t, m, "a")
	assert.Empty(t, tbl.Selected())
}

func TestExpand(t *testing.T) {
	root := rows.New("p", map[string]any{"name": "Parent"})
	root.Children = []rows.Row{rows.New("c", map[string]any{"name": "Child"})}
	m, tbl := newModel(t, []rows.Row{root})
	assert.Equal(t, []string{"p"}, tbl.DisplayIDs())
	m = press(t, m, "x")
	assert.Equal(t, []string{"p", "c"}, tbl.DisplayIDs())
	assert.Contains(t, m.View(), "▾ Parent")
}

func TestEditCommitAndCancel(t *testing.T) {
	var changes int
	m, tbl := newModel(t, users(), WithAfterChange(func() string {
		changes++
		return ""
	}))

	m = press(t, m, "enter")
	require.True(t, m.editing)
	m = press(t, m, "!", "enter")
	assert.False(t, m.editing)
	r, _ := tbl.Row("1")
	assert.Equal(t, "Cy!", r.String("name"))
	assert.Equal(t, 1, changes)

	m = press(t, m, "enter", "?", "esc")
	assert.False(t, m.editing)
	r, _ = tbl.Row("1")
	assert.Equal(t, "Cy!", r.String("name"))
	assert.Equal(t, 1, changes)
}

func TestEditInvalidValueIsFlagged(t *testing.T) {
	m, tbl := newModel(t, users())
	m = press(t, m, "right", "enter")
	m.input.SetValue("not-an-email")
	m = press(t, m, "enter")
	r, _ := tbl.Row("1")
	assert.Equal(t, "not-an-email", r.String("email"))
	assert.True(t, m.failed)
}

func TestEditReadOnlyColumn(t *testing.T) {
	m, _ := newModel(t, users())
	m = press(t, m, "right", "right", "enter")
	assert.False(t, m.editing)
	assert.True(t, m.failed)
}

func TestBulkActions(t *testing.T) {
	var changes int
	m, tbl := newModel(t, users(), WithAfterChange(func() string {
		changes++
		return ""
	}))

	m = press(t, m, "X")
	assert.Equal(t, "nothing selected", m.status)
	assert.Equal(t, 0, changes)

	m = press(t, m, "a", "D")
	for _, id := range []string{"1", "2", "3"} {
		r, _ := tbl.Row(id)
		assert.Equal(t, tables.StatusInactive, r.String("status"))
	}

	m = press(t, m, "a", " ", "C")
	assert.Equal(t, 4, tbl.Len())

	m = press(t, m, "X")
	assert.Equal(t, 3, tbl.Len())
	_, ok := tbl.Row("1")
	assert.False(t, ok)
	assert.Equal(t, 3, changes)
}

func TestAfterChangeErrorIsShown(t *testing.T) {
	m, _ := newModel(t, users(), WithAfterChange(func() string { return "backend down" }))
	m = press(t, m, "n")
	assert.True(t, m.failed)
	assert.Contains(t, m.View(), "backend down")
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t, users())
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
