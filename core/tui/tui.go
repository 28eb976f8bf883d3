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

// Package tui is a terminal browser over one table: the same engine the
// console serves, driven from the keyboard.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/editing"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/sorting"
	"github.com/google/tabula/core/tables"
)

const helpLine = "↑/↓ move · ←/→ column · s sort · g group · space/a select · x expand · enter edit · n new · A/D/X/C activate/deactivate/delete/duplicate · q quit"

// Styles of the browser chrome.
type Styles struct {
	Title  lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
	Help   lipgloss.Style
	Table  table.Styles
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1),
		Status: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Help:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Table:  ts,
	}
}

// Model is the bubbletea model of the browser.
type Model struct {
	table  *tables.Table
	title  string
	cols   []columns.Column
	styles Styles

	grid   table.Model
	input  textinput.Model
	lines  []string // row id of each grid line, "" for group headers
	column int      // focused column

	editing bool
	status  string
	failed  bool // status reports an error

	afterChange func() string
	height      int
}

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the title shown above the table.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithAfterChange registers fn to run after every key that changed data.
// A non-empty result is shown as an error.
func WithAfterChange(fn func() string) Option {
	return func(m *Model) { m.afterChange = fn }
}

// WithHeight sets the number of table lines.
func WithHeight(h int) Option {
	return func(m *Model) { m.height = h }
}

// WithStyles replaces the default styles.
func WithStyles(s Styles) Option {
	return func(m *Model) { m.styles = s }
}

func gridKeys() table.KeyMap {
	return table.KeyMap{
		LineUp:     key.NewBinding(key.WithKeys("up", "k")),
		LineDown:   key.NewBinding(key.WithKeys("down", "j")),
		PageUp:     key.NewBinding(key.WithKeys("pgup")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown")),
		GotoTop:    key.NewBinding(key.WithKeys("home")),
		GotoBottom: key.NewBinding(key.WithKeys("end")),
	}
}

// New creates a browser over t.
func New(t *tables.Table, opts ...Option) Model {
	m := Model{
		table:  t,
		title:  t.Name(),
		cols:   t.Columns().Columns(),
		styles: DefaultStyles(),
		height: 20,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.input = textinput.New()
	m.input.CharLimit = 256
	m.input.Width = 40
	m.grid = table.New(
		table.WithColumns(m.gridColumns()),
		table.WithFocused(true),
		table.WithHeight(m.height),
		table.WithStyles(m.styles.Table),
		table.WithKeyMap(gridKeys()),
	)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 6; h > 3 {
			m.grid.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status, m.failed = "", false
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "left", "h":
		if m.column > 0 {
			m.column--
			m.grid.SetColumns(m.gridColumns())
		}
	case "right", "l":
		if m.column < len(m.cols)-1 {
			m.column++
			m.grid.SetColumns(m.gridColumns())
		}
	case "s":
		col := m.cols[m.column]
		dir, err := m.table.ToggleSort(col.ID)
		if err != nil {
			m.fail(err)
			break
		}
		m.status = fmt.Sprintf("sort %s %s", col.DisplayTitle(), directionName(dir))
		m.refresh()
	case "g":
		m.cycleGroup()
	case " ":
		if id := m.currentRow(); id != "" {
			m.table.SelectRow(id, !m.table.IsSelected(id))
			m.refresh()
		}
	case "a":
		v := m.table.Display()
		m.table.SelectAll(!v.AllSelected)
		m.refresh()
	case "x":
		if id := m.currentRow(); id != "" {
			m.table.ToggleExpand(id)
			m.refresh()
		}
	case "enter":
		return m.beginEdit()
	case "n":
		fields := map[string]any{m.table.NameField(): "New row"}
		if _, err := m.table.AddRow(rows.New("", fields), m.currentRow()); err != nil {
			m.fail(err)
			break
		}
		m.changed()
	case "A":
		m.bulk(tables.ActionActivate)
	case "D":
		m.bulk(tables.ActionDeactivate)
	case "X":
		m.bulk(tables.ActionDelete)
	case "C":
		m.bulk(tables.ActionDuplicate)
	default:
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	_, _, cell := m.table.ActiveEdit()
	if cell == nil {
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	switch msg.String() {
	case "enter":
		cell.SetDraft(m.input.Value())
		cell.Key(editing.KeyEnter)
		m.editing = false
		m.input.Blur()
		m.changed()
		if err := m.table.EditError(); err != nil {
			m.status, m.failed = err.Error(), true
		}
		if invalid := cell.Invalid(); invalid != nil && !m.failed {
			m.status, m.failed = invalid.Error(), true
		}
		return m, nil
	case "esc":
		cell.Key(editing.KeyEscape)
		m.editing = false
		m.input.Blur()
		m.status = "edit cancelled"
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) beginEdit() (tea.Model, tea.Cmd) {
	id := m.currentRow()
	if id == "" {
		return m, nil
	}
	col := m.cols[m.column]
	cell, err := m.table.EditCell(id, col.ID)
	if err != nil {
		m.fail(err)
		return m, nil
	}
	m.editing = true
	m.input.Prompt = col.DisplayTitle() + ": "
	m.input.SetValue(cell.Draft())
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) bulk(a tables.Action) {
	n := len(m.table.Selected())
	if n == 0 {
		m.status = "nothing selected"
		return
	}
	if err := m.table.BulkAction(a); err != nil {
		m.fail(err)
		return
	}
	m.status = fmt.Sprintf("%s: %d rows", a, n)
	m.changed()
}

// cycleGroup moves grouping to the next column, wrapping to no grouping.
func (m *Model) cycleGroup() {
	ids := []string{grouping.NoGrouping}
	for _, c := range m.cols {
		ids = append(ids, c.ID)
	}
	next := grouping.NoGrouping
	for i, id := range ids {
		if id == m.table.GroupBy() {
			next = ids[(i+1)%len(ids)]
			break
		}
	}
	if err := m.table.SetGroupBy(next); err != nil {
		m.fail(err)
		return
	}
	if next == grouping.NoGrouping {
		m.status = "grouping off"
	} else if c, ok := m.table.Columns().Get(next); ok {
		m.status = "group by " + c.DisplayTitle()
	}
	m.refresh()
}

// changed runs the change hook and redraws.
func (m *Model) changed() {
	if m.afterChange != nil {
		if msg := m.afterChange(); msg != "" {
			m.status, m.failed = msg, true
		}
	}
	m.refresh()
}

func (m *Model) fail(err error) {
	m.status, m.failed = err.Error(), true
}

func (m Model) currentRow() string {
	c := m.grid.Cursor()
	if c < 0 || c >= len(m.lines) {
		return ""
	}
	return m.lines[c]
}

func directionName(d sorting.Direction) string {
	switch d {
	case sorting.Ascending:
		return "ascending"
	case sorting.Descending:
		return "descending"
	}
	return "off"
}

func (m Model) gridColumns() []table.Column {
	out := make([]table.Column, 0, len(m.cols)+1)
	out = append(out, table.Column{Title: "", Width: 3})
	for i, c := range m.cols {
		title := c.DisplayTitle()
		switch m.table.SortDirection(c.ID) {
		case sorting.Ascending:
			title += " ▲"
		case sorting.Descending:
			title += " ▼"
		}
		if i == m.column {
			title = "[" + title + "]"
		}
		out = append(out, table.Column{Title: title, Width: columnWidth(c, title)})
	}
	return out
}

// columnWidth converts a pixel width into terminal cells.
func columnWidth(c columns.Column, title string) int {
	w := c.Width / 10
	if n := lipgloss.Width(title); n > w {
		w = n
	}
	return min(max(w, 6), 40)
}

// refresh rebuilds the grid from the table display, keeping the cursor on
// the same row when it is still shown.
func (m *Model) refresh() {
	current := m.currentRow()
	v := m.table.Display()
	lines := make([]string, 0, len(v.Entries))
	data := make([]table.Row, 0, len(v.Entries))
	for _, e := range v.Entries {
		cells := make(table.Row, len(m.cols)+1)
		if e.Kind == tables.EntryGroup {
			cells[1] = fmt.Sprintf("%s (%d)", e.Label, e.Count)
			lines = append(lines, "")
			data = append(data, cells)
			continue
		}
		if e.Selected {
			cells[0] = "[x]"
		} else {
			cells[0] = "[ ]"
		}
		for i, c := range m.cols {
			value := c.Value(e.Row.Row)
			if c.Type == columns.TypePassword && value != "" {
				value = "••••••••"
			}
			if i == 0 {
				value = strings.Repeat("  ", e.Row.Level) + expander(e.Row) + value
			}
			cells[i+1] = value
		}
		lines = append(lines, e.Row.Row.ID)
		data = append(data, cells)
	}
	m.lines = lines
	m.grid.SetColumns(m.gridColumns())
	m.grid.SetRows(data)
	for i, id := range lines {
		if id != "" && id == current {
			m.grid.SetCursor(i)
			break
		}
	}
}

func expander(r rows.DisplayRow) string {
	switch {
	case !r.HasChildren:
		return "  "
	case r.Row.Expanded:
		return "▾ "
	default:
		return "▸ "
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.grid.View())
	b.WriteString("\n")

	v := m.table.Display()
	summary := fmt.Sprintf("%d of %d rows, %d selected", len(v.RowIDs), v.Total, v.Selected)
	b.WriteString(m.styles.Status.Render(summary))
	b.WriteString("\n")
	switch {
	case m.editing:
		b.WriteString(m.input.View())
	case m.failed:
		b.WriteString(m.styles.Error.Render(m.status))
	default:
		b.WriteString(m.styles.Status.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(helpLine))
	return b.String()
}
