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

package rendering

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/google/tabula/core/views"
)

// Terminal styles for the text renderer.
var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0B69A3"))
	groupStyle       = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("#F0F4F8")).Foreground(lipgloss.Color("#102A43"))
	placeholderStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#829AB1"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2BB0ED"))
	invalidStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E12D39"))
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#829AB1"))
)

const columnGap = "  "

// RenderText writes the view model as an aligned plain-text table. The first
// column carries the selection mark, the tree indent and the expander.
func RenderText(w io.Writer, vm views.TableViewModel) error {
	widths := make([]int, len(vm.Headers))
	for i, h := range vm.Headers {
		widths[i] = lipgloss.Width(headerTitle(h))
	}
	for _, r := range vm.Rows {
		if r.IsGroup {
			continue
		}
		for i, c := range r.Cells {
			if n := lipgloss.Width(cellText(r, i, c)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintln(&sb, headerStyle.Render(vm.Title))
	header := make([]string, len(vm.Headers))
	for i, h := range vm.Headers {
		header[i] = headerStyle.Width(widths[i]).Render(headerTitle(h))
	}
	fmt.Fprintln(&sb, "  "+columnGap+strings.Join(header, columnGap))

	for _, r := range vm.Rows {
		if r.IsGroup {
			label := fmt.Sprintf("%s (%d)", r.GroupLabel, r.GroupCount)
			if r.GroupSummary != "" {
				label += "  " + r.GroupSummary
			}
			if r.Placeholder {
				fmt.Fprintln(&sb, placeholderStyle.Render(label))
			} else {
				fmt.Fprintln(&sb, groupStyle.Render(label))
			}
			continue
		}
		mark := "[ ]"
		if r.Selected {
			mark = selectedStyle.Render("[x]")
		}
		cells := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			style := lipgloss.NewStyle().Width(widths[i])
			if c.Invalid != "" {
				style = style.Inherit(invalidStyle)
			}
			cells[i] = style.Render(cellText(r, i, c))
		}
		fmt.Fprintln(&sb, mark+" "+strings.Join(cells, columnGap))
	}

	footer := fmt.Sprintf("%d of %d rows", vm.DisplayedRows, vm.TotalRows)
	if vm.SelectedCount > 0 {
		footer += fmt.Sprintf(", %d selected", vm.SelectedCount)
	}
	fmt.Fprintln(&sb, mutedStyle.Render(footer))

	_, err := io.WriteString(w, sb.String())
	return err
}

func headerTitle(h views.HeaderInfo) string {
	switch h.SortDir {
	case "asc":
		return h.Title + " ▲"
	case "desc":
		return h.Title + " ▼"
	}
	return h.Title
}

func cellText(r views.RowInfo, i int, c views.CellInfo) string {
	v := c.Value
	if c.Editing {
		v = "✎ " + v
	}
	if i > 0 {
		return v
	}
	prefix := strings.Repeat("  ", r.Level)
	switch {
	case r.HasChildren && r.Expanded:
		prefix += "▾ "
	case r.HasChildren:
		prefix += "▸ "
	}
	return prefix + v
}
