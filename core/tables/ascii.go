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
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

// ToASCII renders the view with ASCII borders. Group headers span the whole
// width; child rows are indented two spaces per level in the first column.
func (v View) ToASCII(cols []columns.Column) string {
	if len(cols) == 0 {
		return ""
	}
	cells := make([][]string, 0, len(v.Entries))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = utf8.RuneCountInString(c.DisplayTitle())
	}
	for _, e := range v.Entries {
		if e.Kind != EntryRow {
			cells = append(cells, nil)
			continue
		}
		line := make([]string, len(cols))
		for i, c := range cols {
			s := c.Value(e.Row.Row)
			if i == 0 {
				s = strings.Repeat("  ", e.Row.Level) + expander(e.Row) + s
			}
			line[i] = s
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
		cells = append(cells, line)
	}

	total := len(cols) - 1
	for _, w := range widths {
		total += w + 2
	}

	var sb strings.Builder
	border := func() {
		for _, w := range widths {
			sb.WriteString("+")
			sb.WriteString(strings.Repeat("-", w+2))
		}
		sb.WriteString("+\n")
	}
	writeLine := func(values []string) {
		for i, w := range widths {
			fmt.Fprintf(&sb, "| %s ", pad(values[i], w))
		}
		sb.WriteString("|\n")
	}

	border()
	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.DisplayTitle()
	}
	writeLine(titles)
	border()
	for i, e := range v.Entries {
		if e.Kind == EntryGroup {
			if i > 0 {
				border()
			}
			label := fmt.Sprintf("%s (%d)", e.Label, e.Count)
			fmt.Fprintf(&sb, "|%s|\n", pad(" "+label, total))
			border()
			continue
		}
		writeLine(cells[i])
	}
	border()
	return sb.String()
}

// expander marks parent rows: "-" when expanded, "+" when collapsed.
func expander(r rows.DisplayRow) string {
	switch {
	case !r.HasChildren:
		return ""
	case r.Row.Expanded:
		return "- "
	default:
		return "+ "
	}
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
