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

// Package filtering narrows a row set by per-column filter expressions and a
// free-text search.
package filtering

import (
	"strings"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

// Filters is the filter state of a table.
type Filters struct {
	Columns map[string]string // column id -> filter expression
	Search  string            // matched against every filterable column
}

// Empty reports whether no filter is active.
func (f Filters) Empty() bool {
	if strings.TrimSpace(f.Search) != "" {
		return false
	}
	for _, v := range f.Columns {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Match evaluates a filter expression against value. Matching ignores case.
//
// Syntax: terms joined by | (or) and & (and), each optionally negated by !.
// A double-quoted term matches the whole value, a single-quoted term matches
// a substring, and a bare term does whichever exact selects.
//
//	"Active"            value is Active
//	'ops'|'dev'         value contains ops or dev
//	!"Inactive"&'eu'    value is not Inactive and contains eu
func Match(filter, value string, exact bool) bool {
	value = strings.ToLower(value)
	for _, or := range strings.Split(filter, "|") {
		andMatch := true
		for _, and := range strings.Split(or, "&") {
			and = strings.TrimSpace(and)
			not := false
			if strings.HasPrefix(and, "!") {
				not = true
				and = strings.TrimSpace(and[1:])
			}
			match := matchTerm(and, value, exact)
			if not {
				match = !match
			}
			andMatch = andMatch && match
		}
		if andMatch {
			return true
		}
	}
	return false
}

func matchTerm(term, value string, exact bool) bool {
	term = strings.ToLower(term)
	switch {
	case len(term) >= 2 && term[0] == '"' && term[len(term)-1] == '"':
		return value == term[1:len(term)-1]
	case len(term) >= 2 && term[0] == '\'' && term[len(term)-1] == '\'':
		return strings.Contains(value, term[1:len(term)-1])
	case term == "":
		return true
	case exact:
		return value == term
	default:
		return strings.Contains(value, term)
	}
}

// Matches reports whether a single row passes every filter. Filters on
// columns that are unknown or not filterable are ignored.
func Matches(r rows.Row, cols *columns.ColumnSet, f Filters) bool {
	for id, expr := range f.Columns {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		col, ok := cols.Get(id)
		if !ok || !col.Filterable {
			continue
		}
		if !Match(expr, col.Value(r), col.Exact()) {
			return false
		}
	}
	search := strings.TrimSpace(f.Search)
	if search == "" {
		return true
	}
	for _, col := range cols.Columns() {
		if col.Filterable && Match(search, col.Value(r), false) {
			return true
		}
	}
	return false
}

// Apply returns the rows that pass f, keeping input order. For nested rows a
// parent stays when it or any descendant matches, and its children are
// narrowed to the matching branches.
func Apply(in []rows.Row, cols *columns.ColumnSet, f Filters) []rows.Row {
	if f.Empty() {
		return in
	}
	out := make([]rows.Row, 0, len(in))
	for _, r := range in {
		if kept, ok := apply(r, cols, f); ok {
			out = append(out, kept)
		}
	}
	return out
}

func apply(r rows.Row, cols *columns.ColumnSet, f Filters) (rows.Row, bool) {
	self := Matches(r, cols, f)
	if len(r.Children) == 0 {
		return r, self
	}
	var children []rows.Row
	for _, c := range r.Children {
		if kept, ok := apply(c, cols, f); ok {
			children = append(children, kept)
		}
	}
	if self {
		// A matching parent keeps its whole subtree.
		return r, true
	}
	if len(children) == 0 {
		return r, false
	}
	r.Children = children
	return r, true
}
