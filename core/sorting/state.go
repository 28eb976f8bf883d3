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
	"slices"
	"strings"
)

// State is the sort state of a table: an ordered list of active columns.
// In single mode a toggle replaces whatever was active before; with Multi
// set, toggled columns accumulate and act as tie-breakers in toggle order.
type State struct {
	Multi   bool
	columns []SortColumn
}

// Toggle advances the direction of id through asc -> desc -> off and
// returns the new direction.
func (s *State) Toggle(id string) Direction {
	next := s.Direction(id).Next()
	s.Set(id, next)
	return next
}

// Set puts id into direction d. Off removes it.
func (s *State) Set(id string, d Direction) {
	idx := slices.IndexFunc(s.columns, func(sc SortColumn) bool { return sc.ID == id })
	if !s.Multi {
		s.columns = s.columns[:0]
		idx = -1
	}
	switch {
	case d == Off && idx >= 0:
		s.columns = slices.Delete(s.columns, idx, idx+1)
	case d == Off:
	case idx >= 0:
		s.columns[idx].Direction = d
	default:
		s.columns = append(s.columns, SortColumn{ID: id, Direction: d})
	}
}

// Direction returns the direction of id, Off when it is not sorted.
func (s *State) Direction(id string) Direction {
	for _, sc := range s.columns {
		if sc.ID == id {
			return sc.Direction
		}
	}
	return Off
}

// Priority returns the 1-based position of id in the sort order, 0 when
// not sorted.
func (s *State) Priority(id string) int {
	for i, sc := range s.columns {
		if sc.ID == id {
			return i + 1
		}
	}
	return 0
}

// Columns returns the active sort order.
func (s *State) Columns() []SortColumn {
	return slices.Clone(s.columns)
}

// Replace sets the whole order at once, dropping Off entries. Single mode
// keeps only the first active column.
func (s *State) Replace(order []SortColumn) {
	s.columns = s.columns[:0]
	for _, sc := range order {
		if sc.Direction == Off || sc.ID == "" {
			continue
		}
		s.columns = append(s.columns, sc)
		if !s.Multi {
			break
		}
	}
}

// Clear turns sorting off.
func (s *State) Clear() {
	s.columns = nil
}

// String encodes the order as "col:asc,col2:desc".
func (s *State) String() string {
	return FormatOrder(s.columns)
}

// FormatOrder encodes a sort order for URLs.
func FormatOrder(order []SortColumn) string {
	parts := make([]string, 0, len(order))
	for _, sc := range order {
		if sc.Direction == Off {
			continue
		}
		parts = append(parts, sc.ID+":"+sc.Direction.String())
	}
	return strings.Join(parts, ",")
}

// ParseOrder decodes "col:asc,col2:desc". A bare column name sorts
// ascending; malformed entries are skipped.
func ParseOrder(s string) []SortColumn {
	if s == "" {
		return nil
	}
	var out []SortColumn
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		id, dirStr, _ := strings.Cut(part, ":")
		dir, err := ParseDirection(dirStr)
		if err != nil || id == "" {
			continue
		}
		out = append(out, SortColumn{ID: id, Direction: dir})
	}
	return out
}
