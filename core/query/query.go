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

package query

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/safehtml"

	"github.com/google/tabula/core/filtering"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/sorting"
)

// DefaultLimit is the number of rows shown when the URL names none.
const DefaultLimit = 50

// Query represents the parsed state of a table view URL
type Query struct {
	// Base path (e.g., "/table")
	Path string

	// Core parameters
	Table        string               // The table being viewed
	Columns      []string             // Ordered list of visible columns (grouped, then filtered, then others)
	ColumnWidths map[string]int       // Column widths in pixels (columnName -> width)
	GroupBy      string               // Grouping column, grouping.NoGrouping when off
	Sort         []sorting.SortColumn // Sort order, first entry has priority
	Filters      map[string]string    // Column filters (columnName -> filter expression)
	Search       string               // Free-text search over filterable columns
	Limit        int                  // Number of rows to display (0 = show all)

	// Account scope, forwarded to the backend
	AccountID   string
	AccountName string
}

// NewQuery creates a Query from a URL
func NewQuery(u *url.URL) *Query {
	state := &Query{
		Path:         u.Path,
		Filters:      make(map[string]string),
		ColumnWidths: make(map[string]int),
		GroupBy:      grouping.NoGrouping,
		Limit:        DefaultLimit,
	}

	q := u.Query()
	state.Table = q.Get("table")
	state.Search = q.Get("q")
	state.AccountID = q.Get("accountId")
	state.AccountName = q.Get("accountName")

	// Extract columns parameter (format: col1:width,col2,col3:width)
	state.Columns = []string{}
	if columnsStr := q.Get("columns"); columnsStr != "" {
		for _, part := range strings.Split(columnsStr, ",") {
			if colonIdx := strings.LastIndex(part, ":"); colonIdx != -1 {
				colName := part[:colonIdx]
				if width, err := strconv.Atoi(part[colonIdx+1:]); err == nil && width > 0 {
					state.Columns = append(state.Columns, colName)
					state.ColumnWidths[colName] = width
					continue
				}
			}
			state.Columns = append(state.Columns, part)
		}
	}

	if group := q.Get("group"); group != "" {
		state.GroupBy = group
	}
	state.Sort = sorting.ParseOrder(q.Get("sort"))

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 {
			state.Limit = limit
		}
	}

	// Extract filter parameters (format: filter:columnName=value)
	for key, values := range q {
		if strings.HasPrefix(key, "filter:") && len(values) > 0 && values[0] != "" {
			state.Filters[strings.TrimPrefix(key, "filter:")] = values[0]
		}
	}

	state.reorderColumns()
	return state
}

// Clone creates a deep copy of the Query
func (s *Query) Clone() *Query {
	clone := *s
	clone.Columns = slices.Clone(s.Columns)
	clone.ColumnWidths = maps.Clone(s.ColumnWidths)
	clone.Filters = maps.Clone(s.Filters)
	clone.Sort = slices.Clone(s.Sort)
	if clone.ColumnWidths == nil {
		clone.ColumnWidths = make(map[string]int)
	}
	if clone.Filters == nil {
		clone.Filters = make(map[string]string)
	}
	return &clone
}

// FilterState converts the filter parameters into table filters.
func (s *Query) FilterState() filtering.Filters {
	return filtering.Filters{Columns: maps.Clone(s.Filters), Search: s.Search}
}

// reorderColumns reorders the Columns slice to maintain:
// 1. The grouping column (leftmost)
// 2. Filtered columns
// 3. Other columns (rightmost)
func (s *Query) reorderColumns() {
	if len(s.Columns) == 0 {
		return
	}
	var grouped, filtered, others []string
	for _, colName := range s.Columns {
		switch {
		case colName == s.GroupBy:
			grouped = append(grouped, colName)
		case s.Filters[colName] != "":
			filtered = append(filtered, colName)
		default:
			others = append(others, colName)
		}
	}
	s.Columns = make([]string, 0, len(s.Columns))
	s.Columns = append(s.Columns, grouped...)
	s.Columns = append(s.Columns, filtered...)
	s.Columns = append(s.Columns, others...)
}

// WithColumnToggled returns a URL with the column toggled (added if not present, removed if present)
func (s *Query) WithColumnToggled(column string) safehtml.URL {
	newState := s.Clone()
	if idx := slices.Index(newState.Columns, column); idx >= 0 {
		newState.Columns = slices.Delete(newState.Columns, idx, idx+1)
	} else {
		newState.Columns = append(newState.Columns, column)
	}
	return newState.ToSafeURL()
}

// WithSortToggled returns a URL with the sort direction of column advanced
// through ascending, descending and off. Without multi, other sort columns
// are dropped.
func (s *Query) WithSortToggled(column string, multi bool) safehtml.URL {
	newState := s.Clone()
	st := sorting.State{Multi: multi}
	st.Replace(s.Sort)
	st.Toggle(column)
	newState.Sort = st.Columns()
	return newState.ToSafeURL()
}

// SortDirection returns the direction column is sorted in.
func (s *Query) SortDirection(column string) sorting.Direction {
	for _, sc := range s.Sort {
		if sc.ID == column {
			return sc.Direction
		}
	}
	return sorting.Off
}

// WithGroupBy returns a URL grouped by column. grouping.NoGrouping turns
// grouping off.
func (s *Query) WithGroupBy(column string) safehtml.URL {
	newState := s.Clone()
	newState.GroupBy = column
	newState.reorderColumns()
	return newState.ToSafeURL()
}

// IsColumnGrouped checks if column is the grouping column
func (s *Query) IsColumnGrouped(column string) bool {
	return s.GroupBy == column
}

// WithFilter returns a URL with the filter of column set; an empty value
// removes it.
func (s *Query) WithFilter(column, value string) safehtml.URL {
	newState := s.Clone()
	if value == "" {
		delete(newState.Filters, column)
	} else {
		newState.Filters[column] = value
	}
	newState.reorderColumns()
	return newState.ToSafeURL()
}

// WithFilterAndUngrouped returns a URL that filters column to value and
// stops grouping by it. Clicking a group header drills into that group.
func (s *Query) WithFilterAndUngrouped(column, value string) safehtml.URL {
	newState := s.Clone()
	newState.Filters[column] = value
	if newState.GroupBy == column {
		newState.GroupBy = grouping.NoGrouping
	}
	newState.reorderColumns()
	return newState.ToSafeURL()
}

// WithSearch returns a URL with the free-text search replaced
func (s *Query) WithSearch(search string) safehtml.URL {
	newState := s.Clone()
	newState.Search = search
	return newState.ToSafeURL()
}

// WithLimit returns a URL with a different row limit
func (s *Query) WithLimit(limit int) safehtml.URL {
	newState := s.Clone()
	newState.Limit = limit
	return newState.ToSafeURL()
}

// WithTable returns a URL for another table, keeping only the account scope
func (s *Query) WithTable(table string) safehtml.URL {
	newState := &Query{
		Path:        s.Path,
		Table:       table,
		GroupBy:     grouping.NoGrouping,
		Limit:       DefaultLimit,
		AccountID:   s.AccountID,
		AccountName: s.AccountName,
	}
	return newState.ToSafeURL()
}

// WithPath returns the current state addressed at another path, used for
// the export and action endpoints.
func (s *Query) WithPath(path string) safehtml.URL {
	newState := s.Clone()
	newState.Path = path
	return newState.ToSafeURL()
}

// IsColumnVisible checks if a column is in the visible columns list
func (s *Query) IsColumnVisible(column string) bool {
	return slices.Contains(s.Columns, column)
}

// ToURL converts the Query back to a URL string
func (s *Query) ToURL() string {
	u := &url.URL{
		Path: s.Path,
	}

	q := u.Query()

	if s.Table != "" {
		q.Set("table", s.Table)
	}

	// Add columns parameter (with widths if present)
	if len(s.Columns) > 0 {
		columnStrs := make([]string, 0, len(s.Columns))
		for _, col := range s.Columns {
			if width, hasWidth := s.ColumnWidths[col]; hasWidth {
				columnStrs = append(columnStrs, col+":"+strconv.Itoa(width))
			} else {
				columnStrs = append(columnStrs, col)
			}
		}
		q.Set("columns", strings.Join(columnStrs, ","))
	}

	if s.GroupBy != "" && s.GroupBy != grouping.NoGrouping {
		q.Set("group", s.GroupBy)
	}
	if len(s.Sort) > 0 {
		q.Set("sort", sorting.FormatOrder(s.Sort))
	}

	// Add filter parameters (format: filter:columnName=value)
	for colName, filterValue := range s.Filters {
		if filterValue != "" {
			q.Set("filter:"+colName, filterValue)
		}
	}
	if s.Search != "" {
		q.Set("q", s.Search)
	}

	// Add limit parameter (always included in URL)
	q.Set("limit", strconv.Itoa(s.Limit))

	if s.AccountID != "" {
		q.Set("accountId", s.AccountID)
	}
	if s.AccountName != "" {
		q.Set("accountName", s.AccountName)
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// ToSafeURL converts the Query to a safehtml.URL
func (s *Query) ToSafeURL() safehtml.URL {
	// URLSanitized sanitizes the input string and returns a URL
	return safehtml.URLSanitized(s.ToURL())
}
