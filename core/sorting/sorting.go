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

// Package sorting orders rows by column values.
//
// Values are compared as display strings with a numeric-aware, case-insensitive
// collator. Every sort is stable and returns a new slice; input rows are never
// reordered or mutated.
package sorting

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

// Direction is the sort direction of one column.
type Direction int

const (
	Off Direction = iota
	Ascending
	Descending
)

// String returns the URL form of the direction.
func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "off"
	}
}

// ParseDirection parses "asc", "desc" or "off" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "asc", "ascending", "":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	case "off", "none":
		return Off, nil
	}
	return Off, fmt.Errorf("unknown sort direction %q", s)
}

// Next returns the direction after a click: asc -> desc -> off -> asc.
func (d Direction) Next() Direction {
	switch d {
	case Ascending:
		return Descending
	case Descending:
		return Off
	default:
		return Ascending
	}
}

// SortColumn is one entry of a sort order.
type SortColumn struct {
	ID        string
	Direction Direction
}

// Sort returns rows ordered by columnID. Off returns an unchanged copy: the
// caller restores the pre-sort order from its own copy of the data.
func Sort(in []rows.Row, columnID string, dir Direction) []rows.Row {
	return SortMulti(in, []SortColumn{{ID: columnID, Direction: dir}})
}

// SortMulti orders rows by each column in turn, later columns breaking ties
// of earlier ones. Entries with direction Off are ignored.
func SortMulti(in []rows.Row, order []SortColumn) []rows.Row {
	out := slices.Clone(in)
	cmp := newComparator(order)
	if cmp == nil {
		return out
	}
	slices.SortStableFunc(out, cmp.compare)
	return out
}

// SortTree orders the rows at every level of a nested row set; children
// are ordered among their siblings only.
func SortTree(in []rows.Row, order []SortColumn) []rows.Row {
	cmp := newComparator(order)
	if cmp == nil {
		return slices.Clone(in)
	}
	return sortTree(in, cmp)
}

func sortTree(in []rows.Row, cmp *comparator) []rows.Row {
	out := slices.Clone(in)
	slices.SortStableFunc(out, cmp.compare)
	for i := range out {
		if len(out[i].Children) > 0 {
			out[i].Children = sortTree(out[i].Children, cmp)
		}
	}
	return out
}

// comparator holds resolved sort columns and the collator used to compare
// their values.
type comparator struct {
	cols     []SortColumn
	collator *columns.Collator
}

func newComparator(order []SortColumn) *comparator {
	active := make([]SortColumn, 0, len(order))
	for _, sc := range order {
		if sc.Direction != Off && sc.ID != "" {
			active = append(active, sc)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return &comparator{cols: active, collator: columns.DefaultCollator()}
}

// compare returns negative if a sorts before b, zero if tied.
func (c *comparator) compare(a, b rows.Row) int {
	for _, sc := range c.cols {
		cmp := c.collator.Compare(a.String(sc.ID), b.String(sc.ID))
		if cmp != 0 {
			if sc.Direction == Descending {
				return -cmp
			}
			return cmp
		}
	}
	return 0
}
