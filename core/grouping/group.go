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

package grouping

import (
	"slices"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

// NoGrouping is the column id that disables grouping. It is the default.
const NoGrouping = "none"

// Placeholder returns the label of the bucket holding rows without a value
// for the column titled title.
func Placeholder(title string) string {
	return "(No " + title + ")"
}

// Bucket is one group of rows.
type Bucket struct {
	Label       string
	Placeholder bool
	Rows        []rows.Row
}

// Group partitions rows into buckets keyed by their value for col.
//
// Rows keep their input order inside a bucket. Buckets with a real value
// come first in collation order, followed by the bucket for empty values,
// keyed "". Grouping by NoGrouping (or an empty id) yields one bucket,
// keyed "", holding every row.
func Group(in []rows.Row, col columns.Column) *OrderedMap[string, []rows.Row] {
	out := NewOrderedMap[string, []rows.Row]()
	if !grouped(col) {
		out.Set("", slices.Clone(in))
		return out
	}

	for _, r := range in {
		value := col.Value(r)
		existing, _ := out.Get(value)
		out.Set(value, append(existing, r))
	}

	collator := columns.DefaultCollator()
	keys := out.Keys()
	slices.SortStableFunc(keys, func(a, b string) int {
		if (a == "") != (b == "") {
			if a == "" {
				return 1
			}
			return -1
		}
		return collator.Compare(a, b)
	})
	out.reorder(keys)
	return out
}

func grouped(col columns.Column) bool {
	return col.ID != "" && col.ID != NoGrouping
}

// Buckets returns the groups of rows for col as a slice, in bucket order.
// Rows without a value land in a placeholder bucket labelled
// Placeholder(title), kept apart from a real value that reads the same.
func Buckets(in []rows.Row, col columns.Column) []Bucket {
	groups := Group(in, col)
	buckets := make([]Bucket, 0, groups.Len())
	groups.Range(func(value string, members []rows.Row) bool {
		b := Bucket{Label: value, Rows: members}
		if value == "" && grouped(col) {
			b.Label = Placeholder(col.DisplayTitle())
			b.Placeholder = true
		}
		buckets = append(buckets, b)
		return true
	})
	return buckets
}
