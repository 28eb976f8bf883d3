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
	"container/heap"
	"slices"

	"github.com/google/tabula/core/rows"
)

// topKHeap is a max-heap over positions into the input slice. The worst of
// the K best rows seen so far sits at the top so it can be replaced.
type topKHeap struct {
	in      []rows.Row
	indices []int
	cmp     *comparator
}

func (h *topKHeap) Len() int { return len(h.indices) }

func (h *topKHeap) Less(i, j int) bool {
	return h.compare(h.indices[i], h.indices[j]) > 0
}

func (h *topKHeap) Swap(i, j int) {
	h.indices[i], h.indices[j] = h.indices[j], h.indices[i]
}

func (h *topKHeap) Push(x any) {
	h.indices = append(h.indices, x.(int))
}

func (h *topKHeap) Pop() any {
	old := h.indices
	n := len(old)
	x := old[n-1]
	h.indices = old[:n-1]
	return x
}

// compare orders by the sort columns, then by input position, which keeps
// the selection identical to a stable full sort.
func (h *topKHeap) compare(i, j int) int {
	if c := h.cmp.compare(h.in[i], h.in[j]); c != 0 {
		return c
	}
	return i - j
}

// SortTopK returns the first k rows of SortMulti(in, order) in
// O(n log k). A k of zero or less returns an empty slice.
func SortTopK(in []rows.Row, order []SortColumn, k int) []rows.Row {
	if len(in) == 0 || k <= 0 {
		return []rows.Row{}
	}
	cmp := newComparator(order)
	if cmp == nil {
		return slices.Clone(in[:min(k, len(in))])
	}
	if k >= len(in) {
		return SortMulti(in, order)
	}

	h := &topKHeap{in: in, indices: make([]int, 0, k), cmp: cmp}
	for i := 0; i < k; i++ {
		h.indices = append(h.indices, i)
	}
	heap.Init(h)
	for i := k; i < len(in); i++ {
		if h.compare(i, h.indices[0]) < 0 {
			heap.Pop(h)
			heap.Push(h, i)
		}
	}

	picked := slices.Clone(h.indices)
	slices.SortFunc(picked, h.compare)
	out := make([]rows.Row, len(picked))
	for i, idx := range picked {
		out[i] = in[idx]
	}
	return out
}
