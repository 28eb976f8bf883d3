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

package rows

import (
	"fmt"
)

// DisplayRow is a row positioned in a flattened display list.
type DisplayRow struct {
	Row         Row // Children are not carried; see HasChildren
	Level       int
	HasChildren bool
}

// node is one arena slot. Links are arena indices, -1 meaning none.
type node struct {
	row      Row
	parent   int
	children []int
	removed  bool
}

// Tree stores nested rows in a flat arena addressed by row id.
// Updating a node never touches its siblings or ancestors, and the row order
// as loaded is kept so that an unsorted view can always be restored.
type Tree struct {
	nodes   []node
	index   map[string]int
	roots   []int
	retired map[string]struct{}
}

// NewTree builds a tree from rows. Nested Children and ParentID links are
// both honored; a ParentID naming an unknown row leaves the row at the root.
func NewTree(in []Row) (*Tree, error) {
	t := &Tree{
		index:   make(map[string]int),
		retired: make(map[string]struct{}),
	}
	for _, r := range in {
		if _, err := t.add(r, -1); err != nil {
			return nil, err
		}
	}
	t.linkParents()
	return t, nil
}

func (t *Tree) add(r Row, parent int) (int, error) {
	if r.ID == "" {
		return -1, fmt.Errorf("row without id")
	}
	if _, ok := t.index[r.ID]; ok {
		return -1, fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
	}
	if _, ok := t.retired[r.ID]; ok {
		return -1, fmt.Errorf("%w: %q was deleted", ErrDuplicateID, r.ID)
	}
	children := r.Children
	stored := r.Clone()
	stored.Children = nil
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{row: stored, parent: parent})
	t.index[r.ID] = idx
	if parent >= 0 {
		t.nodes[idx].row.ParentID = t.nodes[parent].row.ID
		t.nodes[parent].children = append(t.nodes[parent].children, idx)
	} else {
		t.roots = append(t.roots, idx)
	}
	for _, c := range children {
		if _, err := t.add(c, idx); err != nil {
			return -1, err
		}
	}
	return idx, nil
}

// check validates the ids of r and its subtree against the live and
// retired rows and against each other, so that a failed insert leaves the
// tree untouched.
func (t *Tree) check(r Row, seen map[string]struct{}) error {
	if r.ID == "" {
		return fmt.Errorf("row without id")
	}
	if _, ok := t.index[r.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
	}
	if _, ok := t.retired[r.ID]; ok {
		return fmt.Errorf("%w: %q was deleted", ErrDuplicateID, r.ID)
	}
	if _, ok := seen[r.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
	}
	seen[r.ID] = struct{}{}
	for _, c := range r.Children {
		if err := t.check(c, seen); err != nil {
			return err
		}
	}
	return nil
}

// linkParents moves flat rows that reference a parent by id under it.
func (t *Tree) linkParents() {
	roots := make([]int, 0, len(t.roots))
	for _, idx := range t.roots {
		pid := t.nodes[idx].row.ParentID
		p, ok := t.index[pid]
		if pid == "" || !ok || t.isDescendant(p, idx) {
			t.nodes[idx].row.ParentID = ""
			roots = append(roots, idx)
			continue
		}
		t.nodes[idx].parent = p
		t.nodes[p].children = append(t.nodes[p].children, idx)
	}
	t.roots = roots
}

// isDescendant reports whether n sits below (or is) ancestor.
func (t *Tree) isDescendant(n, ancestor int) bool {
	for n >= 0 {
		if n == ancestor {
			return true
		}
		n = t.nodes[n].parent
	}
	return false
}

// Len returns the number of live rows at every depth.
func (t *Tree) Len() int {
	return len(t.index)
}

// Has reports whether id is a live row.
func (t *Tree) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Get returns the row for id without its children.
func (t *Tree) Get(id string) (Row, bool) {
	idx, ok := t.index[id]
	if !ok {
		return Row{}, false
	}
	return t.nodes[idx].row.Clone(), true
}

// Subtree returns the row for id with its descendants attached.
func (t *Tree) Subtree(id string) (Row, bool) {
	idx, ok := t.index[id]
	if !ok {
		return Row{}, false
	}
	return t.build(idx), true
}

// Update replaces the fields of row id with fn's result. Identity and tree
// links are kept whatever fn returns.
func (t *Tree) Update(id string, fn func(Row) Row) error {
	idx, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	n := &t.nodes[idx]
	next := fn(n.row.Clone())
	next.ID = n.row.ID
	next.ParentID = n.row.ParentID
	next.Children = nil
	n.row = next
	return nil
}

// SetField sets one field on row id.
func (t *Tree) SetField(id, field string, value any) error {
	return t.Update(id, func(r Row) Row {
		return r.With(field, value)
	})
}

// ToggleExpand flips the expansion flag of row id and reports whether the
// row exists.
func (t *Tree) ToggleExpand(id string) bool {
	idx, ok := t.index[id]
	if !ok {
		return false
	}
	t.nodes[idx].row.Expanded = !t.nodes[idx].row.Expanded
	return true
}

// SetExpanded sets the expansion flag of row id.
func (t *Tree) SetExpanded(id string, expanded bool) bool {
	idx, ok := t.index[id]
	if !ok {
		return false
	}
	t.nodes[idx].row.Expanded = expanded
	return true
}

// Insert adds r (and any nested children) after the sibling named by after.
// With an empty after, r is appended under r.ParentID when that row exists,
// otherwise at the root.
func (t *Tree) Insert(r Row, after string) error {
	parent := -1
	if after != "" {
		a, ok := t.index[after]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNotFound, after)
		}
		parent = t.nodes[a].parent
	} else if p, ok := t.index[r.ParentID]; ok && r.ParentID != "" {
		parent = p
	}
	if parent < 0 {
		r.ParentID = ""
	}
	if err := t.check(r, make(map[string]struct{})); err != nil {
		return err
	}
	idx, err := t.add(r, parent)
	if err != nil {
		return err
	}
	if after == "" {
		return nil
	}
	// add appended idx; move it right behind after.
	siblings := &t.roots
	if parent >= 0 {
		siblings = &t.nodes[parent].children
	}
	*siblings = moveAfter(*siblings, idx, t.index[after])
	return nil
}

func moveAfter(list []int, idx, after int) []int {
	out := make([]int, 0, len(list))
	for _, v := range list {
		if v == idx {
			continue
		}
		out = append(out, v)
		if v == after {
			out = append(out, idx)
		}
	}
	return out
}

// Remove deletes the given rows together with their subtrees and returns
// every removed id in pre-order. Unknown ids are ignored.
func (t *Tree) Remove(ids ...string) []string {
	var removed []string
	for _, id := range ids {
		idx, ok := t.index[id]
		if !ok {
			continue
		}
		if p := t.nodes[idx].parent; p >= 0 {
			t.nodes[p].children = without(t.nodes[p].children, idx)
		} else {
			t.roots = without(t.roots, idx)
		}
		removed = t.retire(idx, removed)
	}
	return removed
}

func (t *Tree) retire(idx int, acc []string) []string {
	n := &t.nodes[idx]
	n.removed = true
	delete(t.index, n.row.ID)
	t.retired[n.row.ID] = struct{}{}
	acc = append(acc, n.row.ID)
	for _, c := range n.children {
		acc = t.retire(c, acc)
	}
	return acc
}

func without(list []int, idx int) []int {
	out := make([]int, 0, len(list))
	for _, v := range list {
		if v != idx {
			out = append(out, v)
		}
	}
	return out
}

// Rows returns a nested copy of the tree in load order.
func (t *Tree) Rows() []Row {
	out := make([]Row, 0, len(t.roots))
	for _, idx := range t.roots {
		out = append(out, t.build(idx))
	}
	return out
}

func (t *Tree) build(idx int) Row {
	n := t.nodes[idx]
	r := n.row.Clone()
	if len(n.children) > 0 {
		r.Children = make([]Row, 0, len(n.children))
		for _, c := range n.children {
			r.Children = append(r.Children, t.build(c))
		}
	}
	return r
}

// IDs returns every live id in pre-order.
func (t *Tree) IDs() []string {
	ids := make([]string, 0, len(t.index))
	var walk func(idx int)
	walk = func(idx int) {
		ids = append(ids, t.nodes[idx].row.ID)
		for _, c := range t.nodes[idx].children {
			walk(c)
		}
	}
	for _, idx := range t.roots {
		walk(idx)
	}
	return ids
}

// Flatten flattens the tree honoring each row's expansion flag.
func (t *Tree) Flatten() []DisplayRow {
	return Flatten(t.Rows())
}

// Flatten walks nested rows depth first. Each row is emitted at its depth and,
// when expanded, its children follow immediately at depth+1. Rows below a
// collapsed row are skipped entirely.
func Flatten(in []Row) []DisplayRow {
	out := make([]DisplayRow, 0, len(in))
	return flatten(in, 0, out)
}

func flatten(in []Row, level int, out []DisplayRow) []DisplayRow {
	for _, r := range in {
		children := r.Children
		r.Children = nil
		out = append(out, DisplayRow{Row: r, Level: level, HasChildren: len(children) > 0})
		if r.Expanded && len(children) > 0 {
			out = flatten(children, level+1, out)
		}
	}
	return out
}
