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

// Package selection tracks which rows of a table are selected.
package selection

// Set is a set of selected row ids. The zero value is an empty selection.
type Set struct {
	ids map[string]struct{}
}

// Select adds or removes id. present reports whether id is on the current
// display list; stale ids are ignored so the set never grows past it.
func (s *Set) Select(id string, selected bool, present func(string) bool) {
	if selected {
		if present != nil && !present(id) {
			return
		}
		if s.ids == nil {
			s.ids = make(map[string]struct{})
		}
		s.ids[id] = struct{}{}
		return
	}
	delete(s.ids, id)
}

// SelectAll selects exactly displayIDs, or clears the set.
func (s *Set) SelectAll(displayIDs []string, selected bool) {
	s.ids = nil
	if !selected {
		return
	}
	s.ids = make(map[string]struct{}, len(displayIDs))
	for _, id := range displayIDs {
		s.ids[id] = struct{}{}
	}
}

// Has reports whether id is selected.
func (s *Set) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Set) Len() int {
	return len(s.ids)
}

// Remove drops ids from the selection.
func (s *Set) Remove(ids ...string) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Clear empties the selection.
func (s *Set) Clear() {
	s.ids = nil
}

// Prune keeps only ids that are on the display list and returns the ids that
// were dropped.
func (s *Set) Prune(displayIDs []string) []string {
	if len(s.ids) == 0 {
		return nil
	}
	keep := make(map[string]struct{}, len(displayIDs))
	for _, id := range displayIDs {
		keep[id] = struct{}{}
	}
	var dropped []string
	for id := range s.ids {
		if _, ok := keep[id]; !ok {
			dropped = append(dropped, id)
			delete(s.ids, id)
		}
	}
	return dropped
}

// AllSelected reports whether every one of displayed rows is selected.
// It is false for an empty table.
func (s *Set) AllSelected(displayed int) bool {
	return displayed > 0 && len(s.ids) == displayed
}

// SomeSelected reports the indeterminate state: some, but not all, rows are
// selected.
func (s *Set) SomeSelected(displayed int) bool {
	return len(s.ids) > 0 && len(s.ids) < displayed
}

// Ordered returns the selected ids in the order they appear in displayIDs.
func (s *Set) Ordered(displayIDs []string) []string {
	out := make([]string, 0, len(s.ids))
	for _, id := range displayIDs {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
