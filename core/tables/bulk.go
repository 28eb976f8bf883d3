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

	"github.com/google/tabula/core/rows"
)

// CopySuffix is appended to the name of duplicated rows.
const CopySuffix = " (Copy)"

// BulkAction applies action to the selected rows. An empty selection is a
// no-op. Every mutating action reports one DataChange; export hands the
// selected rows to the export handler and changes nothing.
func (t *Table) BulkAction(action Action) error {
	ids := t.Selected()
	if len(ids) == 0 {
		return nil
	}
	switch action {
	case ActionActivate:
		t.setStatus(ids, StatusActive, action)
	case ActionDeactivate:
		t.setStatus(ids, StatusInactive, action)
	case ActionDelete:
		t.deleteRows(ids)
		t.selected.Clear()
	case ActionDuplicate:
		t.duplicate(ids)
	case ActionExport:
		if t.opts.export == nil {
			return ErrNoExporter
		}
		selected := make([]rows.Row, 0, len(ids))
		for _, id := range ids {
			if r, ok := t.tree.Get(id); ok {
				selected = append(selected, r)
			}
		}
		if err := t.opts.export(selected); err != nil {
			return fmt.Errorf("export %s: %w", t.name, err)
		}
	default:
		return fmt.Errorf("unknown bulk action %q", action)
	}
	return nil
}

func (t *Table) setStatus(ids []string, status string, action Action) {
	changed := make([]rows.Row, 0, len(ids))
	for _, id := range ids {
		if err := t.tree.SetField(id, t.opts.statusField, status); err != nil {
			continue
		}
		r, _ := t.tree.Get(id)
		changed = append(changed, r)
	}
	t.emit(action, ids, changed)
}

// duplicate clones each selected row, without its children, under a fresh
// id and inserts the copy right after the original.
func (t *Table) duplicate(ids []string) {
	created := make([]rows.Row, 0, len(ids))
	createdIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		orig, ok := t.tree.Get(id)
		if !ok {
			continue
		}
		cp := orig.Clone()
		cp.ID = rows.NewID()
		cp.Expanded = false
		cp.Children = nil
		if cp.Fields == nil {
			cp.Fields = make(map[string]any)
		}
		cp.Fields[t.opts.nameField] = orig.String(t.opts.nameField) + CopySuffix
		if err := t.tree.Insert(cp, id); err != nil {
			continue
		}
		created = append(created, cp)
		createdIDs = append(createdIDs, cp.ID)
	}
	t.emit(ActionDuplicate, createdIDs, created)
}
