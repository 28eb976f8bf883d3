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

package columns

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/tabula/core/rows"
)

// Type selects the edit affordance and validator of a column.
type Type int

const (
	TypeText Type = iota
	TypeEmail
	TypeSelect
	TypeDate
	TypeNumber
	TypeCheckbox
	TypeToggle
	TypePassword
	TypeUserGroup
	TypeCustom
)

var typeNames = []string{
	TypeText:      "text",
	TypeEmail:     "email",
	TypeSelect:    "select",
	TypeDate:      "date",
	TypeNumber:    "number",
	TypeCheckbox:  "checkbox",
	TypeToggle:    "toggle",
	TypePassword:  "password",
	TypeUserGroup: "userGroup",
	TypeCustom:    "custom",
}

// String returns the configuration name of the type.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// ParseType parses a configuration name. Matching is case-insensitive and
// the empty string means text.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeText, nil
	}
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i), nil
		}
	}
	return TypeText, fmt.Errorf("unknown column type %q", s)
}

// UnmarshalText lets Type be read straight from YAML or JSON.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText writes the configuration name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Column describes one table column. ID must match a row field name and must
// not contain any of the following characters: & = : ,
type Column struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Type       Type     `yaml:"type"`
	Width      int      `yaml:"width"`
	Resizable  bool     `yaml:"resizable"`
	Sortable   bool     `yaml:"sortable"`
	Filterable bool     `yaml:"filterable"`
	Editable   bool     `yaml:"editable"`
	Order      int      `yaml:"order"`
	Options    []string `yaml:"options,omitempty"`    // choices for select columns
	Pattern    string   `yaml:"pattern,omitempty"`    // overrides the type pattern
	MaxLength  int      `yaml:"max_length,omitempty"` // overrides the type limit
}

// DisplayTitle returns the title, falling back to the id.
func (c Column) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// Value returns the display string of this column for row r.
func (c Column) Value(r rows.Row) string {
	return r.String(c.ID)
}

// Exact reports whether filters on this column match whole values.
func (c Column) Exact() bool {
	switch c.Type {
	case TypeSelect, TypeCheckbox, TypeToggle:
		return true
	}
	return false
}

// ColumnSet is an immutable, display-ordered set of columns.
type ColumnSet struct {
	columns []Column
	byID    map[string]int
}

// NewColumnSet validates cols and orders them by Order. Ids and orders must
// both be unique so that layout is deterministic.
func NewColumnSet(cols []Column) (*ColumnSet, error) {
	ordered := slices.Clone(cols)
	seenID := make(map[string]bool, len(cols))
	seenOrder := make(map[int]string, len(cols))
	for _, c := range ordered {
		if c.ID == "" {
			return nil, fmt.Errorf("column without id")
		}
		if strings.ContainsAny(c.ID, "&=:,") {
			return nil, fmt.Errorf("column id %q contains a reserved character", c.ID)
		}
		if seenID[c.ID] {
			return nil, fmt.Errorf("duplicate column id %q", c.ID)
		}
		seenID[c.ID] = true
		if other, ok := seenOrder[c.Order]; ok {
			return nil, fmt.Errorf("columns %q and %q share order %d", other, c.ID, c.Order)
		}
		seenOrder[c.Order] = c.ID
	}
	slices.SortStableFunc(ordered, func(a, b Column) int {
		return a.Order - b.Order
	})
	byID := make(map[string]int, len(ordered))
	for i, c := range ordered {
		byID[c.ID] = i
	}
	return &ColumnSet{columns: ordered, byID: byID}, nil
}

// MustColumnSet is NewColumnSet for static definitions.
func MustColumnSet(cols []Column) *ColumnSet {
	cs, err := NewColumnSet(cols)
	if err != nil {
		panic(err)
	}
	return cs
}

// Columns returns the columns in display order.
func (cs *ColumnSet) Columns() []Column {
	return slices.Clone(cs.columns)
}

// Get returns the column with the given id.
func (cs *ColumnSet) Get(id string) (Column, bool) {
	i, ok := cs.byID[id]
	if !ok {
		return Column{}, false
	}
	return cs.columns[i], true
}

// IDs returns the column ids in display order.
func (cs *ColumnSet) IDs() []string {
	ids := make([]string, len(cs.columns))
	for i, c := range cs.columns {
		ids[i] = c.ID
	}
	return ids
}

// Len returns the number of columns.
func (cs *ColumnSet) Len() int {
	return len(cs.columns)
}

// Select returns the subset named by ids, in the order given. Unknown ids
// are skipped.
func (cs *ColumnSet) Select(ids []string) []Column {
	out := make([]Column, 0, len(ids))
	for _, id := range ids {
		if c, ok := cs.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}
