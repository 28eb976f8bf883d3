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

// Package rows holds the row model shared by every table: a keyed bag of
// fields plus identity and the optional tree links used by nested tables.
package rows

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateID is returned when two rows in one tree share an id.
	ErrDuplicateID = errors.New("duplicate row id")
	// ErrNotFound is returned when a row id is not present.
	ErrNotFound = errors.New("row not found")
)

// Row is a single table record.
// Fields holds the business attributes keyed by column id. Children is only
// set for nested rows and is owned by the row.
type Row struct {
	ID       string
	ParentID string
	Expanded bool
	Fields   map[string]any
	Children []Row
}

// NewID returns a fresh row identity. Ids are never reused.
func NewID() string {
	return uuid.NewString()
}

// New creates a row with the given id and fields. The fields map is copied.
func New(id string, fields map[string]any) Row {
	return Row{ID: id, Fields: maps.Clone(fields)}
}

// Get returns the raw value stored for field.
func (r Row) Get(field string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[field]
	return v, ok
}

// String returns the display string for field, "" when missing.
func (r Row) String(field string) string {
	v, _ := r.Get(field)
	return Stringify(v)
}

// With returns a copy of the row with field set to value.
func (r Row) With(field string, value any) Row {
	c := r.Clone()
	if c.Fields == nil {
		c.Fields = make(map[string]any)
	}
	c.Fields[field] = value
	return c
}

// Clone returns a deep copy of the row including its children.
func (r Row) Clone() Row {
	c := Row{
		ID:       r.ID,
		ParentID: r.ParentID,
		Expanded: r.Expanded,
		Fields:   cloneFields(r.Fields),
	}
	if len(r.Children) > 0 {
		c.Children = make([]Row, len(r.Children))
		for i, child := range r.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// CloneAll deep copies a slice of rows.
func CloneAll(in []Row) []Row {
	if in == nil {
		return nil
	}
	out := make([]Row, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func cloneFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch vv := v.(type) {
		case []any:
			out[k] = append([]any(nil), vv...)
		case []string:
			out[k] = append([]string(nil), vv...)
		case map[string]any:
			out[k] = cloneFields(vv)
		default:
			out[k] = v
		}
	}
	return out
}

// Stringify converts a field value to the string used for display,
// comparison and grouping. nil becomes the empty string.
func Stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32)
	case int:
		return strconv.Itoa(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case uint32:
		return strconv.FormatUint(uint64(vv), 10)
	case time.Time:
		if vv.IsZero() {
			return ""
		}
		return vv.Format(time.RFC3339)
	case fmt.Stringer:
		return vv.String()
	default:
		return fmt.Sprint(vv)
	}
}
