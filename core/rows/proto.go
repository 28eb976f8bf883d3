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
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Reserved wire keys that map onto Row identity rather than Fields.
const (
	KeyID       = "id"
	KeyParentID = "parentId"
	KeyChildren = "children"
	KeyExpanded = "isExpanded"
)

// FromStruct converts a decoded JSON object into a Row. The id may arrive as
// a string or a number; nested children are converted recursively.
func FromStruct(s *structpb.Struct) Row {
	r := Row{Fields: make(map[string]any)}
	for k, v := range s.GetFields() {
		switch k {
		case KeyID:
			r.ID = Stringify(v.AsInterface())
		case KeyParentID:
			r.ParentID = Stringify(v.AsInterface())
		case KeyExpanded:
			r.Expanded = v.GetBoolValue()
		case KeyChildren:
			for _, c := range v.GetListValue().GetValues() {
				if cs := c.GetStructValue(); cs != nil {
					r.Children = append(r.Children, FromStruct(cs))
				}
			}
		default:
			r.Fields[k] = v.AsInterface()
		}
	}
	return r
}

// FromValue converts a JSON array or a single object into rows.
func FromValue(v *structpb.Value) ([]Row, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_ListValue:
		out := make([]Row, 0, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			s := item.GetStructValue()
			if s == nil {
				return nil, fmt.Errorf("element %d is not an object", i)
			}
			out = append(out, FromStruct(s))
		}
		return out, nil
	case *structpb.Value_StructValue:
		return []Row{FromStruct(k.StructValue)}, nil
	case *structpb.Value_NullValue:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected array or object, got %T", k)
	}
}

// ToStruct converts the row, including children, into its JSON object form.
// Extra entries are merged at the top level, overriding fields of the same
// name.
func (r Row) ToStruct(extra map[string]any) (*structpb.Struct, error) {
	m := make(map[string]any, len(r.Fields)+len(extra)+3)
	for k, v := range r.Fields {
		m[k] = normalize(v)
	}
	if r.ID != "" {
		m[KeyID] = r.ID
	}
	if r.ParentID != "" {
		m[KeyParentID] = r.ParentID
	}
	if len(r.Children) > 0 {
		children := make([]any, 0, len(r.Children))
		for _, c := range r.Children {
			cs, err := c.ToStruct(nil)
			if err != nil {
				return nil, err
			}
			children = append(children, cs.AsMap())
		}
		m[KeyChildren] = children
	}
	for k, v := range extra {
		m[k] = normalize(v)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("row %q: %w", r.ID, err)
	}
	return s, nil
}

// normalize maps Go values that structpb does not accept onto JSON friendly
// ones.
func normalize(v any) any {
	switch vv := v.(type) {
	case time.Time:
		return vv.Format(time.RFC3339)
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case fmt.Stringer:
		return vv.String()
	default:
		return v
	}
}
