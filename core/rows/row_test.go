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
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"whole float", float64(10), "10"},
		{"fraction", 2.5, "2.5"},
		{"bool", true, "true"},
		{"int", 7, "7"},
		{"time", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "2024-03-01T12:00:00Z"},
		{"zero time", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stringify(tt.in); got != tt.want {
				t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	r := New("1", map[string]any{"name": "Beta"})
	r2 := r.With("name", "Gamma")
	if r.String("name") != "Beta" {
		t.Errorf("original row changed to %q", r.String("name"))
	}
	if r2.String("name") != "Gamma" {
		t.Errorf("expected Gamma, got %q", r2.String("name"))
	}
}

func TestFromValueDecodesJSON(t *testing.T) {
	body := `[{"id": 12, "name": "ops", "parentId": "", "children": [{"id": "12a", "name": "oncall"}]},
	          {"id": "13", "isExpanded": true, "status": null}]`
	v := &structpb.Value{}
	if err := protojson.Unmarshal([]byte(body), v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := FromValue(v)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].ID != "12" {
		t.Errorf("numeric id should stringify to 12, got %q", got[0].ID)
	}
	if len(got[0].Children) != 1 || got[0].Children[0].ID != "12a" {
		t.Errorf("children not decoded: %+v", got[0].Children)
	}
	if !got[1].Expanded {
		t.Error("isExpanded not decoded")
	}
	if v, ok := got[1].Get("status"); !ok || v != nil {
		t.Errorf("expected explicit null status, got %v (present=%v)", v, ok)
	}
}

func TestToStructMergesExtra(t *testing.T) {
	r := Row{ID: "5", Fields: map[string]any{"name": "x", "tags": []string{"a"}}}
	s, err := r.ToStruct(map[string]any{"accountId": "acc-1"})
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	m := s.AsMap()
	if m["id"] != "5" || m["accountId"] != "acc-1" || m["name"] != "x" {
		t.Errorf("unexpected struct %v", m)
	}
	if tags, ok := m["tags"].([]any); !ok || len(tags) != 1 {
		t.Errorf("expected tags list, got %v", m["tags"])
	}
}
