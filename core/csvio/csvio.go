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

// Package csvio reads table rows from CSV and writes them back out.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

// ColumnType specifies the value type of an imported column
type ColumnType int

const (
	// ColumnTypeAuto detects the type from the sampled data (default)
	ColumnTypeAuto ColumnType = iota
	// ColumnTypeString keeps values as strings
	ColumnTypeString
	// ColumnTypeNumber parses values as float64
	ColumnTypeNumber
	// ColumnTypeBool parses values as bool
	ColumnTypeBool
)

// ColumnSource overrides how one CSV column is imported
type ColumnSource struct {
	// Name is the field name (defaults to the header)
	Name string
	// Title is the display title of the inferred column
	Title string
	// Type forces the value type (default: auto-detect)
	Type ColumnType
}

// ImportOptions configures CSV import behavior
type ImportOptions struct {
	// HasHeader indicates whether the first row contains column headers
	HasHeader bool
	// Delimiter is the field delimiter (defaults to comma)
	Delimiter rune
	// IDColumn names the header holding row ids. Rows without one get a
	// fresh id.
	IDColumn string
	// ParentColumn names the header holding parent ids. Rows whose parent
	// is in the file are nested under it.
	ParentColumn string
	// ColumnSources provides configuration for specific columns by header name
	ColumnSources map[string]ColumnSource
	// SampleSize is the number of rows to sample for type detection (default: 100)
	SampleSize int
}

// DefaultOptions returns default import options
func DefaultOptions() ImportOptions {
	return ImportOptions{
		HasHeader:     true,
		Delimiter:     ',',
		IDColumn:      rows.KeyID,
		ParentColumn:  rows.KeyParentID,
		ColumnSources: make(map[string]ColumnSource),
		SampleSize:    100,
	}
}

// Imported is the result of an import: the inferred columns and the rows.
type Imported struct {
	Columns []columns.Column
	Rows    []rows.Row
}

// ImportFromFile imports a CSV file
func ImportFromFile(path string, options ImportOptions) (*Imported, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ImportRows(file, options)
}

// ImportRows imports CSV data from an io.Reader
func ImportRows(reader io.Reader, options ImportOptions) (*Imported, error) {
	csvReader := csv.NewReader(reader)
	if options.Delimiter != 0 {
		csvReader.Comma = options.Delimiter
	}
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	var headers []string
	var dataRows [][]string
	if options.HasHeader {
		headers = records[0]
		dataRows = records[1:]
	} else {
		// Generate column names if no header
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
		dataRows = records
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	sampleSize := options.SampleSize
	if sampleSize <= 0 {
		sampleSize = 100
	}
	types := detectColumnTypes(headers, dataRows, sampleSize, options.ColumnSources)

	idIdx, parentIdx := -1, -1
	out := &Imported{}
	fieldNames := make([]string, len(headers))
	for i, header := range headers {
		switch {
		case options.IDColumn != "" && header == options.IDColumn:
			idIdx = i
			continue
		case options.ParentColumn != "" && header == options.ParentColumn:
			parentIdx = i
			continue
		}
		src := options.ColumnSources[header]
		col := columns.Column{
			ID:         header,
			Title:      header,
			Sortable:   true,
			Filterable: true,
			Editable:   true,
			Order:      len(out.Columns) + 1,
		}
		if src.Name != "" {
			col.ID = src.Name
		}
		if src.Title != "" {
			col.Title = src.Title
		}
		switch types[i] {
		case ColumnTypeNumber:
			col.Type = columns.TypeNumber
		case ColumnTypeBool:
			col.Type = columns.TypeCheckbox
		}
		fieldNames[i] = col.ID
		out.Columns = append(out.Columns, col)
	}

	flat := make([]rows.Row, 0, len(dataRows))
	for _, record := range dataRows {
		r := rows.Row{Fields: make(map[string]any, len(headers))}
		for i := range headers {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			switch i {
			case idIdx:
				r.ID = value
				continue
			case parentIdx:
				r.ParentID = value
				continue
			}
			r.Fields[fieldNames[i]] = parseValue(value, types[i])
		}
		if r.ID == "" {
			r.ID = rows.NewID()
		}
		flat = append(flat, r)
	}
	out.Rows = nest(flat)
	return out, nil
}

// parseValue converts a cell to its typed value. Empty cells stay empty and
// values that do not parse are kept as text.
func parseValue(value string, t ColumnType) any {
	if value == "" {
		return ""
	}
	switch t {
	case ColumnTypeNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case ColumnTypeBool:
		if b, err := parseBool(value); err == nil {
			return b
		}
	}
	return value
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", value)
}

// nest attaches rows to the parent named by ParentID when that parent is in
// the same file. Other rows become roots. File order is kept at every level.
func nest(flat []rows.Row) []rows.Row {
	index := make(map[string]int, len(flat))
	for i, r := range flat {
		index[r.ID] = i
	}
	children := make(map[string][]int)
	var roots []int
	for i, r := range flat {
		if p, ok := index[r.ParentID]; ok && r.ParentID != "" && p != i {
			children[r.ParentID] = append(children[r.ParentID], i)
			continue
		}
		flat[i].ParentID = ""
		roots = append(roots, i)
	}
	visited := make(map[int]bool, len(flat))
	var build func(i int) rows.Row
	build = func(i int) rows.Row {
		visited[i] = true
		r := flat[i]
		for _, c := range children[r.ID] {
			if !visited[c] {
				r.Children = append(r.Children, build(c))
			}
		}
		return r
	}
	out := make([]rows.Row, 0, len(roots))
	for _, i := range roots {
		out = append(out, build(i))
	}
	// Rows caught in a parent cycle are never reached from a root.
	for i := range flat {
		if !visited[i] {
			flat[i].ParentID = ""
			out = append(out, build(i))
		}
	}
	return out
}

// detectColumnTypes samples data to determine if columns are numeric,
// boolean or text
func detectColumnTypes(headers []string, dataRows [][]string, sampleSize int, sources map[string]ColumnSource) []ColumnType {
	types := make([]ColumnType, len(headers))
	rowsToSample := min(sampleSize, len(dataRows))

	for i, header := range headers {
		if src, ok := sources[header]; ok && src.Type != ColumnTypeAuto {
			types[i] = src.Type
			continue
		}

		isNumber, isBool, hasNonEmpty := true, true, false
		for j := 0; j < rowsToSample; j++ {
			if i >= len(dataRows[j]) {
				continue
			}
			value := strings.TrimSpace(dataRows[j][i])
			if value == "" {
				continue
			}
			hasNonEmpty = true
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				isNumber = false
			}
			if v := strings.ToLower(value); v != "true" && v != "false" {
				isBool = false
			}
		}

		switch {
		case !hasNonEmpty:
			types[i] = ColumnTypeString
		case isBool:
			types[i] = ColumnTypeBool
		case isNumber:
			types[i] = ColumnTypeNumber
		default:
			types[i] = ColumnTypeString
		}
	}
	return types
}

// ExportRows writes rows as CSV: an id column, a parentId column when any
// row is nested, then one column per entry of cols. Password columns are
// left out. Children are written after their parent.
func ExportRows(w io.Writer, cols []columns.Column, data []rows.Row) error {
	flat := flattenAll(data, "", nil)
	nested := false
	for _, r := range flat {
		if r.ParentID != "" {
			nested = true
			break
		}
	}

	var exported []columns.Column
	for _, c := range cols {
		if c.Type != columns.TypePassword {
			exported = append(exported, c)
		}
	}

	cw := csv.NewWriter(w)
	header := []string{rows.KeyID}
	if nested {
		header = append(header, rows.KeyParentID)
	}
	for _, c := range exported {
		header = append(header, c.ID)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range flat {
		record = record[:0]
		record = append(record, r.ID)
		if nested {
			record = append(record, r.ParentID)
		}
		for _, c := range exported {
			record = append(record, c.Value(r))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func flattenAll(in []rows.Row, parent string, out []rows.Row) []rows.Row {
	for _, r := range in {
		children := r.Children
		r.Children = nil
		if r.ParentID == "" {
			r.ParentID = parent
		}
		out = append(out, r)
		out = flattenAll(children, r.ID, out)
	}
	return out
}
