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

// Package aggregates summarizes the rows of a group header: sums and means
// of number columns, true counts of checkbox columns, date ranges and the
// spread of select values. States combine, so a group's summary is the
// combination of its roots' summaries.
package aggregates

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/tabula/core/columns"
	"github.com/google/tabula/core/rows"
)

// Aggregate is one formatted aggregate value.
type Aggregate struct {
	Symbol string // e.g. Σ, μ, ↓, ↑
	Value  string
	Title  string // Tooltip title
}

// State accumulates the values of one column.
type State interface {
	// Add adds one display value. Values the state cannot read are ignored.
	Add(value string)
	// Combine merges another state of the same kind into this one.
	Combine(other State)
	// Count returns the number of values added.
	Count() int64
	// Aggregates returns the formatted aggregates.
	Aggregates() []Aggregate
}

// ForColumn returns an empty state for c, or nil when the column type has
// no aggregates.
func ForColumn(c columns.Column) State {
	switch c.Type {
	case columns.TypeNumber:
		return NewNumericAggState()
	case columns.TypeCheckbox, columns.TypeToggle:
		return NewBoolAggState()
	case columns.TypeDate:
		return NewDatetimeAggState()
	case columns.TypeSelect:
		return NewValuesAggState()
	}
	return nil
}

// NumericAggState stores intermediate state for numeric column aggregates.
// It can derive sum, avg, stddev, min, max, and count.
type NumericAggState struct {
	N     int64   // Number of values
	Sum   float64 // Sum of values
	SumSq float64 // Sum of squared values (for stddev)
	Min   float64 // Minimum value
	Max   float64 // Maximum value
}

// NewNumericAggState creates a new empty numeric aggregate state.
func NewNumericAggState() *NumericAggState {
	return &NumericAggState{
		Min: math.MaxFloat64,
		Max: -math.MaxFloat64,
	}
}

// Add parses value as a number and adds it.
func (s *NumericAggState) Add(value string) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return
	}
	s.AddFloat(f)
}

// AddFloat adds a single value to the aggregate state.
func (s *NumericAggState) AddFloat(value float64) {
	s.N++
	s.Sum += value
	s.SumSq += value * value
	if value < s.Min {
		s.Min = value
	}
	if value > s.Max {
		s.Max = value
	}
}

// Combine merges another numeric state into this one.
func (s *NumericAggState) Combine(other State) {
	o, ok := other.(*NumericAggState)
	if !ok || o.N == 0 {
		return
	}
	s.N += o.N
	s.Sum += o.Sum
	s.SumSq += o.SumSq
	if o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
}

// Count returns the number of values.
func (s *NumericAggState) Count() int64 { return s.N }

// Avg returns the average (mean) of the values.
func (s *NumericAggState) Avg() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// StdDev returns the population standard deviation.
func (s *NumericAggState) StdDev() float64 {
	if s.N == 0 {
		return 0
	}
	mean := s.Avg()
	// Variance = E[X²] - (E[X])²
	variance := (s.SumSq / float64(s.N)) - (mean * mean)
	if variance < 0 {
		// Floating point noise
		variance = 0
	}
	return math.Sqrt(variance)
}

// Aggregates returns sum, mean, min and max.
func (s *NumericAggState) Aggregates() []Aggregate {
	if s.N == 0 {
		return nil
	}
	return []Aggregate{
		{Symbol: "Σ", Value: formatNumber(s.Sum), Title: "Sum"},
		{Symbol: "μ", Value: formatNumber(s.Avg()), Title: "Average"},
		{Symbol: "↓", Value: formatNumber(s.Min), Title: "Minimum"},
		{Symbol: "↑", Value: formatNumber(s.Max), Title: "Maximum"},
	}
}

// BoolAggState stores intermediate state for boolean column aggregates.
type BoolAggState struct {
	N         int64 // Total count
	TrueCount int64
}

// NewBoolAggState creates a new empty boolean aggregate state.
func NewBoolAggState() *BoolAggState {
	return &BoolAggState{}
}

// Add parses value as a boolean and adds it.
func (s *BoolAggState) Add(value string) {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return
	}
	s.N++
	if b {
		s.TrueCount++
	}
}

// Combine merges another boolean state into this one.
func (s *BoolAggState) Combine(other State) {
	o, ok := other.(*BoolAggState)
	if !ok {
		return
	}
	s.N += o.N
	s.TrueCount += o.TrueCount
}

// Count returns the number of values.
func (s *BoolAggState) Count() int64 { return s.N }

// Ratio returns the fraction of true values.
func (s *BoolAggState) Ratio() float64 {
	if s.N == 0 {
		return 0
	}
	return float64(s.TrueCount) / float64(s.N)
}

// Aggregates returns the true count out of the total.
func (s *BoolAggState) Aggregates() []Aggregate {
	if s.N == 0 {
		return nil
	}
	return []Aggregate{
		{Symbol: "✓", Value: fmt.Sprintf("%d/%d", s.TrueCount, s.N), Title: fmt.Sprintf("%.0f%% true", 100*s.Ratio())},
	}
}

// DatetimeAggState stores intermediate state for date column aggregates.
// Values are stored as nanoseconds since the Unix epoch.
type DatetimeAggState struct {
	N   int64
	Min int64
	Max int64
}

// NewDatetimeAggState creates a new empty datetime aggregate state.
func NewDatetimeAggState() *DatetimeAggState {
	return &DatetimeAggState{
		Min: math.MaxInt64,
		Max: math.MinInt64,
	}
}

// Add parses value as a date and adds it.
func (s *DatetimeAggState) Add(value string) {
	t, err := ParseDatetime(value, time.UTC)
	if err != nil || t.IsZero() {
		return
	}
	s.AddTime(t)
}

// AddTime adds a single time value to the aggregate state.
func (s *DatetimeAggState) AddTime(value time.Time) {
	nanos := value.UnixNano()
	s.N++
	if nanos < s.Min {
		s.Min = nanos
	}
	if nanos > s.Max {
		s.Max = nanos
	}
}

// Combine merges another datetime state into this one.
func (s *DatetimeAggState) Combine(other State) {
	o, ok := other.(*DatetimeAggState)
	if !ok || o.N == 0 {
		return
	}
	s.N += o.N
	if o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
}

// Count returns the number of values.
func (s *DatetimeAggState) Count() int64 { return s.N }

// Span returns the time span (max - min).
func (s *DatetimeAggState) Span() time.Duration {
	if s.N == 0 {
		return 0
	}
	return time.Duration(s.Max - s.Min)
}

// Aggregates returns the earliest and latest date and the span between.
func (s *DatetimeAggState) Aggregates() []Aggregate {
	if s.N == 0 {
		return nil
	}
	out := []Aggregate{
		{Symbol: "↓", Value: formatDate(time.Unix(0, s.Min).UTC()), Title: "Earliest"},
		{Symbol: "↑", Value: formatDate(time.Unix(0, s.Max).UTC()), Title: "Latest"},
	}
	if span := s.Span(); span > 0 {
		out = append(out, Aggregate{Symbol: "↔", Value: formatDuration(span), Title: "Span"})
	}
	return out
}

// ValuesAggState counts the occurrences of each value of a select column.
type ValuesAggState struct {
	N      int64
	Counts map[string]int64
}

// NewValuesAggState creates a new empty value count state.
func NewValuesAggState() *ValuesAggState {
	return &ValuesAggState{Counts: make(map[string]int64)}
}

// Add counts value. Empty values are ignored.
func (s *ValuesAggState) Add(value string) {
	if value = strings.TrimSpace(value); value == "" {
		return
	}
	s.N++
	s.Counts[value]++
}

// Combine merges another value count state into this one.
func (s *ValuesAggState) Combine(other State) {
	o, ok := other.(*ValuesAggState)
	if !ok {
		return
	}
	s.N += o.N
	for v, n := range o.Counts {
		s.Counts[v] += n
	}
}

// Count returns the number of values.
func (s *ValuesAggState) Count() int64 { return s.N }

// Aggregates returns one count per value, most frequent first.
func (s *ValuesAggState) Aggregates() []Aggregate {
	values := make([]string, 0, len(s.Counts))
	for v := range s.Counts {
		values = append(values, v)
	}
	slices.SortFunc(values, func(a, b string) int {
		if s.Counts[a] != s.Counts[b] {
			if s.Counts[a] > s.Counts[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	out := make([]Aggregate, 0, len(values))
	for _, v := range values {
		out = append(out, Aggregate{Symbol: v, Value: strconv.FormatInt(s.Counts[v], 10), Title: v})
	}
	return out
}

// ColumnSummary holds the aggregates of one column.
type ColumnSummary struct {
	Column     string
	Title      string
	Aggregates []Aggregate
}

// String formats the summary as "Title Σ 10 μ 5".
func (s ColumnSummary) String() string {
	parts := make([]string, 0, len(s.Aggregates)+1)
	parts = append(parts, s.Title)
	for _, a := range s.Aggregates {
		parts = append(parts, a.Symbol+" "+a.Value)
	}
	return strings.Join(parts, " ")
}

// Summarize aggregates every column of cols that has aggregates over data,
// subtrees included. skip names a column to leave out, typically the
// grouping column. Columns without values are omitted.
func Summarize(cols []columns.Column, data []rows.Row, skip string) []ColumnSummary {
	var out []ColumnSummary
	for _, c := range cols {
		if c.ID == skip {
			continue
		}
		total := ForColumn(c)
		if total == nil {
			continue
		}
		for _, r := range data {
			sub := ForColumn(c)
			addTree(sub, c, r)
			total.Combine(sub)
		}
		if total.Count() == 0 {
			continue
		}
		out = append(out, ColumnSummary{Column: c.ID, Title: c.DisplayTitle(), Aggregates: total.Aggregates()})
	}
	return out
}

func addTree(s State, c columns.Column, r rows.Row) {
	s.Add(c.Value(r))
	for _, child := range r.Children {
		addTree(s, c, child)
	}
}

// Format joins summaries for a one-line display.
func Format(summaries []ColumnSummary) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = s.String()
	}
	return strings.Join(parts, " · ")
}

// --- Formatting helpers ---

// formatNumber formats a float64 for display, using appropriate precision.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	// Up to 2 decimal places, trailing zeros trimmed
	formatted := strconv.FormatFloat(v, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	return strings.TrimSuffix(formatted, ".")
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	// Use appropriate units based on magnitude
	hours := d.Hours()
	if hours >= 24*365 {
		return fmt.Sprintf("%.1fy", hours/(24*365))
	}
	if hours >= 24*30 {
		return fmt.Sprintf("%.1fmo", hours/(24*30))
	}
	if hours >= 24 {
		return fmt.Sprintf("%.1fd", hours/24)
	}
	if hours >= 1 {
		return fmt.Sprintf("%.1fh", hours)
	}
	if d.Minutes() >= 1 {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
