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
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

// Rule is the declarative check attached to a column type.
type Rule struct {
	Pattern   string
	MaxLength int
	Message   string
}

// Rules holds the default rule per column type. Types without an entry only
// check MaxLength when the column sets one.
var Rules = map[Type]Rule{
	TypeText:      {MaxLength: 255, Message: "must be at most 255 characters"},
	TypeEmail:     {Pattern: `^[^\s@]+@[^\s@]+\.[^\s@]+$`, MaxLength: 254, Message: "must be a valid email address"},
	TypeDate:      {Pattern: `^\d{4}-\d{2}-\d{2}$`, Message: "must be a date (YYYY-MM-DD)"},
	TypeNumber:    {Pattern: `^-?\d+(\.\d+)?$`, MaxLength: 32, Message: "must be a number"},
	TypeCheckbox:  {Pattern: `^(true|false)$`, Message: "must be true or false"},
	TypeToggle:    {Pattern: `^(true|false)$`, Message: "must be true or false"},
	TypePassword:  {Pattern: `^\S{8,}$`, MaxLength: 128, Message: "must be at least 8 characters without spaces"},
	TypeUserGroup: {Pattern: `^[A-Za-z0-9 _.\-]+$`, MaxLength: 64, Message: "may only contain letters, digits, spaces, '_', '.', '-'"},
}

// ValidationError describes why a value does not satisfy its column. It is
// advisory: callers mark the cell but still accept the commit.
type ValidationError struct {
	Column  string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Column, e.Message)
}

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

func compiled(pattern string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache[pattern] = re
	return re, nil
}

// RuleFor returns the effective rule of c: the type default with the
// column's own pattern and length limit layered on top.
func RuleFor(c Column) Rule {
	r := Rules[c.Type]
	if c.Pattern != "" {
		r.Pattern = c.Pattern
		r.Message = "does not match " + c.Pattern
	}
	if c.MaxLength > 0 {
		r.MaxLength = c.MaxLength
	}
	if r.Message == "" {
		r.Message = "is invalid"
	}
	return r
}

// Validate checks value against c. Empty values are always accepted; a nil
// result means the value is fine.
func Validate(c Column, value string) *ValidationError {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	rule := RuleFor(c)
	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		return &ValidationError{
			Column:  c.DisplayTitle(),
			Value:   value,
			Message: fmt.Sprintf("must be at most %d characters", rule.MaxLength),
		}
	}
	if c.Type == TypeSelect && len(c.Options) > 0 && !slices.Contains(c.Options, value) {
		return &ValidationError{
			Column:  c.DisplayTitle(),
			Value:   value,
			Message: "must be one of " + strings.Join(c.Options, ", "),
		}
	}
	if rule.Pattern == "" {
		return nil
	}
	re, err := compiled(rule.Pattern)
	if err != nil {
		return &ValidationError{Column: c.DisplayTitle(), Value: value, Message: "has an invalid pattern: " + err.Error()}
	}
	if !re.MatchString(value) {
		return &ValidationError{Column: c.DisplayTitle(), Value: value, Message: rule.Message}
	}
	return nil
}
