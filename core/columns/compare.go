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
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator compares display strings the way a person reads them: locale
// aware, case-insensitive, and with digit runs compared by numeric value so
// "item-10" sorts after "item-9".
//
// A Collator keeps scratch buffers and must not be shared between goroutines.
type Collator struct {
	c *collate.Collator
}

// NewCollator returns a collator for tag. language.Und selects the root
// collation.
func NewCollator(tag language.Tag) *Collator {
	return &Collator{c: collate.New(tag, collate.Numeric, collate.IgnoreCase)}
}

// DefaultCollator returns a collator for the root locale.
func DefaultCollator() *Collator {
	return NewCollator(language.Und)
}

// Compare returns -1, 0 or 1. The empty string sorts before any other value.
func (c *Collator) Compare(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	return c.c.CompareString(a, b)
}
