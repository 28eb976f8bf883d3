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

// Package editing implements click-to-edit cells: a local draft that is
// committed on Enter (or on blur) and discarded on Escape.
package editing

import (
	"strings"
	"time"

	"github.com/google/tabula/core/columns"
)

// Mode is the state of a cell.
type Mode int

const (
	Display Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "display"
}

// Key is a key press the cell reacts to.
type Key int

const (
	KeyEnter Key = iota
	KeyEscape
)

// Options configures a cell.
type Options struct {
	// ExitOnBlur commits the draft when the cell loses focus. Without it a
	// blur leaves the cell editing.
	ExitOnBlur bool
	// HoverDelay, when positive, enters editing after the pointer rested on
	// the cell that long.
	HoverDelay time.Duration
	// Column drives the advisory validation marker.
	Column columns.Column
}

// Cell is the edit state of one table cell. The cell never writes to the
// row; it reports a changed value through onCommit and leaves persistence
// to the owner.
type Cell struct {
	opts       Options
	mode       Mode
	original   string
	draft      string
	hoverSince time.Time
	onCommit   func(value string)
}

// NewCell creates a cell in display mode showing value.
func NewCell(value string, opts Options, onCommit func(value string)) *Cell {
	return &Cell{opts: opts, original: value, draft: value, onCommit: onCommit}
}

// Mode returns the current mode.
func (c *Cell) Mode() Mode { return c.mode }

// Value returns the committed value shown in display mode.
func (c *Cell) Value() string { return c.original }

// Draft returns the value being edited.
func (c *Cell) Draft() string { return c.draft }

// Click enters editing with a draft initialized from the current value.
func (c *Cell) Click() {
	c.begin()
}

func (c *Cell) begin() {
	if c.mode == Editing {
		return
	}
	c.mode = Editing
	c.draft = c.original
	c.hoverSince = time.Time{}
}

// HoverEnter records that the pointer entered the cell at now.
func (c *Cell) HoverEnter(now time.Time) {
	if c.opts.HoverDelay > 0 && c.mode == Display {
		c.hoverSince = now
	}
}

// HoverLeave cancels a pending hover activation.
func (c *Cell) HoverLeave() {
	c.hoverSince = time.Time{}
}

// Tick enters editing once the hover delay has elapsed and reports whether
// it did.
func (c *Cell) Tick(now time.Time) bool {
	if c.mode != Display || c.hoverSince.IsZero() || c.opts.HoverDelay <= 0 {
		return false
	}
	if now.Sub(c.hoverSince) < c.opts.HoverDelay {
		return false
	}
	c.begin()
	return true
}

// SetDraft replaces the draft. It has no effect outside editing.
func (c *Cell) SetDraft(s string) {
	if c.mode == Editing {
		c.draft = s
	}
}

// Key handles Enter (commit) and Escape (cancel).
func (c *Cell) Key(k Key) {
	if c.mode != Editing {
		return
	}
	switch k {
	case KeyEnter:
		c.commit()
	case KeyEscape:
		c.cancel()
	}
}

// Blur commits when ExitOnBlur is set.
func (c *Cell) Blur() {
	if c.mode == Editing && c.opts.ExitOnBlur {
		c.commit()
	}
}

func (c *Cell) commit() {
	trimmed := strings.TrimSpace(c.draft)
	changed := trimmed != c.original
	c.mode = Display
	c.draft = trimmed
	if changed {
		c.original = trimmed
		if c.onCommit != nil {
			c.onCommit(trimmed)
		}
	}
}

func (c *Cell) cancel() {
	c.mode = Display
	c.draft = c.original
}

// Reset points the cell at a new committed value, dropping any draft.
func (c *Cell) Reset(value string) {
	c.mode = Display
	c.original = value
	c.draft = value
	c.hoverSince = time.Time{}
}

// Invalid returns the validation marker for the visible value: the draft
// while editing, the committed value otherwise. Nil means valid.
func (c *Cell) Invalid() *columns.ValidationError {
	v := c.original
	if c.mode == Editing {
		v = c.draft
	}
	return columns.Validate(c.opts.Column, v)
}
