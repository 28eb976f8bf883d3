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

// Package autosave persists edited rows after a quiet period.
//
// Edits to one row are debounced: every change restarts that row's timer and
// only the latest snapshot is sent. Saves of one row are serialized; a change
// that arrives while the row is being saved is sent once the earlier request
// finishes, so the last write always lands last. Different rows save
// concurrently.
package autosave

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/google/tabula/core/rows"
)

// DefaultDelay is the debounce window.
const DefaultDelay = time.Second

// SaveFunc persists one row.
type SaveFunc func(ctx context.Context, r rows.Row) error

type entry struct {
	row      rows.Row
	dirty    bool // row holds a snapshot that was not sent yet
	queued   bool // send dirty right after the in-flight request
	inFlight bool
	timer    *time.Timer
	gen      uint64 // bumped by every Schedule; stale timers see a mismatch
}

// Saver schedules debounced saves.
type Saver struct {
	save    SaveFunc
	delay   time.Duration
	logger  *zap.Logger
	onError func(id string, err error)

	mu       sync.Mutex
	idle     *sync.Cond
	entries  map[string]*entry
	failed   map[string]error
	inflight int
	closed   bool
}

// Option configures a Saver.
type Option func(*Saver)

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(s *Saver) { s.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Saver) { s.logger = l }
}

// WithOnError sets a callback invoked after a failed save.
func WithOnError(fn func(id string, err error)) Option {
	return func(s *Saver) { s.onError = fn }
}

// New creates a Saver that persists rows with save.
func New(save SaveFunc, opts ...Option) *Saver {
	s := &Saver{
		save:    save,
		delay:   DefaultDelay,
		logger:  zap.NewNop(),
		entries: make(map[string]*entry),
		failed:  make(map[string]error),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule records r as the latest state of its row and (re)starts the
// row's debounce timer.
func (s *Saver) Schedule(r rows.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("autosave closed, dropping edit", zap.String("id", r.ID))
		return
	}
	e, ok := s.entries[r.ID]
	if !ok {
		e = &entry{}
		s.entries[r.ID] = e
	}
	e.row = r.Clone()
	e.dirty = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	id, gen := r.ID, e.gen
	e.timer = time.AfterFunc(s.delay, func() { s.fire(id, gen) })
}

// Pending reports whether row id has an unsent or in-flight save.
func (s *Saver) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && (e.dirty || e.inFlight)
}

// Cancel drops the unsent save of row id and reports whether there was one.
// A request already in flight is not aborted.
func (s *Saver) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, id)
	e, ok := s.entries[id]
	if !ok || !e.dirty {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.dirty = false
	e.queued = false
	if !e.inFlight {
		delete(s.entries, id)
	}
	return true
}

// Failed returns the ids whose last save failed, sorted.
func (s *Saver) Failed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.failed))
	for id := range s.failed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// fire runs when a row's timer expires.
func (s *Saver) fire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || s.closed || !e.dirty || e.gen != gen {
		s.mu.Unlock()
		return
	}
	e.timer = nil
	if e.inFlight {
		e.queued = true
		s.mu.Unlock()
		return
	}
	r := s.begin(e)
	s.mu.Unlock()
	// Failures are reported through OnError and Failed.
	_ = s.flight(context.Background(), id, r)
}

// begin marks e in flight and takes its snapshot. s.mu must be held.
func (s *Saver) begin(e *entry) rows.Row {
	e.dirty = false
	e.queued = false
	e.inFlight = true
	s.inflight++
	return e.row
}

// flight sends r and then any snapshot queued behind it. It returns the
// first error.
func (s *Saver) flight(ctx context.Context, id string, r rows.Row) error {
	var first error
	for {
		err := s.save(ctx, r)
		s.report(id, err)
		if first == nil {
			first = err
		}

		s.mu.Lock()
		e := s.entries[id]
		if e.queued && e.dirty {
			s.inflight--
			r = s.begin(e)
			s.mu.Unlock()
			continue
		}
		e.inFlight = false
		e.queued = false
		if !e.dirty {
			delete(s.entries, id)
		}
		s.inflight--
		s.idle.Broadcast()
		s.mu.Unlock()
		return first
	}
}

func (s *Saver) report(id string, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.failed, id)
		s.mu.Unlock()
		s.logger.Debug("row saved", zap.String("id", id))
		return
	}
	s.failed[id] = err
	s.mu.Unlock()
	s.logger.Warn("autosave failed", zap.String("id", id), zap.Error(err))
	if s.onError != nil {
		s.onError(id, err)
	}
}

// Flush sends every unsent snapshot now, waits for all requests in flight
// and returns the first error.
func (s *Saver) Flush(ctx context.Context) error {
	type job struct {
		id  string
		row rows.Row
	}
	var jobs []job
	s.mu.Lock()
	for id, e := range s.entries {
		if !e.dirty {
			continue
		}
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		if e.inFlight {
			e.queued = true
			continue
		}
		jobs = append(jobs, job{id: id, row: s.begin(e)})
	}
	s.mu.Unlock()

	// One failing row must not cancel the others.
	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error {
			if err := s.flight(ctx, j.id, j.row); err != nil {
				return fmt.Errorf("save %s: %w", j.id, err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
	return err
}

// Close stops accepting changes, flushes what is pending and waits for
// every request to finish.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}
