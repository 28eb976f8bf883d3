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

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/tabula/core/autosave"
	"github.com/google/tabula/core/backend"
	"github.com/google/tabula/core/config"
	"github.com/google/tabula/core/csvio"
	"github.com/google/tabula/core/filtering"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/query"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/tables"
)

var errNoExportTarget = errors.New("export has no target")

// sessionKey identifies one cached table: the same table seen from two
// accounts holds different rows.
type sessionKey struct {
	accountID   string
	accountName string
	table       string
}

// Session is one loaded table with the autosave queue persisting its
// edits. The server serializes access to the table with mu; other owners
// must drive it from a single goroutine.
type Session struct {
	conf   config.TableConfig
	rc     backend.RequestContext
	client *backend.Client
	logger *zap.Logger
	saver  *autosave.Saver

	mu      sync.Mutex
	table   *tables.Table
	pending []tables.DataChange // creates and deletes not sent yet
	notice  string              // shown once on the next page
	export  io.Writer           // target of the export bulk action
	closed  bool
}

// OpenSession loads the table described by conf from the backend for the
// account rc. Edits are saved after delay.
func OpenSession(ctx context.Context, conf config.TableConfig, rc backend.RequestContext, client *backend.Client, delay time.Duration, logger *zap.Logger) (*Session, error) {
	data, err := client.List(ctx, rc, conf.Resource)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", conf.Name, err)
	}
	cs, err := conf.ColumnSet()
	if err != nil {
		return nil, err
	}
	s := &Session{
		conf:   conf,
		rc:     rc,
		client: client,
		logger: logger.With(zap.String("table", conf.Name), zap.String("account", rc.AccountName)),
	}
	s.saver = autosave.New(s.save, autosave.WithDelay(delay), autosave.WithLogger(s.logger))

	opts := []tables.Option{
		tables.WithOnDataChange(s.onChange),
		tables.WithExport(s.writeExport),
		tables.WithMultiSort(conf.MultiSort),
		tables.WithSort(conf.SortOrder()),
		tables.WithGroupBy(conf.GroupBy),
	}
	if conf.NameField != "" {
		opts = append(opts, tables.WithNameField(conf.NameField))
	}
	if conf.StatusField != "" {
		opts = append(opts, tables.WithStatusField(conf.StatusField))
	}
	s.table, err = tables.New(conf.Name, cs, s.prepare(data), opts...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("table loaded", zap.Int("rows", s.table.Len()))
	return s, nil
}

// prepare drops children of flat tables and rows the table cannot hold:
// rows without an id and repeated ids. The rest of the table still loads.
func (s *Session) prepare(data []rows.Row) []rows.Row {
	if !s.conf.Tree {
		for i := range data {
			data[i].Children = nil
		}
	}
	return s.keepIdentified(data, make(map[string]struct{}))
}

func (s *Session) keepIdentified(data []rows.Row, seen map[string]struct{}) []rows.Row {
	out := data[:0]
	for _, r := range data {
		if r.ID == "" {
			s.logger.Warn("skipping row without id", zap.Any("fields", r.Fields))
			continue
		}
		if _, ok := seen[r.ID]; ok {
			s.logger.Warn("skipping row with repeated id", zap.String("id", r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
		r.Children = s.keepIdentified(r.Children, seen)
		out = append(out, r)
	}
	return out
}

func (s *Session) save(ctx context.Context, r rows.Row) error {
	_, err := s.client.Update(ctx, s.rc, s.conf.Resource, r)
	return err
}

// onChange runs inside table mutations, with mu held. Field changes go to
// the autosave queue; creates and deletes wait for sync.
func (s *Session) onChange(c tables.DataChange) {
	s.logger.Debug("data change", zap.String("action", string(c.Action)), zap.Strings("ids", c.RowIDs))
	switch c.Action {
	case tables.ActionEdit, tables.ActionActivate, tables.ActionDeactivate:
		for _, r := range c.Changed {
			s.saver.Schedule(r)
		}
	case tables.ActionCreate, tables.ActionDuplicate, tables.ActionDelete:
		s.pending = append(s.pending, c)
	}
}

// Sync sends pending creates and deletes. A failure reloads the table from
// the backend so that it shows what was actually stored, and leaves a
// notice.
func (s *Session) Sync(ctx context.Context) {
	pending := s.pending
	s.pending = nil
	reload := false
	for _, c := range pending {
		switch c.Action {
		case tables.ActionCreate, tables.ActionDuplicate:
			for _, r := range c.Changed {
				stored, err := s.client.Create(ctx, s.rc, s.conf.Resource, r)
				if err != nil {
					s.logger.Warn("create failed", zap.String("id", r.ID), zap.Error(err))
					s.addNotice(fmt.Sprintf("Could not create %q: %v", r.String(s.table.NameField()), err))
					reload = true
					continue
				}
				if stored.ID != r.ID {
					reload = true
				}
			}
		case tables.ActionDelete:
			for _, id := range c.RowIDs {
				s.saver.Cancel(id)
			}
			for _, r := range c.Changed {
				err := s.client.Delete(ctx, s.rc, s.conf.Resource, r.ID)
				if err != nil && !backend.IsNotFound(err) {
					s.logger.Warn("delete failed", zap.String("id", r.ID), zap.Error(err))
					s.addNotice(fmt.Sprintf("Could not delete %q: %v", r.String(s.table.NameField()), err))
					reload = true
				}
			}
		}
	}
	if reload {
		s.reload(ctx)
	}
}

// Table returns the loaded table.
func (s *Session) Table() *tables.Table { return s.table }

// Failed returns the ids of rows whose last autosave failed.
func (s *Session) Failed() []string { return s.saver.Failed() }

// Flush sends every pending autosave now.
func (s *Session) Flush(ctx context.Context) error { return s.saver.Flush(ctx) }

// Close flushes pending autosaves and stops accepting new ones. It waits
// for a mutation in progress to finish, so no accepted edit is lost.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.saver.Close(ctx)
}

// reload replaces the rows with the backend's. mu must be held.
func (s *Session) reload(ctx context.Context) {
	data, err := s.client.List(ctx, s.rc, s.conf.Resource)
	if err != nil {
		s.logger.Warn("reload failed", zap.Error(err))
		return
	}
	if err := s.table.ReplaceRows(s.prepare(data)); err != nil {
		s.logger.Warn("reload failed", zap.Error(err))
	}
}

func (s *Session) writeExport(selected []rows.Row) error {
	if s.export == nil {
		return errNoExportTarget
	}
	return csvio.ExportRows(s.export, s.table.Columns().Columns(), selected)
}

// exportTo writes the selected rows, or every row when nothing is selected,
// as CSV. mu must be held.
func (s *Session) exportTo(w io.Writer) error {
	if len(s.table.Selected()) == 0 {
		return csvio.ExportRows(w, s.table.Columns().Columns(), s.table.Rows())
	}
	s.export = w
	defer func() { s.export = nil }()
	return s.table.BulkAction(tables.ActionExport)
}

func (s *Session) addNotice(msg string) {
	if s.notice != "" {
		s.notice += " "
	}
	s.notice += msg
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() string {
	n := s.notice
	s.notice = ""
	return n
}

// Apply makes the table state follow q: grouping, sort and filters. Parts
// naming unknown columns are dropped and reported.
func (s *Session) Apply(q *query.Query) []string {
	var problems []string
	t := s.table
	if err := t.SetGroupBy(q.GroupBy); err != nil {
		problems = append(problems, fmt.Sprintf("cannot group by %q: column does not exist", q.GroupBy))
		_ = t.SetGroupBy(grouping.NoGrouping)
	}
	for _, sc := range q.Sort {
		if col, ok := t.Columns().Get(sc.ID); !ok || !col.Sortable {
			problems = append(problems, fmt.Sprintf("cannot sort by %q", sc.ID))
		}
	}
	t.SetSort(q.Sort)

	f := filtering.Filters{Columns: make(map[string]string, len(q.Filters)), Search: q.Search}
	for col, value := range q.Filters {
		if _, ok := t.Columns().Get(col); !ok {
			problems = append(problems, fmt.Sprintf("column '%s' does not exist", col))
			continue
		}
		f.Columns[col] = value
	}
	t.SetFilters(f)
	return problems
}

// message joins the pending notice with the problems of the current URL.
func (s *Session) message(problems []string) string {
	parts := problems
	if n := s.TakeNotice(); n != "" {
		parts = append([]string{n}, problems...)
	}
	return strings.Join(parts, " ")
}
