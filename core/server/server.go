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

// Package server is the HTML console: it loads tables from the backend,
// renders them and turns form posts into table mutations.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/tabula/core/backend"
	"github.com/google/tabula/core/config"
	"github.com/google/tabula/core/editing"
	"github.com/google/tabula/core/grouping"
	"github.com/google/tabula/core/query"
	"github.com/google/tabula/core/rendering"
	"github.com/google/tabula/core/rows"
	"github.com/google/tabula/core/tables"
	"github.com/google/tabula/core/views"
)

// Server represents the application server with all its dependencies
type Server struct {
	client   *backend.Client
	renderer *rendering.TableRenderer
	logger   *zap.Logger

	mu       sync.Mutex
	cfg      *config.Config
	sessions map[sessionKey]*Session
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for the tables of cfg, loading rows through client.
func New(cfg *config.Config, client *backend.Client, opts ...Option) (*Server, error) {
	renderer, err := rendering.NewTableRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	s := &Server{
		client:   client,
		renderer: renderer,
		logger:   zap.NewNop(),
		cfg:      cfg,
		sessions: make(map[sessionKey]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TableHandlerResult represents the result of handling a table request
type TableHandlerResult struct {
	Error      error
	StatusCode int
	Message    string
}

func (s *Server) writeResult(w http.ResponseWriter, res *TableHandlerResult) {
	if res.Error != nil {
		s.logger.Error("request failed", zap.Error(res.Error))
		if res.StatusCode == 0 {
			res.StatusCode = http.StatusInternalServerError
		}
		if res.Message == "" {
			res.Message = "Internal server error"
		}
	}
	http.Error(w, res.Message, res.StatusCode)
}

// Handler returns the HTTP handler of the console.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleLanding)
	mux.HandleFunc("GET /table", s.handleTable)
	mux.HandleFunc("GET /table/export", s.handleExport)
	mux.HandleFunc("POST /table/edit", s.handleAction(editCell))
	mux.HandleFunc("POST /table/select", s.handleAction(selectRows))
	mux.HandleFunc("POST /table/expand", s.handleAction(expandRow))
	mux.HandleFunc("POST /table/bulk", s.handleBulk)
	mux.HandleFunc("POST /table/create", s.handleAction(createRow))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// requestContext returns the account named by the request, or the
// configured default account.
func (s *Server) requestContext(accountID, accountName string) backend.RequestContext {
	if accountID == "" && accountName == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		return backend.RequestContext{AccountID: s.cfg.Account.ID, AccountName: s.cfg.Account.Name}
	}
	return backend.RequestContext{AccountID: accountID, AccountName: accountName}
}

// session returns the cached table named by q, loading it on first use.
func (s *Server) session(ctx context.Context, q *query.Query) (*Session, *TableHandlerResult) {
	rc := s.requestContext(q.AccountID, q.AccountName)
	key := sessionKey{accountID: rc.AccountID, accountName: rc.AccountName, table: q.Table}

	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	conf, ok := s.cfg.Table(q.Table)
	delay := s.cfg.GetAutosaveDelay()
	s.mu.Unlock()
	if !ok {
		return nil, &TableHandlerResult{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("Table '%s' not found", q.Table)}
	}

	sess, err := OpenSession(ctx, conf, rc, s.client, delay, s.logger)
	if err != nil {
		s.logger.Warn("failed to load table", zap.String("table", q.Table), zap.Error(err))
		return nil, &TableHandlerResult{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("Could not load table '%s' from the backend", q.Table)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[key]; ok {
		// Lost a race with a concurrent load; the new session holds no edits.
		sess.Close(ctx)
		return existing, nil
	}
	s.sessions[key] = sess
	return sess, nil
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	accountID, accountName := params.Get("accountId"), params.Get("accountName")
	rc := s.requestContext(accountID, accountName)

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	vm := views.LandingViewModel{
		Title:       cfg.Server.Title,
		Subtitle:    cfg.Server.Subtitle,
		AccountName: rc.AccountName,
	}
	for _, t := range cfg.Tables {
		group := t.GroupBy
		if group == "" {
			group = grouping.NoGrouping
		}
		q := &query.Query{
			Path:        "/table",
			Table:       t.Name,
			GroupBy:     group,
			Sort:        t.SortOrder(),
			Limit:       query.DefaultLimit,
			AccountID:   accountID,
			AccountName: accountName,
		}
		vm.Tables = append(vm.Tables, views.TableInfo{
			Name:        t.Name,
			Title:       t.DisplayTitle(),
			Description: t.Description,
			Resource:    t.Resource,
			ColumnCount: len(t.Columns),
			URL:         q.ToSafeURL(),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderLanding(w, vm); err != nil {
		s.logger.Error("landing page rendering error", zap.Error(err))
	}
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if res := s.HandleTableRequest(w, r); res != nil {
		s.writeResult(w, res)
	}
}

// HandleTableRequest processes a table request and writes the response
// Returns an error result if the request is invalid, nil on success
func (s *Server) HandleTableRequest(w http.ResponseWriter, r *http.Request) *TableHandlerResult {
	q := query.NewQuery(r.URL)
	if q.Table == "" {
		return &TableHandlerResult{StatusCode: http.StatusBadRequest, Message: "Table parameter is required"}
	}
	sess, res := s.lockedSession(r.Context(), q)
	if res != nil {
		return res
	}
	problems := sess.Apply(q)
	vm := views.BuildViewModel(sess.table, sess.conf.DisplayTitle(), q)
	vm.MarkFailed(sess.Failed())
	vm.Message = sess.message(problems)
	sess.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, vm); err != nil {
		s.logger.Error("template rendering error", zap.Error(err))
	}
	return nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := query.NewQuery(r.URL)
	if q.Table == "" {
		s.writeResult(w, &TableHandlerResult{StatusCode: http.StatusBadRequest, Message: "Table parameter is required"})
		return
	}
	sess, res := s.lockedSession(r.Context(), q)
	if res != nil {
		s.writeResult(w, res)
		return
	}
	defer sess.mu.Unlock()
	sess.Apply(q)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", q.Table+".csv"))
	if err := sess.exportTo(w); err != nil {
		s.logger.Error("export failed", zap.String("table", q.Table), zap.Error(err))
	}
}

// returnURL returns the page a form post goes back to. Only console table
// pages are accepted.
func returnURL(r *http.Request) string {
	if ret := r.PostFormValue("return"); ret != "" {
		if u, err := url.Parse(ret); err == nil && u.Scheme == "" && u.Host == "" && u.Path == "/table" {
			return u.String()
		}
	}
	return "/table?table=" + url.QueryEscape(r.PostFormValue("table"))
}

// action mutates one table in response to a form post.
type action func(t *tables.Table, form url.Values) error

// handleAction wraps an action: it loads the table, brings it to the state
// of the return page, runs the action, persists what changed and redirects
// back. Action errors are shown on the next page.
func (s *Server) handleAction(fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		ret := returnURL(r)
		u, _ := url.Parse(ret)
		q := query.NewQuery(u)
		if q.Table == "" {
			q.Table = r.PostFormValue("table")
		}
		if q.Table == "" {
			s.writeResult(w, &TableHandlerResult{StatusCode: http.StatusBadRequest, Message: "Table parameter is required"})
			return
		}
		sess, res := s.lockedSession(r.Context(), q)
		if res != nil {
			s.writeResult(w, res)
			return
		}
		sess.Apply(q)
		if err := fn(sess.table, r.PostForm); err != nil {
			s.logger.Info("action rejected", zap.String("path", r.URL.Path), zap.Error(err))
			sess.addNotice(err.Error())
		}
		sess.Sync(r.Context())
		sess.mu.Unlock()

		http.Redirect(w, r, ret, http.StatusSeeOther)
	}
}

// lockedSession returns the session for q with its mu held. A session
// closed by a configuration change in the meantime is replaced by a fresh
// one.
func (s *Server) lockedSession(ctx context.Context, q *query.Query) (*Session, *TableHandlerResult) {
	for {
		sess, res := s.session(ctx, q)
		if res != nil {
			return nil, res
		}
		sess.mu.Lock()
		if !sess.closed {
			return sess, nil
		}
		sess.mu.Unlock()
	}
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	if tables.Action(strings.ToLower(r.PostFormValue("action"))) == tables.ActionExport {
		u, _ := url.Parse(returnURL(r))
		http.Redirect(w, r, query.NewQuery(u).WithPath("/table/export").String(), http.StatusSeeOther)
		return
	}
	s.handleAction(bulkAction)(w, r)
}

func editCell(t *tables.Table, form url.Values) error {
	rowID, colID := form.Get("row"), form.Get("column")
	switch op := form.Get("op"); op {
	case "begin":
		_, err := t.EditCell(rowID, colID)
		return err
	case "commit":
		value := form.Get("value")
		activeRow, activeCol, cell := t.ActiveEdit()
		if cell == nil || activeRow != rowID || activeCol != colID {
			invalid, err := t.CommitEdit(rowID, colID, value)
			if err != nil {
				return err
			}
			if invalid != nil {
				return invalid
			}
			return nil
		}
		cell.SetDraft(value)
		cell.Key(editing.KeyEnter)
		if err := t.EditError(); err != nil {
			return err
		}
		if invalid := cell.Invalid(); invalid != nil {
			return invalid
		}
		return nil
	case "cancel":
		if _, _, cell := t.ActiveEdit(); cell != nil {
			cell.Key(editing.KeyEscape)
		}
		return nil
	default:
		return fmt.Errorf("unknown edit operation %q", op)
	}
}

func selectRows(t *tables.Table, form url.Values) error {
	selected := form.Get("selected") == "true"
	if form.Get("all") == "true" {
		t.SelectAll(selected)
		return nil
	}
	t.SelectRow(form.Get("row"), selected)
	return nil
}

func expandRow(t *tables.Table, form url.Values) error {
	if !t.ToggleExpand(form.Get("row")) {
		return fmt.Errorf("row %q not found", form.Get("row"))
	}
	return nil
}

func bulkAction(t *tables.Table, form url.Values) error {
	a, err := tables.ParseAction(form.Get("action"))
	if err != nil {
		return err
	}
	return t.BulkAction(a)
}

func createRow(t *tables.Table, form url.Values) error {
	fields := map[string]any{t.NameField(): "New row"}
	if col, ok := t.Columns().Get("status"); ok && col.Editable {
		fields["status"] = tables.StatusActive
	}
	_, err := t.AddRow(rows.New("", fields), form.Get("after"))
	return err
}

// SetConfig swaps in a reloaded configuration. Cached tables are flushed
// and dropped so that the next request loads them with the new definition.
func (s *Server) SetConfig(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	old := s.sessions
	s.cfg = cfg
	s.sessions = make(map[sessionKey]*Session)
	s.mu.Unlock()
	s.logger.Info("configuration replaced", zap.Int("tables", len(cfg.Tables)))
	return closeAll(ctx, old)
}

// Flush sends every pending autosave now.
func (s *Server) Flush(ctx context.Context) error {
	s.mu.Lock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()
	var errs []error
	for _, sess := range list {
		if err := sess.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sess.conf.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes every pending save and drops all cached tables.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	old := s.sessions
	s.sessions = make(map[sessionKey]*Session)
	s.mu.Unlock()
	return closeAll(ctx, old)
}

func closeAll(ctx context.Context, sessions map[sessionKey]*Session) error {
	var errs []error
	for _, sess := range sessions {
		if err := sess.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sess.conf.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ListenAndServe serves the console on addr until ctx is done, then shuts
// down and flushes pending saves.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("console listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown failed", zap.Error(err))
	}
	<-errCh
	return s.Close(shutdownCtx)
}
