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

// Package demo is an in-memory implementation of the REST backend the
// console talks to, seeded with a small enterprise.
package demo

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/tabula/core/backend"
	"github.com/google/tabula/core/rows"
)

// Collections that are shared by every account.
var globalCollections = map[string]bool{
	"accounts":        true,
	"enterprises":     true,
	"global-settings": true,
}

// scope is the account a request was made for; the zero value is global.
type scope struct {
	id   string
	name string
}

func (s scope) owns(r rows.Row) bool {
	return r.String("accountId") == s.id
}

// Backend serves the console's REST API from memory.
type Backend struct {
	logger     *zap.Logger
	failWrites atomic.Bool

	mu          sync.RWMutex
	collections map[string]*rows.Tree
}

// NewBackend creates a backend holding the seed data.
func NewBackend(logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed, err := loadSeed()
	if err != nil {
		return nil, err
	}
	b := &Backend{logger: logger, collections: make(map[string]*rows.Tree, len(seed))}
	for name, data := range seed {
		tree, err := rows.NewTree(data)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		b.collections[name] = tree
	}
	return b, nil
}

// FailWrites makes every mutating request fail with 503 while on is true.
func (b *Backend) FailWrites(on bool) {
	b.failWrites.Store(on)
}

// Rows returns a copy of one collection, ignoring account scope.
func (b *Backend) Rows(collection string) []rows.Row {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tree, ok := b.collections[collection]
	if !ok {
		return nil
	}
	return tree.Rows()
}

// Handler returns the HTTP handler of the API.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/user-groups/{username}", b.handleUserGroups)
	mux.HandleFunc("GET /api/{collection}", b.handleList)
	mux.HandleFunc("POST /api/{collection}", b.handleCreate)
	mux.HandleFunc("GET /api/{collection}/{id}", b.handleGet)
	mux.HandleFunc("PUT /api/{collection}/{id}", b.handleWrite)
	mux.HandleFunc("PATCH /api/{collection}/{id}", b.handleWrite)
	mux.HandleFunc("DELETE /api/{collection}/{id}", b.handleDelete)
	return b.logRequests(mux)
}

func (b *Backend) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.failWrites.Load() && r.Method != http.MethodGet {
			b.logger.Debug("rejecting write", zap.String("method", r.Method), zap.String("path", r.URL.Path))
			http.Error(w, "writes are disabled", http.StatusServiceUnavailable)
			return
		}
		b.logger.Debug("api request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// queryScope reads the account of a GET or DELETE request.
func queryScope(r *http.Request) scope {
	q := r.URL.Query()
	return scopeOf(q.Get("accountId"), q.Get("accountName"))
}

func scopeOf(id, name string) scope {
	rc := backend.RequestContext{AccountID: id, AccountName: name}
	if !rc.Scoped() {
		return scope{}
	}
	return scope{id: id, name: name}
}

func (b *Backend) collection(w http.ResponseWriter, r *http.Request) (string, *rows.Tree, bool) {
	name := r.PathValue("collection")
	tree, ok := b.collections[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown collection %q", name), http.StatusNotFound)
		return "", nil, false
	}
	return name, tree, true
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	name, tree, ok := b.collection(w, r)
	if !ok {
		return
	}
	sc := queryScope(r)
	var out []rows.Row
	for _, row := range tree.Rows() {
		if globalCollections[name] || sc.owns(row) {
			out = append(out, row)
		}
	}
	writeRows(w, http.StatusOK, out)
}

func (b *Backend) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	username := r.PathValue("username")
	var out []rows.Row
	for _, row := range b.collections["user-groups"].Rows() {
		if strings.EqualFold(row.String("username"), username) {
			out = append(out, row)
		}
	}
	writeRows(w, http.StatusOK, out)
}

// find returns row id if the scope may see it.
func find(name string, tree *rows.Tree, sc scope, id string) (rows.Row, bool) {
	row, ok := tree.Subtree(id)
	if !ok {
		return rows.Row{}, false
	}
	if !globalCollections[name] && !sc.owns(row) {
		return rows.Row{}, false
	}
	return row, true
}

func (b *Backend) handleGet(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	name, tree, ok := b.collection(w, r)
	if !ok {
		return
	}
	row, ok := find(name, tree, queryScope(r), r.PathValue("id"))
	if !ok {
		http.Error(w, "row not found", http.StatusNotFound)
		return
	}
	writeRow(w, http.StatusOK, row)
}

// readBody decodes the JSON object of a write and the account it carries.
func readBody(r *http.Request) (rows.Row, scope, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return rows.Row{}, scope{}, err
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return rows.Row{}, scope{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	row := rows.FromStruct(&s)
	return row, scopeOf(row.String("accountId"), row.String("accountName")), nil
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	row, sc, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name, tree, ok := b.collection(w, r)
	if !ok {
		return
	}
	if row.ID == "" {
		row.ID = rows.NewID()
	}
	if globalCollections[name] {
		delete(row.Fields, "accountId")
		delete(row.Fields, "accountName")
	} else {
		row.Fields["accountId"] = sc.id
		row.Fields["accountName"] = sc.name
	}
	if err := tree.Insert(row, ""); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, rows.ErrDuplicateID) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	stored, _ := tree.Subtree(row.ID)
	b.logger.Info("row created", zap.String("collection", name), zap.String("id", row.ID))
	writeRow(w, http.StatusCreated, stored)
}

// handleWrite serves PUT, which replaces the fields of a row, and PATCH,
// which merges them. Children and tree position never change.
func (b *Backend) handleWrite(w http.ResponseWriter, r *http.Request) {
	body, sc, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name, tree, ok := b.collection(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if _, ok := find(name, tree, sc, id); !ok {
		http.Error(w, "row not found", http.StatusNotFound)
		return
	}
	err = tree.Update(id, func(cur rows.Row) rows.Row {
		next := cur
		if r.Method == http.MethodPut {
			next.Fields = make(map[string]any, len(body.Fields))
		}
		for k, v := range body.Fields {
			next = next.With(k, v)
		}
		if globalCollections[name] {
			delete(next.Fields, "accountId")
			delete(next.Fields, "accountName")
		} else {
			next = next.With("accountId", sc.id).With("accountName", sc.name)
		}
		return next
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stored, _ := tree.Subtree(id)
	b.logger.Info("row updated", zap.String("collection", name), zap.String("id", id))
	writeRow(w, http.StatusOK, stored)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, tree, ok := b.collection(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if _, ok := find(name, tree, queryScope(r), id); !ok {
		http.Error(w, "row not found", http.StatusNotFound)
		return
	}
	removed := tree.Remove(id)
	b.logger.Info("rows deleted", zap.String("collection", name), zap.Strings("ids", removed))
	w.WriteHeader(http.StatusNoContent)
}

func writeRow(w http.ResponseWriter, status int, row rows.Row) {
	s, err := row.ToStruct(nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeMessage(w, status, s)
}

func writeRows(w http.ResponseWriter, status int, list []rows.Row) {
	values := make([]*structpb.Value, 0, len(list))
	for _, row := range list {
		s, err := row.ToStruct(nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		values = append(values, structpb.NewStructValue(s))
	}
	writeMessage(w, status, structpb.NewListValue(&structpb.ListValue{Values: values}))
}

func writeMessage(w http.ResponseWriter, status int, m proto.Message) {
	data, err := protojson.Marshal(m)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
