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

// Package backend is the REST client the console uses to load and persist
// table rows. Every call carries an explicit account context.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/tabula/core/rows"
)

// GlobalAccount is the account name that means "no scoping": requests made
// under it go to the global tables.
const GlobalAccount = "systiva"

// Resource paths served by the backend.
const (
	ResourceUsers       = "/api/users"
	ResourceRoles       = "/api/roles"
	ResourceCredentials = "/api/credentials"
	ResourceAccounts    = "/api/accounts"
	ResourceEnterprises = "/api/enterprises"
	ResourcePipelines   = "/api/pipelines"
	ResourceEnvironment = "/api/environments"
)

// UserGroupsPath returns the group collection of one user.
func UserGroupsPath(username string) string {
	return "/api/user-groups/" + url.PathEscape(username)
}

// GlobalSettingsPath returns the settings collection with the given id.
func GlobalSettingsPath(id string) string {
	return "/api/global-settings/" + url.PathEscape(id)
}

// RequestContext is the account a request is made for.
type RequestContext struct {
	AccountID   string
	AccountName string
}

// Scoped reports whether requests are limited to the account. The empty
// name and GlobalAccount are unscoped.
func (rc RequestContext) Scoped() bool {
	return rc.AccountName != "" && !strings.EqualFold(rc.AccountName, GlobalAccount)
}

func (rc RequestContext) params() map[string]any {
	if !rc.Scoped() {
		return nil
	}
	return map[string]any{"accountId": rc.AccountID, "accountName": rc.AccountName}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to the REST backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
	lists   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpoint joins an escaped path onto the base URL.
func (c *Client) endpoint(path string, query map[string]any) string {
	target := strings.TrimSuffix(c.baseURL.String(), "/") + path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, rows.Stringify(v))
		}
		target += "?" + q.Encode()
	}
	return target
}

// List fetches a collection. The backend may answer with a bare array or an
// object wrapping it in "data" or "items". Concurrent identical calls share
// one request.
func (c *Client) List(ctx context.Context, rc RequestContext, resource string) ([]rows.Row, error) {
	target := c.endpoint(resource, rc.params())
	v, err, shared := c.lists.Do(target, func() (any, error) {
		return c.do(ctx, http.MethodGet, target, resource, nil)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("coalesced list request", zap.String("resource", resource))
	}
	return decodeList(v.(*structpb.Value))
}

func decodeList(v *structpb.Value) ([]rows.Row, error) {
	if v == nil {
		return nil, nil
	}
	if s := v.GetStructValue(); s != nil {
		for _, key := range []string{"data", "items"} {
			if inner := s.GetFields()[key]; inner.GetListValue() != nil {
				v = inner
				break
			}
		}
	}
	out, err := rows.FromValue(v)
	if err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// Get fetches one row.
func (c *Client) Get(ctx context.Context, rc RequestContext, resource, id string) (rows.Row, error) {
	path := resource + "/" + url.PathEscape(id)
	v, err := c.do(ctx, http.MethodGet, c.endpoint(path, rc.params()), path, nil)
	if err != nil {
		return rows.Row{}, err
	}
	return decodeOne(v, rows.Row{ID: id})
}

func decodeOne(v *structpb.Value, fallback rows.Row) (rows.Row, error) {
	if v == nil {
		return fallback, nil
	}
	if s := v.GetStructValue(); s != nil {
		if inner := s.GetFields()["data"].GetStructValue(); inner != nil {
			return rows.FromStruct(inner), nil
		}
		return rows.FromStruct(s), nil
	}
	return rows.Row{}, fmt.Errorf("decode row: expected object")
}

// Create posts a new row and returns the row the backend stored. An empty
// response body returns r unchanged.
func (c *Client) Create(ctx context.Context, rc RequestContext, resource string, r rows.Row) (rows.Row, error) {
	return c.write(ctx, http.MethodPost, resource, rc, r)
}

// Update replaces the row with r.ID.
func (c *Client) Update(ctx context.Context, rc RequestContext, resource string, r rows.Row) (rows.Row, error) {
	return c.write(ctx, http.MethodPut, resource+"/"+url.PathEscape(r.ID), rc, r)
}

// Patch changes only the given fields of row id.
func (c *Client) Patch(ctx context.Context, rc RequestContext, resource, id string, fields map[string]any) (rows.Row, error) {
	return c.write(ctx, http.MethodPatch, resource+"/"+url.PathEscape(id), rc, rows.Row{Fields: fields})
}

func (c *Client) write(ctx context.Context, method, path string, rc RequestContext, r rows.Row) (rows.Row, error) {
	s, err := r.ToStruct(rc.params())
	if err != nil {
		return rows.Row{}, err
	}
	body, err := protojson.Marshal(s)
	if err != nil {
		return rows.Row{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	v, err := c.do(ctx, method, c.endpoint(path, nil), path, body)
	if err != nil {
		return rows.Row{}, err
	}
	return decodeOne(v, r)
}

// Delete removes row id.
func (c *Client) Delete(ctx context.Context, rc RequestContext, resource, id string) error {
	path := resource + "/" + url.PathEscape(id)
	_, err := c.do(ctx, http.MethodDelete, c.endpoint(path, rc.params()), path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, target, path string, body []byte) (*structpb.Value, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var v structpb.Value
	if err := protojson.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return &v, nil
}
