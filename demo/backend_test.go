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

package demo

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/tabula/core/backend"
	"github.com/google/tabula/core/rows"
)

var (
	global = backend.RequestContext{AccountID: "0", AccountName: backend.GlobalAccount}
	acme   = backend.RequestContext{AccountID: "a1", AccountName: "acme"}
)

func newClient(t *testing.T) (*Backend, *backend.Client) {
	t.Helper()
	b, err := NewBackend(nil)
	require.NoError(t, err)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	client, err := backend.New(srv.URL)
	require.NoError(t, err)
	return b, client
}

func ids(list []rows.Row) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func TestListIsScopedByAccount(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	globalUsers, err := client.List(ctx, global, backend.ResourceUsers)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, ids(globalUsers))

	acmeUsers, err := client.List(ctx, acme, backend.ResourceUsers)
	require.NoError(t, err)
	assert.Equal(t, []string{"u5", "u6", "u7"}, ids(acmeUsers))

	accounts, err := client.List(ctx, acme, backend.ResourceAccounts)
	require.NoError(t, err)
	assert.Len(t, accounts, 4, "accounts are shared by every scope")
}

func TestEnvironmentsAreNested(t *testing.T) {
	_, client := newClient(t)
	envs, err := client.List(context.Background(), global, backend.ResourceEnvironment)
	require.NoError(t, err)
	require.Equal(t, []string{"env-prod", "env-stage", "env-dev"}, ids(envs))
	prod := envs[0]
	assert.Equal(t, []string{"svc-api", "svc-web"}, ids(prod.Children))
	assert.Equal(t, "job-backup", prod.Children[0].Children[0].ID)
	replicas, _ := prod.Children[0].Get("replicas")
	assert.Equal(t, float64(6), replicas)
}

func TestWriteLifecycle(t *testing.T) {
	b, client := newClient(t)
	ctx := context.Background()

	created, err := client.Create(ctx, acme, backend.ResourceRoles, rows.New("r9", map[string]any{"name": "Viewer"}))
	require.NoError(t, err)
	assert.Equal(t, "r9", created.ID)
	assert.Equal(t, "acme", created.String("accountName"))

	_, err = client.Create(ctx, acme, backend.ResourceRoles, rows.New("r9", nil))
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 409, se.Code)

	updated, err := client.Update(ctx, acme, backend.ResourceRoles, rows.New("r9", map[string]any{"name": "Reader"}))
	require.NoError(t, err)
	assert.Equal(t, "Reader", updated.String("name"))

	patched, err := client.Patch(ctx, acme, backend.ResourceRoles, "r9", map[string]any{"status": "Inactive"})
	require.NoError(t, err)
	assert.Equal(t, "Reader", patched.String("name"))
	assert.Equal(t, "Inactive", patched.String("status"))

	// Other accounts cannot see the row.
	_, err = client.Get(ctx, global, backend.ResourceRoles, "r9")
	assert.True(t, backend.IsNotFound(err))

	require.NoError(t, client.Delete(ctx, acme, backend.ResourceRoles, "r9"))
	_, err = client.Get(ctx, acme, backend.ResourceRoles, "r9")
	assert.True(t, backend.IsNotFound(err))
	assert.NotContains(t, ids(b.Rows("roles")), "r9")
}

func TestDeleteChildRemovesSubtree(t *testing.T) {
	b, client := newClient(t)
	require.NoError(t, client.Delete(context.Background(), global, backend.ResourceEnvironment, "svc-api"))
	prod := b.Rows("environments")[0]
	assert.Equal(t, []string{"svc-web"}, ids(prod.Children))
}

func TestUserGroups(t *testing.T) {
	_, client := newClient(t)
	groups, err := client.List(context.Background(), global, backend.UserGroupsPath("ada@systiva.io"))
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, ids(groups))
}

func TestGlobalSettings(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	got, err := client.Get(ctx, acme, "/api/global-settings", "ui")
	require.NoError(t, err)
	assert.Equal(t, "light", got.String("theme"))

	got, err = client.Patch(ctx, acme, "/api/global-settings", "ui", map[string]any{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, "dark", got.String("theme"))
	_, scoped := got.Get("accountName")
	assert.False(t, scoped, "global settings never carry an account")
}

func TestFailWrites(t *testing.T) {
	b, client := newClient(t)
	b.FailWrites(true)
	_, err := client.Update(context.Background(), global, backend.ResourceUsers, rows.New("u1", map[string]any{"name": "x"}))
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Code)
}
