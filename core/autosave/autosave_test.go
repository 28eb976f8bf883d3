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

package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/google/tabula/core/rows"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type store struct {
	mu    sync.Mutex
	saved []rows.Row
}

func (s *store) save(_ context.Context, r rows.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return nil
}

func (s *store) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.saved))
	for i, r := range s.saved {
		out[i] = r.ID + "=" + r.String("name")
	}
	return out
}

func named(id, name string) rows.Row {
	return rows.New(id, map[string]any{"name": name})
}

func TestDebounceSendsLatestSnapshot(t *testing.T) {
	st := &store{}
	s := New(st.save, WithDelay(20*time.Millisecond))
	s.Schedule(named("1", "a"))
	s.Schedule(named("1", "ab"))
	s.Schedule(named("1", "abc"))
	s.Schedule(named("2", "x"))

	require.Eventually(t, func() bool { return len(st.names()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"1=abc", "2=x"}, st.names())
	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, st.names(), 2)
}

func TestSavesOfOneRowAreSerialized(t *testing.T) {
	var active, maxActive atomic.Int32
	release := make(chan struct{})
	started := make(chan string, 4)
	st := &store{}
	save := func(ctx context.Context, r rows.Row) error {
		n := active.Add(1)
		defer active.Add(-1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		started <- r.String("name")
		if r.String("name") == "first" {
			<-release
		}
		return st.save(ctx, r)
	}
	s := New(save, WithDelay(5*time.Millisecond))

	s.Schedule(named("1", "first"))
	assert.Equal(t, "first", <-started)

	// Arrives while "first" is in flight; its timer fires and queues it.
	s.Schedule(named("1", "second"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, s.Pending("1"))
	close(release)

	assert.Equal(t, "second", <-started)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []string{"1=first", "1=second"}, st.names())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestCancelDropsPendingSave(t *testing.T) {
	st := &store{}
	s := New(st.save, WithDelay(time.Hour))
	s.Schedule(named("1", "a"))
	assert.True(t, s.Cancel("1"))
	assert.False(t, s.Cancel("1"))
	assert.False(t, s.Pending("1"))
	require.NoError(t, s.Close(context.Background()))
	assert.Empty(t, st.names())
}

func TestFlushReportsFailures(t *testing.T) {
	boom := errors.New("boom")
	var reported []string
	var mu sync.Mutex
	s := New(func(_ context.Context, r rows.Row) error {
		if r.ID == "bad" {
			return boom
		}
		return nil
	}, WithDelay(time.Hour), WithOnError(func(id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, id)
	}))

	s.Schedule(named("ok", "a"))
	s.Schedule(named("bad", "b"))
	err := s.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"bad"}, s.Failed())
	assert.Equal(t, []string{"bad"}, reported)
	assert.False(t, s.Pending("ok"))

	require.NoError(t, s.Close(context.Background()))
}

func TestFlushFailureDoesNotCancelOtherRows(t *testing.T) {
	boom := errors.New("boom")
	st := &store{}
	s := New(func(ctx context.Context, r rows.Row) error {
		if r.ID == "bad" {
			return boom
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return st.save(ctx, r)
	}, WithDelay(time.Hour))

	s.Schedule(named("bad", "b"))
	s.Schedule(named("good", "g"))
	err := s.Flush(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"bad"}, s.Failed())
	assert.Equal(t, []string{"good=g"}, st.names())
	require.NoError(t, s.Close(context.Background()))
}

func TestCloseFlushesAndStopsAccepting(t *testing.T) {
	st := &store{}
	s := New(st.save, WithDelay(time.Hour))
	s.Schedule(named("1", "a"))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []string{"1=a"}, st.names())

	s.Schedule(named("1", "b"))
	assert.False(t, s.Pending("1"))
}
