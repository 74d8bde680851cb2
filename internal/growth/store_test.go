package growth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

func TestMemoryStore_GetUnknownIsEmpty(t *testing.T) {
	st := NewMemoryStore(nil)
	s, err := st.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, reference.SexUnknown, s.Sex)
	assert.Empty(t, s.History)
}

func TestMemoryStore_PutGetIsolation(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewMockClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	st := NewMemoryStore(clock)

	s := newMaleSession()
	s.History = append(s.History, Entry{AgeMonth: 12, HeightCM: Float(75)})
	require.NoError(t, st.Put(ctx, "u1", s))
	assert.Equal(t, clock.Now(), s.UpdatedAt)

	// Mutating the caller's copy after Put must not leak into the store.
	s.History = append(s.History, Entry{AgeMonth: 13})

	got, err := st.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
	assert.Equal(t, reference.Male, got.Sex)

	got.History[0].AgeMonth = 99
	again, _ := st.Get(ctx, "u1")
	assert.Equal(t, 12, again.History[0].AgeMonth)

	require.NoError(t, st.Delete(ctx, "u1"))
	gone, _ := st.Get(ctx, "u1")
	assert.Empty(t, gone.History)
	require.NoError(t, st.Delete(ctx, "u1"))
}

func TestMemoryStore_PurgeStale(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	st := NewMemoryStore(clock)

	require.NoError(t, st.Put(ctx, "old", NewSession()))
	clock.Advance(48 * time.Hour)
	require.NoError(t, st.Put(ctx, "fresh", NewSession()))

	n, err := st.PurgeStale(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st.mu.RLock()
	_, oldExists := st.sessions["old"]
	_, freshExists := st.sessions["fresh"]
	st.mu.RUnlock()
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestSessionReaper_RunOnce(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	st := NewMemoryStore(clock)
	require.NoError(t, st.Put(ctx, "u", NewSession()))

	r := NewSessionReaper(st, 72*time.Hour, clock)

	clock.Advance(71 * time.Hour)
	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Hour)
	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r.TTL = 0
	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "zero TTL disables reaping")
}

func TestSessionReaper_StartStop(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	st := NewMemoryStore(clock)
	require.NoError(t, st.Put(ctx, "u", NewSession()))

	r := NewSessionReaper(st, time.Hour, clock)
	r.Interval = time.Hour
	r.Start()
	defer r.Stop()

	// Give the loop a moment to create its ticker before advancing.
	require.Eventually(t, func() bool {
		clock.Advance(2 * time.Hour)
		st.mu.RLock()
		defer st.mu.RUnlock()
		return len(st.sessions) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
