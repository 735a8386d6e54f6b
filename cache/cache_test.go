//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opt ...Option) *Cache {
	t.Helper()
	opts := append([]Option{WithDir(t.TempDir())}, opt...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	c.Set("what is go", "gpt-4", "openai", 0.7, "a language", nil)

	got, ok := c.Get("what is go", "gpt-4", "openai", 0.7, nil)
	require.True(t, ok)
	assert.Equal(t, "a language", got)
}

func TestKeyIncludesExtraParams(t *testing.T) {
	c := newTestCache(t)
	c.Set("p", "m", "pr", 0, "with-extra", map[string]any{"max_tokens": 100})

	_, ok := c.Get("p", "m", "pr", 0, nil)
	assert.False(t, ok, "different extra params must be distinct entries")

	got, ok := c.Get("p", "m", "pr", 0, map[string]any{"max_tokens": 100})
	require.True(t, ok)
	assert.Equal(t, "with-extra", got)
}

func TestExpiryWithFastForwardClock(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := newTestCache(t, WithTTL(time.Hour), WithClock(clock))

	c.Set("p", "m", "pr", 0, "r", nil)
	_, ok := c.Get("p", "m", "pr", 0, nil)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("p", "m", "pr", 0, nil)
	assert.False(t, ok)

	// Lazy expiry removed the entry from both tiers.
	stats := c.Stats()
	assert.Zero(t, stats.MemoryEntries)
	assert.Zero(t, stats.DiskEntries)
}

func TestDiskPromotion(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(WithDir(dir))
	require.NoError(t, err)
	c1.Set("p", "m", "pr", 0, "persisted", nil)

	// A fresh cache over the same directory has an empty memory tier.
	c2, err := New(WithDir(dir))
	require.NoError(t, err)
	got, ok := c2.Get("p", "m", "pr", 0, nil)
	require.True(t, ok)
	assert.Equal(t, "persisted", got)
	assert.Equal(t, 1, c2.Stats().MemoryEntries)
}

func TestClear(t *testing.T) {
	c := newTestCache(t)
	c.Set("a", "m", "pr", 0, "1", nil)
	c.Set("b", "m", "pr", 0, "2", nil)

	// Memory and disk entries are both counted.
	assert.Equal(t, 4, c.Clear())
	_, ok := c.Get("a", "m", "pr", 0, nil)
	assert.False(t, ok)
}

func TestClearExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := newTestCache(t, WithTTL(time.Hour), WithClock(clock))

	c.Set("old", "m", "pr", 0, "1", nil)
	now = now.Add(2 * time.Hour)
	c.Set("fresh", "m", "pr", 0, "2", nil)

	// One expired entry in each tier.
	assert.Equal(t, 2, c.ClearExpired())
	_, ok := c.Get("fresh", "m", "pr", 0, nil)
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	c.Set("p", "m", "pr", 0, "r", nil)

	c.Get("p", "m", "pr", 0, nil)
	c.Get("absent", "m", "pr", 0, nil)

	s := c.Stats()
	assert.Equal(t, 1, s.Hits)
	assert.Equal(t, 1, s.Misses)
	assert.Equal(t, 1, s.Saves)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.Equal(t, 1, s.MemoryEntries)
	assert.Equal(t, 1, s.DiskEntries)
}

func TestSize(t *testing.T) {
	c := newTestCache(t)
	assert.Zero(t, c.Size().FileCount)

	c.Set("p", "m", "pr", 0, "r", nil)
	info := c.Size()
	assert.Equal(t, 1, info.FileCount)
	assert.Greater(t, info.TotalBytes, int64(0))
	assert.Equal(t, info.TotalBytes, info.AvgFileBytes)
}
