//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/prompteval-go/history"
)

func testRun(promptID string, ts time.Time, accuracy float64) *history.Run {
	return &history.Run{
		Timestamp:   ts,
		PromptID:    promptID,
		PromptText:  "answer the question",
		DatasetID:   "qa-ds",
		DatasetName: "qa",
		Metrics:     map[string]float64{"accuracy": accuracy},
	}
}

func TestSaveAndGet(t *testing.T) {
	m, err := New(WithDir(t.TempDir()))
	require.NoError(t, err)

	ts := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	runID, err := m.Save(context.Background(), testRun("p1", ts, 0.8))
	require.NoError(t, err)
	assert.Equal(t, "p1_20250601_103000", runID)

	got, err := m.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PromptID)
	assert.InDelta(t, 0.8, got.Metrics["accuracy"], 1e-9)

	_, err = m.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, history.ErrRunNotFound)
}

func TestSaveAssignsTimestampAndID(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m, err := New(WithDir(t.TempDir()), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	runID, err := m.Save(context.Background(), &history.Run{PromptID: "p", DatasetID: "d"})
	require.NoError(t, err)
	assert.Equal(t, "p_20250601_090000", runID)

	got, err := m.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, fixed, got.Timestamp.UTC())
}

func TestSameSecondSavesGetDistinctIDs(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m, err := New(WithDir(t.TempDir()), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	first, err := m.Save(context.Background(), testRun("p", fixed, 0.5))
	require.NoError(t, err)
	second, err := m.Save(context.Background(), testRun("p", fixed, 0.6))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	runs, err := m.ListByPrompt(context.Background(), "p", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSaveValidation(t *testing.T) {
	m, err := New(WithDir(t.TempDir()))
	require.NoError(t, err)

	_, err = m.Save(context.Background(), nil)
	assert.Error(t, err)
	_, err = m.Save(context.Background(), &history.Run{DatasetID: "d"})
	assert.Error(t, err)
	_, err = m.Save(context.Background(), &history.Run{PromptID: "p"})
	assert.Error(t, err)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	m, err := New(WithDir(t.TempDir()))
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := m.Save(context.Background(), testRun("p", base.Add(time.Duration(i)*time.Minute), float64(i)/10))
		require.NoError(t, err)
	}

	runs, err := m.ListByPrompt(context.Background(), "p", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.InDelta(t, 0.3, runs[0].Metrics["accuracy"], 1e-9)
	assert.InDelta(t, 0.2, runs[1].Metrics["accuracy"], 1e-9)

	all, err := m.ListAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byDataset, err := m.ListByDataset(context.Background(), "qa-ds", 3)
	require.NoError(t, err)
	assert.Len(t, byDataset, 3)
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	m1, err := New(WithDir(dir))
	require.NoError(t, err)
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = m1.Save(context.Background(), testRun("p", ts, 0.7))
	require.NoError(t, err)

	m2, err := New(WithDir(dir))
	require.NoError(t, err)
	runs, err := m2.ListByPrompt(context.Background(), "p", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRebuildRecoversMissingIndex(t *testing.T) {
	dir := t.TempDir()
	m1, err := New(WithDir(dir))
	require.NoError(t, err)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// Out of chronological order, so the rebuild has to re-sort.
	for _, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		_, err := m1.Save(context.Background(), testRun("p", base.Add(offset), 0.5))
		require.NoError(t, err)
	}

	// Simulate a crash between run-file write and index update.
	require.NoError(t, os.Remove(filepath.Join(dir, indexFileName)))

	m2, err := New(WithDir(dir))
	require.NoError(t, err)
	runs, err := m2.ListByPrompt(context.Background(), "p", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i := 1; i < len(runs); i++ {
		assert.False(t, runs[i].Timestamp.After(runs[i-1].Timestamp), "runs must come back newest first")
	}

	stats, err := m2.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, "p", stats.MostEvaluatedPrompt)
}

func TestStats(t *testing.T) {
	m, err := New(WithDir(t.TempDir()))
	require.NoError(t, err)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err = m.Save(context.Background(), testRun("p1", base, 0.5))
	require.NoError(t, err)
	_, err = m.Save(context.Background(), testRun("p1", base.Add(time.Minute), 0.6))
	require.NoError(t, err)
	_, err = m.Save(context.Background(), testRun("p2", base.Add(2*time.Minute), 0.7))
	require.NoError(t, err)

	s, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalRuns)
	assert.Equal(t, 2, s.UniquePrompts)
	assert.Equal(t, 1, s.UniqueDatasets)
	assert.Equal(t, "p1", s.MostEvaluatedPrompt)
	assert.Equal(t, "qa-ds", s.MostUsedDataset)
}
