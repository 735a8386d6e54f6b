//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a history manager that keeps runs in process
// memory. Useful for tests and short-lived evaluations.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/prompteval-go/history"
)

// Manager keeps evaluation runs in memory. Safe for concurrent use.
type Manager struct {
	now func() time.Time

	mu       sync.RWMutex
	runs     map[string]*history.Run
	order    []string
	prompts  map[string][]string
	datasets map[string][]string
}

var _ history.Manager = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates an empty in-memory manager.
func New(opt ...Option) *Manager {
	m := &Manager{
		now:      time.Now,
		runs:     map[string]*history.Run{},
		prompts:  map[string][]string{},
		datasets: map[string][]string{},
	}
	for _, o := range opt {
		o(m)
	}
	return m
}

// Save stores a copy of the run, assigning ID and timestamp when missing.
func (m *Manager) Save(ctx context.Context, run *history.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if run == nil {
		return "", errors.New("run is nil")
	}
	if run.PromptID == "" {
		return "", errors.New("run prompt id is empty")
	}
	if run.DatasetID == "" {
		return "", errors.New("run dataset id is empty")
	}

	stored := *run
	if stored.Timestamp.IsZero() {
		stored.Timestamp = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stored.ID == "" {
		stored.ID = history.RunID(stored.PromptID, stored.Timestamp)
		if _, exists := m.runs[stored.ID]; exists {
			stored.ID = stored.ID + "_" + uuid.NewString()[:8]
		}
	} else if _, exists := m.runs[stored.ID]; exists {
		return "", errors.New("run " + stored.ID + " already exists")
	}

	m.runs[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	m.prompts[stored.PromptID] = append(m.prompts[stored.PromptID], stored.ID)
	m.datasets[stored.DatasetID] = append(m.datasets[stored.DatasetID], stored.ID)
	return stored.ID, nil
}

// Get returns a copy of the run, or history.ErrRunNotFound.
func (m *Manager) Get(ctx context.Context, runID string) (*history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, history.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// ListByPrompt returns up to limit runs for the prompt, newest first.
func (m *Manager) ListByPrompt(ctx context.Context, promptID string, limit int) ([]*history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.prompts[promptID], limit), nil
}

// ListByDataset returns up to limit runs for the dataset, newest first.
func (m *Manager) ListByDataset(ctx context.Context, datasetID string, limit int) ([]*history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.datasets[datasetID], limit), nil
}

// ListAll returns up to limit runs across the store, newest first.
func (m *Manager) ListAll(ctx context.Context, limit int) ([]*history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.order, limit), nil
}

// collect copies the newest limit runs from chronologically ordered IDs.
func (m *Manager) collect(runIDs []string, limit int) []*history.Run {
	if limit > 0 && len(runIDs) > limit {
		runIDs = runIDs[len(runIDs)-limit:]
	}
	runs := make([]*history.Run, 0, len(runIDs))
	for i := len(runIDs) - 1; i >= 0; i-- {
		if run, ok := m.runs[runIDs[i]]; ok {
			cp := *run
			runs = append(runs, &cp)
		}
	}
	return runs
}

// Stats summarizes the store.
func (m *Manager) Stats(ctx context.Context) (history.Stats, error) {
	if err := ctx.Err(); err != nil {
		return history.Stats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := history.Stats{
		TotalRuns:      len(m.order),
		UniquePrompts:  len(m.prompts),
		UniqueDatasets: len(m.datasets),
	}
	s.MostEvaluatedPrompt = mostFrequent(m.prompts)
	s.MostUsedDataset = mostFrequent(m.datasets)
	return s, nil
}

func mostFrequent(byKey map[string][]string) string {
	best := ""
	bestCount := 0
	for key, ids := range byKey {
		if len(ids) > bestCount || (len(ids) == bestCount && key < best) {
			best = key
			bestCount = len(ids)
		}
	}
	return best
}
