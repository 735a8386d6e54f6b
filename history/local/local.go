//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package local provides a file-backed history manager: one JSON file per run
// plus an index file mapping prompts and datasets to run IDs.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/prompteval-go/history"
	"trpc.group/trpc-go/prompteval-go/log"
)

const (
	defaultDir    = "data/evaluation_history"
	indexFileName = "index.json"
)

// Option configures the Manager.
type Option func(*options)

type options struct {
	dir string
	now func() time.Time
}

// WithDir sets the storage directory.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// indexEntry is the per-run record kept in the index file.
type indexEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PromptID  string    `json:"prompt_id"`
	DatasetID string    `json:"dataset_id"`
}

// index maps prompts and datasets to their run IDs, in append (chronological)
// order.
type index struct {
	Runs     []indexEntry        `json:"runs"`
	Prompts  map[string][]string `json:"prompts"`
	Datasets map[string][]string `json:"datasets"`
}

func newIndex() *index {
	return &index{
		Prompts:  map[string][]string{},
		Datasets: map[string][]string{},
	}
}

// Manager stores evaluation runs under a directory. It is safe for concurrent
// use within one process; run-file and index writes are individually atomic
// but not transactional across each other, so New rebuilds the index from run
// files when it is missing or unreadable.
type Manager struct {
	dir string
	now func() time.Time

	mu  sync.RWMutex
	idx *index
}

var _ history.Manager = (*Manager)(nil)

// New creates a Manager rooted at the configured directory, creating it if
// needed and loading or rebuilding the index.
func New(opt ...Option) (*Manager, error) {
	opts := options{dir: defaultDir, now: time.Now}
	for _, o := range opt {
		o(&opts)
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return nil, err
	}
	m := &Manager{dir: opts.dir, now: opts.now}
	if err := m.loadIndex(); err != nil {
		log.Warnf("history: index load failed, rebuilding: %v", err)
		if err := m.Rebuild(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.dir, indexFileName)
}

func (m *Manager) runPath(runID string) string {
	return filepath.Join(m.dir, runID+".json")
}

func (m *Manager) loadIndex() error {
	b, err := os.ReadFile(m.indexPath())
	if errors.Is(err, fs.ErrNotExist) {
		m.idx = newIndex()
		// An index missing next to existing run files means a crash between
		// the two writes; recover by scanning.
		if m.hasRunFiles() {
			return errors.New("index missing with run files present")
		}
		return nil
	}
	if err != nil {
		return err
	}
	idx := newIndex()
	if err := json.Unmarshal(b, idx); err != nil {
		return err
	}
	if idx.Prompts == nil {
		idx.Prompts = map[string][]string{}
	}
	if idx.Datasets == nil {
		idx.Datasets = map[string][]string{}
	}
	m.idx = idx
	return nil
}

func (m *Manager) hasRunFiles() bool {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && e.Name() != indexFileName {
			return true
		}
	}
	return false
}

// Rebuild reconstructs the index by scanning every run file in the directory.
// It recovers from a crash between a run-file write and the index update.
func (m *Manager) Rebuild() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	runs := make([]*history.Run, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == indexFileName {
			continue
		}
		run, err := m.readRunFile(filepath.Join(m.dir, name))
		if err != nil {
			log.Warnf("history: skipping unreadable run file %s: %v", name, err)
			continue
		}
		runs = append(runs, run)
	}
	// Oldest first, so index order stays chronological.
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})

	idx := newIndex()
	for _, run := range runs {
		appendToIndex(idx, run)
	}
	m.idx = idx
	return m.writeIndex()
}

func appendToIndex(idx *index, run *history.Run) {
	idx.Runs = append(idx.Runs, indexEntry{
		ID:        run.ID,
		Timestamp: run.Timestamp,
		PromptID:  run.PromptID,
		DatasetID: run.DatasetID,
	})
	idx.Prompts[run.PromptID] = append(idx.Prompts[run.PromptID], run.ID)
	idx.Datasets[run.DatasetID] = append(idx.Datasets[run.DatasetID], run.ID)
}

// Save persists the run file first, then updates the index.
func (m *Manager) Save(ctx context.Context, run *history.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if run == nil {
		return "", errors.New("run is nil")
	}
	stored := *run
	if stored.Timestamp.IsZero() {
		stored.Timestamp = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stored.ID == "" {
		stored.ID = m.uniqueRunID(&stored)
	}
	if err := validateForSave(&stored); err != nil {
		return "", err
	}
	if _, err := os.Stat(m.runPath(stored.ID)); err == nil {
		return "", fmt.Errorf("run %s already exists", stored.ID)
	}

	if err := writeJSONAtomic(m.runPath(stored.ID), &stored); err != nil {
		return "", err
	}
	appendToIndex(m.idx, &stored)
	if err := m.writeIndex(); err != nil {
		return "", err
	}
	return stored.ID, nil
}

// uniqueRunID derives the run ID from prompt and timestamp, disambiguating
// same-second saves with a short random suffix.
func (m *Manager) uniqueRunID(run *history.Run) string {
	id := history.RunID(run.PromptID, run.Timestamp)
	if _, err := os.Stat(m.runPath(id)); err == nil {
		id = id + "_" + uuid.NewString()[:8]
	}
	return id
}

func validateForSave(run *history.Run) error {
	if run.PromptID == "" {
		return errors.New("run prompt id is empty")
	}
	if run.DatasetID == "" {
		return errors.New("run dataset id is empty")
	}
	return nil
}

func (m *Manager) writeIndex() error {
	return writeJSONAtomic(m.indexPath(), m.idx)
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (m *Manager) readRunFile(path string) (*history.Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run history.Run
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Get returns the stored run, or history.ErrRunNotFound.
func (m *Manager) Get(ctx context.Context, runID string) (*history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run, err := m.readRunFile(m.runPath(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, history.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListByPrompt returns up to limit runs for the prompt, newest first.
func (m *Manager) ListByPrompt(ctx context.Context, promptID string, limit int) ([]*history.Run, error) {
	m.mu.RLock()
	runIDs := append([]string(nil), m.idx.Prompts[promptID]...)
	m.mu.RUnlock()
	return m.loadNewestFirst(ctx, runIDs, limit)
}

// ListByDataset returns up to limit runs for the dataset, newest first.
func (m *Manager) ListByDataset(ctx context.Context, datasetID string, limit int) ([]*history.Run, error) {
	m.mu.RLock()
	runIDs := append([]string(nil), m.idx.Datasets[datasetID]...)
	m.mu.RUnlock()
	return m.loadNewestFirst(ctx, runIDs, limit)
}

// ListAll returns up to limit runs across the store, newest first.
func (m *Manager) ListAll(ctx context.Context, limit int) ([]*history.Run, error) {
	m.mu.RLock()
	runIDs := make([]string, 0, len(m.idx.Runs))
	for _, e := range m.idx.Runs {
		runIDs = append(runIDs, e.ID)
	}
	m.mu.RUnlock()
	return m.loadNewestFirst(ctx, runIDs, limit)
}

// loadNewestFirst loads the newest limit runs from chronologically ordered
// IDs. Orphaned index entries whose run file is gone are skipped.
func (m *Manager) loadNewestFirst(ctx context.Context, runIDs []string, limit int) ([]*history.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(runIDs) > limit {
		runIDs = runIDs[len(runIDs)-limit:]
	}
	runs := make([]*history.Run, 0, len(runIDs))
	for i := len(runIDs) - 1; i >= 0; i-- {
		run, err := m.readRunFile(m.runPath(runIDs[i]))
		if err != nil {
			log.Debugf("history: skipping run %s: %v", runIDs[i], err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Stats summarizes the store from the index alone.
func (m *Manager) Stats(ctx context.Context) (history.Stats, error) {
	if err := ctx.Err(); err != nil {
		return history.Stats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := history.Stats{
		TotalRuns:      len(m.idx.Runs),
		UniquePrompts:  len(m.idx.Prompts),
		UniqueDatasets: len(m.idx.Datasets),
	}
	s.MostEvaluatedPrompt = mostFrequent(m.idx.Prompts)
	s.MostUsedDataset = mostFrequent(m.idx.Datasets)
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
