//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package mysql provides a MySQL-backed history manager for sharing
// evaluation history across processes. The DSN must carry parseTime=true so
// timestamps scan into time.Time.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"trpc.group/trpc-go/prompteval-go/history"
)

const tableName = "evaluation_run"

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	id VARCHAR(191) NOT NULL PRIMARY KEY,
	ts DATETIME(6) NOT NULL,
	prompt_id VARCHAR(191) NOT NULL,
	prompt_text MEDIUMTEXT,
	dataset_id VARCHAR(191) NOT NULL,
	dataset_name VARCHAR(255),
	metrics JSON NOT NULL,
	metadata JSON,
	KEY idx_prompt (prompt_id, ts),
	KEY idx_dataset (dataset_id, ts)
)`

// duplicateKeyErrNo is the MySQL error number for duplicate primary keys.
const duplicateKeyErrNo = 1062

// Manager stores evaluation runs in a MySQL table.
type Manager struct {
	db  *sql.DB
	now func() time.Time
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

// New opens a connection with the given DSN and ensures the schema exists.
func New(ctx context.Context, dsn string, opt ...Option) (*Manager, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	m := NewWithDB(db, opt...)
	if err := m.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// NewWithDB wraps an existing connection pool without touching the schema.
func NewWithDB(db *sql.DB, opt ...Option) *Manager {
	m := &Manager{db: db, now: time.Now}
	for _, o := range opt {
		o(m)
	}
	return m
}

// EnsureSchema creates the run table when absent.
func (m *Manager) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, createTableSQL)
	return err
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Save inserts the run, assigning ID and timestamp when missing. A generated
// ID colliding with a same-second save is retried once with a random suffix.
func (m *Manager) Save(ctx context.Context, run *history.Run) (string, error) {
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
	generated := stored.ID == ""
	if generated {
		stored.ID = history.RunID(stored.PromptID, stored.Timestamp)
	}

	err := m.insert(ctx, &stored)
	if err != nil && generated && isDuplicateKey(err) {
		stored.ID = stored.ID + "_" + uuid.NewString()[:8]
		err = m.insert(ctx, &stored)
	}
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (m *Manager) insert(ctx context.Context, run *history.Run) error {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO `+tableName+
			` (id, ts, prompt_id, prompt_text, dataset_id, dataset_name, metrics, metadata)`+
			` VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Timestamp, run.PromptID, run.PromptText,
		run.DatasetID, run.DatasetName, metrics, metadata)
	return err
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateKeyErrNo
}

const selectColumns = `id, ts, prompt_id, prompt_text, dataset_id, dataset_name, metrics, metadata`

// Get returns the run with the given ID, or history.ErrRunNotFound.
func (m *Manager) Get(ctx context.Context, runID string) (*history.Run, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM `+tableName+` WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListByPrompt returns up to limit runs for the prompt, newest first.
func (m *Manager) ListByPrompt(ctx context.Context, promptID string, limit int) ([]*history.Run, error) {
	return m.list(ctx,
		`SELECT `+selectColumns+` FROM `+tableName+` WHERE prompt_id = ? ORDER BY ts DESC`,
		limit, promptID)
}

// ListByDataset returns up to limit runs for the dataset, newest first.
func (m *Manager) ListByDataset(ctx context.Context, datasetID string, limit int) ([]*history.Run, error) {
	return m.list(ctx,
		`SELECT `+selectColumns+` FROM `+tableName+` WHERE dataset_id = ? ORDER BY ts DESC`,
		limit, datasetID)
}

// ListAll returns up to limit runs across the store, newest first.
func (m *Manager) ListAll(ctx context.Context, limit int) ([]*history.Run, error) {
	return m.list(ctx,
		`SELECT `+selectColumns+` FROM `+tableName+` ORDER BY ts DESC`,
		limit)
}

func (m *Manager) list(ctx context.Context, query string, limit int, args ...any) ([]*history.Run, error) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*history.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*history.Run, error) {
	var run history.Run
	var metrics, metadata []byte
	if err := row.Scan(&run.ID, &run.Timestamp, &run.PromptID, &run.PromptText,
		&run.DatasetID, &run.DatasetName, &metrics, &metadata); err != nil {
		return nil, err
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &run.Metrics); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &run.Metadata); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

// Stats summarizes the store with aggregate queries.
func (m *Manager) Stats(ctx context.Context) (history.Stats, error) {
	var s history.Stats
	row := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT prompt_id), COUNT(DISTINCT dataset_id) FROM `+tableName)
	if err := row.Scan(&s.TotalRuns, &s.UniquePrompts, &s.UniqueDatasets); err != nil {
		return history.Stats{}, err
	}
	if s.TotalRuns == 0 {
		return s, nil
	}

	var err error
	s.MostEvaluatedPrompt, err = m.topGroup(ctx, "prompt_id")
	if err != nil {
		return history.Stats{}, err
	}
	s.MostUsedDataset, err = m.topGroup(ctx, "dataset_id")
	if err != nil {
		return history.Stats{}, err
	}
	return s, nil
}

func (m *Manager) topGroup(ctx context.Context, column string) (string, error) {
	var value string
	row := m.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM `+tableName+
			` GROUP BY `+column+` ORDER BY COUNT(*) DESC, `+column+` ASC LIMIT 1`)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
