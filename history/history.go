//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package history defines the append-only store of evaluation runs and the
// analytics (trend, regression, comparison) computed over it.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run ID does not exist in the store.
var ErrRunNotFound = errors.New("evaluation run not found")

// Run is a single recorded evaluation: one prompt against one dataset with
// the metric scores it produced.
type Run struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	PromptID    string             `json:"prompt_id"`
	PromptText  string             `json:"prompt_text"`
	DatasetID   string             `json:"dataset_id"`
	DatasetName string             `json:"dataset_name"`
	Metrics     map[string]float64 `json:"metrics"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// Stats summarizes a store's contents.
type Stats struct {
	TotalRuns           int    `json:"total_runs"`
	UniquePrompts       int    `json:"unique_prompts"`
	UniqueDatasets      int    `json:"unique_datasets"`
	MostEvaluatedPrompt string `json:"most_evaluated_prompt,omitempty"`
	MostUsedDataset     string `json:"most_used_dataset,omitempty"`
}

// Manager stores and retrieves evaluation runs. Implementations must treat
// the store as append-only and return runs most recent first from the List
// methods. A limit of 0 means no limit.
type Manager interface {
	// Save persists the run. A missing ID or timestamp is assigned; the
	// final run ID is returned. PromptID and DatasetID are required.
	Save(ctx context.Context, run *Run) (string, error)
	// Get returns the run with the given ID, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (*Run, error)
	// ListByPrompt returns up to limit runs for the prompt, newest first.
	ListByPrompt(ctx context.Context, promptID string, limit int) ([]*Run, error)
	// ListByDataset returns up to limit runs for the dataset, newest first.
	ListByDataset(ctx context.Context, datasetID string, limit int) ([]*Run, error)
	// ListAll returns up to limit runs across the store, newest first.
	ListAll(ctx context.Context, limit int) ([]*Run, error)
	// Stats summarizes the store.
	Stats(ctx context.Context) (Stats, error)
}

// runIDTimeLayout is the timestamp portion of generated run IDs.
const runIDTimeLayout = "20060102_150405"

// RunID builds the canonical run ID for a prompt and timestamp.
func RunID(promptID string, ts time.Time) string {
	return promptID + "_" + ts.Format(runIDTimeLayout)
}
