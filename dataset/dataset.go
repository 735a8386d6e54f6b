//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package dataset provides the labeled input/output pairs consumed by evaluators.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Item is a single ground-truth pair: the input handed to the model and the
// expected output.
type Item struct {
	// Input is the raw input text substituted into prompt templates.
	Input string `json:"input"`
	// Output is the expected model answer for Input.
	Output string `json:"output"`
}

// Dataset is an ordered collection of items. Inputs are not required to be
// unique; order is preserved across load and save.
type Dataset struct {
	// ID uniquely identifies the dataset.
	ID string `json:"id,omitempty"`
	// Name is a human readable dataset name.
	Name string `json:"name,omitempty"`
	// Items holds the ground-truth pairs.
	Items []Item `json:"items"`
}

// Validate reports whether the dataset satisfies the evaluator preconditions.
func (d *Dataset) Validate() error {
	if d == nil {
		return errors.New("dataset is nil")
	}
	if len(d.Items) == 0 {
		return errors.New("dataset has no items")
	}
	return nil
}

// Load reads a dataset from a JSON file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()
	var d Dataset
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return &d, nil
}

// Save writes the dataset to a JSON file, creating parent directories as
// needed. The write is atomic: data is written to a temporary file and renamed.
func Save(d *Dataset, path string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
