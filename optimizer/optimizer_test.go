//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package optimizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/prompteval-go/dataset"
)

func TestOptimizeRanksCandidates(t *testing.T) {
	ds := &dataset.Dataset{Items: []dataset.Item{
		{Input: "q1", Output: "y"},
		{Input: "q2", Output: "y"},
	}}
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		switch {
		case strings.Contains(prompt, "expert prompt engineer"):
			return "good candidate\n---\nbad candidate", nil
		case strings.Contains(prompt, "good candidate"):
			return "y", nil
		default:
			return "n", nil
		}
	}

	r, err := New().Optimize(context.Background(), "base prompt", ds, modelFn, 2)
	require.NoError(t, err)
	assert.Equal(t, "good candidate", r.BestPrompt)
	assert.InDelta(t, 1.0, r.BestScore, 1e-9)
	require.Len(t, r.Candidates, 3)
	assert.InDelta(t, 1.0, r.Improvement, 1e-9)

	// Ranked descending.
	for i := 1; i < len(r.Candidates); i++ {
		assert.GreaterOrEqual(t, r.Candidates[i-1].Score, r.Candidates[i].Score)
	}
}

func TestOptimizeIncludesBasePrompt(t *testing.T) {
	ds := &dataset.Dataset{Items: []dataset.Item{{Input: "x", Output: "y"}}}
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if strings.Contains(prompt, "expert prompt engineer") {
			return "candidate a\n---\ncandidate b", nil
		}
		return "y", nil
	}

	r, err := New().Optimize(context.Background(), "base", ds, modelFn, 2)
	require.NoError(t, err)
	prompts := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		prompts = append(prompts, c.Prompt)
	}
	assert.Contains(t, prompts, "base")
}

func TestOptimizeGenerationFailureFallsBack(t *testing.T) {
	ds := &dataset.Dataset{Items: []dataset.Item{{Input: "x", Output: "y"}}}
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if strings.Contains(prompt, "expert prompt engineer") {
			return "", errors.New("unavailable")
		}
		return "y", nil
	}

	r, err := New().Optimize(context.Background(), "base", ds, modelFn, 3)
	require.NoError(t, err)
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, "base", r.BestPrompt)
	assert.Zero(t, r.Improvement)
}
