//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package prompteval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/prompteval-go/cache"
	"trpc.group/trpc-go/prompteval-go/dataset"
	"trpc.group/trpc-go/prompteval-go/history/inmemory"
	"trpc.group/trpc-go/prompteval-go/model"
)

func qaDataset() *dataset.Dataset {
	return &dataset.Dataset{
		ID:   "qa-1",
		Name: "qa",
		Items: []dataset.Item{
			{Input: "q1", Output: "y"},
			{Input: "q2", Output: "y"},
		},
	}
}

func TestNewRequiresModelFunc(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestModelFuncUsesCache(t *testing.T) {
	calls := 0
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		calls++
		return "answer", nil
	}
	c, err := cache.New(cache.WithDir(t.TempDir()))
	require.NoError(t, err)

	s, err := New(
		WithModelFunc(modelFn),
		WithModelInfo("gpt-4", "openai"),
		WithCache(c),
	)
	require.NoError(t, err)

	fn := s.ModelFunc()
	for i := 0; i < 3; i++ {
		resp, err := fn(context.Background(), "same prompt", 0.7)
		require.NoError(t, err)
		assert.Equal(t, "answer", resp)
	}
	assert.Equal(t, 1, calls, "repeated identical calls must hit the cache")
	assert.Equal(t, 2, c.Stats().Hits)
}

func TestEvaluateAndRecord(t *testing.T) {
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if strings.Contains(prompt, "q1") {
			return "y", nil
		}
		return "n", nil
	}
	hist := inmemory.New()
	s, err := New(WithModelFunc(modelFn), WithHistory(hist), WithModelInfo("m", "p"))
	require.NoError(t, err)

	report, runID, err := s.EvaluateAndRecord(context.Background(), "greeter-v1", "answer {{input}}", qaDataset())
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	assert.InDelta(t, 0.5, report.Prompts[0].Accuracy, 1e-9)

	run, err := hist.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "greeter-v1", run.PromptID)
	assert.Equal(t, "qa-1", run.DatasetID)
	assert.InDelta(t, 0.5, run.Metrics["accuracy"], 1e-9)
	assert.Equal(t, "m", run.Metadata["model"])
}

func TestEvaluateAndRecordWithoutHistory(t *testing.T) {
	s, err := New(WithModelFunc(model.Func(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		return "y", nil
	})))
	require.NoError(t, err)

	report, runID, err := s.EvaluateAndRecord(context.Background(), "p", "prompt", qaDataset())
	require.NoError(t, err)
	assert.Empty(t, runID)
	assert.InDelta(t, 1.0, report.Prompts[0].Accuracy, 1e-9)
}

func TestJudgeResponse(t *testing.T) {
	gen := model.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"score": 9, "reasoning": "solid"}`, nil
	})
	s, err := New(
		WithModelFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
			return "", nil
		}),
		WithJudge(gen),
	)
	require.NoError(t, err)

	r := s.JudgeResponse(context.Background(), "p", "resp", "general")
	assert.InDelta(t, 0.9, r.Score, 1e-9)
}

func TestJudgeResponseUnconfigured(t *testing.T) {
	s, err := New(WithModelFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		return "", nil
	}))
	require.NoError(t, err)

	r := s.JudgeResponse(context.Background(), "p", "resp", "general")
	assert.Zero(t, r.Score)
	assert.Contains(t, r.Details, "error")
}

func TestReport(t *testing.T) {
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if strings.Contains(prompt, "prompt engineer") {
			return "variant one\n---\nvariant two", nil
		}
		return "y", nil
	}
	s, err := New(WithModelFunc(modelFn))
	require.NoError(t, err)

	r, err := s.Report(context.Background(), "answer {{input}}", qaDataset(), 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.Offline.Prompts[0].Accuracy, 1e-9)
	assert.InDelta(t, 1.0, r.Consistency.Score, 1e-9)
	assert.InDelta(t, 1.0, r.Format.Score, 1e-9)
	assert.InDelta(t, 1.0, r.Length.Score, 1e-9)
	assert.Nil(t, r.Length.DegradationPoint)
	assert.InDelta(t, 1.0, r.Adversarial.Score, 1e-9)
	assert.InDelta(t, 1.0, r.Overall, 1e-9)
}

func TestReportAggregatesComponentScores(t *testing.T) {
	// An always-wrong model pins each component: accuracy, length, and
	// adversarial score 0, while consistency (identical samples) and format
	// (zero delta across variations) score 1.
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		return "n", nil
	}
	s, err := New(WithModelFunc(modelFn))
	require.NoError(t, err)

	r, err := s.Report(context.Background(), "answer {{input}}", qaDataset(), 3)
	require.NoError(t, err)
	assert.Zero(t, r.Offline.Prompts[0].Accuracy)
	assert.InDelta(t, 1.0, r.Consistency.Score, 1e-9)
	assert.InDelta(t, 1.0, r.Format.Score, 1e-9)
	assert.Zero(t, r.Length.Score)
	assert.Zero(t, r.Adversarial.Score)
	assert.InDelta(t, 0.4, r.Overall, 1e-9)
}

func TestOptimize(t *testing.T) {
	modelFn := func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if strings.Contains(prompt, "expert prompt engineer") {
			return "better prompt", nil
		}
		return "y", nil
	}
	s, err := New(WithModelFunc(modelFn))
	require.NoError(t, err)

	r, err := s.Optimize(context.Background(), "base", qaDataset(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.BestScore, 1e-9)
	assert.NotEmpty(t, r.Candidates)
}

func TestEvaluateValidatesInput(t *testing.T) {
	s, err := New(WithModelFunc(func(ctx context.Context, prompt string, temperature float64) (string, error) {
		return "", nil
	}))
	require.NoError(t, err)

	_, err = s.Evaluate(context.Background(), &dataset.Dataset{}, []string{"p"})
	assert.Error(t, err)
}
