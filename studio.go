//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package prompteval ties the evaluation components together: a Studio wires
// a model function to the cache, the evaluators, and the history store, and
// exposes the common end-to-end flows.
package prompteval

import (
	"context"
	"errors"

	"trpc.group/trpc-go/prompteval-go/cache"
	"trpc.group/trpc-go/prompteval-go/consistency"
	"trpc.group/trpc-go/prompteval-go/dataset"
	"trpc.group/trpc-go/prompteval-go/history"
	"trpc.group/trpc-go/prompteval-go/internal/stats"
	"trpc.group/trpc-go/prompteval-go/log"
	"trpc.group/trpc-go/prompteval-go/metric"
	"trpc.group/trpc-go/prompteval-go/metric/judge"
	"trpc.group/trpc-go/prompteval-go/model"
	"trpc.group/trpc-go/prompteval-go/offline"
	"trpc.group/trpc-go/prompteval-go/optimizer"
	"trpc.group/trpc-go/prompteval-go/robustness"
)

// Option configures a Studio.
type Option func(*Studio)

// WithModelFunc sets the model-calling function every evaluation flows
// through. Required.
func WithModelFunc(fn model.Func) Option {
	return func(s *Studio) {
		s.modelFn = fn
	}
}

// WithModelInfo names the model and provider for cache keys and run metadata.
func WithModelInfo(modelName, provider string) Option {
	return func(s *Studio) {
		s.modelName = modelName
		s.provider = provider
	}
}

// WithCache enables response caching around the model function.
func WithCache(c *cache.Cache) Option {
	return func(s *Studio) {
		s.cache = c
	}
}

// WithHistory enables recording evaluation runs.
func WithHistory(m history.Manager) Option {
	return func(s *Studio) {
		s.hist = m
	}
}

// WithJudge enables LLM-as-judge scoring through the given generator.
func WithJudge(gen model.Generator, opt ...judge.Option) Option {
	return func(s *Studio) {
		s.judge = judge.New(gen, opt...)
	}
}

// WithRobustnessTester overrides the default tester, e.g. to inject a seeded
// random source.
func WithRobustnessTester(t *robustness.Tester) Option {
	return func(s *Studio) {
		s.tester = t
	}
}

// Studio is the top-level entry point for prompt evaluation.
type Studio struct {
	modelFn   model.Func
	modelName string
	provider  string
	cache     *cache.Cache
	hist      history.Manager
	judge     *judge.Judge
	tester    *robustness.Tester
	optim     *optimizer.Optimizer
}

// New creates a Studio. A model function is required; cache, history, and
// judge are optional.
func New(opt ...Option) (*Studio, error) {
	s := &Studio{
		tester: robustness.New(),
		optim:  optimizer.New(),
	}
	for _, o := range opt {
		o(s)
	}
	if s.modelFn == nil {
		return nil, errors.New("model function is required")
	}
	return s, nil
}

// ModelFunc returns the model function the Studio evaluates with. With a
// cache configured, responses are looked up before calling the model and
// stored after, keyed by prompt, model, provider, and temperature.
func (s *Studio) ModelFunc() model.Func {
	if s.cache == nil {
		return s.modelFn
	}
	return func(ctx context.Context, prompt string, temperature float64) (string, error) {
		if resp, ok := s.cache.Get(prompt, s.modelName, s.provider, temperature, nil); ok {
			return resp, nil
		}
		resp, err := s.modelFn(ctx, prompt, temperature)
		if err != nil {
			return "", err
		}
		s.cache.Set(prompt, s.modelName, s.provider, temperature, resp, nil)
		return resp, nil
	}
}

// Evaluate runs the prompts against the dataset through the (possibly cached)
// model function.
func (s *Studio) Evaluate(ctx context.Context, ds *dataset.Dataset, prompts []string) (*offline.Report, error) {
	return offline.Run(ctx, ds, prompts, s.ModelFunc())
}

// EvaluateAndRecord evaluates a single prompt and appends the outcome to the
// history store under the given prompt ID. It returns the offline report and
// the recorded run ID (empty when no history manager is configured).
func (s *Studio) EvaluateAndRecord(ctx context.Context, promptID, prompt string, ds *dataset.Dataset) (*offline.Report, string, error) {
	report, err := s.Evaluate(ctx, ds, []string{prompt})
	if err != nil {
		return nil, "", err
	}
	if s.hist == nil {
		return report, "", nil
	}

	runID, err := s.hist.Save(ctx, &history.Run{
		PromptID:    promptID,
		PromptText:  prompt,
		DatasetID:   ds.ID,
		DatasetName: ds.Name,
		Metrics:     map[string]float64{"accuracy": report.Prompts[0].Accuracy},
		Metadata:    map[string]any{"model": s.modelName, "provider": s.provider},
	})
	if err != nil {
		return nil, "", err
	}
	return report, runID, nil
}

// JudgeResponse scores a response with the configured LLM judge. Without a
// judge it returns a zero score with an error detail, matching the metric
// packages' degrade-instead-of-raise convention.
func (s *Studio) JudgeResponse(ctx context.Context, prompt, response, criteria string) metric.Result {
	if s.judge == nil {
		return metric.Result{Score: 0, Details: map[string]any{"error": "judge not configured"}}
	}
	return s.judge.Evaluate(ctx, prompt, response, criteria)
}

// Optimize generates and ranks improved candidates for the base prompt.
func (s *Studio) Optimize(ctx context.Context, basePrompt string, ds *dataset.Dataset, n int) (*optimizer.Result, error) {
	return s.optim.Optimize(ctx, basePrompt, ds, s.ModelFunc(), n)
}

// defaultMaxContextLength bounds the inputs the length robustness test
// inflates to, in approximate tokens.
const defaultMaxContextLength = 1000

// FullReport bundles one prompt's quality, stability, and robustness results.
type FullReport struct {
	Offline     *offline.Report               `json:"offline"`
	Consistency consistency.CheckResult       `json:"consistency"`
	Format      *robustness.FormatResult      `json:"format_robustness"`
	Length      *robustness.LengthResult      `json:"length_robustness"`
	Adversarial *robustness.AdversarialResult `json:"adversarial_robustness"`
	// Overall is the mean of the component scores above.
	Overall float64 `json:"overall_score"`
}

// Report runs the offline evaluation, a self-consistency check, and the
// format, length, and adversarial robustness tests for one prompt. Overall
// averages the five component scores.
func (s *Studio) Report(ctx context.Context, prompt string, ds *dataset.Dataset, samples int) (*FullReport, error) {
	modelFn := s.ModelFunc()

	off, err := offline.Run(ctx, ds, []string{prompt}, modelFn)
	if err != nil {
		return nil, err
	}
	if off.ItemErrors != nil {
		log.Warnf("report: some items failed during offline evaluation: %v", off.ItemErrors)
	}
	cons := consistency.Check(ctx, prompt, modelFn, samples, consistency.DefaultTemperature)

	format, err := s.tester.TestFormat(ctx, prompt, ds, modelFn, modelFn)
	if err != nil {
		return nil, err
	}
	length, err := s.tester.TestLength(ctx, prompt, ds, modelFn, defaultMaxContextLength)
	if err != nil {
		return nil, err
	}
	adversarial, err := s.tester.TestAdversarial(ctx, prompt, ds, modelFn, "medium")
	if err != nil {
		return nil, err
	}

	return &FullReport{
		Offline:     off,
		Consistency: cons,
		Format:      format,
		Length:      length,
		Adversarial: adversarial,
		Overall: stats.Mean([]float64{
			off.Prompts[0].Accuracy,
			cons.Score,
			format.Score,
			length.Score,
			adversarial.Score,
		}),
	}, nil
}
