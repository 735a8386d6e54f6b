//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package optimizer generates improved prompt candidates through an LLM
// rewrite step, scores them against a labeled dataset, and selects the best.
package optimizer

import (
	"context"
	"fmt"
	"sort"

	"trpc.group/trpc-go/prompteval-go/dataset"
	"trpc.group/trpc-go/prompteval-go/model"
	"trpc.group/trpc-go/prompteval-go/offline"
	"trpc.group/trpc-go/prompteval-go/robustness"
)

// DefaultCandidates is the candidate count used when the caller passes 0.
const DefaultCandidates = 5

// Candidate is one scored prompt candidate.
type Candidate struct {
	Prompt  string               `json:"prompt"`
	Score   float64              `json:"score"`
	Metrics offline.PromptResult `json:"metrics"`
}

// Result is the outcome of an optimization run. Candidates are sorted by
// score, best first, and always include the base prompt.
type Result struct {
	BestPrompt string      `json:"best_prompt"`
	BestScore  float64     `json:"best_score"`
	Candidates []Candidate `json:"candidates"`
	// Improvement is the accuracy gap between the best and worst candidate.
	Improvement float64 `json:"improvement"`
}

// Optimizer ranks generated prompt candidates by dataset accuracy. Variation
// generation is delegated to the robustness tester's meta-prompt mechanism.
type Optimizer struct {
	tester *robustness.Tester
}

// New creates an Optimizer.
func New() *Optimizer {
	return &Optimizer{tester: robustness.New()}
}

// Optimize generates n improved candidates for the base prompt, evaluates
// every candidate (base prompt included) against the dataset, and returns
// them ranked by accuracy.
func (o *Optimizer) Optimize(ctx context.Context, basePrompt string, ds *dataset.Dataset, modelFn model.Func, n int) (*Result, error) {
	if n <= 0 {
		n = DefaultCandidates
	}

	// The rewrite step uses an improvement meta-prompt instead of the plain
	// rephrasing one.
	improvementFn := func(ctx context.Context, _ string, temperature float64) (string, error) {
		metaPrompt := fmt.Sprintf(
			"You are an expert prompt engineer. Generate %d improved versions of the following prompt. "+
				"Focus on clarity, robustness, and following instructions. "+
				"Output ONLY the improved prompts, separated by '---'.\n\nOriginal Prompt:\n%s",
			n, basePrompt)
		return modelFn(ctx, metaPrompt, temperature)
	}
	candidates := o.tester.GenerateVariations(ctx, basePrompt, improvementFn, n)

	report, err := offline.Run(ctx, ds, candidates, modelFn)
	if err != nil {
		return nil, err
	}

	ranked := make([]Candidate, 0, len(candidates))
	for i, prompt := range candidates {
		ranked = append(ranked, Candidate{
			Prompt:  prompt,
			Score:   report.Prompts[i].Accuracy,
			Metrics: report.Prompts[i],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	result := &Result{
		BestPrompt: ranked[0].Prompt,
		BestScore:  ranked[0].Score,
		Candidates: ranked,
	}
	if len(ranked) > 1 {
		result.Improvement = ranked[0].Score - ranked[len(ranked)-1].Score
	}
	return result, nil
}
