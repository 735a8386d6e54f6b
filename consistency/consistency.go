//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package consistency measures agreement among repeated samples from one
// prompt (self-consistency) and between the dominant answers of two prompts
// (mutual consistency).
package consistency

import (
	"context"
	"strings"

	"trpc.group/trpc-go/prompteval-go/log"
	"trpc.group/trpc-go/prompteval-go/model"
)

const (
	// DefaultSamples is the sample count used when the caller passes 0.
	DefaultSamples = 5
	// DefaultTemperature is the sampling temperature used when the caller
	// passes a negative value.
	DefaultTemperature = 0.7
)

// SelfConsistency returns the share of the modal (most common) response among
// the samples after trimming and lowercasing. 1.0 means every sample agreed;
// an empty slice yields 0.
func SelfConsistency(responses []string) float64 {
	if len(responses) == 0 {
		return 0
	}
	_, count := modalResponse(responses)
	return float64(count) / float64(len(responses))
}

// MutualConsistency reports binary agreement between two sample groups: 1.0
// when their modal answers match, 0.0 otherwise. No partial credit.
func MutualConsistency(groupA, groupB []string) float64 {
	if len(groupA) == 0 || len(groupB) == 0 {
		return 0
	}
	topA, _ := modalResponse(groupA)
	topB, _ := modalResponse(groupB)
	if topA == topB {
		return 1.0
	}
	return 0.0
}

// modalResponse returns the normalized response with the highest count.
// Ties resolve to the earliest sample, keeping the result deterministic.
func modalResponse(responses []string) (string, int) {
	counts := make(map[string]int, len(responses))
	var best string
	bestCount := 0
	for _, r := range responses {
		n := strings.ToLower(strings.TrimSpace(r))
		counts[n]++
		if counts[n] > bestCount {
			best = n
			bestCount = counts[n]
		}
	}
	return best, bestCount
}

// CheckResult holds the outcome of a self-consistency check.
type CheckResult struct {
	Score   float64  `json:"score"`
	Samples []string `json:"samples"`
	N       int      `json:"n_samples"`
}

// Check samples the prompt n times at the given temperature and scores
// self-consistency. A failed sample becomes an empty string and still counts
// toward the denominator, so a systematic failure mode lowers the score
// instead of aborting the check.
func Check(ctx context.Context, prompt string, modelFn model.Func, n int, temperature float64) CheckResult {
	if n <= 0 {
		n = DefaultSamples
	}
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	samples := make([]string, 0, n)
	for i := 0; i < n; i++ {
		resp, err := modelFn(ctx, prompt, temperature)
		if err != nil {
			log.Debugf("consistency: sample %d failed: %v", i, err)
			resp = ""
		}
		samples = append(samples, resp)
	}
	return CheckResult{
		Score:   SelfConsistency(samples),
		Samples: samples,
		N:       n,
	}
}

// MutualCheckResult holds the outcome of a mutual-consistency check between
// two prompts.
type MutualCheckResult struct {
	Score   float64     `json:"score"`
	PromptA CheckResult `json:"prompt_a"`
	PromptB CheckResult `json:"prompt_b"`
}

// MutualCheck samples both prompts and reports whether their dominant answers
// agree, alongside each prompt's own self-consistency.
func MutualCheck(ctx context.Context, promptA, promptB string, modelFn model.Func, n int, temperature float64) MutualCheckResult {
	a := Check(ctx, promptA, modelFn, n, temperature)
	b := Check(ctx, promptB, modelFn, n, temperature)
	return MutualCheckResult{
		Score:   MutualConsistency(a.Samples, b.Samples),
		PromptA: a,
		PromptB: b,
	}
}
