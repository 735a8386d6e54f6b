//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package robustness perturbs prompts and dataset inputs (format rewrites,
// length inflation, character-level noise) and measures output-quality
// degradation against an unperturbed baseline.
package robustness

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"trpc.group/trpc-go/prompteval-go/dataset"
	"trpc.group/trpc-go/prompteval-go/log"
	"trpc.group/trpc-go/prompteval-go/model"
	"trpc.group/trpc-go/prompteval-go/offline"
)

// DefaultVariations is the variation count used when the caller passes 0.
const DefaultVariations = 3

// NoiseLevels maps adversarial severity names to the fraction of characters
// perturbed.
var NoiseLevels = map[string]float64{
	"light":  0.05,
	"medium": 0.15,
	"heavy":  0.30,
}

// lengthMultipliers are the input inflation factors for the length test.
var lengthMultipliers = []int{1, 2, 4, 8}

// Option configures a Tester.
type Option func(*Tester)

// WithRand injects the random source used for noise injection. Without it the
// tester seeds from the clock and repeated runs are non-deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(t *Tester) {
		t.rng = rng
	}
}

// Tester runs robustness tests. Each test method is stateless across calls
// except for the shared random source.
type Tester struct {
	rng *rand.Rand
}

// New creates a Tester.
func New(opt ...Option) *Tester {
	t := &Tester{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for _, o := range opt {
		o(t)
	}
	return t
}

// GenerateVariations asks the model to rewrite the prompt n different ways and
// splits the answer on the "---" delimiter. The original prompt is always the
// first entry so downstream deltas have a stable baseline, and the result is
// truncated to n+1 entries. Any generation failure falls back to the original
// prompt alone.
func (t *Tester) GenerateVariations(ctx context.Context, prompt string, modelFn model.Func, n int) []string {
	if n <= 0 {
		n = DefaultVariations
	}
	metaPrompt := fmt.Sprintf(
		"You are a prompt engineer. Rewrite the following prompt in %d different ways, "+
			"keeping the core meaning but changing the wording, structure, or tone. "+
			"Output ONLY the rewritten prompts, separated by '---'.\n\nOriginal Prompt:\n%s",
		n, prompt)

	response, err := modelFn(ctx, metaPrompt, model.DefaultTemperature)
	if err != nil {
		log.Warnf("robustness: variation generation failed: %v", err)
		return []string{prompt}
	}

	variations := make([]string, 0, n+1)
	hasOriginal := false
	for _, v := range strings.Split(response, "---") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if v == prompt {
			hasOriginal = true
		}
		variations = append(variations, v)
	}
	if len(variations) == 0 {
		return []string{prompt}
	}
	if !hasOriginal {
		variations = append([]string{prompt}, variations...)
	}
	if len(variations) > n+1 {
		variations = variations[:n+1]
	}
	return variations
}

// FormatResult is the outcome of a format-robustness test.
type FormatResult struct {
	Variations []string  `json:"variations"`
	Accuracies []float64 `json:"accuracies"`
	Deltas     []float64 `json:"deltas"`
	// Score is 1 minus the largest absolute accuracy swing: a large swing in
	// either direction depresses it.
	Score float64 `json:"robustness_score"`
	// PerformanceDelta is the worst (most negative) observed drop.
	PerformanceDelta float64 `json:"performance_delta"`
}

// TestFormat evaluates the prompt and its format variations against the
// dataset and scores stability relative to the original (first) variation.
func (t *Tester) TestFormat(ctx context.Context, prompt string, ds *dataset.Dataset, modelFn, variationFn model.Func) (*FormatResult, error) {
	variations := t.GenerateVariations(ctx, prompt, variationFn, DefaultVariations)
	report, err := offline.Run(ctx, ds, variations, modelFn)
	if err != nil {
		return nil, err
	}

	baseline := report.Prompts[0].Accuracy
	accuracies := make([]float64, 0, len(report.Prompts))
	deltas := make([]float64, 0, len(report.Prompts))
	maxAbs := 0.0
	minDelta := 0.0
	for _, p := range report.Prompts {
		accuracies = append(accuracies, p.Accuracy)
		delta := p.Accuracy - baseline
		deltas = append(deltas, delta)
		if abs := math.Abs(delta); abs > maxAbs {
			maxAbs = abs
		}
		if delta < minDelta {
			minDelta = delta
		}
	}

	return &FormatResult{
		Variations:       variations,
		Accuracies:       accuracies,
		Deltas:           deltas,
		Score:            1 - maxAbs,
		PerformanceDelta: minDelta,
	}, nil
}

// LengthStep reports accuracy at one inflation multiplier.
type LengthStep struct {
	Multiplier   int     `json:"multiplier"`
	ApproxTokens int     `json:"approx_tokens"`
	Accuracy     float64 `json:"accuracy"`
}

// LengthResult is the outcome of a length-robustness test. Score is the ratio
// of the highest-multiplier accuracy to the baseline accuracy; it is not
// clamped and may exceed 1, or be 0 when the baseline is 0.
type LengthResult struct {
	Steps []LengthStep `json:"steps"`
	Score float64      `json:"robustness_score"`
	// DegradationPoint is the approximate token count of the first multiplier
	// where accuracy fell below 80% of baseline; nil when none did.
	DegradationPoint *int `json:"degradation_point"`
}

// TestLength inflates every dataset input by repeating it 1x, 2x, 4x and 8x
// (newline-joined), truncated to maxContextLength*4 characters on the rough
// four-characters-per-token heuristic, and runs the single base prompt against
// each inflated dataset.
func (t *Tester) TestLength(ctx context.Context, prompt string, ds *dataset.Dataset, modelFn model.Func, maxContextLength int) (*LengthResult, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	maxChars := maxContextLength * 4

	result := &LengthResult{Steps: make([]LengthStep, 0, len(lengthMultipliers))}
	baseline := 0.0
	for i, mult := range lengthMultipliers {
		inflated := inflateDataset(ds, mult, maxChars)
		report, err := offline.Run(ctx, inflated, []string{prompt}, modelFn)
		if err != nil {
			return nil, err
		}
		accuracy := report.Prompts[0].Accuracy
		if i == 0 {
			baseline = accuracy
		}

		var totalChars int
		for _, item := range inflated.Items {
			totalChars += len(item.Input)
		}
		approxTokens := totalChars / 4 / len(inflated.Items)
		result.Steps = append(result.Steps, LengthStep{
			Multiplier:   mult,
			ApproxTokens: approxTokens,
			Accuracy:     accuracy,
		})

		if result.DegradationPoint == nil && accuracy < 0.8*baseline {
			tokens := approxTokens
			result.DegradationPoint = &tokens
		}
	}

	if baseline > 0 {
		result.Score = result.Steps[len(result.Steps)-1].Accuracy / baseline
	}
	return result, nil
}

// inflateDataset repeats every input mult times, newline-joined, truncated to
// maxChars characters.
func inflateDataset(ds *dataset.Dataset, mult, maxChars int) *dataset.Dataset {
	items := make([]dataset.Item, 0, len(ds.Items))
	for _, item := range ds.Items {
		parts := make([]string, mult)
		for i := range parts {
			parts[i] = item.Input
		}
		input := strings.Join(parts, "\n")
		if runes := []rune(input); len(runes) > maxChars {
			input = string(runes[:maxChars])
		}
		items = append(items, dataset.Item{Input: input, Output: item.Output})
	}
	return &dataset.Dataset{ID: ds.ID, Name: ds.Name, Items: items}
}

// AdversarialResult is the outcome of an adversarial-noise test.
type AdversarialResult struct {
	Level         string  `json:"level"`
	NoiseFraction float64 `json:"noise_fraction"`
	CleanScore    float64 `json:"clean_score"`
	NoisyScore    float64 `json:"noisy_score"`
	// Score is noisy over clean accuracy, 0 when the clean score is 0.
	Score float64 `json:"robustness_score"`
	// ImpactPercent is the relative accuracy drop, as a percentage.
	ImpactPercent float64 `json:"impact_percent"`
}

// TestAdversarial injects character-level noise (swap-adjacent, random-letter
// replace, or delete) into every dataset input at the severity implied by
// level ("light", "medium" or "heavy") and compares noisy accuracy against
// clean accuracy.
func (t *Tester) TestAdversarial(ctx context.Context, prompt string, ds *dataset.Dataset, modelFn model.Func, level string) (*AdversarialResult, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	fraction, ok := NoiseLevels[level]
	if !ok {
		return nil, fmt.Errorf("unknown noise level %q", level)
	}

	cleanReport, err := offline.Run(ctx, ds, []string{prompt}, modelFn)
	if err != nil {
		return nil, err
	}

	noisyItems := make([]dataset.Item, 0, len(ds.Items))
	for _, item := range ds.Items {
		noisyItems = append(noisyItems, dataset.Item{
			Input:  t.injectNoise(item.Input, fraction),
			Output: item.Output,
		})
	}
	noisyDS := &dataset.Dataset{ID: ds.ID, Name: ds.Name, Items: noisyItems}
	noisyReport, err := offline.Run(ctx, noisyDS, []string{prompt}, modelFn)
	if err != nil {
		return nil, err
	}

	clean := cleanReport.Prompts[0].Accuracy
	noisy := noisyReport.Prompts[0].Accuracy
	result := &AdversarialResult{
		Level:         level,
		NoiseFraction: fraction,
		CleanScore:    clean,
		NoisyScore:    noisy,
	}
	if clean > 0 {
		result.Score = noisy / clean
		result.ImpactPercent = (clean - noisy) / clean * 100
	}
	return result, nil
}

const noiseLetters = "abcdefghijklmnopqrstuvwxyz"

// injectNoise corrupts roughly fraction of the characters, choosing per
// character among swapping with its right neighbor, replacing with a random
// letter, or deleting it.
func (t *Tester) injectNoise(s string, fraction float64) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		if t.rng.Float64() >= fraction {
			out = append(out, runes[i])
			continue
		}
		switch t.rng.Intn(3) {
		case 0: // swap with the next character
			if i+1 < len(runes) {
				out = append(out, runes[i+1], runes[i])
				i++
			} else {
				out = append(out, runes[i])
			}
		case 1: // replace with a random letter
			out = append(out, rune(noiseLetters[t.rng.Intn(len(noiseLetters))]))
		case 2: // delete
		}
	}
	return string(out)
}
