//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package offline evaluates candidate prompts against a labeled dataset
// through an injected model function, producing per-prompt accuracy and
// cross-prompt sensitivity statistics.
package offline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"trpc.group/trpc-go/prompteval-go/dataset"
	"trpc.group/trpc-go/prompteval-go/internal/stats"
	"trpc.group/trpc-go/prompteval-go/log"
	"trpc.group/trpc-go/prompteval-go/model"
)

// inputPlaceholder marks where dataset inputs are substituted into a prompt
// template. Templates without it get the input appended instead.
const inputPlaceholder = "{{input}}"

// PromptResult holds the evaluation outcome for one prompt template.
type PromptResult struct {
	Template    string   `json:"template"`
	Accuracy    float64  `json:"accuracy"`
	Predictions []string `json:"predictions"`
	GroundTruth []string `json:"ground_truth"`
}

// Sensitivity quantifies how much accuracy depends on prompt wording.
type Sensitivity struct {
	Spread float64 `json:"spread"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Report is the result of evaluating a set of prompts against one dataset.
// Prompts keeps the input prompt order. ItemErrors aggregates per-item model
// failures that were folded into empty predictions; it never aborts a run.
type Report struct {
	Prompts     []PromptResult `json:"prompts"`
	Sensitivity Sensitivity    `json:"sensitivity_analysis"`
	ItemErrors  error          `json:"-"`
}

// EvaluateAccuracy returns the fraction of predictions that exactly match the
// ground truth after trimming and lowercasing. A length mismatch is a caller
// error; empty input yields 0.
func EvaluateAccuracy(predictions, groundTruth []string) (float64, error) {
	if len(predictions) == 0 || len(groundTruth) == 0 {
		return 0, nil
	}
	if len(predictions) != len(groundTruth) {
		return 0, errors.New("predictions and ground truth must have the same length")
	}
	correct := 0
	for i, pred := range predictions {
		if normalizeAnswer(pred) == normalizeAnswer(groundTruth[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(predictions)), nil
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EvaluateSensitivity summarizes accuracy scores across prompt variants. A
// single score yields zero spread and deviation.
func EvaluateSensitivity(scores []float64) Sensitivity {
	if len(scores) == 0 {
		return Sensitivity{}
	}
	return Sensitivity{
		Spread: stats.Spread(scores),
		Std:    stats.SampleStdDev(scores),
		Min:    stats.Min(scores),
		Max:    stats.Max(scores),
		Mean:   stats.Mean(scores),
		Median: stats.Median(scores),
	}
}

// RenderPrompt substitutes the dataset input into a template, appending it
// when the template carries no placeholder.
func RenderPrompt(template, input string) string {
	if strings.Contains(template, inputPlaceholder) {
		return strings.ReplaceAll(template, inputPlaceholder, input)
	}
	return fmt.Sprintf("%s\n\nInput: %s", template, input)
}

// Run evaluates every prompt template against the dataset. A failing model
// call is folded into an empty prediction and recorded in Report.ItemErrors;
// a single item's failure never aborts the run.
func Run(ctx context.Context, ds *dataset.Dataset, prompts []string, modelFn model.Func) (*Report, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, errors.New("no prompts to evaluate")
	}
	if modelFn == nil {
		return nil, errors.New("model function is nil")
	}

	report := &Report{Prompts: make([]PromptResult, 0, len(prompts))}
	accuracies := make([]float64, 0, len(prompts))
	var itemErrs *multierror.Error

	for promptIdx, template := range prompts {
		predictions := make([]string, 0, len(ds.Items))
		groundTruth := make([]string, 0, len(ds.Items))

		for itemIdx, item := range ds.Items {
			fullPrompt := RenderPrompt(template, item.Input)
			response, err := modelFn(ctx, fullPrompt, model.DefaultTemperature)
			if err != nil {
				log.Debugf("offline: prompt %d item %d model call failed: %v", promptIdx, itemIdx, err)
				itemErrs = multierror.Append(itemErrs,
					fmt.Errorf("prompt %d item %d: %w", promptIdx, itemIdx, err))
				response = ""
			}
			predictions = append(predictions, response)
			groundTruth = append(groundTruth, item.Output)
		}

		accuracy, err := EvaluateAccuracy(predictions, groundTruth)
		if err != nil {
			return nil, err
		}
		accuracies = append(accuracies, accuracy)
		report.Prompts = append(report.Prompts, PromptResult{
			Template:    template,
			Accuracy:    accuracy,
			Predictions: predictions,
			GroundTruth: groundTruth,
		})
	}

	report.Sensitivity = EvaluateSensitivity(accuracies)
	report.ItemErrors = itemErrs.ErrorOrNil()
	return report, nil
}
