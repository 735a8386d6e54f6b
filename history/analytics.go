//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package history

import (
	"context"
	"time"

	"trpc.group/trpc-go/prompteval-go/internal/stats"
)

const (
	// DefaultRegressionThreshold flags drops above 5%.
	DefaultRegressionThreshold = 0.05
	// DefaultRegressionWindow compares the newest 5 runs against the 5 before.
	DefaultRegressionWindow = 5
	// trendBand is the relative change below which a trend counts as stable.
	trendBand = 0.05
)

// RegressionReport is the outcome of a regression check on one metric.
type RegressionReport struct {
	Detected        bool    `json:"regression_detected"`
	Reason          string  `json:"reason,omitempty"`
	Metric          string  `json:"metric,omitempty"`
	RecentAverage   float64 `json:"recent_average"`
	BaselineAverage float64 `json:"baseline_average"`
	DropPercentage  float64 `json:"drop_percentage"`
	Threshold       float64 `json:"threshold"`
	RecentRuns      int     `json:"recent_runs"`
	BaselineRuns    int     `json:"baseline_runs"`
	// Severity is "high" when the drop exceeds twice the threshold, "medium"
	// when a regression is flagged, "none" otherwise.
	Severity string `json:"severity"`
}

// DetectRegression compares the mean of a metric over the newest window runs
// against the mean over the window before it. Fewer than 2 runs carrying the
// metric reports insufficient history rather than an error.
func DetectRegression(ctx context.Context, m Manager, promptID, metricName string, threshold float64, window int) (*RegressionReport, error) {
	if threshold <= 0 {
		threshold = DefaultRegressionThreshold
	}
	if window <= 0 {
		window = DefaultRegressionWindow
	}

	runs, err := m.ListByPrompt(ctx, promptID, window*2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return &RegressionReport{Reason: "insufficient history", Severity: "none"}, nil
	}

	// Newest first, matching ListByPrompt order.
	values := metricValues(runs, metricName)
	if len(values) < 2 {
		return &RegressionReport{
			Reason:   "metric not found in history",
			Metric:   metricName,
			Severity: "none",
		}, nil
	}

	recent := values
	var baseline []float64
	if len(values) > window {
		recent = values[:window]
		baseline = values[window:]
	}
	if len(baseline) == 0 {
		baseline = values
	}

	recentAvg := stats.Mean(recent)
	baselineAvg := stats.Mean(baseline)
	var dropPct float64
	if baselineAvg > 0 {
		dropPct = (baselineAvg - recentAvg) / baselineAvg
	}

	detected := dropPct > threshold
	severity := "none"
	switch {
	case dropPct > 2*threshold:
		severity = "high"
	case detected:
		severity = "medium"
	}

	return &RegressionReport{
		Detected:        detected,
		Metric:          metricName,
		RecentAverage:   recentAvg,
		BaselineAverage: baselineAvg,
		DropPercentage:  dropPct,
		Threshold:       threshold,
		RecentRuns:      len(recent),
		BaselineRuns:    len(baseline),
		Severity:        severity,
	}, nil
}

// Trend is a chronological series of one metric's values with a coarse
// direction classification.
type Trend struct {
	Metric     string      `json:"metric"`
	DataPoints int         `json:"data_points"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
	Values     []float64   `json:"values,omitempty"`
	Current    float64     `json:"current"`
	Average    float64     `json:"average"`
	Min        float64     `json:"min"`
	Max        float64     `json:"max"`
	Std        float64     `json:"std"`
	// Direction is "improving", "declining", "stable", "insufficient_data"
	// or "no_data".
	Direction string `json:"trend"`
}

// MetricTrend returns the chronological series of a metric for a prompt and
// classifies its direction by comparing the newer half's mean against the
// older half's, with a 5% relative-change band counting as stable.
func MetricTrend(ctx context.Context, m Manager, promptID, metricName string, limit int) (*Trend, error) {
	runs, err := m.ListByPrompt(ctx, promptID, limit)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	var timestamps []time.Time
	var values []float64
	for i := len(runs) - 1; i >= 0; i-- {
		if v, ok := runs[i].Metrics[metricName]; ok {
			timestamps = append(timestamps, runs[i].Timestamp)
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return &Trend{Metric: metricName, Direction: "no_data"}, nil
	}

	direction := "insufficient_data"
	if len(values) >= 2 {
		olderAvg := stats.Mean(values[:len(values)/2])
		recentAvg := stats.Mean(values[len(values)/2:])
		switch {
		case recentAvg > olderAvg*(1+trendBand):
			direction = "improving"
		case recentAvg < olderAvg*(1-trendBand):
			direction = "declining"
		default:
			direction = "stable"
		}
	}

	return &Trend{
		Metric:     metricName,
		DataPoints: len(values),
		Timestamps: timestamps,
		Values:     values,
		Current:    values[len(values)-1],
		Average:    stats.Mean(values),
		Min:        stats.Min(values),
		Max:        stats.Max(values),
		Std:        stats.SampleStdDev(values),
		Direction:  direction,
	}, nil
}

// PromptSummary holds one prompt's statistics in a comparison.
type PromptSummary struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Std     float64 `json:"std"`
	Runs    int     `json:"runs"`
}

// Comparison ranks prompts by their average value of one metric.
type Comparison struct {
	Metric     string                   `json:"metric"`
	Prompts    map[string]PromptSummary `json:"prompts"`
	BestPrompt string                   `json:"best_prompt"`
	BestScore  float64                  `json:"best_score"`
}

// ComparePrompts summarizes each prompt's recent values of a metric and
// identifies the best-average prompt.
func ComparePrompts(ctx context.Context, m Manager, promptIDs []string, metricName string, limit int) (*Comparison, error) {
	cmp := &Comparison{
		Metric:  metricName,
		Prompts: make(map[string]PromptSummary, len(promptIDs)),
	}

	for _, promptID := range promptIDs {
		runs, err := m.ListByPrompt(ctx, promptID, limit)
		if err != nil {
			return nil, err
		}
		values := metricValues(runs, metricName)
		summary := PromptSummary{Runs: len(values)}
		if len(values) > 0 {
			summary.Average = stats.Mean(values)
			summary.Min = stats.Min(values)
			summary.Max = stats.Max(values)
			summary.Std = stats.SampleStdDev(values)
		}
		cmp.Prompts[promptID] = summary

		if cmp.BestPrompt == "" || summary.Average > cmp.BestScore {
			cmp.BestPrompt = promptID
			cmp.BestScore = summary.Average
		}
	}
	return cmp, nil
}

func metricValues(runs []*Run, metricName string) []float64 {
	values := make([]float64, 0, len(runs))
	for _, run := range runs {
		if v, ok := run.Metrics[metricName]; ok {
			values = append(values, v)
		}
	}
	return values
}
