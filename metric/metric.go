//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package metric implements reference-based text similarity metrics: BLEU,
// ROUGE-N, ROUGE-L, ROUGE-Lsum and Jaccard word overlap. All metrics share the
// same tokenizer so their scores are comparable on the same text pair.
package metric

import (
	"regexp"
	"strings"
)

// Result carries a metric score in [0,1] together with metric-specific detail
// values. Degenerate input never panics: the score is 0 and Details carries an
// "error" key.
type Result struct {
	Score   float64        `json:"score"`
	Details map[string]any `json:"details,omitempty"`
}

// errResult builds the sentinel result used for degenerate input.
func errResult(msg string) Result {
	return Result{Score: 0, Details: map[string]any{"error": msg}}
}

var wordPattern = regexp.MustCompile(`\w+`)

// Tokenize lowercases text and extracts word runs. Every metric in this
// package tokenizes through this function.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// createNGrams builds a multiset of n-grams keyed by a delimiter-joined token
// sequence.
func createNGrams(tokens []string, n int) map[string]int {
	if n <= 0 || len(tokens) < n {
		return map[string]int{}
	}
	ngrams := make(map[string]int, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		ngrams[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return ngrams
}

// clippedOverlap sums min(count in a, count in b) over the n-grams of a.
func clippedOverlap(a, b map[string]int) int {
	var overlap int
	for key, cnt := range a {
		if other, ok := b[key]; ok {
			if other < cnt {
				overlap += other
			} else {
				overlap += cnt
			}
		}
	}
	return overlap
}

// countTotal sums the multiset counts.
func countTotal(ngrams map[string]int) int {
	var total int
	for _, cnt := range ngrams {
		total += cnt
	}
	return total
}

// fMeasure returns the harmonic mean of precision and recall, 0 when both are 0.
func fMeasure(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
