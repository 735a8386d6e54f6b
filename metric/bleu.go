//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"fmt"
	"math"
)

// defaultBLEUMaxN is the highest n-gram order used by BLEU.
const defaultBLEUMaxN = 4

// BLEUOption configures BLEU computation.
type BLEUOption func(*bleuOptions)

type bleuOptions struct {
	maxN int
}

// WithMaxN sets the highest n-gram order. The default is 4 (BLEU-4).
func WithMaxN(n int) BLEUOption {
	return func(o *bleuOptions) {
		o.maxN = n
	}
}

// BLEU computes the BLEU score of a prediction against a reference: the
// geometric mean of clipped n-gram precisions for n = 1..maxN multiplied by a
// brevity penalty. No smoothing is applied, so a zero precision at any order
// zeroes the whole score. Empty input yields score 0 with an error detail.
func BLEU(prediction, reference string, opt ...BLEUOption) Result {
	opts := bleuOptions{maxN: defaultBLEUMaxN}
	for _, o := range opt {
		o(&opts)
	}

	predTokens := Tokenize(prediction)
	refTokens := Tokenize(reference)
	if len(predTokens) == 0 || len(refTokens) == 0 {
		return errResult("empty input")
	}

	details := make(map[string]any, opts.maxN+1)
	precisions := make([]float64, 0, opts.maxN)
	for n := 1; n <= opts.maxN; n++ {
		predNGrams := createNGrams(predTokens, n)
		refNGrams := createNGrams(refTokens, n)

		var precision float64
		if total := countTotal(predNGrams); total > 0 {
			precision = float64(clippedOverlap(predNGrams, refNGrams)) / float64(total)
		}
		precisions = append(precisions, precision)
		details[fmt.Sprintf("precision_%d", n)] = precision
	}

	bp := 1.0
	if len(predTokens) < len(refTokens) {
		bp = math.Exp(1 - float64(len(refTokens))/float64(len(predTokens)))
	}
	details["brevity_penalty"] = bp

	score := 0.0
	allPositive := true
	var logSum float64
	for _, p := range precisions {
		if p <= 0 {
			allPositive = false
			break
		}
		logSum += math.Log(p)
	}
	if allPositive && len(precisions) > 0 {
		score = bp * math.Exp(logSum/float64(len(precisions)))
	}
	return Result{Score: score, Details: details}
}

// BLEUCorpus averages the per-pair BLEU score over aligned prediction and
// reference slices.
func BLEUCorpus(predictions, references []string) Result {
	if len(predictions) != len(references) {
		return errResult("mismatched lengths")
	}
	if len(predictions) == 0 {
		return errResult("empty input")
	}
	scores := make([]float64, 0, len(predictions))
	var sum float64
	for i, p := range predictions {
		s := BLEU(p, references[i]).Score
		scores = append(scores, s)
		sum += s
	}
	return Result{
		Score: sum / float64(len(scores)),
		Details: map[string]any{
			"individual_scores": scores,
			"count":             len(scores),
		},
	}
}
