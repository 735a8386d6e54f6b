//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package metric

import "errors"

// TextScores bundles every reference-based metric for one prediction and
// reference pair.
type TextScores struct {
	BLEU    Result            `json:"bleu"`
	Rouge   map[string]Result `json:"rouge"`
	Jaccard Result            `json:"jaccard"`
}

// TextMetrics computes all reference-based metrics for a single pair.
func TextMetrics(prediction, reference string) TextScores {
	return TextScores{
		BLEU:    BLEU(prediction, reference),
		Rouge:   Rouge(prediction, reference),
		Jaccard: Jaccard(prediction, reference),
	}
}

// CorpusScores aggregates TextScores over a corpus.
type CorpusScores struct {
	BLEUAvg    float64      `json:"bleu_avg"`
	Rouge1Avg  float64      `json:"rouge1_avg"`
	Rouge2Avg  float64      `json:"rouge2_avg"`
	RougeLAvg  float64      `json:"rougeL_avg"`
	JaccardAvg float64      `json:"jaccard_avg"`
	Count      int          `json:"count"`
	Individual []TextScores `json:"individual"`
}

// CorpusMetrics computes per-pair metrics over aligned slices and averages
// them. Mismatched lengths are a caller error.
func CorpusMetrics(predictions, references []string) (CorpusScores, error) {
	if len(predictions) != len(references) {
		return CorpusScores{}, errors.New("mismatched lengths")
	}
	if len(predictions) == 0 {
		return CorpusScores{}, errors.New("empty corpus")
	}

	out := CorpusScores{Count: len(predictions)}
	out.Individual = make([]TextScores, 0, len(predictions))
	for i, p := range predictions {
		s := TextMetrics(p, references[i])
		out.Individual = append(out.Individual, s)
		out.BLEUAvg += s.BLEU.Score
		out.Rouge1Avg += s.Rouge["rouge1"].Score
		out.Rouge2Avg += s.Rouge["rouge2"].Score
		out.RougeLAvg += s.Rouge["rougeL"].Score
		out.JaccardAvg += s.Jaccard.Score
	}
	n := float64(out.Count)
	out.BLEUAvg /= n
	out.Rouge1Avg /= n
	out.Rouge2Avg /= n
	out.RougeLAvg /= n
	out.JaccardAvg /= n
	return out, nil
}
