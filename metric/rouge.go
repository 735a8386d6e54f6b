//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package metric

import "sort"

// RougeN computes the ROUGE-N F1 of a prediction against a reference using
// clipped n-gram overlap. Empty input yields score 0 with an error detail.
func RougeN(prediction, reference string, n int) Result {
	predTokens := Tokenize(prediction)
	refTokens := Tokenize(reference)
	if len(predTokens) == 0 || len(refTokens) == 0 {
		return errResult("empty input")
	}

	predNGrams := createNGrams(predTokens, n)
	refNGrams := createNGrams(refTokens, n)
	if len(refNGrams) == 0 {
		return errResult("no reference n-grams")
	}

	overlap := clippedOverlap(predNGrams, refNGrams)
	var precision, recall float64
	if total := countTotal(predNGrams); total > 0 {
		precision = float64(overlap) / float64(total)
	}
	recall = float64(overlap) / float64(countTotal(refNGrams))
	return prfResult(precision, recall)
}

// RougeL computes the ROUGE-L F1 of a prediction against a reference from the
// longest common subsequence of their token sequences.
func RougeL(prediction, reference string) Result {
	predTokens := Tokenize(prediction)
	refTokens := Tokenize(reference)
	if len(predTokens) == 0 || len(refTokens) == 0 {
		return errResult("empty input")
	}

	lcsLen := lcsLength(refTokens, predTokens)
	precision := float64(lcsLen) / float64(len(predTokens))
	recall := float64(lcsLen) / float64(len(refTokens))
	r := prfResult(precision, recall)
	r.Details["lcs_length"] = lcsLen
	return r
}

// RougeLSum computes summary-level ROUGE-L: the texts are split into
// sentences, each reference sentence is matched against all prediction
// sentences via union LCS, and matched tokens are counted without
// double-counting.
func RougeLSum(prediction, reference string) (Result, error) {
	predSents, err := splitSentences(prediction)
	if err != nil {
		return Result{}, err
	}
	refSents, err := splitSentences(reference)
	if err != nil {
		return Result{}, err
	}

	predTokensList := tokenizeAll(predSents)
	refTokensList := tokenizeAll(refSents)

	var m, n int
	for _, s := range refTokensList {
		m += len(s)
	}
	for _, s := range predTokensList {
		n += len(s)
	}
	if m == 0 || n == 0 {
		return errResult("empty input"), nil
	}

	refCounts := tokenCounts(refTokensList)
	predCounts := tokenCounts(predTokensList)

	hits := 0
	for _, ref := range refTokensList {
		for _, tok := range unionLCS(ref, predTokensList) {
			if refCounts[tok] <= 0 || predCounts[tok] <= 0 {
				continue
			}
			hits++
			refCounts[tok]--
			predCounts[tok]--
		}
	}

	precision := float64(hits) / float64(n)
	recall := float64(hits) / float64(m)
	return prfResult(precision, recall), nil
}

// Rouge computes ROUGE-1, ROUGE-2 and ROUGE-L in one call.
func Rouge(prediction, reference string) map[string]Result {
	return map[string]Result{
		"rouge1": RougeN(prediction, reference, 1),
		"rouge2": RougeN(prediction, reference, 2),
		"rougeL": RougeL(prediction, reference),
	}
}

// prfResult packs precision, recall, and their F1 into a Result.
func prfResult(precision, recall float64) Result {
	f1 := fMeasure(precision, recall)
	return Result{
		Score: f1,
		Details: map[string]any{
			"precision": precision,
			"recall":    recall,
			"f1":        f1,
		},
	}
}

func tokenizeAll(sentences []string) [][]string {
	out := make([][]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, Tokenize(s))
	}
	return out
}

func tokenCounts(tokensList [][]string) map[string]int {
	counts := make(map[string]int)
	for _, tokens := range tokensList {
		for _, tok := range tokens {
			counts[tok]++
		}
	}
	return counts
}

// lcsLength computes the length of the longest common subsequence using two
// rolling rows.
func lcsLength(ref, can []string) int {
	if len(ref) == 0 || len(can) == 0 {
		return 0
	}
	prev := make([]int, len(can)+1)
	curr := make([]int, len(can)+1)
	for i := 1; i <= len(ref); i++ {
		curr[0] = 0
		for j := 1; j <= len(can); j++ {
			if ref[i-1] == can[j-1] {
				curr[j] = prev[j-1] + 1
				continue
			}
			if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(can)]
}

// unionLCS returns the reference tokens that participate in an LCS with any
// candidate sentence.
func unionLCS(ref []string, cans [][]string) []string {
	seen := make(map[int]struct{})
	for _, can := range cans {
		for _, idx := range lcsIndices(ref, can) {
			seen[idx] = struct{}{}
		}
	}
	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		out = append(out, ref[idx])
	}
	return out
}

// lcsIndices returns the reference-side indices of one LCS between ref and can.
func lcsIndices(ref, can []string) []int {
	rows, cols := len(ref), len(can)
	table := make([][]int, rows+1)
	for i := range table {
		table[i] = make([]int, cols+1)
	}
	for i := 1; i <= rows; i++ {
		for j := 1; j <= cols; j++ {
			if ref[i-1] == can[j-1] {
				table[i][j] = table[i-1][j-1] + 1
				continue
			}
			if table[i-1][j] >= table[i][j-1] {
				table[i][j] = table[i-1][j]
			} else {
				table[i][j] = table[i][j-1]
			}
		}
	}

	i, j := rows, cols
	indices := make([]int, 0, table[i][j])
	for i > 0 && j > 0 {
		switch {
		case ref[i-1] == can[j-1]:
			indices = append(indices, i-1)
			i--
			j--
		case table[i][j-1] > table[i-1][j]:
			j--
		default:
			i--
		}
	}
	for l, r := 0, len(indices)-1; l < r; l, r = l+1, r-1 {
		indices[l], indices[r] = indices[r], indices[l]
	}
	return indices
}
