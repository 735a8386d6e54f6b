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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "cat", "sat", "42"}, Tokenize("The cat, sat... 42!"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestBLEUSelfMatch(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	r := BLEU(text, text)
	assert.InDelta(t, 1.0, r.Score, 1e-9)
	assert.InDelta(t, 1.0, r.Details["brevity_penalty"].(float64), 1e-9)
}

func TestBLEUEmptyInput(t *testing.T) {
	for _, tc := range [][2]string{{"", "ref"}, {"pred", ""}, {"", ""}} {
		r := BLEU(tc[0], tc[1])
		assert.Zero(t, r.Score)
		assert.Contains(t, r.Details, "error")
	}
}

func TestBLEUNoSmoothing(t *testing.T) {
	// No shared 2-gram: any zero per-order precision zeroes the score.
	r := BLEU("alpha gamma beta delta", "alpha beta gamma delta epsilon")
	assert.Zero(t, r.Score)
	assert.Greater(t, r.Details["precision_1"].(float64), 0.0)
}

func TestBLEUBrevityPenalty(t *testing.T) {
	r := BLEU("the quick brown fox", "the quick brown fox jumps over the lazy dog")
	bp := r.Details["brevity_penalty"].(float64)
	assert.Less(t, bp, 1.0)
	assert.Greater(t, bp, 0.0)
}

func TestBLEUCorpus(t *testing.T) {
	r := BLEUCorpus(
		[]string{"the quick brown fox jumps", "hello world how are you"},
		[]string{"the quick brown fox jumps", "hello world how are you"},
	)
	assert.InDelta(t, 1.0, r.Score, 1e-9)
	assert.Equal(t, 2, r.Details["count"])

	bad := BLEUCorpus([]string{"a"}, []string{"a", "b"})
	assert.Contains(t, bad.Details, "error")
}

func TestRougeNRange(t *testing.T) {
	pairs := [][2]string{
		{"the cat sat on the mat", "a cat was sitting on the mat"},
		{"completely different words here", "nothing shared at all"},
		{"same text", "same text"},
	}
	for _, tc := range pairs {
		for n := 1; n <= 2; n++ {
			r := RougeN(tc[0], tc[1], n)
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		}
	}
}

func TestRougeLSelfMatch(t *testing.T) {
	text := "evaluation of prompts is useful"
	r := RougeL(text, text)
	assert.InDelta(t, 1.0, r.Score, 1e-9)
	assert.Equal(t, 5, r.Details["lcs_length"])
}

func TestRougeLPartial(t *testing.T) {
	// LCS of "the cat sat" vs "the dog sat" is {the, sat}: P=R=F1=2/3.
	r := RougeL("the cat sat", "the dog sat")
	assert.InDelta(t, 2.0/3.0, r.Score, 1e-9)
}

func TestRougeAsymmetryPossible(t *testing.T) {
	a := "the quick brown fox jumps over the lazy dog"
	b := "the fox"
	ra := RougeN(a, b, 1)
	rb := RougeN(b, a, 1)
	// Precision and recall swap when arguments swap.
	assert.InDelta(t, ra.Details["precision"].(float64), rb.Details["recall"].(float64), 1e-9)
	assert.InDelta(t, ra.Details["recall"].(float64), rb.Details["precision"].(float64), 1e-9)
}

func TestRougeLSum(t *testing.T) {
	text := "The cat sat on the mat. The dog barked loudly."
	r, err := RougeLSum(text, text)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.Score, 1e-9)

	empty, err := RougeLSum("", "some reference text.")
	require.NoError(t, err)
	assert.Zero(t, empty.Score)
	assert.Contains(t, empty.Details, "error")
}

func TestJaccardSymmetry(t *testing.T) {
	a := "the quick brown fox"
	b := "a quick red fox runs"
	assert.InDelta(t, Jaccard(a, b).Score, Jaccard(b, a).Score, 1e-12)
}

func TestJaccard(t *testing.T) {
	// Sets {a,b,c} and {b,c,d}: 2 shared of 4 total.
	r := Jaccard("a b c", "b c d")
	assert.InDelta(t, 0.5, r.Score, 1e-9)
	assert.Equal(t, 2, r.Details["intersection_size"])
	assert.Equal(t, 4, r.Details["union_size"])

	assert.Contains(t, Jaccard("", "x").Details, "error")
}

func TestTextMetrics(t *testing.T) {
	s := TextMetrics("the cat sat on the mat today", "the cat sat on the mat today")
	assert.InDelta(t, 1.0, s.BLEU.Score, 1e-9)
	assert.InDelta(t, 1.0, s.Rouge["rouge1"].Score, 1e-9)
	assert.InDelta(t, 1.0, s.Rouge["rougeL"].Score, 1e-9)
	assert.InDelta(t, 1.0, s.Jaccard.Score, 1e-9)
}

func TestCorpusMetrics(t *testing.T) {
	got, err := CorpusMetrics(
		[]string{"the cat sat on the mat", "hello world how are you"},
		[]string{"the cat sat on the mat", "hello world how are you"},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.InDelta(t, 1.0, got.BLEUAvg, 1e-9)
	assert.InDelta(t, 1.0, got.JaccardAvg, 1e-9)
	assert.Len(t, got.Individual, 2)

	_, err = CorpusMetrics([]string{"a"}, nil)
	assert.Error(t, err)
}
