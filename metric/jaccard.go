//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package metric

// Jaccard computes Jaccard similarity over the token sets of two texts:
// |A∩B| / |A∪B|. It is symmetric in its arguments. Empty input yields score 0
// with an error detail.
func Jaccard(prediction, reference string) Result {
	predWords := tokenSet(prediction)
	refWords := tokenSet(reference)
	if len(predWords) == 0 || len(refWords) == 0 {
		return errResult("empty input")
	}

	var intersection int
	for w := range predWords {
		if _, ok := refWords[w]; ok {
			intersection++
		}
	}
	union := len(predWords) + len(refWords) - intersection

	return Result{
		Score: float64(intersection) / float64(union),
		Details: map[string]any{
			"intersection_size": intersection,
			"union_size":        union,
			"pred_words":        len(predWords),
			"ref_words":         len(refWords),
		},
	}
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}
