//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
}

func TestMedian(t *testing.T) {
	assert.Zero(t, Median(nil))
	assert.InDelta(t, 2.0, Median([]float64{3, 1, 2}), 1e-12)
	assert.InDelta(t, 2.5, Median([]float64{4, 1, 2, 3}), 1e-12)
}

func TestSampleStdDev(t *testing.T) {
	assert.Zero(t, SampleStdDev(nil))
	assert.Zero(t, SampleStdDev([]float64{5}))
	// Sample stddev of {2,4,4,4,5,5,7,9} with n-1 denominator.
	assert.InDelta(t, 2.138089935, SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-6)
}

func TestMinMaxSpread(t *testing.T) {
	xs := []float64{0.4, 0.9, 0.1, 0.7}
	assert.InDelta(t, 0.1, Min(xs), 1e-12)
	assert.InDelta(t, 0.9, Max(xs), 1e-12)
	assert.InDelta(t, 0.8, Spread(xs), 1e-12)
	assert.Zero(t, Spread(nil))
}
