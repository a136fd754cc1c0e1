// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
)

// ClampLabels folds, in place, every label value >= numClasses into the catch-all class numClasses.
// Negative values (only possible for signed types) are folded into the catch-all class as well.
func ClampLabels[T constraints.Integer](labels []T, numClasses int) {
	for ii, v := range labels {
		if v < 0 || uint64(v) >= uint64(numClasses) {
			labels[ii] = T(numClasses)
		}
	}
}

// OneHot expands labels into a one-hot encoding with numClasses+1 channels: the result has
// len(labels)*(numClasses+1) values, and for each label exactly one channel is 1.
// Out-of-range label values map to the catch-all channel numClasses, as with ClampLabels.
func OneHot[T constraints.Integer](labels []T, numClasses int) []float32 {
	oneHot := make([]float32, len(labels)*(numClasses+1))
	oneHotInto(oneHot, labels, numClasses)
	return oneHot
}

// oneHotInto writes the one-hot encoding of labels into dst, which must be zeroed and have
// len(labels)*(numClasses+1) values.
func oneHotInto[T constraints.Integer](dst []float32, labels []T, numClasses int) {
	numChannels := numClasses + 1
	for ii, v := range labels {
		class := numClasses
		if v >= 0 && uint64(v) < uint64(numClasses) {
			class = int(v)
		}
		dst[ii*numChannels+class] = 1
	}
}

// ClassHistogram counts, for each of the numChannels channels of one-hot targets, how many positions
// are set to that class.
func ClassHistogram(targets []float32, numChannels int) []float64 {
	counts := make([]float64, numChannels)
	for ii, v := range targets {
		counts[ii%numChannels] += float64(v)
	}
	return counts
}

// ClassFrequencies normalizes a class histogram to fractions summing to 1.
// It returns all zeros if the histogram is empty.
func ClassFrequencies(counts []float64) []float64 {
	freqs := make([]float64, len(counts))
	copy(freqs, counts)
	total := floats.Sum(freqs)
	if total > 0 {
		floats.Scale(1/total, freqs)
	}
	return freqs
}
