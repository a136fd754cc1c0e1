// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segmentation

// PreprocessFn normalizes, in place, augmented image pixels (RGB values in [0, 255]) to what the model consumes.
type PreprocessFn func(pixels []float32)

// NormalizeSymmetric maps [0, 255] to [-1, 1]. It is the default PreprocessFn.
func NormalizeSymmetric(pixels []float32) {
	for ii, v := range pixels {
		pixels[ii] = v/127.5 - 1
	}
}

// NormalizeUnit maps [0, 255] to [0, 1].
func NormalizeUnit(pixels []float32) {
	for ii, v := range pixels {
		pixels[ii] = v / 255
	}
}

// NoPreprocess leaves pixels in [0, 255].
func NoPreprocess([]float32) {}
