// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/gomlx/segfeed/pkg/augment"
	"github.com/stretchr/testify/assert"
)

func TestPreviewLabel(t *testing.T) {
	pair := &augment.Pair{Width: 4, Height: 1, Label: []uint8{0, 1, 20, 255}}

	// VOC: 21 channels, scaled by 255/21 = 12. The void border 255 goes to the catch-all class 20.
	label := previewLabel(pair, 20)
	assert.Equal(t, []uint8{0, 12, 240, 240}, label.Pix)
	assert.Equal(t, []uint8{0, 1, 20, 255}, pair.Label, "pair must not be modified")

	// Too many classes to spread: values are kept, never zeroed.
	for numClasses, want := range map[int][]uint8{
		254: {0, 1, 20, 254},
		255: {0, 1, 20, 255},
		300: {0, 1, 20, 255},
	} {
		label = previewLabel(pair, numClasses)
		assert.Equalf(t, want, label.Pix, "numClasses=%d", numClasses)
	}
}
