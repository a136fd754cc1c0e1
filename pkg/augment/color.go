// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"github.com/lucasb-eyer/go-colorful"
)

// ColorDistortion is a photometric distortion applied in HSV space.
//
// Hue is a fraction of the full hue circle added to the hue channel, Sat and Val are multiplicative
// factors for the saturation and value channels.
type ColorDistortion struct {
	Hue, Sat, Val float64
}

// ApplyHSV distorts one HSV value, with h in degrees [0, 360] and s, v in [0, 1].
//
// The hue wrap adds or subtracts 1 (not 360) before the final clamping.
// The result always has h in [0, 360] and s, v in [0, 1].
func (d ColorDistortion) ApplyHSV(h, s, v float64) (float64, float64, float64) {
	h += d.Hue * 360
	if h > 1 {
		h -= 1
	}
	if h < 0 {
		h += 1
	}
	s *= d.Sat
	v *= d.Val

	h = min(h, 360)
	s = min(s, 1)
	v = min(v, 1)
	return max(h, 0), max(s, 0), max(v, 0)
}

// Apply distorts pixels in place. Pixels are packed RGB (3 values per pixel) in the range [0, 255].
func (d ColorDistortion) Apply(pixels []float32) {
	for ii := 0; ii+2 < len(pixels); ii += 3 {
		c := colorful.Color{R: float64(pixels[ii]) / 255, G: float64(pixels[ii+1]) / 255, B: float64(pixels[ii+2]) / 255}
		h, s, v := d.ApplyHSV(c.Hsv())
		if h >= 360 {
			h -= 360
		}
		c = colorful.Hsv(h, s, v)
		pixels[ii] = float32(c.R * 255)
		pixels[ii+1] = float32(c.G * 255)
		pixels[ii+2] = float32(c.B * 255)
	}
}
