// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Interpolation used when resizing.
type Interpolation int

const (
	// Bicubic smooths, used for images.
	Bicubic Interpolation = iota

	// Nearest preserves discrete values exactly, used for label masks.
	Nearest
)

func (i Interpolation) String() string {
	switch i {
	case Bicubic:
		return "Bicubic"
	case Nearest:
		return "Nearest"
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// Resizer is the resizing capability used by the Engine.
//
// Implementations must preserve pixel values exactly with Nearest, and return a copy of the image
// when the requested size is the same as the source.
type Resizer interface {
	Resize(img image.Image, width, height int, mode Interpolation) *image.NRGBA
}

// ImagingResizer resizes with github.com/disintegration/imaging. It is the default Resizer.
type ImagingResizer struct{}

var _ Resizer = ImagingResizer{}

// Resize implements Resizer.
func (ImagingResizer) Resize(img image.Image, width, height int, mode Interpolation) *image.NRGBA {
	filter := imaging.CatmullRom
	if mode == Nearest {
		filter = imaging.NearestNeighbor
	}
	return imaging.Resize(img, width, height, filter)
}

// DrawResizer resizes with golang.org/x/image/draw scalers.
type DrawResizer struct{}

var _ Resizer = DrawResizer{}

// Resize implements Resizer.
func (DrawResizer) Resize(img image.Image, width, height int, mode Interpolation) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Dx() == width && srcBounds.Dy() == height {
		return imaging.Clone(img)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	var scaler draw.Scaler = draw.CatmullRom
	if mode == Nearest {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), img, srcBounds, draw.Src, nil)
	return dst
}
