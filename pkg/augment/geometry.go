// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Placement describes where the (resized, optionally flipped) content goes on the target canvas.
// The same Placement is applied to an image and its label, which keeps them synchronized.
type Placement struct {
	// Width and Height of the content after resizing.
	Width, Height int

	// DX, DY is the offset of the content on the canvas. It can be negative (or larger than the free space)
	// if the content is larger than the canvas, in which case the content is clipped.
	DX, DY int

	// Flip the content horizontally, after resizing and before pasting.
	Flip bool
}

// SourceToTarget maps the pixel (x, y) of the resized content to its position on the canvas.
func (p Placement) SourceToTarget(x, y int) (int, int) {
	if p.Flip {
		x = p.Width - 1 - x
	}
	return x + p.DX, y + p.DY
}

// LetterboxPlacement returns the aspect-preserving placement of a srcWidth x srcHeight content centered on
// a width x height canvas.
func LetterboxPlacement(srcWidth, srcHeight, width, height int) Placement {
	scale := math.Min(float64(width)/float64(srcWidth), float64(height)/float64(srcHeight))
	scaledWidth := max(int(float64(srcWidth)*scale), 1)
	scaledHeight := max(int(float64(srcHeight)*scale), 1)
	return Placement{
		Width:  scaledWidth,
		Height: scaledHeight,
		DX:     (width - scaledWidth) / 2,
		DY:     (height - scaledHeight) / 2,
	}
}

// Compose resizes src to the placement size with the given interpolation, flips it if requested and pastes it
// on a new width x height canvas filled with fill.
func Compose(src image.Image, p Placement, width, height int, mode Interpolation, fill color.Color,
	resizer Resizer) *image.NRGBA {
	content := resizer.Resize(src, p.Width, p.Height, mode)
	if p.Flip {
		content = imaging.FlipH(content)
	}
	canvas := imaging.New(width, height, fill)
	return imaging.Paste(canvas, content, image.Pt(p.DX, p.DY))
}

// ToRGB converts any image to an opaque RGB image (stored as NRGBA): gray levels are replicated across
// the channels and the alpha channel is dropped, without compositing.
// Paletted images keep the RGB of their palette entries, even for fully transparent entries.
func ToRGB(img image.Image) *image.NRGBA {
	if paletted, ok := img.(*image.Paletted); ok {
		return palettedToRGB(paletted)
	}
	rgb := imaging.Clone(img)
	for ii := 3; ii < len(rgb.Pix); ii += 4 {
		rgb.Pix[ii] = 0xFF
	}
	return rgb
}

func palettedToRGB(img *image.Paletted) *image.NRGBA {
	// Palette entries decoded from PNG are NRGBA, whose RGB survives a zero alpha.
	entries := make([]color.NRGBA, 256)
	for ii, c := range img.Palette {
		if ii >= len(entries) {
			break
		}
		nrgba, ok := c.(color.NRGBA)
		if !ok {
			nrgba = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		nrgba.A = 0xFF
		entries[ii] = nrgba
	}
	for ii := len(img.Palette); ii < len(entries); ii++ {
		entries[ii] = color.NRGBA{A: 0xFF}
	}

	bounds := img.Bounds()
	rgb := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			rgb.SetNRGBA(x, y, entries[img.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y)])
		}
	}
	return rgb
}
