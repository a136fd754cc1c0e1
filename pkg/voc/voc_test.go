// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package voc

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, filePath string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	f, err := os.Create(filePath)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, png.Encode(f, img))
}

func writeJPEG(t *testing.T, filePath string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	f, err := os.Create(filePath)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
}

// vocPalette has a few distinct colors: palette index is the class.
var vocPalette = color.Palette{
	color.RGBA{A: 255},
	color.RGBA{R: 128, A: 255},
	color.RGBA{G: 128, A: 255},
	color.RGBA{R: 128, G: 128, A: 255},
	color.RGBA{R: 224, G: 224, B: 192, A: 255},
}

func palettedLabel(width, height int) *image.Paletted {
	label := image.NewPaletted(image.Rect(0, 0, width, height), vocPalette)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			label.SetColorIndex(x, y, uint8((x+y)%len(vocPalette)))
		}
	}
	return label
}

func TestReadImageSet(t *testing.T) {
	dir := t.TempDir()
	filePath := ImageSetPath(dir, "train")
	require.Equal(t, filepath.Join(dir, "VOC2007", "ImageSets", "Segmentation", "train.txt"), filePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	content := "2007_000032\n\n  2007_000039 1\r\n2007_000063\t-1 extra\n   \n"
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

	ids, err := ReadImageSet(filePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"2007_000032", "2007_000039", "2007_000063"}, ids)

	_, err = ReadImageSet(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestNewFileLoader(t *testing.T) {
	_, err := NewFileLoader("", "", "")
	require.Error(t, err)

	l, err := NewFileLoader("/data", "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", DefaultImagesDir, "a.jpg"), l.ImagePath("a"))
	assert.Equal(t, filepath.Join("/data", DefaultLabelsDir, "a.png"), l.LabelPath("a"))

	l, err = NewFileLoader("/data", "imgs", "masks")
	require.NoError(t, err)
	l = l.WithExtensions(".png", "")
	assert.Equal(t, filepath.Join("/data", "imgs", "a.png"), l.ImagePath("a"))
	assert.Equal(t, filepath.Join("/data", "masks", "a.png"), l.LabelPath("a"))
}

func TestFileLoaderLoad(t *testing.T) {
	root := t.TempDir()
	l, err := NewFileLoader(root, "", "")
	require.NoError(t, err)

	const width, height = 12, 8
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for ii := range img.Pix {
		img.Pix[ii] = 200
	}
	writeJPEG(t, l.ImagePath("paletted"), img)
	writePNG(t, l.LabelPath("paletted"), palettedLabel(width, height))

	gotImg, gotLabel, err := l.Load("paletted")
	require.NoError(t, err)
	require.Equal(t, image.Pt(width, height), gotImg.Bounds().Size())
	require.Equal(t, image.Pt(width, height), gotLabel.Bounds().Size())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			require.Equalf(t, uint8((x+y)%len(vocPalette)), gotLabel.GrayAt(x, y).Y, "label at (%d, %d)", x, y)
		}
	}

	// Grayscale labels, with the image given as PNG.
	l = l.WithExtensions(".png", ".png")
	gray := image.NewGray(image.Rect(0, 0, width, height))
	gray.Pix[5] = 255
	gray.Pix[6] = 7
	writePNG(t, l.ImagePath("gray"), img)
	writePNG(t, l.LabelPath("gray"), gray)
	_, gotLabel, err = l.Load("gray")
	require.NoError(t, err)
	assert.Equal(t, gray.Pix, gotLabel.Pix)
}

func TestFileLoaderErrors(t *testing.T) {
	root := t.TempDir()
	l, err := NewFileLoader(root, "images", "labels")
	require.NoError(t, err)
	l = l.WithExtensions(".png", ".png")

	// Missing files.
	_, _, err = l.Load("missing")
	require.ErrorContains(t, err, "missing")

	// Corrupt image.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0755))
	require.NoError(t, os.WriteFile(l.ImagePath("corrupt"), []byte("not an image"), 0644))
	writePNG(t, l.LabelPath("corrupt"), palettedLabel(4, 4))
	_, _, err = l.Load("corrupt")
	require.Error(t, err)

	// Mismatched sizes.
	writePNG(t, l.ImagePath("mismatch"), image.NewRGBA(image.Rect(0, 0, 5, 4)))
	writePNG(t, l.LabelPath("mismatch"), palettedLabel(4, 4))
	_, _, err = l.Load("mismatch")
	require.ErrorContains(t, err, "differ")

	// RGB labels are not accepted.
	rgbLabel := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for ii := range rgbLabel.Pix {
		rgbLabel.Pix[ii] = uint8(ii)
	}
	writePNG(t, l.ImagePath("rgb"), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	writePNG(t, l.LabelPath("rgb"), rgbLabel)
	_, _, err = l.Load("rgb")
	require.ErrorContains(t, err, "not supported")
}

func TestLabelFromSubImage(t *testing.T) {
	full := palettedLabel(10, 10)
	sub := full.SubImage(image.Rect(3, 2, 7, 5)).(*image.Paletted)
	label, err := LabelFromImage(sub)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 3), label.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			require.Equal(t, full.ColorIndexAt(x+3, y+2), label.GrayAt(x, y).Y)
		}
	}
}
