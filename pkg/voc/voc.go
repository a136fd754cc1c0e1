// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package voc reads segmentation datasets laid out like PASCAL VOC: image-set files listing one sample
// identifier per line, a directory of images and a directory of label masks (one class index per pixel).
package voc

import (
	"bufio"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultImagesDir = "VOC2007/JPEGImages"
	DefaultLabelsDir = "VOC2007/SegmentationClass"
	DefaultImageExt  = ".jpg"
	DefaultLabelExt  = ".png"
	ImageSetsDir     = "VOC2007/ImageSets/Segmentation"
)

// ImageSetPath returns the path of the image-set file for the split (e.g. "train", "val", "trainval").
func ImageSetPath(root, split string) string {
	return filepath.Join(root, ImageSetsDir, split+".txt")
}

// ReadImageSet reads the sample identifiers listed in an image-set file: the first whitespace-separated
// field of every non-blank line.
func ReadImageSet(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image set %q", path)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading image set %q", path)
	}
	return ids, nil
}

// FileLoader loads images and their labels from disk. Paths are built as
// <Root>/<ImagesDir>/<id><ImageExt> and <Root>/<LabelsDir>/<id><LabelExt>.
type FileLoader struct {
	Root                 string
	ImagesDir, LabelsDir string
	ImageExt, LabelExt   string
}

// NewFileLoader creates a FileLoader. Empty imagesDir and labelsDir take the VOC defaults.
func NewFileLoader(root, imagesDir, labelsDir string) (*FileLoader, error) {
	if root == "" {
		return nil, errors.New("voc: dataset root directory not given")
	}
	if imagesDir == "" {
		imagesDir = DefaultImagesDir
	}
	if labelsDir == "" {
		labelsDir = DefaultLabelsDir
	}
	return &FileLoader{
		Root:      root,
		ImagesDir: imagesDir,
		LabelsDir: labelsDir,
		ImageExt:  DefaultImageExt,
		LabelExt:  DefaultLabelExt,
	}, nil
}

// WithExtensions sets the file extensions (including the dot) of images and labels. Empty values are ignored.
// It returns the FileLoader, so calls can be cascaded.
func (l *FileLoader) WithExtensions(imageExt, labelExt string) *FileLoader {
	if imageExt != "" {
		l.ImageExt = imageExt
	}
	if labelExt != "" {
		l.LabelExt = labelExt
	}
	return l
}

// ImagePath returns the path of the image for the sample id.
func (l *FileLoader) ImagePath(id string) string {
	return filepath.Join(l.Root, l.ImagesDir, id+l.ImageExt)
}

// LabelPath returns the path of the label mask for the sample id.
func (l *FileLoader) LabelPath(id string) string {
	return filepath.Join(l.Root, l.LabelsDir, id+l.LabelExt)
}

// Load reads and decodes the image and the label of the sample id.
// It fails if any of the files is missing or can't be decoded, or if their sizes differ.
func (l *FileLoader) Load(id string) (image.Image, *image.Gray, error) {
	img, err := decodeFile(l.ImagePath(id))
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "sample %q", id)
	}
	labelImg, err := decodeFile(l.LabelPath(id))
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "sample %q", id)
	}
	label, err := LabelFromImage(labelImg)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "sample %q, label %q", id, l.LabelPath(id))
	}
	if img.Bounds().Size() != label.Bounds().Size() {
		return nil, nil, errors.Errorf("sample %q: image size %v and label size %v differ",
			id, img.Bounds().Size(), label.Bounds().Size())
	}
	return img, label, nil
}

// LabelFromImage extracts class indices from a decoded label mask: palette indices for paletted images
// (the usual VOC format), or gray levels for grayscale images. Other formats are not accepted, since their
// colors don't map to class indices.
func LabelFromImage(img image.Image) (*image.Gray, error) {
	var pix []uint8
	var stride, start int
	switch src := img.(type) {
	case *image.Paletted:
		pix, stride, start = src.Pix, src.Stride, src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y)
	case *image.Gray:
		pix, stride, start = src.Pix, src.Stride, src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y)
	default:
		return nil, errors.Errorf("label image type %T not supported, labels must be paletted or grayscale", img)
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	label := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		rowStart := start + y*stride
		copy(label.Pix[y*label.Stride:], pix[rowStart:rowStart+width])
	}
	return label, nil
}

func decodeFile(filePath string) (image.Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q", filePath)
	}
	return img, nil
}
