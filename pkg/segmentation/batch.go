// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"golang.org/x/exp/constraints"
)

// Batch of preprocessed images and one-hot targets.
type Batch struct {
	// Size is the number of examples, Height and Width their spatial shape, NumChannels the number of
	// target channels (number of classes + 1).
	Size, Height, Width, NumChannels int

	// Images shaped [Size, Height, Width, 3].
	Images []float32

	// Targets shaped [Size, Height, Width, NumChannels], with 0 or 1 values.
	Targets []float32

	// IDs of the samples, in batch order.
	IDs []string
}

func newBatch(ids []string, height, width, numChannels int) *Batch {
	size := len(ids)
	return &Batch{
		Size:        size,
		Height:      height,
		Width:       width,
		NumChannels: numChannels,
		Images:      make([]float32, size*height*width*3),
		Targets:     make([]float32, size*height*width*numChannels),
		IDs:         ids,
	}
}

// ImagesDimensions returns the dimensions of the images: [Size, Height, Width, 3].
func (b *Batch) ImagesDimensions() []int {
	return []int{b.Size, b.Height, b.Width, 3}
}

// TargetsDimensions returns the dimensions of the targets: [Size, Height, Width, NumChannels].
func (b *Batch) TargetsDimensions() []int {
	return []int{b.Size, b.Height, b.Width, b.NumChannels}
}

// ToTensors converts the batch to tensors of the given dtype (Float32 or Float64).
func (b *Batch) ToTensors(dtype dtypes.DType) (images, targets *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() {
		switch dtype {
		case dtypes.Float32:
			images = tensors.FromFlatDataAndDimensions(b.Images, b.ImagesDimensions()...)
			targets = tensors.FromFlatDataAndDimensions(b.Targets, b.TargetsDimensions()...)
		case dtypes.Float64:
			images = tensors.FromFlatDataAndDimensions(castFlat[float64](b.Images), b.ImagesDimensions()...)
			targets = tensors.FromFlatDataAndDimensions(castFlat[float64](b.Targets), b.TargetsDimensions()...)
		default:
			exceptions.Panicf("segmentation: batches can't be converted to dtype %s", dtype)
		}
	})
	if err != nil {
		images, targets = nil, nil
	}
	return
}

func castFlat[T constraints.Float](values []float32) []T {
	converted := make([]T, len(values))
	for ii, v := range values {
		converted[ii] = T(v)
	}
	return converted
}
