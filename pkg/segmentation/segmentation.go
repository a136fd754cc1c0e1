// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package segmentation feeds image-segmentation training: it loads image/label pairs, augments them,
// converts labels to one-hot targets and assembles fixed-size batches.
//
// Batches can be accessed by index (Dataset.Batch, bounded by Dataset.NumBatches), or streamed
// indefinitely (Dataset.Next, Dataset.Stream). Dataset also implements train.Dataset, so it can be
// given directly to GoMLX training loops.
//
// A Dataset is not safe for concurrent use: batches are produced synchronously by the caller goroutine.
package segmentation

import (
	"context"
	"image"
	"io"
	"iter"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/segfeed/pkg/augment"
	"github.com/gomlx/segfeed/pkg/samples"
	"github.com/gomlx/segfeed/pkg/voc"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrInvalidConfig is returned (wrapped) by New for degenerate configurations.
var ErrInvalidConfig = errors.New("segmentation: invalid configuration")

// Loader loads the image and its label mask (one class index per pixel, same size as the image) of a sample.
// It should fail if the sample files are missing or corrupt.
type Loader interface {
	Load(id string) (image.Image, *image.Gray, error)
}

// Config of a Dataset.
type Config struct {
	// Name of the dataset, used by train.Dataset. Defaults to "segmentation".
	Name string

	// Samples identifiers, in their initial order.
	Samples []string

	// Width and Height of the images and targets yielded.
	Width, Height int

	// BatchSize is the number of examples per batch.
	BatchSize int

	// NumClasses is the number of valid classes. Targets have NumClasses+1 channels, the last one being
	// the catch-all for label values >= NumClasses (e.g. the VOC "void" border, 255).
	NumClasses int

	// Training enables random augmentation. Otherwise images are letterboxed deterministically.
	Training bool

	// DatasetRoot, ImagesSubdir and LabelsSubdir locate the files when Loader is nil, see voc.FileLoader.
	// ImageExt and LabelExt default to ".jpg" and ".png".
	DatasetRoot, ImagesSubdir, LabelsSubdir string
	ImageExt, LabelExt                      string

	// Loader overrides the file loader built from DatasetRoot.
	Loader Loader

	// Augment configures the augmentation. Defaults to augment.DefaultConfig() if left zero.
	// To change only some hyperparameters, start from augment.DefaultConfig(): partially filled
	// configurations are rejected by New.
	Augment augment.Config

	// Preprocess normalizes the augmented images. Defaults to NormalizeSymmetric.
	Preprocess PreprocessFn

	// Seed of the random number generator used for augmentation and shuffling. If 0, a time-based seed is used.
	Seed int64

	// DType of the tensors yielded by Yield: dtypes.Float32 (default) or dtypes.Float64.
	DType dtypes.DType

	// Infinite makes Yield stream batches indefinitely (reshuffling at each epoch) instead of returning
	// io.EOF after NumBatches batches.
	Infinite bool
}

// Dataset assembles batches of augmented images and one-hot targets.
type Dataset struct {
	config  Config
	loader  Loader
	index   *samples.Index
	engine  *augment.Engine
	rng     *rand.Rand
	dtype   dtypes.DType
	prepare PreprocessFn

	// cursor is the flat index of the next sample when streaming.
	cursor int

	// nextBatch is the next batch index yielded by Yield, when not Infinite.
	nextBatch int
}

var _ train.Dataset = (*Dataset)(nil)

// New creates a Dataset. It returns an error wrapping ErrInvalidConfig for degenerate configurations.
func New(config Config) (*Dataset, error) {
	if len(config.Samples) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "no samples given")
	}
	if config.BatchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "batch size must be positive, got %d", config.BatchSize)
	}
	if config.NumClasses <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "number of classes must be positive, got %d", config.NumClasses)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "invalid target shape %dx%d", config.Width, config.Height)
	}
	dtype := config.DType
	if dtype == dtypes.InvalidDType {
		dtype = dtypes.Float32
	}
	if dtype != dtypes.Float32 && dtype != dtypes.Float64 {
		return nil, errors.Wrapf(ErrInvalidConfig, "dtype %s not supported, use Float32 or Float64", dtype)
	}

	loader := config.Loader
	if loader == nil {
		fileLoader, err := voc.NewFileLoader(config.DatasetRoot, config.ImagesSubdir, config.LabelsSubdir)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
		loader = fileLoader.WithExtensions(config.ImageExt, config.LabelExt)
	}

	index, err := samples.New(config.Samples)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	augmentConfig := config.Augment
	if augmentConfig == (augment.Config{}) {
		augmentConfig = augment.DefaultConfig()
	}
	if err := augmentConfig.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	prepare := config.Preprocess
	if prepare == nil {
		prepare = NormalizeSymmetric
	}

	ds := &Dataset{
		config:  config,
		loader:  loader,
		index:   index,
		engine:  augment.NewEngine(rng).WithConfig(augmentConfig),
		rng:     rng,
		dtype:   dtype,
		prepare: prepare,
	}
	klog.V(1).Infof("segmentation: dataset %q with %d samples, %d batches of %d, %dx%d, %d classes, training=%v",
		ds.Name(), index.Len(), ds.NumBatches(), config.BatchSize, config.Width, config.Height,
		config.NumClasses, config.Training)
	return ds, nil
}

// WithResizer sets the resizer used by the augmentation. It returns the Dataset, so calls can be cascaded.
func (ds *Dataset) WithResizer(resizer augment.Resizer) *Dataset {
	ds.engine.WithResizer(resizer)
	return ds
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string {
	if ds.config.Name == "" {
		return "segmentation"
	}
	return ds.config.Name
}

// Index returns the samples index, with the current epoch.
func (ds *Dataset) Index() *samples.Index { return ds.index }

// NumClasses returns the number of valid classes. Targets have one more channel.
func (ds *Dataset) NumClasses() int { return ds.config.NumClasses }

// NumBatches returns the number of batches needed to visit every sample once.
func (ds *Dataset) NumBatches() int {
	return ds.index.NumBatches(ds.config.BatchSize)
}

// Batch returns the batch batchIndex of the current epoch: the samples at flat indices
// [batchIndex*BatchSize, (batchIndex+1)*BatchSize), each taken modulo the number of samples.
// So the last batch of an epoch is completed with samples from the start of the epoch, and batch
// indices beyond NumBatches keep walking the same cyclic order.
func (ds *Dataset) Batch(batchIndex int) (*Batch, error) {
	if batchIndex < 0 {
		return nil, errors.Errorf("segmentation: invalid batch index %d", batchIndex)
	}
	return ds.assemble(ds.index.BatchIDs(batchIndex, ds.config.BatchSize))
}

// Next returns the next batch of the stream. Samples are visited in order, wrapping around at the end of
// the epoch, and the samples are reshuffled at the start of every epoch (including the first).
func (ds *Dataset) Next() (*Batch, error) {
	ids := make([]string, ds.config.BatchSize)
	for ii := range ids {
		if ds.cursor == 0 {
			ds.index.Reshuffle(ds.rng)
		}
		ids[ii] = ds.index.Resolve(ds.cursor)
		ds.cursor = (ds.cursor + 1) % ds.index.Len()
	}
	return ds.assemble(ids)
}

// Stream returns an infinite sequence of batches (see Next), which ends when ctx is done or after the
// first error, which is yielded.
func (ds *Dataset) Stream(ctx context.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			batch, err := ds.Next()
			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}

// Yield implements train.Dataset. It returns one input (the images) and one label (the one-hot targets).
// If the dataset is not Infinite, it returns io.EOF after NumBatches batches, until Reset is called.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	var batch *Batch
	if ds.config.Infinite {
		batch, err = ds.Next()
	} else {
		if ds.nextBatch >= ds.NumBatches() {
			err = io.EOF
			return
		}
		batch, err = ds.Batch(ds.nextBatch)
		ds.nextBatch++
	}
	if err != nil {
		return
	}
	images, targets, err := batch.ToTensors(ds.dtype)
	if err != nil {
		return
	}
	inputs = []*tensors.Tensor{images}
	labels = []*tensors.Tensor{targets}
	return
}

// Reset implements train.Dataset. It starts a new epoch: samples are reshuffled and iteration restarts from
// the first batch.
func (ds *Dataset) Reset() {
	ds.nextBatch = 0
	if ds.config.Infinite {
		// Next reshuffles when the cursor is back to 0.
		ds.cursor = 0
		return
	}
	ds.index.Reshuffle(ds.rng)
}

// AugmentedPair loads and augments the sample id, without preprocessing: it's the per-sample step shared
// by all batches, exposed for inspection.
func (ds *Dataset) AugmentedPair(id string) (*augment.Pair, error) {
	return ds.produceOne(id)
}

func (ds *Dataset) produceOne(id string) (*augment.Pair, error) {
	img, label, err := ds.loader.Load(id)
	if err != nil {
		return nil, errors.WithMessagef(err, "segmentation: loading sample %q", id)
	}
	pair, err := ds.engine.Apply(img, label, ds.config.Width, ds.config.Height, ds.config.Training)
	if err != nil {
		return nil, errors.WithMessagef(err, "segmentation: augmenting sample %q", id)
	}
	return pair, nil
}

func (ds *Dataset) assemble(ids []string) (*Batch, error) {
	numClasses := ds.config.NumClasses
	batch := newBatch(ids, ds.config.Height, ds.config.Width, numClasses+1)
	imageSize := batch.Height * batch.Width * 3
	targetSize := batch.Height * batch.Width * batch.NumChannels
	for ii, id := range ids {
		pair, err := ds.produceOne(id)
		if err != nil {
			return nil, err
		}
		ds.prepare(pair.Image)
		copy(batch.Images[ii*imageSize:(ii+1)*imageSize], pair.Image)
		ClampLabels(pair.Label, numClasses)
		oneHotInto(batch.Targets[ii*targetSize:(ii+1)*targetSize], pair.Label, numClasses)
	}
	klog.V(2).Infof("segmentation: assembled batch of %v", ids)
	return batch, nil
}
