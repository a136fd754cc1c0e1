// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package augment transforms an image and its segmentation label into a fixed target shape, either
// deterministically (evaluation) or with random geometric and photometric augmentation (training).
//
// Geometric transformations (resize, flip, placement) are always applied identically to the image and
// to its label, and labels are only ever resized with Nearest interpolation, so class values are preserved.
// Photometric distortion only affects the image.
package augment

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/pkg/errors"
)

// Config holds the augmentation hyperparameters.
type Config struct {
	// Jitter of the aspect ratio: two factors are drawn from [1-Jitter, 1+Jitter].
	Jitter float64

	// Hue, Sat, Val are the maximum color distortions: hue shift drawn from [-Hue, Hue] (fraction of the
	// hue circle), saturation and value factors drawn from [1, Sat] (or its reciprocal).
	Hue, Sat, Val float64

	// MinScale, MaxScale is the range of the random scale, relative to the target shape.
	MinScale, MaxScale float64

	// FlipProbability is the probability of a horizontal flip.
	FlipProbability float64

	// Fill is the gray level of the image padding. The label padding is always 0.
	Fill uint8
}

// DefaultConfig returns the default augmentation configuration.
func DefaultConfig() Config {
	return Config{
		Jitter:          0.3,
		Hue:             0.1,
		Sat:             1.5,
		Val:             1.5,
		MinScale:        0.25,
		MaxScale:        2.0,
		FlipProbability: 0.5,
		Fill:            128,
	}
}

// Validate returns an error if the configuration is degenerate: scales must satisfy
// 0 < MinScale <= MaxScale, Jitter must be in [0, 1), Hue non-negative, Sat and Val >= 1 and
// FlipProbability in [0, 1].
//
// A partially filled Config (e.g. Config{Jitter: 0.1}) is degenerate: start from DefaultConfig instead.
func (c Config) Validate() error {
	switch {
	case c.MinScale <= 0 || c.MaxScale < c.MinScale:
		return errors.Errorf("augment: invalid scale range [%g, %g]", c.MinScale, c.MaxScale)
	case c.Jitter < 0 || c.Jitter >= 1:
		return errors.Errorf("augment: jitter must be in [0, 1), got %g", c.Jitter)
	case c.Hue < 0:
		return errors.Errorf("augment: hue must be non-negative, got %g", c.Hue)
	case c.Sat < 1 || c.Val < 1:
		return errors.Errorf("augment: saturation and value factors must be >= 1, got %g and %g", c.Sat, c.Val)
	case c.FlipProbability < 0 || c.FlipProbability > 1:
		return errors.Errorf("augment: flip probability must be in [0, 1], got %g", c.FlipProbability)
	}
	return nil
}

// Pair is an augmented image and its label, both with the target shape.
type Pair struct {
	Width, Height int

	// Image holds RGB values in [0, 255], packed as [height, width, 3].
	Image []float32

	// Label holds one class value per pixel, packed as [height, width].
	Label []uint8
}

// ImageNRGBA converts the Pair image back to an image.Image, rounding and clipping values to [0, 255].
func (p *Pair) ImageNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for pixelIdx := 0; pixelIdx < p.Width*p.Height; pixelIdx++ {
		for channel := 0; channel < 3; channel++ {
			v := p.Image[pixelIdx*3+channel] + 0.5
			img.Pix[pixelIdx*4+channel] = uint8(min(max(v, 0), 255))
		}
		img.Pix[pixelIdx*4+3] = 0xFF
	}
	return img
}

// LabelGray converts the Pair label back to an image.Gray.
func (p *Pair) LabelGray() *image.Gray {
	label := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	copy(label.Pix, p.Label)
	return label
}

// Engine augments image/label pairs. It is not safe for concurrent use, since it draws from one random
// number generator.
type Engine struct {
	config  Config
	rng     *rand.Rand
	resizer Resizer
}

// NewEngine creates an Engine drawing its random parameters from rng, with DefaultConfig and ImagingResizer.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{
		config:  DefaultConfig(),
		rng:     rng,
		resizer: ImagingResizer{},
	}
}

// WithConfig sets the default configuration used by Apply. It returns the Engine, so calls can be cascaded.
func (e *Engine) WithConfig(config Config) *Engine {
	e.config = config
	return e
}

// WithResizer sets the Resizer used. It returns the Engine, so calls can be cascaded.
func (e *Engine) WithResizer(resizer Resizer) *Engine {
	e.resizer = resizer
	return e
}

// Config returns the default configuration of the Engine.
func (e *Engine) Config() Config { return e.config }

// Apply transforms the image and its label to width x height, using the Engine configuration.
// If random is false, the content is letterboxed (aspect-preserving and centered) and colors are not changed.
// If random is true, the content is jittered, scaled, randomly flipped and placed, and the image colors distorted.
func (e *Engine) Apply(img image.Image, label *image.Gray, width, height int, random bool) (*Pair, error) {
	return e.ApplyWith(e.config, img, label, width, height, random)
}

// ApplyWith is like Apply, but uses the given configuration for this call only.
// It returns an error if config is degenerate, see Config.Validate.
func (e *Engine) ApplyWith(config Config, img image.Image, label *image.Gray, width, height int,
	random bool) (*Pair, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if img == nil || label == nil {
		return nil, errors.New("augment: image and label must be given")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("augment: invalid target shape %dx%d", width, height)
	}
	srcSize := img.Bounds().Size()
	if srcSize.X <= 0 || srcSize.Y <= 0 {
		return nil, errors.Errorf("augment: empty source image %dx%d", srcSize.X, srcSize.Y)
	}

	var placement Placement
	if random {
		placement = e.randomPlacement(config, width, height)
	} else {
		placement = LetterboxPlacement(srcSize.X, srcSize.Y, width, height)
	}
	fill := color.NRGBA{R: config.Fill, G: config.Fill, B: config.Fill, A: 0xFF}
	newImage := Compose(ToRGB(img), placement, width, height, Bicubic, fill, e.resizer)
	newLabel := Compose(label, placement, width, height, Nearest, color.NRGBA{A: 0xFF}, e.resizer)

	pair := &Pair{
		Width:  width,
		Height: height,
		Image:  make([]float32, width*height*3),
		Label:  make([]uint8, width*height),
	}
	for pixelIdx := range pair.Label {
		pair.Image[pixelIdx*3] = float32(newImage.Pix[pixelIdx*4])
		pair.Image[pixelIdx*3+1] = float32(newImage.Pix[pixelIdx*4+1])
		pair.Image[pixelIdx*3+2] = float32(newImage.Pix[pixelIdx*4+2])
		pair.Label[pixelIdx] = newLabel.Pix[pixelIdx*4]
	}
	if random {
		e.randomColorDistortion(config).Apply(pair.Image)
	}
	return pair, nil
}

// RandomPlacement draws a random placement on a width x height canvas, using the Engine configuration.
func (e *Engine) RandomPlacement(width, height int) Placement {
	return e.randomPlacement(e.config, width, height)
}

// RandomColorDistortion draws a random ColorDistortion, using the Engine configuration.
func (e *Engine) RandomColorDistortion() ColorDistortion {
	return e.randomColorDistortion(e.config)
}

func (e *Engine) randomPlacement(config Config, width, height int) Placement {
	jitter1 := e.uniform(1-config.Jitter, 1+config.Jitter)
	jitter2 := e.uniform(1-config.Jitter, 1+config.Jitter)
	aspectRatio := float64(width) / float64(height) * jitter1 / jitter2

	scale := e.uniform(config.MinScale, config.MaxScale)
	var newWidth, newHeight int
	if aspectRatio < 1 {
		newHeight = int(scale * float64(height))
		newWidth = int(float64(newHeight) * aspectRatio)
	} else {
		newWidth = int(scale * float64(width))
		newHeight = int(float64(newWidth) / aspectRatio)
	}
	newWidth, newHeight = max(newWidth, 1), max(newHeight, 1)

	p := Placement{Width: newWidth, Height: newHeight}
	p.Flip = e.rng.Float64() < config.FlipProbability
	// When the content is larger than the canvas the range is negative, and the content gets clipped.
	p.DX = int(e.uniform(0, float64(width-newWidth)))
	p.DY = int(e.uniform(0, float64(height-newHeight)))
	return p
}

func (e *Engine) randomColorDistortion(config Config) ColorDistortion {
	d := ColorDistortion{Hue: e.uniform(-config.Hue, config.Hue)}
	d.Sat = e.randomFactor(config.Sat)
	d.Val = e.randomFactor(config.Val)
	return d
}

// randomFactor returns a factor in [1, maxFactor] or its reciprocal, with equal probability.
func (e *Engine) randomFactor(maxFactor float64) float64 {
	increase := e.rng.Float64() < 0.5
	f := e.uniform(1, maxFactor)
	if !increase {
		f = 1 / f
	}
	return f
}

// uniform returns a value drawn uniformly from [from, to). If to < from, the value is in (to, from].
func (e *Engine) uniform(from, to float64) float64 {
	return e.rng.Float64()*(to-from) + from
}
