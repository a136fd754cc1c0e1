// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// segfeed reads a Pascal VOC segmentation split, assembles augmented batches as a training loop would
// consume them and reports throughput and class statistics.
//
// Optionally, it saves the augmented images and labels of the first batch as PNG files, for inspection.
//
// Example:
//
//	segfeed -data=~/work/VOCdevkit -split=train -train -steps=100 -preview=/tmp/preview
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/segfeed/pkg/augment"
	"github.com/gomlx/segfeed/pkg/segmentation"
	"github.com/gomlx/segfeed/pkg/voc"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagDataDir    = flag.String("data", "~/work/VOCdevkit", "Root directory of the Pascal VOC dataset (the one containing VOC2007).")
	flagSplit      = flag.String("split", "train", "Image set split, one of the files in VOC2007/ImageSets/Segmentation.")
	flagBatchSize  = flag.Int("batch", 8, "Batch size.")
	flagWidth      = flag.Int("width", 512, "Width of the images and targets.")
	flagHeight     = flag.Int("height", 512, "Height of the images and targets.")
	flagNumClasses = flag.Int("classes", 20, "Number of valid classes. Label values >= classes are mapped to an extra catch-all class.")
	flagTrain      = flag.Bool("train", true, "Apply random augmentation. If false, images are only letterboxed.")
	flagSteps      = flag.Int("steps", 0, "Number of batches to generate. If 0, generate one epoch.")
	flagSeed       = flag.Int64("seed", 0, "Random seed. If 0, a time-based seed is used.")
	flagPrefetch   = flag.Int("prefetch", 2, "Number of batches to prepare in the background. If 0, batches are generated synchronously.")
	flagResizer    = flag.String("resizer", "imaging", "Resizer implementation: \"imaging\" or \"draw\".")
	flagPreview    = flag.String("preview", "", "If set, the augmented images and labels of the first batch are saved as PNG files in this directory.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	dataDir := fsutil.MustReplaceTildeInDir(*flagDataDir)
	ids := must.M1(voc.ReadImageSet(voc.ImageSetPath(dataDir, *flagSplit)))
	ds := must.M1(segmentation.New(segmentation.Config{
		Name:        "voc-" + *flagSplit,
		Samples:     ids,
		Width:       *flagWidth,
		Height:      *flagHeight,
		BatchSize:   *flagBatchSize,
		NumClasses:  *flagNumClasses,
		Training:    *flagTrain,
		DatasetRoot: dataDir,
		Seed:        *flagSeed,
		Infinite:    *flagSteps > 0,
	}))
	switch *flagResizer {
	case "imaging":
	case "draw":
		ds.WithResizer(augment.DrawResizer{})
	default:
		klog.Fatalf("unknown -resizer=%q", *flagResizer)
	}
	fmt.Printf("Dataset %q: %d samples, %d batches per epoch.\n", ds.Name(), len(ids), ds.NumBatches())

	if *flagPreview != "" {
		must.M(savePreview(ds, *flagPreview))
	}

	numSteps := *flagSteps
	if numSteps <= 0 {
		numSteps = ds.NumBatches()
	}
	report(must.M1(run(ds, numSteps)))
}

// runStats collected while reading batches.
type runStats struct {
	numSteps   int
	elapsed    time.Duration
	batchBytes uint64
	counts     []float64
}

// run yields numSteps batches and accumulates the class histogram of the targets.
func run(ds *segmentation.Dataset, numSteps int) (*runStats, error) {
	var source train.Dataset = datasets.Take(ds, numSteps)
	if *flagPrefetch > 0 {
		// The segmentation.Dataset is not safe for concurrent use: a single goroutine reads ahead.
		source = datasets.CustomParallel(source).Parallelism(1).Buffer(*flagPrefetch).Start()
	}

	numChannels := ds.NumClasses() + 1
	stats := &runStats{counts: make([]float64, numChannels)}
	bar := progressbar.Default(int64(numSteps), "Assembling batches")
	start := time.Now()
	for {
		_, inputs, labels, err := source.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		stats.numSteps++
		stats.batchBytes = uint64(inputs[0].Memory() + labels[0].Memory())
		for ii, v := range segmentation.ClassHistogram(tensors.CopyFlatData[float32](labels[0]), numChannels) {
			stats.counts[ii] += v
		}
		for _, t := range append(inputs, labels...) {
			t.FinalizeAll()
		}
		_ = bar.Add(1)
	}
	stats.elapsed = time.Since(start)
	_ = bar.Finish()
	return stats, nil
}

var (
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

func report(stats *runStats) {
	fmt.Printf("\n%d batches in %s (%.1f batches/s), %s per batch.\n", stats.numSteps,
		stats.elapsed.Round(time.Millisecond), float64(stats.numSteps)/stats.elapsed.Seconds(),
		humanize.Bytes(stats.batchBytes))

	counts := stats.counts
	freqs := segmentation.ClassFrequencies(counts)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case col == 0:
				return normalStyle
			default:
				return rightAlignedStyle
			}
		}).
		Headers("Class", "Pixels", "Fraction")
	for class, count := range counts {
		name := fmt.Sprintf("%d", class)
		if class == len(counts)-1 {
			name += " (other)"
		}
		table.Row(name, humanize.Comma(int64(count)), fmt.Sprintf("%.2f%%", 100*freqs[class]))
	}
	fmt.Println(table.Render())
}

// savePreview writes the augmented image and label of each sample of the first batch of the epoch.
// Labels are saved as grayscale, with values scaled up to be visible.
func savePreview(ds *segmentation.Dataset, dir string) error {
	dir = fsutil.MustReplaceTildeInDir(dir)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.Wrapf(err, "creating preview directory %q", dir)
	}
	ids := ds.Index().BatchIDs(0, *flagBatchSize)
	for ii, id := range ids {
		pair, err := ds.AugmentedPair(id)
		if err != nil {
			return err
		}
		label := previewLabel(pair, ds.NumClasses())
		if err = writePNG(filepath.Join(dir, fmt.Sprintf("%03d_%s_image.png", ii, id)), pair.ImageNRGBA()); err != nil {
			return err
		}
		if err = writePNG(filepath.Join(dir, fmt.Sprintf("%03d_%s_label.png", ii, id)), label); err != nil {
			return err
		}
	}
	klog.Infof("saved %d preview pairs to %s", len(ids), dir)
	return nil
}

// previewLabel returns the label of pair as a grayscale image, with class values spread over [0, 255].
// With 254 classes or more, values are written as they are.
func previewLabel(pair *augment.Pair, numClasses int) *image.Gray {
	label := pair.LabelGray()
	segmentation.ClampLabels(label.Pix, numClasses)
	scale := max(255/(numClasses+1), 1)
	for ii, v := range label.Pix {
		label.Pix[ii] = uint8(min(int(v)*scale, 255))
	}
	return label
}

func writePNG(filePath string, img image.Image) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", filePath)
	}
	if err = png.Encode(f, img); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "encoding %q", filePath)
	}
	return errors.Wrapf(f.Close(), "closing %q", filePath)
}
