// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package samples holds the ordered list of sample identifiers of a dataset and its shuffling state.
//
// The order of an epoch is immutable: reshuffling creates a new Epoch and atomically swaps it in,
// so readers resolving identifiers never observe a partially shuffled order.
package samples

import (
	"math/rand"
	"slices"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrEmpty is returned when an Index is created without any sample.
var ErrEmpty = errors.New("samples: no sample identifiers given")

// Epoch is one full pass over all samples, in a fixed order.
type Epoch struct {
	// Number of the epoch, starting from 0 for the original (unshuffled) order.
	Number int

	order []string
}

// Len returns the number of samples in the epoch.
func (e *Epoch) Len() int { return len(e.order) }

// Resolve maps any flat index (possibly out of range, or negative) to an identifier, wrapping
// around the end of the epoch: Resolve(Len()+k) == Resolve(k).
func (e *Epoch) Resolve(flat int) string {
	n := len(e.order)
	idx := flat % n
	if idx < 0 {
		idx += n
	}
	return e.order[idx]
}

// IDs returns a copy of the epoch order.
func (e *Epoch) IDs() []string {
	return slices.Clone(e.order)
}

// Index owns the sample identifiers and the current Epoch.
type Index struct {
	ids     []string
	current atomic.Pointer[Epoch]
}

// New creates an Index over a copy of ids. The first epoch keeps the given order.
func New(ids []string) (*Index, error) {
	if len(ids) == 0 {
		return nil, ErrEmpty
	}
	idx := &Index{ids: slices.Clone(ids)}
	idx.current.Store(&Epoch{order: idx.ids})
	return idx, nil
}

// Len returns the number of samples.
func (idx *Index) Len() int { return len(idx.ids) }

// NumBatches returns ceil(Len() / batchSize), the number of batches needed to visit every sample once.
// It returns 0 for a non-positive batchSize.
func (idx *Index) NumBatches(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return (len(idx.ids) + batchSize - 1) / batchSize
}

// Epoch returns the current epoch.
func (idx *Index) Epoch() *Epoch { return idx.current.Load() }

// Resolve maps a flat index to an identifier of the current epoch, see Epoch.Resolve.
func (idx *Index) Resolve(flat int) string {
	return idx.current.Load().Resolve(flat)
}

// BatchIDs returns the identifiers for the flat indices [batchIndex*batchSize, (batchIndex+1)*batchSize),
// wrapping around the end of the epoch when needed. All identifiers come from the same epoch.
func (idx *Index) BatchIDs(batchIndex, batchSize int) []string {
	epoch := idx.current.Load()
	ids := make([]string, 0, batchSize)
	for ii := batchIndex * batchSize; ii < (batchIndex+1)*batchSize; ii++ {
		ids = append(ids, epoch.Resolve(ii))
	}
	return ids
}

// Reshuffle creates a new Epoch with a random permutation of the samples (drawn from rng) and makes
// it the current one. The previous Epoch is left untouched.
func (idx *Index) Reshuffle(rng *rand.Rand) *Epoch {
	previous := idx.current.Load()
	order := slices.Clone(previous.order)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	next := &Epoch{Number: previous.Number + 1, order: order}
	idx.current.Store(next)
	klog.V(1).Infof("samples: reshuffled %d samples for epoch #%d", len(order), next.Number)
	return next
}
