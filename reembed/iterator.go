// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

const (
	// DefaultBatchSize is the default number of records handed to each batch
	DefaultBatchSize = 100
)

// TensorIterator walks every tensor record in ID order, in batches.
type TensorIterator struct {
	repo      storage.TensorRepository
	filter    storage.TensorFilter
	batchSize int
}

// NewTensorIterator creates a new tensor iterator.
// A batchSize <= 0 means DefaultBatchSize.
func NewTensorIterator(repo storage.TensorRepository, batchSize int) *TensorIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &TensorIterator{repo: repo, batchSize: batchSize}
}

// WithFilter restricts iteration to records matching filter.
func (it *TensorIterator) WithFilter(filter storage.TensorFilter) *TensorIterator {
	it.filter = filter
	return it
}

// Count returns how many records ForEach would visit.
func (it *TensorIterator) Count(ctx context.Context) (int, error) {
	records, err := it.repo.List(ctx, it.filter)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ForEach calls fn with successive batches of records.
// Iteration stops on the first error from fn. Context cancellation is
// checked before every batch.
func (it *TensorIterator) ForEach(ctx context.Context, fn func([]*core.TensorRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := it.repo.List(ctx, it.filter)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(records[start:min(start+it.batchSize, len(records))]); err != nil {
			return err
		}
	}
	return nil
}
