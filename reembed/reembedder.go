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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/tensorvault/ai"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Dimension, when set, is the embedding width every vector must have
	Dimension int

	// OnlyMissing skips records whose cached embedding already has the
	// configured Dimension
	OnlyMissing bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary describes a finished run.
type Summary struct {
	Total   int
	Updated int
	Skipped int
	Elapsed time.Duration
}

// Reembedder orchestrates the reembedding of every tensor in the store.
type Reembedder struct {
	repo      storage.TensorRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *TensorIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.TensorRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay).WithDimension(config.Dimension),
		iterator:  NewTensorIterator(repo, config.BatchSize),
	}
}

// Run re-embeds every stored tensor with the configured embedder and
// reports progress to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	total, err := r.iterator.Count(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to count tensors: %w", err)
	}
	summary.Total = total
	if total == 0 {
		fmt.Fprintf(r.progress, "No tensors found in store (0 records)\n")
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d tensors (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(records []*core.TensorRecord) error {
		pending := records
		if r.config.OnlyMissing && r.config.Dimension > 0 {
			pending = make([]*core.TensorRecord, 0, len(records))
			for _, record := range records {
				if len(record.Embedding) == r.config.Dimension {
					summary.Skipped++
					continue
				}
				pending = append(pending, record)
			}
		}

		result, err := r.processor.Process(ctx, pending)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		summary.Updated += result.Updated
		summary.Skipped += result.Skipped
		tracker.Increment(len(records))
		return nil
	})
	if err != nil {
		return summary, err
	}

	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Updated %d of %d tensors in %v (%d skipped)\n",
		summary.Updated, total, summary.Elapsed.Round(time.Millisecond), summary.Skipped)
	return summary, nil
}
