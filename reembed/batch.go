package reembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/tensorvault/ai"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/retrieval"
	"github.com/poiesic/tensorvault/storage"
)

// BatchResult counts what one Process call did.
type BatchResult struct {
	Updated int
	// Skipped records were deleted or had their description changed
	// while the batch was being embedded.
	Skipped int
}

// BatchProcessor handles embedding generation for batches of tensor records.
type BatchProcessor struct {
	repo           storage.TensorRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	dimension      int
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: attempts for each embedding call and each conflicting write
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.TensorRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// WithDimension makes Process reject embeddings whose width is not dim.
func (bp *BatchProcessor) WithDimension(dim int) *BatchProcessor {
	bp.dimension = dim
	return bp
}

// Process embeds the records' descriptions and caches the normalized
// vectors on the stored records. Writes use the record version as an
// optimistic lock; when another writer got there first the fresh record
// is used instead, as long as its text is still the one that was embedded.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.TensorRecord) (BatchResult, error) {
	var result BatchResult
	if len(records) == 0 {
		return result, nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = retrieval.EmbeddingText(record)
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return result, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(records), len(embeddings))
	}
	if err := checkDimension(embeddings, bp.dimension); err != nil {
		return result, err
	}

	for i, record := range records {
		ok, err := bp.store(ctx, record, texts[i], NormalizeVector(embeddings[i]))
		if err != nil {
			return result, fmt.Errorf("failed to update tensor %s: %w", record.ID, err)
		}
		if ok {
			result.Updated++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (bp *BatchProcessor) store(ctx context.Context, record *core.TensorRecord, text string, vec []float32) (bool, error) {
	current := record
	for range max(bp.maxRetries, 1) {
		next := current.Clone()
		next.Embedding = vec
		ok, err := bp.repo.SaveWithLock(ctx, next, current.Version)
		if err != nil || ok {
			return ok, err
		}

		current, err = bp.repo.Get(ctx, record.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if retrieval.EmbeddingText(current) != text {
			return false, nil
		}
	}
	return false, nil
}
