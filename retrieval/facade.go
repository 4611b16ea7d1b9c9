package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/tensorvault/ai"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Facade defaults.
const (
	DefaultSearchLimit          = 10
	DefaultCompositionThreshold = 0.7
	DefaultSnapshotName         = "tensors"
	DefaultEmbedBatchSize       = 32
	DefaultBuildConcurrency     = 4

	searchOverfetch   = 3
	resolveCandidates = 5
	strongMatch       = 0.9
	composeCandidates = 3
	composeMinScore   = 0.3
)

// SearchResult is one matched tensor.
type SearchResult struct {
	TensorID string
	Score    float64
	Record   *core.TensorRecord
}

// SearchOptions narrows a search. A record matches Categories when any
// entry is a substring of its Category.
type SearchOptions struct {
	Limit       int // <= 0 means DefaultSearchLimit
	MinMaturity float64
	Categories  []string
}

// ResolveOptions controls ResolveForEntity.
type ResolveOptions struct {
	MinMaturity          float64
	AllowComposition     bool
	CompositionThreshold float64
}

// DefaultResolveOptions allows composition below DefaultCompositionThreshold.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{AllowComposition: true, CompositionThreshold: DefaultCompositionThreshold}
}

// NewTensor describes a tensor added through the facade.
type NewTensor struct {
	ID          string
	EntityID    string
	WorldID     string
	Tensor      *core.Tensor
	Description string
	Maturity    float64
	Category    string
}

// Facade provides semantic search over the tensor store.
type Facade struct {
	tensors     storage.TensorRepository
	snapshots   storage.IndexSnapshotRepository
	embedder    ai.Embedder
	index       *EmbeddingIndex
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// Option configures a Facade.
type Option func(*Facade) error

// WithDimension sets the embedding width of a fresh index.
// Default is ai.DefaultDimension.
func WithDimension(dim int) Option {
	return func(f *Facade) error {
		if dim < 1 {
			return fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
		}
		f.index = NewEmbeddingIndex(dim)
		return nil
	}
}

// WithSnapshotRepository enables SaveIndex and LoadIndex.
func WithSnapshotRepository(snapshots storage.IndexSnapshotRepository) Option {
	return func(f *Facade) error {
		f.snapshots = snapshots
		return nil
	}
}

// WithEmbedBatchSize sets how many descriptions BuildIndex embeds per call.
func WithEmbedBatchSize(size int) Option {
	return func(f *Facade) error {
		if size < 1 {
			size = 1
		}
		f.batchSize = size
		return nil
	}
}

// WithBuildConcurrency sets how many embedding batches BuildIndex runs at once.
func WithBuildConcurrency(n int) Option {
	return func(f *Facade) error {
		if n < 1 {
			n = 1
		}
		f.concurrency = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFacade creates a Facade with an empty index. Call BuildIndex or
// LoadIndex to populate it.
func NewFacade(tensors storage.TensorRepository, embedder ai.Embedder, opts ...Option) (*Facade, error) {
	if tensors == nil {
		return nil, ErrTensorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	f := &Facade{
		tensors:     tensors,
		embedder:    embedder,
		index:       NewEmbeddingIndex(ai.DefaultDimension),
		batchSize:   DefaultEmbedBatchSize,
		concurrency: DefaultBuildConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "retrieval-facade")
	return f, nil
}

// Index returns the underlying index.
func (f *Facade) Index() *EmbeddingIndex {
	return f.index
}

// IndexSize returns the number of indexed tensors.
func (f *Facade) IndexSize() int {
	return f.index.Len()
}

// BuildIndex adds every stored tensor to the index and returns how many
// were indexed. Cached embeddings are reused; the rest are embedded from
// the description, or from "entity world" when there is none. Embeddings
// generated from a description are cached back on the record.
func (f *Facade) BuildIndex(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "retrieval.BuildIndex")
	defer span.End()

	records, err := f.tensors.List(ctx, storage.TensorFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	dim := f.index.Dimension()
	var pending []*core.TensorRecord
	indexed := 0
	for _, r := range records {
		if len(r.Embedding) == dim {
			if err := f.index.Add(r.ID, r.Embedding); err != nil {
				return indexed, err
			}
			indexed++
			continue
		}
		pending = append(pending, r)
	}

	vectors := make([][]float32, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for start := 0; start < len(pending); start += f.batchSize {
		batch := pending[start:min(start+f.batchSize, len(pending))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, r := range batch {
				texts[i] = EmbeddingText(r)
			}
			out, err := f.embedTexts(gctx, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return indexed, fmt.Errorf("embed descriptions: %w", err)
	}

	for i, r := range pending {
		if err := f.index.Add(r.ID, vectors[i]); err != nil {
			return indexed, fmt.Errorf("index %s: %w", r.ID, err)
		}
		indexed++
		if r.Description != "" {
			f.cacheEmbedding(ctx, r, vectors[i])
		}
	}

	span.SetAttributes(
		attribute.Int("index.size", f.index.Len()),
		attribute.Int("index.embedded", len(pending)),
	)
	f.logger.Info("index built", "indexed", indexed, "embedded", len(pending))
	return indexed, nil
}

// RebuildIndex clears the index and builds it again from the store.
func (f *Facade) RebuildIndex(ctx context.Context) (int, error) {
	f.index.Clear()
	return f.BuildIndex(ctx)
}

// Search finds tensors whose descriptions match query, best first. Indexed
// IDs that no longer exist in the store are skipped. An empty query lists
// stored tensors in ID order with score 1.
func (f *Facade) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if strings.TrimSpace(query) == "" {
		searches.WithLabelValues("listing").Inc()
		return f.list(ctx, opts, limit)
	}
	searches.WithLabelValues("semantic").Inc()

	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "retrieval.Search",
		trace.WithAttributes(
			attribute.Int("search.limit", limit),
			attribute.Float64("search.min_maturity", opts.MinMaturity),
		),
	)
	defer span.End()

	vec, err := f.embedText(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	matches, err := f.index.Search(vec, limit*searchOverfetch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, m := range matches {
		record, err := f.tensors.Get(ctx, m.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !matchesFilters(record, opts) {
			continue
		}
		results = append(results, SearchResult{TensorID: m.ID, Score: m.Score, Record: record})
		if len(results) >= limit {
			break
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// Compose merges the tensors of results. Nil weights mean the results'
// scores.
func (f *Facade) Compose(results []SearchResult, weights []float64, method Method) (*core.Tensor, error) {
	if len(results) == 0 {
		return nil, ErrEmptyComposition
	}
	tensors := make([]*core.Tensor, len(results))
	for i, r := range results {
		t, err := core.DecodeTensor(r.Record.Blob)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.TensorID, err)
		}
		tensors[i] = t
	}
	if weights == nil {
		weights = make([]float64, len(results))
		for i, r := range results {
			weights[i] = r.Score
		}
	}
	return Compose(tensors, method, weights)
}

// ResolveForEntity picks the tensor that best represents an entity in a
// scenario. A strong match is returned as is; several weak matches are
// blended; no match at all yields core.DefaultTensor.
func (f *Facade) ResolveForEntity(ctx context.Context, description, scenario string, opts ResolveOptions) (*core.Tensor, error) {
	threshold := opts.CompositionThreshold
	if threshold <= 0 {
		threshold = DefaultCompositionThreshold
	}

	query := fmt.Sprintf("%s in %s", description, scenario)
	results, err := f.Search(ctx, query, SearchOptions{Limit: resolveCandidates, MinMaturity: opts.MinMaturity})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		resolutions.WithLabelValues("default").Inc()
		return core.DefaultTensor(), nil
	}

	best := results[0]
	if best.Score > strongMatch || !opts.AllowComposition || best.Score > threshold {
		resolutions.WithLabelValues("best").Inc()
		return core.DecodeTensor(best.Record.Blob)
	}

	var weak []SearchResult
	for _, r := range results[:min(composeCandidates, len(results))] {
		if r.Score > composeMinScore {
			weak = append(weak, r)
		}
	}
	if len(weak) > 1 {
		resolutions.WithLabelValues("composed").Inc()
		return f.Compose(weak, nil, MethodWeightedBlend)
	}
	resolutions.WithLabelValues("best").Inc()
	return core.DecodeTensor(best.Record.Blob)
}

// AddTensor embeds the description, stores the record with its embedding
// and indexes it.
func (f *Facade) AddTensor(ctx context.Context, nt NewTensor) (*core.TensorRecord, error) {
	if nt.Tensor == nil {
		return nil, fmt.Errorf("%w: tensor is nil", core.ErrInvalidTensorRecord)
	}
	blob, err := core.EncodeTensor(nt.Tensor)
	if err != nil {
		return nil, err
	}

	record := &core.TensorRecord{
		ID:          nt.ID,
		EntityID:    nt.EntityID,
		WorldID:     nt.WorldID,
		Blob:        blob,
		Maturity:    nt.Maturity,
		Description: nt.Description,
		Category:    nt.Category,
	}
	if err := core.ValidateTensorRecord(record); err != nil {
		return nil, err
	}

	vec, err := f.embedText(ctx, EmbeddingText(record))
	if err != nil {
		return nil, err
	}
	if len(vec) != f.index.Dimension() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, f.index.Dimension(), len(vec))
	}
	record.Embedding = vec

	saved, err := f.tensors.Save(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := f.index.Add(saved.ID, vec); err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateTensor replaces a stored tensor's contents and optionally its
// description and maturity. A changed description is embedded again.
// Returns storage.ErrNotFound if the tensor doesn't exist.
func (f *Facade) UpdateTensor(ctx context.Context, id string, tensor *core.Tensor, description *string, maturity *float64) (*core.TensorRecord, error) {
	record, err := f.tensors.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", id, err)
	}

	blob, err := core.EncodeTensor(tensor)
	if err != nil {
		return nil, err
	}
	record.Blob = blob
	if maturity != nil {
		record.Maturity = *maturity
	}

	var reembedded []float32
	if description != nil && *description != record.Description {
		record.Description = *description
		vec, err := f.embedText(ctx, EmbeddingText(record))
		if err != nil {
			return nil, err
		}
		record.Embedding = vec
		reembedded = vec
	}

	saved, err := f.tensors.Save(ctx, record)
	if err != nil {
		return nil, err
	}
	if reembedded != nil {
		if err := f.index.Add(id, reembedded); err != nil {
			return nil, err
		}
	}
	return saved, nil
}

// RemoveTensor deletes a tensor from the store and the index.
func (f *Facade) RemoveTensor(ctx context.Context, id string) (bool, error) {
	deleted, err := f.tensors.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	removed := f.index.Remove(id)
	return deleted || removed, nil
}

// SaveIndex stores an index snapshot in the snapshot repository.
func (f *Facade) SaveIndex(ctx context.Context) error {
	if f.snapshots == nil {
		return ErrSnapshotRepositoryRequired
	}
	snap := f.index.Snapshot()
	if len(snap.Entries) > core.MaxIndexEntries {
		return fmt.Errorf("%w: index holds %d entries", core.ErrTooLong, len(snap.Entries))
	}
	return f.snapshots.PutSnapshot(ctx, DefaultSnapshotName, storage.MarshalIndexSnapshot(snap))
}

// LoadIndex replaces the index with the stored snapshot.
// Returns storage.ErrNotFound if none was saved.
func (f *Facade) LoadIndex(ctx context.Context) error {
	if f.snapshots == nil {
		return ErrSnapshotRepositoryRequired
	}
	data, err := f.snapshots.GetSnapshot(ctx, DefaultSnapshotName)
	if err != nil {
		return err
	}
	snap, err := storage.UnmarshalIndexSnapshot(data)
	if err != nil {
		return err
	}
	return f.index.Restore(snap)
}

func (f *Facade) list(ctx context.Context, opts SearchOptions, limit int) ([]SearchResult, error) {
	records, err := f.tensors.List(ctx, storage.TensorFilter{})
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, min(limit, len(records)))
	for _, r := range records {
		if !matchesFilters(r, opts) {
			continue
		}
		results = append(results, SearchResult{TensorID: r.ID, Score: 1, Record: r})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// cacheEmbedding stores vec on the record unless another writer has saved
// it since it was read; the next build simply embeds it again.
func (f *Facade) cacheEmbedding(ctx context.Context, record *core.TensorRecord, vec []float32) {
	next := record.Clone()
	next.Embedding = vec
	ok, err := f.tensors.SaveWithLock(ctx, next, record.Version)
	switch {
	case err != nil:
		f.logger.Warn("failed to cache embedding", "tensor_id", record.ID, "err", err)
	case !ok:
		f.logger.Debug("skipped embedding cache after concurrent update", "tensor_id", record.ID)
	}
}

func (f *Facade) embedText(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Embed", trace.WithAttributes(attribute.Int("embed.length", len(text))))
	defer span.End()

	embeddingsGenerated.Inc()
	vec, err := f.embedder.EmbedText(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return vec, nil
}

func (f *Facade) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "retrieval.EmbedBatch", trace.WithAttributes(attribute.Int("embed.count", len(texts))))
	defer span.End()

	embeddingsGenerated.Add(float64(len(texts)))
	vecs, err := f.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(vecs) != len(texts) {
		err := fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return vecs, nil
}

// EmbeddingText is the text a record is indexed under: its description,
// or "entity world" when it has none.
func EmbeddingText(r *core.TensorRecord) string {
	if r.Description != "" {
		return r.Description
	}
	return strings.TrimSpace(r.EntityID + " " + r.WorldID)
}

func matchesFilters(r *core.TensorRecord, opts SearchOptions) bool {
	if r.Maturity < opts.MinMaturity {
		return false
	}
	if len(opts.Categories) == 0 {
		return true
	}
	if r.Category == "" {
		return false
	}
	return slices.ContainsFunc(opts.Categories, func(c string) bool {
		return strings.Contains(r.Category, c)
	})
}
