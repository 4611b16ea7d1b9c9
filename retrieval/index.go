package retrieval

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/poiesic/tensorvault/ai"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// Match is one index hit.
type Match struct {
	ID    string
	Score float64 // Cosine similarity clamped to [0, 1]
}

// EmbeddingIndex holds unit vectors keyed by tensor ID in insertion order.
// It is safe for concurrent use.
type EmbeddingIndex struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
	pos     map[string]int
}

// NewEmbeddingIndex creates an empty index for vectors of width dim.
// A non-positive dim means ai.DefaultDimension.
func NewEmbeddingIndex(dim int) *EmbeddingIndex {
	if dim <= 0 {
		dim = ai.DefaultDimension
	}
	return &EmbeddingIndex{dim: dim, pos: make(map[string]int)}
}

// Dimension returns the vector width the index accepts.
func (ix *EmbeddingIndex) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Add normalizes vec and stores it under id. Re-adding an id replaces its
// vector in place, keeping its original position.
func (ix *EmbeddingIndex) Add(id string, vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(vec) != ix.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, ix.dim, len(vec))
	}
	unit := normalize(vec)

	if i, ok := ix.pos[id]; ok {
		ix.vectors[i] = unit
		return nil
	}
	ix.pos[id] = len(ix.ids)
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, unit)
	return nil
}

// Remove deletes id, reporting whether it was present. Later entries keep
// their relative order.
func (ix *EmbeddingIndex) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	i, ok := ix.pos[id]
	if !ok {
		return false
	}
	ix.ids = slices.Delete(ix.ids, i, i+1)
	ix.vectors = slices.Delete(ix.vectors, i, i+1)
	delete(ix.pos, id)
	for j := i; j < len(ix.ids); j++ {
		ix.pos[ix.ids[j]] = j
	}
	return true
}

// Search returns up to k entries most similar to query, best first.
// Equal similarities keep insertion order.
func (ix *EmbeddingIndex) Search(query []float32, k int) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, ix.dim, len(query))
	}
	if k <= 0 || len(ix.ids) == 0 {
		return []Match{}, nil
	}

	q := normalize(query)
	scored := make([]Match, len(ix.ids))
	for i, vec := range ix.vectors {
		scored[i] = Match{ID: ix.ids[i], Score: dot(q, vec)}
	}
	slices.SortStableFunc(scored, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	scored = scored[:min(k, len(scored))]
	for i := range scored {
		scored[i].Score = clamp01(scored[i].Score)
	}
	return scored, nil
}

// Get returns a copy of the stored unit vector for id.
func (ix *EmbeddingIndex) Get(id string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	i, ok := ix.pos[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(ix.vectors[i]), true
}

// Len returns the number of entries.
func (ix *EmbeddingIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// IDs returns the indexed IDs in insertion order.
func (ix *EmbeddingIndex) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.ids)
}

// Clear removes every entry.
func (ix *EmbeddingIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ids = nil
	ix.vectors = nil
	clear(ix.pos)
}

// Snapshot copies the index into its persisted form.
func (ix *EmbeddingIndex) Snapshot() *core.IndexSnapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snap := &core.IndexSnapshot{Dimension: ix.dim, Entries: make([]core.IndexEntry, len(ix.ids))}
	for i, id := range ix.ids {
		snap.Entries[i] = core.IndexEntry{ID: id, Vector: slices.Clone(ix.vectors[i])}
	}
	return snap
}

// Restore replaces the index contents, and its dimension, with snap.
// Nothing changes when any entry has the wrong width or a repeated ID.
func (ix *EmbeddingIndex) Restore(snap *core.IndexSnapshot) error {
	if snap.Dimension <= 0 {
		return fmt.Errorf("%w: snapshot dimension %d", ErrDimensionMismatch, snap.Dimension)
	}
	ids := make([]string, len(snap.Entries))
	vectors := make([][]float32, len(snap.Entries))
	pos := make(map[string]int, len(snap.Entries))
	for i, e := range snap.Entries {
		if len(e.Vector) != snap.Dimension {
			return fmt.Errorf("%w: entry %q has %d values, snapshot declares %d", ErrDimensionMismatch, e.ID, len(e.Vector), snap.Dimension)
		}
		if _, dup := pos[e.ID]; dup {
			return fmt.Errorf("%w: duplicate index entry %q", storage.ErrSerializationFailed, e.ID)
		}
		pos[e.ID] = i
		ids[i] = e.ID
		vectors[i] = normalize(e.Vector)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dim = snap.Dimension
	ix.ids = ids
	ix.vectors = vectors
	ix.pos = pos
	return nil
}

// Save writes a snapshot of the index to w.
func (ix *EmbeddingIndex) Save(w io.Writer) error {
	_, err := w.Write(storage.MarshalIndexSnapshot(ix.Snapshot()))
	return err
}

// Load replaces the index with a snapshot read from r.
func (ix *EmbeddingIndex) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	snap, err := storage.UnmarshalIndexSnapshot(data)
	if err != nil {
		return err
	}
	return ix.Restore(snap)
}

// normalize returns vec scaled to unit length. Zero vectors are copied
// unchanged.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
