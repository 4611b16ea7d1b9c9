// Package retrieval finds tensors by the meaning of their descriptions and
// merges several matches into one tensor.
//
// EmbeddingIndex is an in-process, brute-force cosine index over unit
// vectors. The composition functions blend tensors sub-vector by
// sub-vector. Facade ties both to a TensorRepository and an ai.Embedder,
// keeping cached embeddings on the records so the index can be rebuilt
// without calling the model again.
package retrieval
