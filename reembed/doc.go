// Package reembed regenerates the cached description embeddings of stored
// tensors, typically after switching embedding models.
//
// Records are read in batches, embedded with retry and exponential
// backoff, normalized for cosine similarity, and written back with an
// optimistic lock so concurrent training saves are never overwritten.
package reembed
