package retrieval

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's width differs from the index's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrWeightsMismatch is returned when weights and tensors differ in count.
	ErrWeightsMismatch = errors.New("weights count does not match tensors")

	// ErrUnknownMethod is returned for an unrecognized composition method.
	ErrUnknownMethod = errors.New("unknown composition method")

	// ErrEmptyComposition is returned when there is nothing to compose.
	ErrEmptyComposition = errors.New("cannot compose empty tensor list")

	// ErrTensorRepositoryRequired is returned when a tensor repository is not provided.
	ErrTensorRepositoryRequired = errors.New("tensor repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSnapshotRepositoryRequired is returned by SaveIndex and LoadIndex
	// when no snapshot repository is configured.
	ErrSnapshotRepositoryRequired = errors.New("snapshot repository required")
)
