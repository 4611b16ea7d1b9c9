// Package mock provides test doubles for the ai interfaces.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	count := embedder.CallCount()
//
// By default MockEmbedder returns deterministic unit vectors derived from a
// hash of the text, so equal texts always embed identically.
package mock
