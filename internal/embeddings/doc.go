// Package embeddings turns text into fixed-dimension vectors.
//
// A Provider wraps one embedding backend:
//   - fastembed: local ONNX models via fastembed-go (requires cgo)
//   - tei: HuggingFace Text Embeddings Inference over HTTP
//   - openai: any OpenAI-compatible /embeddings endpoint via langchaingo
//
// Service sits in front of a Provider, adding an LRU cache, otel metrics
// and a uniform failure mode: every provider failure surfaces as
// ErrEmbeddingUnavailable so callers can disable retrieval for that call
// instead of failing the request.
package embeddings
