// Package llmclient defines the structured-output LLM client boundary
// shared by the extractor (D) and the reranker (J): one request/response
// contract, one concrete Ollama-backed implementation, and a raw-JSON
// fallback parser for models that ignore the structured-output request.
// Grounded on internal/embedding/ollama.go's HTTP-call shape,
// generalized from the embeddings endpoint to chat/generate completion.
package llmclient

import "context"

// CompletionRequest is one structured-completion call.
type CompletionRequest struct {
	// SystemPrompt sets the model's role/instructions.
	SystemPrompt string
	// UserPrompt carries the data to act on (e.g. the rendered Markdown chunk).
	UserPrompt string
	// Temperature controls sampling randomness; extraction/rerank use a low
	// value (~0.2) for deterministic structured output.
	Temperature float64
	// MaxRetries bounds per-call retries on transient adapter errors.
	MaxRetries int
	// Kind labels this call for the platform's LLM-latency histogram (e.g.
	// "extraction", "rerank"); defaults to "unspecified" when empty.
	Kind string
}

// CompletionResult is the raw text returned by the model. OllamaClient.Complete
// leaves UsedFallback false; callers run ExtractJSON on Text themselves.
type CompletionResult struct {
	Text         string
	UsedFallback bool
}

// StructuredClient is the boundary internal/extract and internal/rerank
// depend on. Never depend on OllamaClient directly so a second provider can
// be added without touching either caller.
type StructuredClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
