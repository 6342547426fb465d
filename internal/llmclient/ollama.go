package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/metrics"
	"github.com/sony/gobreaker"
)

// OllamaClient calls the local Ollama /api/generate completion endpoint,
// wrapped in a circuit breaker so a flapping downstream fails fast instead
// of stacking up retries across callers.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewOllamaClient constructs a client for the given model. endpoint
// defaults to http://localhost:11434 when empty.
func NewOllamaClient(endpoint, model string) *OllamaClient {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llmclient.ollama",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &OllamaClient{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
		breaker:  cb,
	}
}

type ollamaGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Stream      bool    `json:"stream"`
	Format      string  `json:"format,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete issues one structured-JSON completion request. On a transient
// HTTP/transport error it retries up to req.MaxRetries times before
// returning a domainerr.LLM error.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	log := logging.Get(logging.CategoryETL)

	kind := req.Kind
	if kind == "" {
		kind = "unspecified"
	}
	callStart := time.Now()
	defer func() {
		metrics.LLMLatency.WithLabelValues(kind).Observe(time.Since(callStart).Seconds())
	}()

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:       c.model,
		Prompt:      req.UserPrompt,
		System:      req.SystemPrompt,
		Temperature: req.Temperature,
		Stream:      false,
		Format:      "json",
	})
	if err != nil {
		return CompletionResult{}, domainerr.Wrap(domainerr.KindLLM, err, "failed to marshal completion request")
	}

	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		text, err := c.doRequest(ctx, body)
		if err == nil {
			return CompletionResult{Text: text}, nil
		}
		lastErr = err
		log.Warn("llmclient: completion attempt %d/%d failed: %v", attempt+1, maxRetries+1, err)
	}

	return CompletionResult{}, domainerr.Wrap(domainerr.KindLLM, lastErr, "completion failed after retries")
}

func (c *OllamaClient) doRequest(ctx context.Context, body []byte) (string, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("ollama request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
		}

		var out ollamaGenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return out.Response, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
