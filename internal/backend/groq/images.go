package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"certos/internal/backend"
	"certos/internal/config"
	"certos/internal/domain"
	"certos/internal/payload"
	"certos/internal/port"
)

const defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// ImagesBackend implements port.ExtractionBackend with one batched Groq
// vision call: all page images plus the extraction prompt go in a single
// request so the model merges every page into one combined record.
type ImagesBackend struct {
	apiKey        string
	model         string
	fallbackModel string
	endpoint      string
	client        *http.Client
}

// NewImagesBackend creates the multi-image Groq backend.
func NewImagesBackend(cfg *config.GroqConfig) *ImagesBackend {
	return NewImagesBackendWithEndpoint(cfg, defaultEndpoint)
}

// NewImagesBackendWithEndpoint creates a backend pointing at a custom API endpoint (for testing).
func NewImagesBackendWithEndpoint(cfg *config.GroqConfig, endpoint string) *ImagesBackend {
	model := cfg.Model
	if model == "" {
		model = "meta-llama/llama-4-scout-17b-16e-instruct"
	}
	fallbackModel := cfg.FallbackModel
	if fallbackModel == "" {
		fallbackModel = "meta-llama/llama-4-maverick-17b-128e-instruct"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &ImagesBackend{
		apiKey:        cfg.APIKey,
		model:         model,
		fallbackModel: fallbackModel,
		endpoint:      endpoint,
		client:        &http.Client{Timeout: timeout},
	}
}

func (b *ImagesBackend) Name() string {
	return string(domain.BackendMultiImage)
}

// Extract issues the batched vision request on the primary model, retrying
// the identical batch once on the fallback model. Escalation is a bounded
// loop over the two tiers, so termination is structural.
func (b *ImagesBackend) Extract(ctx context.Context, in port.ExtractIn) (string, error) {
	if len(in.Images) == 0 {
		return "", fmt.Errorf("multi-image backend requires at least one image payload")
	}

	prompt := backend.BuildCertificatePrompt()

	var lastErr error
	for _, attempt := range []struct {
		tier  domain.ModelTier
		model string
	}{
		{domain.TierPrimary, b.model},
		{domain.TierFallback, b.fallbackModel},
	} {
		text, err := b.complete(ctx, attempt.model, in.Images, prompt)
		if err == nil {
			return text, nil
		}
		log.Printf("groq.ImagesBackend: %s model %s failed: %v", attempt.tier, attempt.model, err)
		lastErr = err
	}

	return "", fmt.Errorf("%w: multi-image exhausted fallback: %v", domain.ErrBackendFailure, lastErr)
}

func (b *ImagesBackend) complete(ctx context.Context, model string, images []payload.Payload, prompt string) (string, error) {
	contentBlocks := make([]map[string]any, 0, len(images)+1)
	for _, img := range images {
		contentBlocks = append(contentBlocks, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": img.DataURI(),
			},
		})
	}
	contentBlocks = append(contentBlocks, map[string]any{
		"type": "text",
		"text": prompt,
	})

	reqBody := map[string]any{
		"model":                 model,
		"temperature":           0,
		"max_completion_tokens": 16384,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling groq API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("groq API error (status %d): %s", resp.StatusCode, backend.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := backend.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return "", backend.NewRateLimitError("groq", baseErr, retryAfter)
		}
		return "", baseErr
	}

	return parseResponse(respBody)
}

// apiResponse models the OpenAI-compatible chat completions response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API: no choices")
	}
	if resp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("output truncated (finish_reason: length): response exceeded output token limit")
	}

	return resp.Choices[0].Message.Content, nil
}
