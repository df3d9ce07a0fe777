package gemini

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
	"certos/internal/port"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// InlineBackend implements port.ExtractionBackend by sending the whole
// encoded PDF inline to Gemini generateContent, escalating from the primary
// model to the lite fallback model at most once per call.
type InlineBackend struct {
	apiKey        string
	model         string
	fallbackModel string
	baseURL       string
	client        *http.Client
}

// NewInlineBackend creates the inline-pdf Gemini backend.
func NewInlineBackend(cfg *config.GeminiConfig) *InlineBackend {
	return NewInlineBackendWithBaseURL(cfg, defaultBaseURL)
}

// NewInlineBackendWithBaseURL creates a backend pointing at a custom API base URL (for testing).
func NewInlineBackendWithBaseURL(cfg *config.GeminiConfig, baseURL string) *InlineBackend {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	fallbackModel := cfg.FallbackModel
	if fallbackModel == "" {
		fallbackModel = "gemini-2.5-flash-lite"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &InlineBackend{
		apiKey:        cfg.APIKey,
		model:         model,
		fallbackModel: fallbackModel,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: timeout},
	}
}

func (b *InlineBackend) Name() string {
	return string(domain.BackendInlinePDF)
}

// Extract sends the PDF to the primary model and retries the identical
// request once on the fallback model. The tier is a local value: every call
// starts at primary regardless of what previous requests did.
func (b *InlineBackend) Extract(ctx context.Context, in port.ExtractIn) (string, error) {
	if in.PDF == nil {
		return "", fmt.Errorf("inline-pdf backend requires a PDF payload")
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
		text, err := b.generate(ctx, attempt.model, in, prompt)
		if err == nil {
			return text, nil
		}
		log.Printf("gemini.InlineBackend: %s model %s failed: %v", attempt.tier, attempt.model, err)
		lastErr = err
	}

	return "", fmt.Errorf("%w: inline-pdf exhausted fallback: %v", domain.ErrBackendFailure, lastErr)
}

func (b *InlineBackend) generate(ctx context.Context, model string, in port.ExtractIn, prompt string) (string, error) {
	reqBody := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]any{
					{
						"inline_data": map[string]any{
							"mime_type": in.PDF.MimeType,
							"data":      in.PDF.Base64(),
						},
					},
					{
						"text": prompt,
					},
				},
			},
		},
		"generationConfig": generationConfig(),
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", b.baseURL, model)
	return doGenerate(ctx, b.client, endpoint, b.apiKey, reqBody)
}

// generationConfig biases toward literal extraction over creative completion.
func generationConfig() map[string]any {
	return map[string]any{
		"temperature":      0,
		"responseMimeType": "application/json",
		"maxOutputTokens":  16384,
	}
}

// generateResponse models the generateContent API response.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// doGenerate posts a generateContent request and returns the raw model text.
func doGenerate(ctx context.Context, client *http.Client, endpoint, apiKey string, reqBody map[string]any) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, backend.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := backend.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return "", backend.NewRateLimitError("gemini", baseErr, retryAfter)
		}
		return "", baseErr
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("empty response from API: no candidates")
	}
	if len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from API: no parts")
	}
	if parsed.Candidates[0].FinishReason == "MAX_TOKENS" {
		return "", fmt.Errorf("output truncated (finishReason: MAX_TOKENS): response exceeded output token limit")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
