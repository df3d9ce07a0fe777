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

// Remote file states reported by the Files API.
const (
	fileStateProcessing = "PROCESSING"
	fileStateActive     = "ACTIVE"
	fileStateFailed     = "FAILED"
)

// FilesBackend implements port.ExtractionBackend via the Gemini Files API:
// upload the PDF, poll until processing settles, then reference the remote
// file handle in a generateContent call. The remote handle is request-scoped
// and always scheduled for deletion once the call completes.
type FilesBackend struct {
	apiKey        string
	model         string
	fallbackModel string
	baseURL       string
	client        *http.Client
	pollInterval  time.Duration
	pollMax       time.Duration
}

// NewFilesBackend creates the files-api-pdf Gemini backend.
func NewFilesBackend(cfg *config.GeminiConfig) *FilesBackend {
	return NewFilesBackendWithBaseURL(cfg, defaultBaseURL)
}

// NewFilesBackendWithBaseURL creates a backend pointing at a custom API base URL (for testing).
func NewFilesBackendWithBaseURL(cfg *config.GeminiConfig, baseURL string) *FilesBackend {
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
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	pollMax := cfg.PollMaxDuration
	if pollMax == 0 {
		pollMax = 60 * time.Second
	}
	return &FilesBackend{
		apiKey:        cfg.APIKey,
		model:         model,
		fallbackModel: fallbackModel,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: timeout},
		pollInterval:  pollInterval,
		pollMax:       pollMax,
	}
}

func (b *FilesBackend) Name() string {
	return string(domain.BackendFilesAPIPDF)
}

// Extract uploads the PDF once, then runs the referenced-file generation on
// the primary model with a single fallback-model retry. Remote file cleanup
// runs on every exit path; its failure is logged, never surfaced.
func (b *FilesBackend) Extract(ctx context.Context, in port.ExtractIn) (string, error) {
	if in.PDF == nil {
		return "", fmt.Errorf("files-api-pdf backend requires a PDF payload")
	}

	handle, err := b.uploadFile(ctx, in.PDF.Data, in.PDF.MimeType)
	if err != nil {
		return "", fmt.Errorf("%w: uploading to files API: %v", domain.ErrBackendFailure, err)
	}
	defer b.deleteFile(context.WithoutCancel(ctx), handle.Name)

	handle, err = b.awaitProcessing(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
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
		text, err := b.generate(ctx, attempt.model, handle, in.PDF.MimeType, prompt)
		if err == nil {
			return text, nil
		}
		log.Printf("gemini.FilesBackend: %s model %s failed: %v", attempt.tier, attempt.model, err)
		lastErr = err
	}

	return "", fmt.Errorf("%w: files-api-pdf exhausted fallback: %v", domain.ErrBackendFailure, lastErr)
}

// fileHandle is the remote file resource returned by the Files API.
type fileHandle struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type fileEnvelope struct {
	File fileHandle `json:"file"`
}

func (b *FilesBackend) uploadFile(ctx context.Context, data []byte, mimeType string) (*fileHandle, error) {
	endpoint := fmt.Sprintf("%s/upload/v1beta/files", b.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("x-goog-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling files API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("files API upload error (status %d): %s", resp.StatusCode, backend.Truncate(string(respBody), 500))
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshaling upload response: %w", err)
	}
	if envelope.File.Name == "" {
		return nil, fmt.Errorf("files API upload returned no file name")
	}
	return &envelope.File, nil
}

// awaitProcessing polls the remote file every pollInterval until its state
// leaves PROCESSING, bounded by pollMax so a stuck remote job cannot block
// the request forever.
func (b *FilesBackend) awaitProcessing(ctx context.Context, handle *fileHandle) (*fileHandle, error) {
	deadline := time.Now().Add(b.pollMax)

	for handle.State == fileStateProcessing || handle.State == "" {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("file %s still processing after %s", handle.Name, b.pollMax)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}

		current, err := b.getFile(ctx, handle.Name)
		if err != nil {
			return nil, fmt.Errorf("polling file %s: %w", handle.Name, err)
		}
		handle = current
	}

	if handle.State == fileStateFailed {
		return nil, fmt.Errorf("file %s failed remote processing", handle.Name)
	}
	return handle, nil
}

func (b *FilesBackend) getFile(ctx context.Context, name string) (*fileHandle, error) {
	endpoint := fmt.Sprintf("%s/v1beta/%s", b.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating get request: %w", err)
	}
	req.Header.Set("x-goog-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling files API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file status: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("files API status error (status %d): %s", resp.StatusCode, backend.Truncate(string(respBody), 500))
	}

	var handle fileHandle
	if err := json.Unmarshal(respBody, &handle); err != nil {
		return nil, fmt.Errorf("unmarshaling file status: %w", err)
	}
	return &handle, nil
}

// deleteFile removes the remote file handle, best effort.
func (b *FilesBackend) deleteFile(ctx context.Context, name string) {
	endpoint := fmt.Sprintf("%s/v1beta/%s", b.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		log.Printf("gemini.FilesBackend: creating delete request for %s: %v", name, err)
		return
	}
	req.Header.Set("x-goog-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		log.Printf("gemini.FilesBackend: deleting remote file %s: %v", name, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		log.Printf("gemini.FilesBackend: deleting remote file %s: status %d", name, resp.StatusCode)
	}
}

func (b *FilesBackend) generate(ctx context.Context, model string, handle *fileHandle, mimeType, prompt string) (string, error) {
	reqBody := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]any{
					{
						"file_data": map[string]any{
							"mime_type": mimeType,
							"file_uri":  handle.URI,
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
