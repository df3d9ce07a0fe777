package groq_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certos/internal/backend/groq"
	"certos/internal/config"
	"certos/internal/domain"
	"certos/internal/payload"
	"certos/internal/port"
)

func newImagesTestBackend(serverURL string) *groq.ImagesBackend {
	cfg := &config.GroqConfig{
		APIKey:        "test-groq-key",
		Model:         "meta-llama/llama-4-scout-17b-16e-instruct",
		FallbackModel: "meta-llama/llama-4-maverick-17b-128e-instruct",
		TimeoutSecs:   30,
	}
	return groq.NewImagesBackendWithEndpoint(cfg, serverURL)
}

func chatSuccessResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": text,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func testImages(n int) []payload.Payload {
	images := make([]payload.Payload, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, payload.Payload{
			MimeType: "image/png",
			Data:     []byte{0x89, 0x50, 0x4E, 0x47, byte(i)},
		})
	}
	return images
}

func TestImagesBackend_Extract_BatchesAllPages(t *testing.T) {
	llmJSON := `{"policies":[]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-groq-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&reqBody)
		require.NoError(t, err)

		assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", reqBody["model"])
		assert.Equal(t, float64(0), reqBody["temperature"])
		assert.Equal(t, float64(16384), reqBody["max_completion_tokens"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		msg := messages[0].(map[string]interface{})
		assert.Equal(t, "user", msg["role"])

		// Three image blocks plus one trailing text block, single request.
		blocks := msg["content"].([]interface{})
		require.Len(t, blocks, 4)
		for i := 0; i < 3; i++ {
			block := blocks[i].(map[string]interface{})
			assert.Equal(t, "image_url", block["type"])
			imageURL := block["image_url"].(map[string]interface{})
			assert.True(t, strings.HasPrefix(imageURL["url"].(string), "data:image/png;base64,"))
		}
		textBlock := blocks[3].(map[string]interface{})
		assert.Equal(t, "text", textBlock["type"])
		assert.NotEmpty(t, textBlock["text"])

		_ = json.NewEncoder(w).Encode(chatSuccessResponse(llmJSON))
	}))
	defer server.Close()

	b := newImagesTestBackend(server.URL)

	text, err := b.Extract(context.Background(), port.ExtractIn{Images: testImages(3)})
	require.NoError(t, err)
	assert.Equal(t, llmJSON, text)
}

func TestImagesBackend_Extract_FallbackAfterPrimaryFailure(t *testing.T) {
	var models []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		models = append(models, reqBody["model"].(string))

		if len(models) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"bad gateway"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chatSuccessResponse("null"))
	}))
	defer server.Close()

	b := newImagesTestBackend(server.URL)

	text, err := b.Extract(context.Background(), port.ExtractIn{Images: testImages(1)})
	require.NoError(t, err)
	assert.Equal(t, "null", text)

	require.Len(t, models, 2)
	assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", models[0])
	assert.Equal(t, "meta-llama/llama-4-maverick-17b-128e-instruct", models[1])
}

func TestImagesBackend_Extract_ExhaustedFallback(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	b := newImagesTestBackend(server.URL)

	_, err := b.Extract(context.Background(), port.ExtractIn{Images: testImages(2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendFailure)
	assert.Equal(t, 2, calls)
}

func TestImagesBackend_Extract_TruncatedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"content": `{"partial":`},
					"finish_reason": "length",
				},
			},
		})
	}))
	defer server.Close()

	b := newImagesTestBackend(server.URL)

	_, err := b.Extract(context.Background(), port.ExtractIn{Images: testImages(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendFailure)
	assert.Contains(t, err.Error(), "finish_reason: length")
}

func TestImagesBackend_Extract_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	b := newImagesTestBackend(server.URL)

	_, err := b.Extract(context.Background(), port.ExtractIn{Images: testImages(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendFailure)
	assert.Contains(t, err.Error(), "429")
}

func TestImagesBackend_Extract_RequiresImages(t *testing.T) {
	b := newImagesTestBackend("http://unused.invalid")

	_, err := b.Extract(context.Background(), port.ExtractIn{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least one image")
}
