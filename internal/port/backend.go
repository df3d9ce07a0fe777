package port

import (
	"context"

	"certos/internal/payload"
)

// ExtractIn carries the backend-ready payloads for one extraction call.
// Exactly one of PDF or Images is populated.
type ExtractIn struct {
	PDF    *payload.Payload
	Images []payload.Payload
}

// ExtractionBackend abstracts one AI provider/model pairing. Extract returns
// the raw model text: valid JSON, JSON in a fenced code block, prose around
// one JSON object, or the literal string "null" (document rejected).
type ExtractionBackend interface {
	Name() string
	Extract(ctx context.Context, in ExtractIn) (string, error)
}
