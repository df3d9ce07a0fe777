package backend

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"certos/internal/domain"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseJSON recovers a JSON object from free-form model output.
//
// A trimmed response equal to "null" is the sentinel for "not a certificate"
// and yields (nil, nil). Otherwise the JSON span is located by trying, in
// order: a fenced code block, the first balanced {...} span, and finally the
// whole trimmed text. Text that is present but not recoverable as JSON is a
// domain.ErrMalformedResponse. No schema coercion happens here.
func ParseJSON(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)

	span := text
	if text != "null" {
		span = strings.TrimSpace(extractJSONSpan(text))
	}
	if span == "null" {
		return nil, nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(span), &m); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %s)", domain.ErrMalformedResponse, err, Truncate(text, 500))
	}
	return m, nil
}

// ParseResult recovers a JSON object from raw model text and normalizes it
// into the strict certificate schema. A sentinel null yields (nil, nil).
func ParseResult(raw string) (*domain.ExtractionResult, error) {
	m, err := ParseJSON(raw)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return sanitizeResult(m)
}

// extractJSONSpan locates the most plausible JSON span inside text.
func extractJSONSpan(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if candidate := strings.TrimSpace(m[1]); candidate != "" {
			return candidate
		}
	}

	if span := balancedObject(text); span != "" {
		return span
	}

	return text
}

// balancedObject returns the first balanced {...} span in text, tracking
// string literals so braces inside values do not miscount.
func balancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
