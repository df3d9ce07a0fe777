package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"certos/internal/domain"
)

// AnalyzeResponse is the success envelope for extraction requests. Data is
// null when the backend rejected the document as not a certificate.
type AnalyzeResponse struct {
	Message        string                   `json:"message"`
	Data           *domain.ExtractionResult `json:"data"`
	ProcessingTime string                   `json:"processingTime"`
	Model          string                   `json:"model"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success  bool      `json:"success"`
	Error    *APIError `json:"error"`
	Metadata *Metadata `json:"metadata"`
}

// APIError holds error details in the failure envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Metadata holds timing metadata in the failure envelope.
type Metadata struct {
	Timestamp      string `json:"timestamp"`
	ProcessingTime string `json:"processingTime"`
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg, details string, elapsed time.Duration) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg, Details: details},
		Metadata: &Metadata{
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			ProcessingTime: elapsed.String(),
		},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Validation failures carry their precise reason; provider failures stay
// generic with the cause confined to the details field.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrNoFiles):
		return http.StatusBadRequest, "NO_FILES", domain.ErrNoFiles.Error()
	case errors.Is(err, domain.ErrMultiplePDFs):
		return http.StatusBadRequest, "MULTIPLE_PDFS", domain.ErrMultiplePDFs.Error()
	case errors.Is(err, domain.ErrTooManyImages):
		return http.StatusBadRequest, "TOO_MANY_IMAGES", domain.ErrTooManyImages.Error()
	case errors.Is(err, domain.ErrMixedFiles):
		return http.StatusBadRequest, "MIXED_FILES", domain.ErrMixedFiles.Error()
	case errors.Is(err, domain.ErrUnknownBackend):
		return http.StatusBadRequest, "UNKNOWN_MODEL", "unknown model; allowed: inline-pdf, files-api-pdf, multi-image"
	case errors.Is(err, domain.ErrBackendIncompatible):
		return http.StatusBadRequest, "INCOMPATIBLE_MODEL", domain.ErrBackendIncompatible.Error()
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, png"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", domain.ErrFileTooLarge.Error()
	case errors.Is(err, domain.ErrDocumentCorrupt):
		return http.StatusBadRequest, "DOCUMENT_CORRUPT", domain.ErrDocumentCorrupt.Error()
	case errors.Is(err, domain.ErrRasterization):
		return http.StatusUnprocessableEntity, "RASTERIZATION_FAILED", domain.ErrRasterization.Error()
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "MALFORMED_RESPONSE", "analysis failed"
	case errors.Is(err, domain.ErrBackendFailure):
		return http.StatusBadGateway, "ANALYSIS_FAILED", "analysis failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error, elapsed time.Duration) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] analysis error: %v", requestID, err)
	}
	details := ""
	if status != http.StatusInternalServerError {
		details = err.Error()
	}
	RespondError(c, status, code, msg, details, elapsed)
}
