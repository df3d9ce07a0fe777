package domain

import "errors"

var (
	ErrNoFiles             = errors.New("at least one file is required")
	ErrMultiplePDFs        = errors.New("only 1 PDF file allowed")
	ErrTooManyImages       = errors.New("maximum 5 images allowed")
	ErrMixedFiles          = errors.New("cannot mix PDF and image files in one request")
	ErrUnknownBackend      = errors.New("unknown extraction backend")
	ErrBackendIncompatible = errors.New("image uploads require the multi-image backend")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrDocumentCorrupt     = errors.New("document could not be parsed as a valid PDF")
	ErrRasterization       = errors.New("failed to rasterize document pages")
	ErrBackendFailure      = errors.New("extraction backend failed")
	ErrMalformedResponse   = errors.New("backend returned a malformed response")
)
