package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"certos/internal/backend"
	"certos/internal/config"
	"certos/internal/domain"
	"certos/internal/payload"
	"certos/internal/port"
)

// UploadFile is one file received at the boundary, fully read into memory.
type UploadFile struct {
	Name string
	Size int64
	Data []byte
}

// ExtractIn is the DTO for one extraction request.
type ExtractIn struct {
	Backend domain.BackendName
	Files   []UploadFile
}

// ExtractionService coordinates validation, page budgeting, payload
// preparation, backend dispatch, response parsing, and artifact cleanup.
// A (nil, nil) return means the document was rejected as not a certificate.
type ExtractionService interface {
	Extract(ctx context.Context, in ExtractIn) (*domain.ExtractionResult, error)
}

// Truncator enforces the page budget on a stored PDF.
type Truncator interface {
	Truncate(ctx context.Context, path string, maxPages int) (string, bool, error)
}

// Rasterizer renders stored PDF pages into image artifacts.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, maxPages int) ([]string, error)
}

type extractionService struct {
	store      port.FileStore
	truncator  Truncator
	rasterizer Rasterizer
	backends   map[domain.BackendName]port.ExtractionBackend
	archive    port.ObjectStorage
	extractCfg *config.ExtractConfig
	uploadCfg  *config.UploadConfig
	archiveCfg *config.ArchiveConfig
}

// NewExtractionService creates an ExtractionService implementation.
func NewExtractionService(
	store port.FileStore,
	truncator Truncator,
	rasterizer Rasterizer,
	backends map[domain.BackendName]port.ExtractionBackend,
	archive port.ObjectStorage,
	extractCfg *config.ExtractConfig,
	uploadCfg *config.UploadConfig,
	archiveCfg *config.ArchiveConfig,
) ExtractionService {
	return &extractionService{
		store:      store,
		truncator:  truncator,
		rasterizer: rasterizer,
		backends:   backends,
		archive:    archive,
		extractCfg: extractCfg,
		uploadCfg:  uploadCfg,
		archiveCfg: archiveCfg,
	}
}

func (s *extractionService) Extract(ctx context.Context, in ExtractIn) (*domain.ExtractionResult, error) {
	// Validation runs before any artifact is created.
	shape, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	if s.extractCfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.extractCfg.RequestTimeout)
		defer cancel()
	}

	artifacts := newArtifactSet(s.store)
	defer artifacts.cleanup(context.WithoutCancel(ctx))

	raw, err := s.dispatch(ctx, in, shape, artifacts)
	if err != nil {
		if s.shouldDegrade(err) {
			return nil, nil
		}
		return nil, err
	}

	result, err := backend.ParseResult(raw)
	if err != nil {
		if s.shouldDegrade(err) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

// inputShape is the validated classification of one request's files.
type inputShape struct {
	isPDF bool
}

func (s *extractionService) validate(in ExtractIn) (*inputShape, error) {
	if len(in.Files) == 0 {
		return nil, domain.ErrNoFiles
	}
	if !domain.KnownBackends[in.Backend] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, in.Backend)
	}

	maxBytes := s.uploadCfg.MaxFileSizeMB * 1024 * 1024
	pdfs, images := 0, 0
	for _, f := range in.Files {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
		fileType, ok := domain.AllowedExtensions[ext]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, f.Name)
		}

		if f.Size > maxBytes || int64(len(f.Data)) > maxBytes {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, f.Name)
		}

		// Magic-byte check so a renamed file cannot smuggle another format.
		head := f.Data
		if len(head) > 512 {
			head = head[:512]
		}
		if _, ok := domain.AllowedContentTypes[sniffContentType(head)]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, f.Name)
		}

		if fileType.IsImage() {
			images++
		} else {
			pdfs++
		}
	}

	switch {
	case pdfs > 0 && images > 0:
		return nil, domain.ErrMixedFiles
	case pdfs > 1:
		return nil, domain.ErrMultiplePDFs
	case images > s.uploadCfg.MaxFiles:
		return nil, fmt.Errorf("%w (got %d)", domain.ErrTooManyImages, images)
	}

	if images > 0 && in.Backend != domain.BackendMultiImage {
		return nil, domain.ErrBackendIncompatible
	}

	return &inputShape{isPDF: pdfs == 1}, nil
}

// dispatch stores the upload, applies the page budget, prepares the
// backend-appropriate payloads, and runs the backend call. Every artifact it
// creates is registered with the artifact set before use.
func (s *extractionService) dispatch(ctx context.Context, in ExtractIn, shape *inputShape, artifacts *artifactSet) (string, error) {
	be, ok := s.backends[in.Backend]
	if !ok {
		return "", fmt.Errorf("%w: %q not configured", domain.ErrUnknownBackend, in.Backend)
	}

	if !shape.isPDF {
		payloads := make([]payload.Payload, 0, len(in.Files))
		for _, f := range in.Files {
			path, err := s.store.Save(ctx, f.Data, filepath.Ext(f.Name))
			if err != nil {
				return "", fmt.Errorf("saving upload: %w", err)
			}
			artifacts.add(path)
			s.archiveUpload(ctx, f, path)

			data, err := s.store.Read(ctx, path)
			if err != nil {
				return "", fmt.Errorf("reading upload: %w", err)
			}
			payloads = append(payloads, *payload.FromBytes(path, data))
		}
		return be.Extract(ctx, port.ExtractIn{Images: payloads})
	}

	pdfFile := in.Files[0]
	pdfPath, err := s.store.Save(ctx, pdfFile.Data, ".pdf")
	if err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	artifacts.add(pdfPath)
	s.archiveUpload(ctx, pdfFile, pdfPath)

	truncated, replaced, err := s.truncator.Truncate(ctx, pdfPath, s.extractCfg.PageBudget)
	if err != nil {
		return "", err
	}
	if replaced {
		artifacts.forget(pdfPath)
		artifacts.add(truncated)
	}

	if in.Backend == domain.BackendMultiImage {
		images, err := s.rasterizer.Rasterize(ctx, truncated, s.extractCfg.PageBudget)
		if err != nil {
			return "", err
		}
		payloads := make([]payload.Payload, 0, len(images))
		for _, img := range images {
			artifacts.add(img)
			data, err := s.store.Read(ctx, img)
			if err != nil {
				return "", fmt.Errorf("reading page image: %w", err)
			}
			payloads = append(payloads, *payload.FromBytes(img, data))
		}
		return be.Extract(ctx, port.ExtractIn{Images: payloads})
	}

	data, err := s.store.Read(ctx, truncated)
	if err != nil {
		return "", fmt.Errorf("reading truncated document: %w", err)
	}
	return be.Extract(ctx, port.ExtractIn{PDF: payload.FromBytes(truncated, data)})
}

// shouldDegrade applies the configured exhausted-fallback policy: strict
// propagation by default, or a null result for backend and parse failures
// when null_on_exhausted is set.
func (s *extractionService) shouldDegrade(err error) bool {
	if !s.extractCfg.NullOnExhausted {
		return false
	}
	if errors.Is(err, domain.ErrBackendFailure) || errors.Is(err, domain.ErrMalformedResponse) {
		log.Printf("extractionService.Extract: degrading to null result: %v", err)
		return true
	}
	return false
}

func (s *extractionService) archiveUpload(ctx context.Context, f UploadFile, path string) {
	if !s.archiveCfg.Enabled {
		return
	}
	key := fmt.Sprintf("uploads/%s/%s-%s", time.Now().UTC().Format("2006-01-02"), uuid.New().String(), filepath.Base(f.Name))
	_, err := s.archive.Upload(ctx, port.UploadInput{
		Bucket:      s.archiveCfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(f.Data),
		ContentType: payload.MimeTypeForPath(path),
		Size:        int64(len(f.Data)),
	})
	if err != nil {
		// Archival is best effort and never fails the request.
		log.Printf("extractionService.archiveUpload: archiving %s: %v", f.Name, err)
	}
}

func sniffContentType(head []byte) string {
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
