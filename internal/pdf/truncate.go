package pdf

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"certos/internal/domain"
)

// Truncator enforces the page budget on uploaded PDFs.
type Truncator struct {
	conf *model.Configuration
}

// NewTruncator creates a Truncator with relaxed validation, so encrypted but
// structurally sound documents still pass.
func NewTruncator() *Truncator {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Truncator{conf: conf}
}

// PageCount returns the number of pages in the document at path.
func (t *Truncator) PageCount(ctx context.Context, path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDocumentCorrupt, err)
	}
	return count, nil
}

// Truncate reduces the document at path to at most maxPages pages.
//
// Documents within budget come back untouched: the returned path is the
// input path and replaced is false. Over-budget documents are trimmed to
// pages 1..maxPages in a new artifact and the original is deleted; the
// caller must track the surviving artifact for cleanup.
func (t *Truncator) Truncate(ctx context.Context, path string, maxPages int) (string, bool, error) {
	count, err := t.PageCount(ctx, path)
	if err != nil {
		return "", false, err
	}

	if count <= maxPages {
		return path, false, nil
	}

	trimmed := strings.TrimSuffix(path, ".pdf") + "-trimmed.pdf"
	pages := []string{fmt.Sprintf("1-%d", maxPages)}
	if err := api.TrimFile(path, trimmed, pages, t.conf); err != nil {
		return "", false, fmt.Errorf("%w: trimming to %d pages: %v", domain.ErrDocumentCorrupt, maxPages, err)
	}

	log.Printf("pdf.Truncator: trimmed %d-page document to %d pages (%s)", count, maxPages, trimmed)

	if err := os.Remove(path); err != nil {
		// Trimmed artifact is still usable; log and continue.
		log.Printf("pdf.Truncator: failed to remove original %s: %v", path, err)
	}

	return trimmed, true, nil
}
