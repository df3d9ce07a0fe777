package pdf

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"certos/internal/domain"
	"certos/internal/port"
)

// Rasterizer converts PDF pages into PNG images using poppler's pdftoppm.
type Rasterizer struct {
	runner   port.CommandRunner
	pdftoppm string
	dpi      int
}

// NewRasterizer creates a Rasterizer. An empty binary name defaults to
// "pdftoppm" resolved from PATH.
func NewRasterizer(runner port.CommandRunner, pdftoppm string, dpi int) *Rasterizer {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &Rasterizer{runner: runner, pdftoppm: pdftoppm, dpi: dpi}
}

// Rasterize renders up to maxPages pages of the PDF at pdfPath, one image
// per page in page order. Shorter documents yield fewer images; rendering
// stops at the first page that does not exist. Each image is a new artifact
// next to the source PDF; the source itself is left alone.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string, maxPages int) ([]string, error) {
	base := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath))

	var images []string
	for page := 1; page <= maxPages; page++ {
		prefix := fmt.Sprintf("%s-page%d", base, page)

		// pdftoppm -f <p> -l <p> -r <dpi> -png <in.pdf> <prefix>
		_, errb, err := r.runner.Run(ctx,
			r.pdftoppm,
			"-f", fmt.Sprintf("%d", page),
			"-l", fmt.Sprintf("%d", page),
			"-r", fmt.Sprintf("%d", r.dpi),
			"-png", pdfPath, prefix,
		)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%w: page 1: %v (%s)", domain.ErrRasterization, err, strings.TrimSpace(string(errb)))
			}
			// Requested page is past the end of the document.
			break
		}

		// pdftoppm appends the page number with document-dependent
		// zero padding, so glob rather than guess.
		matches, _ := filepath.Glob(prefix + "*.png")
		if len(matches) == 0 {
			if page == 1 {
				return nil, fmt.Errorf("%w: page 1 produced no image", domain.ErrRasterization)
			}
			break
		}
		sort.Strings(matches)
		images = append(images, matches[0])
	}

	log.Printf("pdf.Rasterizer: rendered %d page(s) at %d DPI from %s", len(images), r.dpi, filepath.Base(pdfPath))
	return images, nil
}
