package pdf_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certos/internal/domain"
	"certos/internal/pdf"
)

// fakeRunner simulates pdftoppm for a document with a fixed page count,
// writing the output PNG the way poppler does (prefix plus padded page
// number).
type fakeRunner struct {
	pages int
	calls [][]string
	fail  bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))

	if f.fail {
		return nil, []byte("Syntax Error: Couldn't read xref table"), errors.New("exit status 1")
	}

	// args: -f p -l p -r dpi -png in.pdf prefix
	if len(args) != 9 {
		return nil, nil, fmt.Errorf("unexpected args: %v", args)
	}
	var page int
	_, _ = fmt.Sscanf(args[1], "%d", &page)
	if page > f.pages {
		return nil, []byte("Wrong page range given"), errors.New("exit status 99")
	}

	prefix := args[8]
	out := fmt.Sprintf("%s-%02d.png", prefix, page)
	if err := os.WriteFile(out, []byte("png"), 0o644); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

func TestRasterizer_Rasterize_AllPages(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "cert.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))

	runner := &fakeRunner{pages: 3}
	r := pdf.NewRasterizer(runner, "pdftoppm", 150)

	images, err := r.Rasterize(context.Background(), pdfPath, 5)
	require.NoError(t, err)
	require.Len(t, images, 3)

	for i, img := range images {
		assert.Contains(t, img, fmt.Sprintf("cert-page%d", i+1))
		assert.Equal(t, ".png", filepath.Ext(img))
	}

	// One invocation per rendered page plus the attempt past the end.
	assert.Len(t, runner.calls, 4)
	assert.Equal(t, []string{"pdftoppm", "-f", "1", "-l", "1", "-r", "150", "-png", pdfPath, filepath.Join(dir, "cert-page1")}, runner.calls[0])
}

func TestRasterizer_Rasterize_StopsAtPageBudget(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "cert.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))

	runner := &fakeRunner{pages: 10}
	r := pdf.NewRasterizer(runner, "pdftoppm", 150)

	images, err := r.Rasterize(context.Background(), pdfPath, 5)
	require.NoError(t, err)
	assert.Len(t, images, 5)
	assert.Len(t, runner.calls, 5)
}

func TestRasterizer_Rasterize_FirstPageFailure(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("not a pdf"), 0o644))

	runner := &fakeRunner{fail: true}
	r := pdf.NewRasterizer(runner, "pdftoppm", 150)

	images, err := r.Rasterize(context.Background(), pdfPath, 5)
	require.Error(t, err)
	assert.Nil(t, images)
	assert.ErrorIs(t, err, domain.ErrRasterization)
	assert.Contains(t, err.Error(), "xref")
}

func TestRasterizer_Rasterize_SinglePageDocument(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "one.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))

	runner := &fakeRunner{pages: 1}
	r := pdf.NewRasterizer(runner, "pdftoppm", 150)

	images, err := r.Rasterize(context.Background(), pdfPath, 5)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}
