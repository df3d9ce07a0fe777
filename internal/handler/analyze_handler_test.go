package handler_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certos/internal/domain"
	"certos/internal/handler"
	"certos/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExtraction struct {
	result *domain.ExtractionResult
	err    error
	lastIn service.ExtractIn
}

func (s *stubExtraction) Extract(ctx context.Context, in service.ExtractIn) (*domain.ExtractionResult, error) {
	s.lastIn = in
	return s.result, s.err
}

func newAnalyzeRouter(stub *stubExtraction) *gin.Engine {
	r := gin.New()
	r.POST("/analyze", handler.NewAnalyzeHandler(stub).Analyze)
	return r
}

func multipartBody(t *testing.T, model string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if model != "" {
		require.NoError(t, w.WriteField("model", model))
	}
	for name, data := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }

func TestAnalyze_Success(t *testing.T) {
	stub := &stubExtraction{
		result: &domain.ExtractionResult{
			CertificateInformation: domain.CertificateInformation{
				InsuredName: strPtr("Acme Construction LLC"),
			},
			Insurers: []domain.Insurer{{Letter: "A", Name: strPtr("Liberty Mutual")}},
			Policies: []domain.Policy{},
		},
	}
	r := newAnalyzeRouter(stub)

	body, contentType := multipartBody(t, "inline-pdf", map[string][]byte{
		"cert.pdf": []byte("%PDF-1.4 test"),
	})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "extraction completed", resp.Message)
	assert.Equal(t, "inline-pdf", resp.Model)
	assert.NotEmpty(t, resp.ProcessingTime)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Acme Construction LLC", *resp.Data.CertificateInformation.InsuredName)

	assert.Equal(t, domain.BackendInlinePDF, stub.lastIn.Backend)
	require.Len(t, stub.lastIn.Files, 1)
	assert.Equal(t, "cert.pdf", stub.lastIn.Files[0].Name)
	assert.Equal(t, []byte("%PDF-1.4 test"), stub.lastIn.Files[0].Data)
}

func TestAnalyze_NullResult(t *testing.T) {
	stub := &stubExtraction{result: nil}
	r := newAnalyzeRouter(stub)

	body, contentType := multipartBody(t, "files-api-pdf", map[string][]byte{
		"menu.pdf": []byte("%PDF-1.4 restaurant menu"),
	})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Null data still renders as an explicit JSON null, not an empty object.
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw, "data")
	assert.Nil(t, raw["data"])
	assert.Equal(t, "document is not a recognizable certificate of liability insurance", raw["message"])
}

func TestAnalyze_CSVFormat(t *testing.T) {
	stub := &stubExtraction{
		result: &domain.ExtractionResult{
			CertificateInformation: domain.CertificateInformation{
				InsuredName: strPtr("Acme Construction LLC"),
			},
			Insurers: []domain.Insurer{{Letter: "A", Name: strPtr("Liberty Mutual")}},
			Policies: []domain.Policy{
				{
					InsurerLetter: strPtr("A"),
					PolicyNumber:  strPtr("GL-2024-001"),
					Coverages: []domain.Coverage{
						{LimitDescription: strPtr("EACH OCCURRENCE"), LimitValue: int64Ptr(1000000)},
					},
				},
			},
		},
	}
	r := newAnalyzeRouter(stub)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("model", "inline-pdf"))
	require.NoError(t, w.WriteField("format", "csv"))
	fw, err := w.CreateFormFile("files", "acme cert.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "acme_cert_")

	raw := rec.Body.Bytes()
	require.True(t, len(raw) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, raw[:3])

	rows, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Certificate Date", rows[0][0])
	assert.Equal(t, "Acme Construction LLC", rows[1][1])
	assert.Equal(t, "1000000", rows[1][21])
}

func TestAnalyze_CSVFormatNullResult(t *testing.T) {
	r := newAnalyzeRouter(&stubExtraction{result: nil})

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("model", "inline-pdf"))
	require.NoError(t, w.WriteField("format", "csv"))
	fw, err := w.CreateFormFile("files", "menu.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// Header-only file for a null result.
	rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes()[3:])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAnalyze_InvalidFormat(t *testing.T) {
	r := newAnalyzeRouter(&stubExtraction{})

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("model", "inline-pdf"))
	require.NoError(t, w.WriteField("format", "xml"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_FORMAT", resp.Error.Code)
}

func TestAnalyze_MissingModel(t *testing.T) {
	r := newAnalyzeRouter(&stubExtraction{})

	body, contentType := multipartBody(t, "", map[string][]byte{
		"cert.pdf": []byte("%PDF-1.4"),
	})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "MISSING_MODEL", resp.Error.Code)
}

func TestAnalyze_NoFiles(t *testing.T) {
	r := newAnalyzeRouter(&stubExtraction{})

	body, contentType := multipartBody(t, "inline-pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NO_FILES", resp.Error.Code)
}

func TestAnalyze_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"too many images", fmt.Errorf("%w (got 6)", domain.ErrTooManyImages), http.StatusBadRequest, "TOO_MANY_IMAGES"},
		{"multiple pdfs", domain.ErrMultiplePDFs, http.StatusBadRequest, "MULTIPLE_PDFS"},
		{"mixed files", domain.ErrMixedFiles, http.StatusBadRequest, "MIXED_FILES"},
		{"unknown model", fmt.Errorf("%w: %q", domain.ErrUnknownBackend, "sideways"), http.StatusBadRequest, "UNKNOWN_MODEL"},
		{"incompatible model", domain.ErrBackendIncompatible, http.StatusBadRequest, "INCOMPATIBLE_MODEL"},
		{"unsupported type", domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"file too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"corrupt document", domain.ErrDocumentCorrupt, http.StatusBadRequest, "DOCUMENT_CORRUPT"},
		{"rasterization failed", domain.ErrRasterization, http.StatusUnprocessableEntity, "RASTERIZATION_FAILED"},
		{"malformed response", fmt.Errorf("%w: no JSON found", domain.ErrMalformedResponse), http.StatusBadGateway, "MALFORMED_RESPONSE"},
		{"backend failure", fmt.Errorf("%w: exhausted fallback", domain.ErrBackendFailure), http.StatusBadGateway, "ANALYSIS_FAILED"},
		{"unexpected error", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAnalyzeRouter(&stubExtraction{err: tt.err})

			body, contentType := multipartBody(t, "inline-pdf", map[string][]byte{
				"cert.pdf": []byte("%PDF-1.4"),
			})
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp handler.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			require.NotNil(t, resp.Metadata)
			assert.NotEmpty(t, resp.Metadata.Timestamp)
		})
	}
}

func TestAnalyze_ProviderDetailsStayGeneric(t *testing.T) {
	r := newAnalyzeRouter(&stubExtraction{
		err: fmt.Errorf("%w: gemini API error (status 500): internal", domain.ErrBackendFailure),
	})

	body, contentType := multipartBody(t, "inline-pdf", map[string][]byte{
		"cert.pdf": []byte("%PDF-1.4"),
	})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "analysis failed", resp.Error.Message)
}
