package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"certos/internal/csvexport"
	"certos/internal/domain"
	"certos/internal/service"
)

// AnalyzeHandler handles certificate extraction requests.
type AnalyzeHandler struct {
	extraction service.ExtractionService
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(extraction service.ExtractionService) *AnalyzeHandler {
	return &AnalyzeHandler{extraction: extraction}
}

// Analyze handles POST /analyze
// @Summary Extract an ACORD 25 certificate
// @Description Analyze 1 PDF or up to 5 images with the selected extraction model
// @Tags analyze
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "1 PDF or up to 5 images (PDF, JPG, PNG; max 10MB each)"
// @Param model formData string true "Extraction model" Enums(inline-pdf, files-api-pdf, multi-image)
// @Param format formData string false "Response format" Enums(json, csv) default(json)
// @Success 200 {object} AnalyzeResponse "Extraction result; data is null when the document is not a certificate"
// @Failure 400 {object} ErrorResponse "Invalid input shape or model"
// @Failure 413 {object} ErrorResponse "File too large"
// @Failure 502 {object} ErrorResponse "Extraction backend failed"
// @Router /analyze [post]
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	start := time.Now()

	model := c.PostForm("model")
	if model == "" {
		RespondError(c, http.StatusBadRequest, "MISSING_MODEL", "model field is required", "", time.Since(start))
		return
	}
	format := c.DefaultPostForm("format", "json")
	if format != "json" && format != "csv" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be json or csv", "", time.Since(start))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FORM", "invalid multipart form", err.Error(), time.Since(start))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		RespondError(c, http.StatusBadRequest, "NO_FILES", domain.ErrNoFiles.Error(), "", time.Since(start))
		return
	}
	files := make([]service.UploadFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "could not read uploaded file", err.Error(), time.Since(start))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "could not read uploaded file", err.Error(), time.Since(start))
			return
		}
		files = append(files, service.UploadFile{
			Name: header.Filename,
			Size: header.Size,
			Data: data,
		})
	}

	result, err := h.extraction.Extract(c.Request.Context(), service.ExtractIn{
		Backend: domain.BackendName(model),
		Files:   files,
	})
	if err != nil {
		HandleError(c, err, time.Since(start))
		return
	}

	if format == "csv" {
		h.respondCSV(c, result, files[0].Name)
		return
	}

	message := "extraction completed"
	if result == nil {
		message = "document is not a recognizable certificate of liability insurance"
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Message:        message,
		Data:           result,
		ProcessingTime: time.Since(start).String(),
		Model:          model,
	})
}

// respondCSV streams the flattened result as a CSV attachment. A null result
// yields a header-only file.
func (h *AnalyzeHandler) respondCSV(c *gin.Context, result *domain.ExtractionResult, uploadName string) {
	filename := csvexport.BuildFilename(uploadName)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(csvexport.BOM); err != nil {
		return
	}
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		return
	}
	if err := w.WriteResult(result); err != nil {
		return
	}
	w.Flush()
}
