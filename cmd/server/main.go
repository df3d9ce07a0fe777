package main

import (
	"fmt"
	"log"

	"certos/internal/backend"
	"certos/internal/backend/gemini"
	"certos/internal/backend/groq"
	"certos/internal/config"
	"certos/internal/domain"
	"certos/internal/handler"
	"certos/internal/pdf"
	"certos/internal/port"
	"certos/internal/router"
	"certos/internal/service"
	"certos/internal/storage/local"
	"certos/internal/storage/noop"
	s3storage "certos/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize storage
	store, err := local.NewStore(cfg.Upload.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize upload store: %w", err)
	}

	archive := noop.NewStorage()
	if cfg.Archive.Enabled {
		archive, err = s3storage.NewS3Client(&cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to initialize archive storage: %w", err)
		}
	}

	// Initialize PDF tooling
	truncator := pdf.NewTruncator()
	rasterizer := pdf.NewRasterizer(pdf.NewExecRunner(), "", cfg.Extract.RasterDPI)

	// Register extraction backends
	backend.Register(domain.BackendInlinePDF, func(cfg *config.Config) (port.ExtractionBackend, error) {
		return gemini.NewInlineBackend(&cfg.Gemini), nil
	})
	backend.Register(domain.BackendFilesAPIPDF, func(cfg *config.Config) (port.ExtractionBackend, error) {
		return gemini.NewFilesBackend(&cfg.Gemini), nil
	})
	backend.Register(domain.BackendMultiImage, func(cfg *config.Config) (port.ExtractionBackend, error) {
		return groq.NewImagesBackend(&cfg.Groq), nil
	})

	backends := make(map[domain.BackendName]port.ExtractionBackend, len(domain.KnownBackends))
	for name := range domain.KnownBackends {
		b, err := backend.New(name, cfg)
		if err != nil {
			return fmt.Errorf("failed to build backend %s: %w", name, err)
		}
		backends[name] = b
	}

	// Initialize services
	extractionSvc := service.NewExtractionService(
		store, truncator, rasterizer, backends, archive,
		&cfg.Extract, &cfg.Upload, &cfg.Archive,
	)

	// Initialize handlers
	analyzeH := handler.NewAnalyzeHandler(extractionSvc)
	healthH := handler.NewHealthHandler(cfg.Upload.Dir)

	// Setup router
	r := router.Setup(cfg, analyzeH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
