package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Upload  UploadConfig
	Extract ExtractConfig
	Gemini  GeminiConfig
	Groq    GroqConfig
	Archive ArchiveConfig
	CORS    CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UploadConfig holds upload boundary limits and the scratch directory.
type UploadConfig struct {
	Dir           string `mapstructure:"dir"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	MaxFiles      int    `mapstructure:"max_files"`
}

// ExtractConfig holds orchestration settings shared by all backends.
type ExtractConfig struct {
	PageBudget int `mapstructure:"page_budget"`
	RasterDPI  int `mapstructure:"raster_dpi"`

	// RequestTimeout bounds one full extraction, backend call included.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// NullOnExhausted makes an exhausted fallback hop degrade to a null
	// result instead of propagating the backend error.
	NullOnExhausted bool `mapstructure:"null_on_exhausted"`
}

// GeminiConfig holds settings for the Gemini-backed variants.
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	FallbackModel   string        `mapstructure:"fallback_model"`
	TimeoutSecs     int           `mapstructure:"timeout_secs"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollMaxDuration time.Duration `mapstructure:"poll_max_duration"`
}

// GroqConfig holds settings for the Groq vision variant.
type GroqConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	FallbackModel string `mapstructure:"fallback_model"`
	TimeoutSecs   int    `mapstructure:"timeout_secs"`
}

// ArchiveConfig holds optional S3 archival of original uploads.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the CERTOS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CERTOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Upload defaults
	v.SetDefault("upload.dir", os.TempDir())
	v.SetDefault("upload.max_file_size_mb", 10)
	v.SetDefault("upload.max_files", 5)

	// Extract defaults
	v.SetDefault("extract.page_budget", 5)
	v.SetDefault("extract.raster_dpi", 150)
	v.SetDefault("extract.request_timeout", "150s")
	v.SetDefault("extract.null_on_exhausted", false)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.fallback_model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.timeout_secs", 120)
	v.SetDefault("gemini.poll_interval", "2s")
	v.SetDefault("gemini.poll_max_duration", "60s")

	// Groq defaults
	v.SetDefault("groq.api_key", "")
	v.SetDefault("groq.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("groq.fallback_model", "meta-llama/llama-4-maverick-17b-128e-instruct")
	v.SetDefault("groq.timeout_secs", 120)

	// Archive defaults (disabled; extraction itself persists nothing)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.bucket", "certos-uploads")
	v.SetDefault("archive.endpoint", "")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":               "CERTOS_SERVER_PORT",
		"server.read_timeout":       "CERTOS_SERVER_READ_TIMEOUT",
		"server.write_timeout":      "CERTOS_SERVER_WRITE_TIMEOUT",
		"server.environment":        "CERTOS_SERVER_ENVIRONMENT",
		"log.level":                 "CERTOS_LOG_LEVEL",
		"log.format":                "CERTOS_LOG_FORMAT",
		"upload.dir":                "CERTOS_UPLOAD_DIR",
		"upload.max_file_size_mb":   "CERTOS_UPLOAD_MAX_FILE_SIZE_MB",
		"upload.max_files":          "CERTOS_UPLOAD_MAX_FILES",
		"extract.page_budget":       "CERTOS_EXTRACT_PAGE_BUDGET",
		"extract.raster_dpi":        "CERTOS_EXTRACT_RASTER_DPI",
		"extract.request_timeout":   "CERTOS_EXTRACT_REQUEST_TIMEOUT",
		"extract.null_on_exhausted": "CERTOS_EXTRACT_NULL_ON_EXHAUSTED",
		"gemini.api_key":            "CERTOS_GEMINI_API_KEY",
		"gemini.model":              "CERTOS_GEMINI_MODEL",
		"gemini.fallback_model":     "CERTOS_GEMINI_FALLBACK_MODEL",
		"gemini.timeout_secs":       "CERTOS_GEMINI_TIMEOUT_SECS",
		"gemini.poll_interval":      "CERTOS_GEMINI_POLL_INTERVAL",
		"gemini.poll_max_duration":  "CERTOS_GEMINI_POLL_MAX_DURATION",
		"groq.api_key":              "CERTOS_GROQ_API_KEY",
		"groq.model":                "CERTOS_GROQ_MODEL",
		"groq.fallback_model":       "CERTOS_GROQ_FALLBACK_MODEL",
		"groq.timeout_secs":         "CERTOS_GROQ_TIMEOUT_SECS",
		"archive.enabled":           "CERTOS_ARCHIVE_ENABLED",
		"archive.region":            "CERTOS_ARCHIVE_REGION",
		"archive.bucket":            "CERTOS_ARCHIVE_BUCKET",
		"archive.endpoint":          "CERTOS_ARCHIVE_ENDPOINT",
		"archive.access_key":        "CERTOS_ARCHIVE_ACCESS_KEY",
		"archive.secret_key":        "CERTOS_ARCHIVE_SECRET_KEY",
		"cors.allowed_origins":      "CERTOS_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CERTOS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CERTOS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Upload = UploadConfig{
		Dir:           v.GetString("upload.dir"),
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
		MaxFiles:      v.GetInt("upload.max_files"),
	}
	cfg.Extract = ExtractConfig{
		PageBudget:      v.GetInt("extract.page_budget"),
		RasterDPI:       v.GetInt("extract.raster_dpi"),
		RequestTimeout:  v.GetDuration("extract.request_timeout"),
		NullOnExhausted: v.GetBool("extract.null_on_exhausted"),
	}
	cfg.Gemini = GeminiConfig{
		APIKey:          v.GetString("gemini.api_key"),
		Model:           v.GetString("gemini.model"),
		FallbackModel:   v.GetString("gemini.fallback_model"),
		TimeoutSecs:     v.GetInt("gemini.timeout_secs"),
		PollInterval:    v.GetDuration("gemini.poll_interval"),
		PollMaxDuration: v.GetDuration("gemini.poll_max_duration"),
	}
	cfg.Groq = GroqConfig{
		APIKey:        v.GetString("groq.api_key"),
		Model:         v.GetString("groq.model"),
		FallbackModel: v.GetString("groq.fallback_model"),
		TimeoutSecs:   v.GetInt("groq.timeout_secs"),
	}
	cfg.Archive = ArchiveConfig{
		Enabled:   v.GetBool("archive.enabled"),
		Region:    v.GetString("archive.region"),
		Bucket:    v.GetString("archive.bucket"),
		Endpoint:  v.GetString("archive.endpoint"),
		AccessKey: v.GetString("archive.access_key"),
		SecretKey: v.GetString("archive.secret_key"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	return cfg, nil
}

// Validate checks settings that must be present at startup. Missing provider
// credentials are a fatal startup error, not a per-request error.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini API key is required (CERTOS_GEMINI_API_KEY)")
	}
	if c.Groq.APIKey == "" {
		return fmt.Errorf("groq API key is required (CERTOS_GROQ_API_KEY)")
	}
	if c.Extract.PageBudget < 1 {
		return fmt.Errorf("extract page budget must be at least 1")
	}
	return nil
}
