package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"subtube/internal/llm"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults; an optional TOML
// file (SUBTUBE_CONFIG) provides defaults that the environment overrides
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: google/gemini-2.5-flash)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - LLM_REQUESTS_PER_MINUTE: Client-side request rate cap (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// HTTP Configuration:
// - HTTP_PORT: Listen port (default: 7860)
// - HTTP_ADDR: Listen address (default: 127.0.0.1)
//
// Translation Configuration:
// - TARGET_LANGUAGE: Default target language (default: zh-CN)
// - BATCH_SIZE: Subtitle lines per translation request (default: 30)
// - JOB_TIMEOUT: Per-job timeout in seconds (default: 1800)
// - CLEANUP_CRON: Cleanup schedule (default: "0 */6 * * *")
//
// Path Configuration:
// - DATA_DIR: Database, lock file and outputs (default: ./data)
// - TEMP_DIR: yt-dlp scratch space (default: os.TempDir()/subtube)
// - YTDLP_BINARY: yt-dlp executable (default: yt-dlp, resolved via PATH)
type Config struct {
	LLM       llm.Config      `json:"llm" toml:"llm"`
	HTTP      HTTPConfig      `json:"http" toml:"http"`
	Translate TranslateConfig `json:"translate" toml:"translate"`
	Paths     PathsConfig     `json:"paths" toml:"paths"`
}

type HTTPConfig struct {
	Port int    `json:"port" toml:"port"`
	Addr string `json:"addr" toml:"addr"`
}

// ListenAddr returns the host:port string to bind.
func (c HTTPConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

type TranslateConfig struct {
	TargetLanguage string `json:"target_language" toml:"target_language"`
	BatchSize      int    `json:"batch_size" toml:"batch_size"`
	JobTimeout     int    `json:"job_timeout" toml:"job_timeout"`
	CleanupCron    string `json:"cleanup_cron" toml:"cleanup_cron"`
}

type PathsConfig struct {
	DataDir     string `json:"data_dir" toml:"data_dir"`
	TempDir     string `json:"temp_dir" toml:"temp_dir"`
	YtdlpBinary string `json:"ytdlp_binary" toml:"ytdlp_binary"`
}

// DatabasePath returns the SQLite database location.
func (c PathsConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "subtube.db")
}

// LockPath returns the single-instance lock file location.
func (c PathsConfig) LockPath() string {
	return filepath.Join(c.DataDir, "subtube.lock")
}

// OutputDir returns where rendered subtitle files are written.
func (c PathsConfig) OutputDir() string {
	return filepath.Join(c.DataDir, "outputs")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from an optional
// .env file, an optional TOML file and environment variables, in rising
// priority order.
func NewFromEnv(opts ...Option) (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	config := defaultConfig()

	// File values override defaults; environment overrides the file.
	if path := os.Getenv("SUBTUBE_CONFIG"); path != "" {
		if err := applyFile(config, path); err != nil {
			return nil, err
		}
	}
	applyEnv(config)

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		LLM: llm.Config{
			APIURL:            "https://openrouter.ai/api/v1",
			Model:             "google/gemini-2.5-flash",
			MaxTokens:         8000,
			Temperature:       0.3,
			Timeout:           60,
			RequestsPerMinute: 30,
			AppName:           "subtube",
		},
		HTTP: HTTPConfig{
			Port: 7860,
			Addr: "127.0.0.1",
		},
		Translate: TranslateConfig{
			TargetLanguage: "zh-CN",
			BatchSize:      30,
			JobTimeout:     1800,
			CleanupCron:    "0 */6 * * *",
		},
		Paths: PathsConfig{
			DataDir:     "./data",
			TempDir:     filepath.Join(os.TempDir(), "subtube"),
			YtdlpBinary: "yt-dlp",
		},
	}
}

func applyEnv(c *Config) {
	c.LLM.APIKey = getEnvString("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.APIURL = getEnvString("LLM_API_URL", c.LLM.APIURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvInt("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.RequestsPerMinute = getEnvInt("LLM_REQUESTS_PER_MINUTE", c.LLM.RequestsPerMinute)
	c.LLM.SiteURL = getEnvString("LLM_SITE_URL", c.LLM.SiteURL)
	c.LLM.AppName = getEnvString("LLM_APP_NAME", c.LLM.AppName)

	c.HTTP.Port = getEnvInt("HTTP_PORT", c.HTTP.Port)
	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)

	c.Translate.TargetLanguage = getEnvString("TARGET_LANGUAGE", c.Translate.TargetLanguage)
	c.Translate.BatchSize = getEnvInt("BATCH_SIZE", c.Translate.BatchSize)
	c.Translate.JobTimeout = getEnvInt("JOB_TIMEOUT", c.Translate.JobTimeout)
	c.Translate.CleanupCron = getEnvString("CLEANUP_CRON", c.Translate.CleanupCron)

	c.Paths.DataDir = getEnvString("DATA_DIR", c.Paths.DataDir)
	c.Paths.TempDir = getEnvString("TEMP_DIR", c.Paths.TempDir)
	c.Paths.YtdlpBinary = getEnvString("YTDLP_BINARY", c.Paths.YtdlpBinary)
}

// Validate checks if all required configuration is properly set
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Translate.TargetLanguage == "" {
		return fmt.Errorf("TARGET_LANGUAGE cannot be empty")
	}
	if c.Translate.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be greater than 0")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
