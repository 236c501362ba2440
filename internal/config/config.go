package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port string `toml:"port"`

	// Auth
	APIKey string `toml:"api_key"`

	// Content locations
	ContentDir string `toml:"content_dir"`
	HTMLDir    string `toml:"html_dir"`
	DBPath     string `toml:"db_path"`

	// Worker pool
	WorkerCount  int `toml:"worker_count"`
	MaxQueueSize int `toml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `toml:"max_upload_bytes"`

	// Chunking
	ChunkWordBudget int  `toml:"chunk_word_budget"`
	KeepEmptyChunk  bool `toml:"keep_empty_chunk"`

	// Indexing
	ForceReindex      bool `toml:"force_reindex"`
	RenderMissingHTML bool `toml:"render_missing_html"`

	// Job state
	JobTTL time.Duration `toml:"job_ttl"`

	SearchLimit int `toml:"search_limit"`
}

const (
	defaultPort            = "8090"
	defaultDBPath          = "postchunk.db"
	defaultWorkerCount     = 4
	defaultMaxQueueSize    = 16
	defaultMaxUploadBytes  = 10 << 20 // 10MB
	defaultChunkWordBudget = 256
	defaultJobTTL          = 1 * time.Hour
	defaultSearchLimit     = 7
)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:            defaultPort,
		DBPath:          defaultDBPath,
		WorkerCount:     defaultWorkerCount,
		MaxQueueSize:    defaultMaxQueueSize,
		MaxUploadBytes:  defaultMaxUploadBytes,
		ChunkWordBudget: defaultChunkWordBudget,
		JobTTL:          defaultJobTTL,
		SearchLimit:     defaultSearchLimit,
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by POSTCHUNK_CONFIG, and finally environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("POSTCHUNK_CONFIG"); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("POSTCHUNK_API_KEY", cfg.APIKey)
	cfg.ContentDir = envOr("CONTENT_DIR", cfg.ContentDir)
	cfg.HTMLDir = envOr("HTML_DIR", cfg.HTMLDir)
	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.ChunkWordBudget = envInt("CHUNK_WORD_BUDGET", cfg.ChunkWordBudget)
	cfg.KeepEmptyChunk = envBool("KEEP_EMPTY_CHUNK", cfg.KeepEmptyChunk)
	cfg.ForceReindex = envBool("FORCE_REINDEX", cfg.ForceReindex)
	cfg.RenderMissingHTML = envBool("RENDER_MISSING_HTML", cfg.RenderMissingHTML)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.SearchLimit = envInt("SEARCH_LIMIT", cfg.SearchLimit)

	cfg.clamp()
	return cfg, nil
}

// decodeFile overlays a TOML file onto cfg. Durations are written as
// strings ("90m") and converted here.
func decodeFile(path string, cfg *Config) error {
	var raw struct {
		Config
		JobTTL string `toml:"job_ttl"`
	}
	raw.Config = *cfg
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if raw.JobTTL != "" {
		d, err := time.ParseDuration(raw.JobTTL)
		if err != nil {
			return fmt.Errorf("parse config %s: job_ttl: %w", path, err)
		}
		raw.Config.JobTTL = d
	}
	*cfg = raw.Config
	return nil
}

func (c *Config) clamp() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = defaultWorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.ChunkWordBudget <= 0 {
		c.ChunkWordBudget = defaultChunkWordBudget
	}
	if c.JobTTL <= 0 {
		c.JobTTL = defaultJobTTL
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = defaultSearchLimit
	}
}

// Validate checks the settings every entry point needs.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

// ValidateIndex additionally requires the content tree to index.
func (c Config) ValidateIndex() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ContentDir == "" {
		return fmt.Errorf("CONTENT_DIR is required")
	}
	if c.HTMLDir == "" && !c.RenderMissingHTML {
		return fmt.Errorf("HTML_DIR is required unless RENDER_MISSING_HTML is set")
	}
	for _, dir := range []string{c.ContentDir, c.HTMLDir} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", filepath.Clean(dir))
		}
	}
	return nil
}

// ValidateServer additionally requires the API key.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("POSTCHUNK_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
