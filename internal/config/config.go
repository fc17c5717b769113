package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	LogLevel        string
	DatabaseURL     string
	TenantsFile     string
	MetricsTextfile string

	LLM      LLMConfig
	Artifact ArtifactConfig
	Session  SessionConfig
	Backfill BackfillConfig
}

type LLMConfig struct {
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RPS           float64
	Burst         int
	RetryAttempts int
}

type ArtifactConfig struct {
	// Dir holds artifacts on disk when no object store is configured.
	Dir       string
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SessionConfig struct {
	// File backs sessions locally when DatabaseURL is empty.
	File      string
	CacheSize int
	CacheTTL  time.Duration
}

type BackfillConfig struct {
	Delay time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	env := firstNonEmpty(strings.TrimSpace(os.Getenv("FLOWFORGE_ENV")), "local")
	return &Config{
		Env:             env,
		LogLevel:        strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TenantsFile:     strings.TrimSpace(os.Getenv("TENANTS_FILE")),
		MetricsTextfile: strings.TrimSpace(os.Getenv("METRICS_TEXTFILE")),
		LLM:             loadLLMConfig(env),
		Artifact:        loadArtifactConfig(env),
		Session: SessionConfig{
			File:      firstNonEmpty(strings.TrimSpace(os.Getenv("SESSION_FILE")), ".flowforge/sessions.json"),
			CacheSize: envInt("SESSION_CACHE_SIZE", 1024),
			CacheTTL:  envDuration("SESSION_CACHE_TTL", 5*time.Minute),
		},
		Backfill: BackfillConfig{
			Delay: envDuration("BACKFILL_DELAY", 2*time.Second),
		},
	}
}

func (c *Config) IsLocal() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "local")
}

func loadLLMConfig(env string) LLMConfig {
	def := "gemini"
	if strings.EqualFold(env, "local") {
		def = "fake"
	}
	provider := strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_PROVIDER")), def))
	cfg := LLMConfig{
		Provider:      provider,
		Timeout:       envDuration("LLM_TIMEOUT", 60*time.Second),
		RPS:           envFloat("LLM_RPS", 1),
		Burst:         envInt("LLM_BURST", 1),
		RetryAttempts: envInt("ENHANCE_RETRY_ATTEMPTS", 3),
	}
	switch provider {
	case "gemini":
		cfg.Model = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
		cfg.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")))
	case "groq", "openai":
		cfg.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("GROQ_MODEL")), "llama-3.3-70b-versatile")
		cfg.APIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
		cfg.BaseURL = strings.TrimSpace(os.Getenv("GROQ_BASE_URL"))
	}
	return cfg
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Dir:       firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_DIR")), ".flowforge/artifacts"),
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "flowforge-artifacts"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
