package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	JWT         JWTConfig
	S3          S3Config
	Log         LogConfig
	CORS        CORSConfig
	LLM         LLMConfig
	Embedding   EmbeddingConfig
	Chunking    ChunkingConfig
	Aggregation AggregationConfig
	Prompt      PromptConfig
	Queue       QueueConfig
	Email       EmailConfig
}

// LLMProviderConfig holds settings for a single LLM provider.
type LLMProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// LLMConfig holds completion provider settings with fallback support.
type LLMConfig struct {
	Primary   LLMProviderConfig `mapstructure:"primary"`
	Secondary LLMProviderConfig `mapstructure:"secondary"`
	Tertiary  LLMProviderConfig `mapstructure:"tertiary"`
}

// Providers returns the configured providers in fallback order.
func (l *LLMConfig) Providers() []LLMProviderConfig {
	var out []LLMProviderConfig
	for _, p := range []LLMProviderConfig{l.Primary, l.Secondary, l.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// ChunkingConfig holds pipeline-level settings for the chunking strategies.
type ChunkingConfig struct {
	// MaxOutputRetries bounds re-asks after malformed LLM output per batch.
	MaxOutputRetries int `mapstructure:"max_output_retries"`
	// FanOut bounds in-flight LLM calls for batches without continuity.
	FanOut int `mapstructure:"fan_out"`
	// TokenBudget is the per-call token ceiling used when packing small
	// text-only pages and spreadsheet rows.
	TokenBudget int `mapstructure:"token_budget"`
	// HeaderTokens seeds the row packer's running estimate per section.
	HeaderTokens    int `mapstructure:"header_tokens"`
	CallTimeoutSecs int `mapstructure:"call_timeout_secs"`
}

// AggregationConfig holds record-batching limits, with per-entity overrides.
// Overrides use the form "source/entity=max_units:max_chars", comma-separated.
type AggregationConfig struct {
	DefaultMaxUnits int               `mapstructure:"default_max_units"`
	DefaultMaxChars int               `mapstructure:"default_max_chars"`
	Overrides       map[string]string `mapstructure:"overrides"`
}

// PromptConfig holds prompt template cache settings.
type PromptConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// QueueConfig holds chunk queue worker settings.
type QueueConfig struct {
	PollIntervalSecs   int `mapstructure:"poll_interval_secs"`
	MaxRetries         int `mapstructure:"max_retries"`
	Concurrency        int `mapstructure:"concurrency"`
	ProcessTimeoutSecs int `mapstructure:"process_timeout_secs"`
}

// EmailConfig holds run-summary email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	FrontendURL string `mapstructure:"frontend_url"`
	// SummaryRecipient receives run-completion summaries. Empty disables them.
	SummaryRecipient     string `mapstructure:"summary_recipient"`
	SummaryRecipientName string `mapstructure:"summary_recipient_name"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds verification settings for tokens issued by the external
// identity provider.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for the payload-bundle store.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	MaxBundleSizeMB int64  `mapstructure:"max_bundle_size_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ParseAggregationOverride parses one "max_units:max_chars" override value.
func ParseAggregationOverride(val string) (maxUnits, maxChars int, err error) {
	parts := strings.SplitN(val, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected max_units:max_chars, got %q", val)
	}
	maxUnits, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid max_units in %q: %w", val, err)
	}
	maxChars, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid max_chars in %q: %w", val, err)
	}
	return maxUnits, maxChars, nil
}

// Load reads configuration from environment variables with the BIZLENS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BIZLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "bizlens")
	v.SetDefault("db.password", "bizlens_secret")
	v.SetDefault("db.name", "bizlens_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "bizlens-idp")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "bizlens-bundles")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_bundle_size_mb", 100)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// LLM defaults
	v.SetDefault("llm.primary.provider", "claude")
	v.SetDefault("llm.primary.api_key", "")
	v.SetDefault("llm.primary.default_model", "")
	v.SetDefault("llm.primary.timeout_secs", 120)
	v.SetDefault("llm.secondary.provider", "")
	v.SetDefault("llm.secondary.api_key", "")
	v.SetDefault("llm.secondary.default_model", "")
	v.SetDefault("llm.secondary.timeout_secs", 120)
	v.SetDefault("llm.tertiary.provider", "")
	v.SetDefault("llm.tertiary.api_key", "")
	v.SetDefault("llm.tertiary.default_model", "")
	v.SetDefault("llm.tertiary.timeout_secs", 120)

	// Embedding defaults
	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout_secs", 30)

	// Chunking defaults
	v.SetDefault("chunking.max_output_retries", 2)
	v.SetDefault("chunking.fan_out", 4)
	v.SetDefault("chunking.token_budget", 2000)
	v.SetDefault("chunking.header_tokens", 8)
	v.SetDefault("chunking.call_timeout_secs", 120)

	// Aggregation defaults
	v.SetDefault("aggregation.default_max_units", 20)
	v.SetDefault("aggregation.default_max_chars", 8000)
	v.SetDefault("aggregation.overrides", "")

	// Prompt cache defaults
	v.SetDefault("prompt.cache_ttl", "5m")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.process_timeout_secs", 1800)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@bizlens.app")
	v.SetDefault("email.from_name", "BizLens")
	v.SetDefault("email.frontend_url", "http://localhost:3000")
	v.SetDefault("email.summary_recipient", "")
	v.SetDefault("email.summary_recipient_name", "")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                   "BIZLENS_SERVER_PORT",
		"server.read_timeout":           "BIZLENS_SERVER_READ_TIMEOUT",
		"server.write_timeout":          "BIZLENS_SERVER_WRITE_TIMEOUT",
		"server.environment":            "BIZLENS_SERVER_ENVIRONMENT",
		"db.host":                       "BIZLENS_DB_HOST",
		"db.port":                       "BIZLENS_DB_PORT",
		"db.user":                       "BIZLENS_DB_USER",
		"db.password":                   "BIZLENS_DB_PASSWORD",
		"db.name":                       "BIZLENS_DB_NAME",
		"db.sslmode":                    "BIZLENS_DB_SSLMODE",
		"db.max_open":                   "BIZLENS_DB_MAX_OPEN",
		"db.max_idle":                   "BIZLENS_DB_MAX_IDLE",
		"jwt.secret":                    "BIZLENS_JWT_SECRET",
		"jwt.issuer":                    "BIZLENS_JWT_ISSUER",
		"s3.region":                     "BIZLENS_S3_REGION",
		"s3.bucket":                     "BIZLENS_S3_BUCKET",
		"s3.endpoint":                   "BIZLENS_S3_ENDPOINT",
		"s3.access_key":                 "BIZLENS_S3_ACCESS_KEY",
		"s3.secret_key":                 "BIZLENS_S3_SECRET_KEY",
		"s3.max_bundle_size_mb":         "BIZLENS_S3_MAX_BUNDLE_SIZE_MB",
		"log.level":                     "BIZLENS_LOG_LEVEL",
		"log.format":                    "BIZLENS_LOG_FORMAT",
		"cors.allowed_origins":          "BIZLENS_CORS_ALLOWED_ORIGINS",
		"llm.primary.provider":          "BIZLENS_LLM_PRIMARY_PROVIDER",
		"llm.primary.api_key":           "BIZLENS_LLM_PRIMARY_API_KEY",
		"llm.primary.default_model":     "BIZLENS_LLM_PRIMARY_DEFAULT_MODEL",
		"llm.primary.timeout_secs":      "BIZLENS_LLM_PRIMARY_TIMEOUT_SECS",
		"llm.secondary.provider":        "BIZLENS_LLM_SECONDARY_PROVIDER",
		"llm.secondary.api_key":         "BIZLENS_LLM_SECONDARY_API_KEY",
		"llm.secondary.default_model":   "BIZLENS_LLM_SECONDARY_DEFAULT_MODEL",
		"llm.secondary.timeout_secs":    "BIZLENS_LLM_SECONDARY_TIMEOUT_SECS",
		"llm.tertiary.provider":         "BIZLENS_LLM_TERTIARY_PROVIDER",
		"llm.tertiary.api_key":          "BIZLENS_LLM_TERTIARY_API_KEY",
		"llm.tertiary.default_model":    "BIZLENS_LLM_TERTIARY_DEFAULT_MODEL",
		"llm.tertiary.timeout_secs":     "BIZLENS_LLM_TERTIARY_TIMEOUT_SECS",
		"embedding.enabled":             "BIZLENS_EMBEDDING_ENABLED",
		"embedding.api_key":             "BIZLENS_EMBEDDING_API_KEY",
		"embedding.model":               "BIZLENS_EMBEDDING_MODEL",
		"embedding.timeout_secs":        "BIZLENS_EMBEDDING_TIMEOUT_SECS",
		"chunking.max_output_retries":   "BIZLENS_CHUNKING_MAX_OUTPUT_RETRIES",
		"chunking.fan_out":              "BIZLENS_CHUNKING_FAN_OUT",
		"chunking.token_budget":         "BIZLENS_CHUNKING_TOKEN_BUDGET",
		"chunking.header_tokens":        "BIZLENS_CHUNKING_HEADER_TOKENS",
		"chunking.call_timeout_secs":    "BIZLENS_CHUNKING_CALL_TIMEOUT_SECS",
		"aggregation.default_max_units": "BIZLENS_AGGREGATION_DEFAULT_MAX_UNITS",
		"aggregation.default_max_chars": "BIZLENS_AGGREGATION_DEFAULT_MAX_CHARS",
		"aggregation.overrides":         "BIZLENS_AGGREGATION_OVERRIDES",
		"prompt.cache_ttl":              "BIZLENS_PROMPT_CACHE_TTL",
		"queue.poll_interval_secs":      "BIZLENS_QUEUE_POLL_INTERVAL_SECS",
		"queue.max_retries":             "BIZLENS_QUEUE_MAX_RETRIES",
		"queue.concurrency":             "BIZLENS_QUEUE_CONCURRENCY",
		"queue.process_timeout_secs":    "BIZLENS_QUEUE_PROCESS_TIMEOUT_SECS",
		"email.provider":                "BIZLENS_EMAIL_PROVIDER",
		"email.region":                  "BIZLENS_EMAIL_REGION",
		"email.from_address":            "BIZLENS_EMAIL_FROM_ADDRESS",
		"email.from_name":               "BIZLENS_EMAIL_FROM_NAME",
		"email.frontend_url":            "BIZLENS_EMAIL_FRONTEND_URL",
		"email.summary_recipient":       "BIZLENS_EMAIL_SUMMARY_RECIPIENT",
		"email.summary_recipient_name":  "BIZLENS_EMAIL_SUMMARY_RECIPIENT_NAME",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if BIZLENS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("BIZLENS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:          v.GetString("s3.region"),
		Bucket:          v.GetString("s3.bucket"),
		Endpoint:        v.GetString("s3.endpoint"),
		AccessKey:       v.GetString("s3.access_key"),
		SecretKey:       v.GetString("s3.secret_key"),
		MaxBundleSizeMB: v.GetInt64("s3.max_bundle_size_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.LLM = LLMConfig{
		Primary: LLMProviderConfig{
			Provider:     v.GetString("llm.primary.provider"),
			APIKey:       v.GetString("llm.primary.api_key"),
			DefaultModel: v.GetString("llm.primary.default_model"),
			TimeoutSecs:  v.GetInt("llm.primary.timeout_secs"),
		},
		Secondary: LLMProviderConfig{
			Provider:     v.GetString("llm.secondary.provider"),
			APIKey:       v.GetString("llm.secondary.api_key"),
			DefaultModel: v.GetString("llm.secondary.default_model"),
			TimeoutSecs:  v.GetInt("llm.secondary.timeout_secs"),
		},
		Tertiary: LLMProviderConfig{
			Provider:     v.GetString("llm.tertiary.provider"),
			APIKey:       v.GetString("llm.tertiary.api_key"),
			DefaultModel: v.GetString("llm.tertiary.default_model"),
			TimeoutSecs:  v.GetInt("llm.tertiary.timeout_secs"),
		},
	}

	cfg.Embedding = EmbeddingConfig{
		Enabled:     v.GetBool("embedding.enabled"),
		APIKey:      v.GetString("embedding.api_key"),
		Model:       v.GetString("embedding.model"),
		TimeoutSecs: v.GetInt("embedding.timeout_secs"),
	}

	cfg.Chunking = ChunkingConfig{
		MaxOutputRetries: v.GetInt("chunking.max_output_retries"),
		FanOut:           v.GetInt("chunking.fan_out"),
		TokenBudget:      v.GetInt("chunking.token_budget"),
		HeaderTokens:     v.GetInt("chunking.header_tokens"),
		CallTimeoutSecs:  v.GetInt("chunking.call_timeout_secs"),
	}

	// Parse aggregation overrides from "source/entity=max_units:max_chars" pairs
	overrides := map[string]string{}
	for _, pair := range strings.Split(v.GetString("aggregation.overrides"), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid aggregation override %q", pair)
		}
		if _, _, err := ParseAggregationOverride(kv[1]); err != nil {
			return nil, fmt.Errorf("invalid aggregation override %q: %w", pair, err)
		}
		overrides[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	cfg.Aggregation = AggregationConfig{
		DefaultMaxUnits: v.GetInt("aggregation.default_max_units"),
		DefaultMaxChars: v.GetInt("aggregation.default_max_chars"),
		Overrides:       overrides,
	}

	cfg.Prompt = PromptConfig{
		CacheTTL: v.GetDuration("prompt.cache_ttl"),
	}

	cfg.Queue = QueueConfig{
		PollIntervalSecs:   v.GetInt("queue.poll_interval_secs"),
		MaxRetries:         v.GetInt("queue.max_retries"),
		Concurrency:        v.GetInt("queue.concurrency"),
		ProcessTimeoutSecs: v.GetInt("queue.process_timeout_secs"),
	}

	cfg.Email = EmailConfig{
		Provider:             v.GetString("email.provider"),
		Region:               v.GetString("email.region"),
		FromAddress:          v.GetString("email.from_address"),
		FromName:             v.GetString("email.from_name"),
		FrontendURL:          v.GetString("email.frontend_url"),
		SummaryRecipient:     v.GetString("email.summary_recipient"),
		SummaryRecipientName: v.GetString("email.summary_recipient_name"),
	}

	return cfg, nil
}
