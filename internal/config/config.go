package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Log       LogConfig
	CORS      CORSConfig
	Providers ProvidersConfig
	Roster    []RosterEntry
	Consensus ConsensusConfig
	Invoice   InvoiceConfig
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProviderConfig holds credentials and call limits for one model vendor.
type ProviderConfig struct {
	Provider          string `mapstructure:"provider"`
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	MaxRetries        int    `mapstructure:"max_retries"`
	TimeoutSecs       int    `mapstructure:"timeout_secs"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// Timeout returns the per-attempt timeout, defaulting to 120s.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// ProvidersConfig holds one ProviderConfig per supported vendor.
type ProvidersConfig struct {
	Claude ProviderConfig `mapstructure:"claude"`
	OpenAI ProviderConfig `mapstructure:"openai"`
	Gemini ProviderConfig `mapstructure:"gemini"`
}

// For returns the vendor config registered under name.
func (p *ProvidersConfig) For(name string) (ProviderConfig, bool) {
	switch name {
	case "claude":
		return p.Claude, true
	case "openai":
		return p.OpenAI, true
	case "gemini":
		return p.Gemini, true
	default:
		return ProviderConfig{}, false
	}
}

// RosterEntry is one model configuration taking part in consensus rounds.
type RosterEntry struct {
	ID          string   `mapstructure:"id"`
	Provider    string   `mapstructure:"provider"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
}

// DefaultRoster is used when no roster is configured: two vendors, two sizes each, plus a third vendor.
func DefaultRoster() []RosterEntry {
	return []RosterEntry{
		{ID: "claude-sonnet", Provider: "claude", Model: "claude-sonnet-4-20250514"},
		{ID: "claude-haiku", Provider: "claude", Model: "claude-3-5-haiku-latest"},
		{ID: "gpt-4o", Provider: "openai", Model: "gpt-4o"},
		{ID: "gpt-4o-mini", Provider: "openai", Model: "gpt-4o-mini"},
		{ID: "gemini-flash", Provider: "gemini", Model: "gemini-2.0-flash"},
	}
}

// ParseRoster reads a roster from "id=provider:model" entries separated by commas.
func ParseRoster(s string) ([]RosterEntry, error) {
	var out []RosterEntry
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, target, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("roster entry %q: want id=provider:model", part)
		}
		provider, model, ok := strings.Cut(target, ":")
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("roster entry %q: want id=provider:model", part)
		}
		out = append(out, RosterEntry{
			ID:       strings.TrimSpace(id),
			Provider: strings.TrimSpace(provider),
			Model:    strings.TrimSpace(model),
		})
	}
	return out, nil
}

// ConsensusConfig holds the consensus engine thresholds.
type ConsensusConfig struct {
	MinRoster              int     `mapstructure:"min_roster"`
	MinSuccessful          int     `mapstructure:"min_successful"`
	DescriptionThreshold   float64 `mapstructure:"description_threshold"`
	CrossCategoryThreshold float64 `mapstructure:"cross_category_threshold"`
	IoUThreshold           float64 `mapstructure:"iou_threshold"`
	LocationThreshold      float64 `mapstructure:"location_threshold"`
	NumericTolerance       float64 `mapstructure:"numeric_tolerance"`
	ModelTimeoutSecs       int     `mapstructure:"model_timeout_secs"`
	MaxParallel            int     `mapstructure:"max_parallel"`
}

// InvoiceConfig selects the roster entries used for invoice extraction, in fallback order.
type InvoiceConfig struct {
	Primary       string `mapstructure:"primary"`
	Secondary     string `mapstructure:"secondary"`
	Tertiary      string `mapstructure:"tertiary"`
	MinTextLength int    `mapstructure:"min_text_length"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	MaxTextRunes  int    `mapstructure:"max_text_runes"`
}

// Chain returns the configured roster ids in fallback order, skipping blanks.
func (c *InvoiceConfig) Chain() []string {
	var ids []string
	for _, id := range []string{c.Primary, c.Secondary, c.Tertiary} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
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

// S3Config holds settings for the plan sheet and export bucket.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
	ExportPrefix  string `mapstructure:"export_prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from BIDFLOW_ environment variables and an optional config.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BIDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, env := range envBindings() {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it unless BIDFLOW_SERVER_PORT is explicit.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("BIDFLOW_SERVER_PORT") == "" {
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
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
		ExportPrefix:  v.GetString("s3.export_prefix"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{AllowedOrigins: splitList(v.GetString("cors.allowed_origins"))}

	cfg.Providers = ProvidersConfig{
		Claude: providerConfig(v, "claude"),
		OpenAI: providerConfig(v, "openai"),
		Gemini: providerConfig(v, "gemini"),
	}

	roster, err := loadRoster(v)
	if err != nil {
		return nil, err
	}
	cfg.Roster = roster

	cfg.Consensus = ConsensusConfig{
		MinRoster:              v.GetInt("consensus.min_roster"),
		MinSuccessful:          v.GetInt("consensus.min_successful"),
		DescriptionThreshold:   v.GetFloat64("consensus.description_threshold"),
		CrossCategoryThreshold: v.GetFloat64("consensus.cross_category_threshold"),
		IoUThreshold:           v.GetFloat64("consensus.iou_threshold"),
		LocationThreshold:      v.GetFloat64("consensus.location_threshold"),
		NumericTolerance:       v.GetFloat64("consensus.numeric_tolerance"),
		ModelTimeoutSecs:       v.GetInt("consensus.model_timeout_secs"),
		MaxParallel:            v.GetInt("consensus.max_parallel"),
	}
	cfg.Invoice = InvoiceConfig{
		Primary:       v.GetString("invoice.primary"),
		Secondary:     v.GetString("invoice.secondary"),
		Tertiary:      v.GetString("invoice.tertiary"),
		MinTextLength: v.GetInt("invoice.min_text_length"),
		MaxTokens:     v.GetInt("invoice.max_tokens"),
		MaxTextRunes:  v.GetInt("invoice.max_text_runes"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	// Consensus rounds wait on several model calls.
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.environment", "development")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "bidflow")
	v.SetDefault("db.password", "bidflow_secret")
	v.SetDefault("db.name", "bidflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "bidflow-plans")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)
	v.SetDefault("s3.export_prefix", "exports/")

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	for _, p := range []string{"claude", "openai", "gemini"} {
		v.SetDefault("providers."+p+".provider", p)
		v.SetDefault("providers."+p+".api_key", "")
		v.SetDefault("providers."+p+".base_url", "")
		v.SetDefault("providers."+p+".max_retries", 3)
		v.SetDefault("providers."+p+".timeout_secs", 120)
		v.SetDefault("providers."+p+".requests_per_minute", 60)
	}

	v.SetDefault("roster", "")

	v.SetDefault("consensus.min_roster", 5)
	v.SetDefault("consensus.min_successful", 2)
	v.SetDefault("consensus.description_threshold", 0.6)
	v.SetDefault("consensus.cross_category_threshold", 0.8)
	v.SetDefault("consensus.iou_threshold", 0.3)
	v.SetDefault("consensus.location_threshold", 0.5)
	v.SetDefault("consensus.numeric_tolerance", 0.15)
	v.SetDefault("consensus.model_timeout_secs", 120)
	v.SetDefault("consensus.max_parallel", 0)

	v.SetDefault("invoice.primary", "claude-sonnet")
	v.SetDefault("invoice.secondary", "gpt-4o")
	v.SetDefault("invoice.tertiary", "gemini-flash")
	v.SetDefault("invoice.min_text_length", 20)
	v.SetDefault("invoice.max_tokens", 8192)
	v.SetDefault("invoice.max_text_runes", 100000)
}

// envBindings maps nested keys to their environment variables.
func envBindings() map[string]string {
	b := map[string]string{
		"server.port":                        "BIDFLOW_SERVER_PORT",
		"server.read_timeout":                "BIDFLOW_SERVER_READ_TIMEOUT",
		"server.write_timeout":               "BIDFLOW_SERVER_WRITE_TIMEOUT",
		"server.environment":                 "BIDFLOW_SERVER_ENVIRONMENT",
		"db.host":                            "BIDFLOW_DB_HOST",
		"db.port":                            "BIDFLOW_DB_PORT",
		"db.user":                            "BIDFLOW_DB_USER",
		"db.password":                        "BIDFLOW_DB_PASSWORD",
		"db.name":                            "BIDFLOW_DB_NAME",
		"db.sslmode":                         "BIDFLOW_DB_SSLMODE",
		"db.max_open":                        "BIDFLOW_DB_MAX_OPEN",
		"db.max_idle":                        "BIDFLOW_DB_MAX_IDLE",
		"s3.region":                          "BIDFLOW_S3_REGION",
		"s3.bucket":                          "BIDFLOW_S3_BUCKET",
		"s3.endpoint":                        "BIDFLOW_S3_ENDPOINT",
		"s3.access_key":                      "BIDFLOW_S3_ACCESS_KEY",
		"s3.secret_key":                      "BIDFLOW_S3_SECRET_KEY",
		"s3.presign_expiry":                  "BIDFLOW_S3_PRESIGN_EXPIRY",
		"s3.export_prefix":                   "BIDFLOW_S3_EXPORT_PREFIX",
		"log.level":                          "BIDFLOW_LOG_LEVEL",
		"log.format":                         "BIDFLOW_LOG_FORMAT",
		"cors.allowed_origins":               "BIDFLOW_CORS_ALLOWED_ORIGINS",
		"roster":                             "BIDFLOW_ROSTER",
		"consensus.min_roster":               "BIDFLOW_CONSENSUS_MIN_ROSTER",
		"consensus.min_successful":           "BIDFLOW_CONSENSUS_MIN_SUCCESSFUL",
		"consensus.description_threshold":    "BIDFLOW_CONSENSUS_DESCRIPTION_THRESHOLD",
		"consensus.cross_category_threshold": "BIDFLOW_CONSENSUS_CROSS_CATEGORY_THRESHOLD",
		"consensus.iou_threshold":            "BIDFLOW_CONSENSUS_IOU_THRESHOLD",
		"consensus.location_threshold":       "BIDFLOW_CONSENSUS_LOCATION_THRESHOLD",
		"consensus.numeric_tolerance":        "BIDFLOW_CONSENSUS_NUMERIC_TOLERANCE",
		"consensus.model_timeout_secs":       "BIDFLOW_CONSENSUS_MODEL_TIMEOUT_SECS",
		"consensus.max_parallel":             "BIDFLOW_CONSENSUS_MAX_PARALLEL",
		"invoice.primary":                    "BIDFLOW_INVOICE_PRIMARY",
		"invoice.secondary":                  "BIDFLOW_INVOICE_SECONDARY",
		"invoice.tertiary":                   "BIDFLOW_INVOICE_TERTIARY",
		"invoice.min_text_length":            "BIDFLOW_INVOICE_MIN_TEXT_LENGTH",
		"invoice.max_tokens":                 "BIDFLOW_INVOICE_MAX_TOKENS",
		"invoice.max_text_runes":             "BIDFLOW_INVOICE_MAX_TEXT_RUNES",
	}
	for _, p := range []string{"claude", "openai", "gemini"} {
		prefix := "BIDFLOW_PROVIDERS_" + strings.ToUpper(p) + "_"
		for _, field := range []string{"api_key", "base_url", "max_retries", "timeout_secs", "requests_per_minute"} {
			b["providers."+p+"."+field] = prefix + strings.ToUpper(field)
		}
	}
	return b
}

func providerConfig(v *viper.Viper, name string) ProviderConfig {
	key := "providers." + name + "."
	return ProviderConfig{
		Provider:          v.GetString(key + "provider"),
		APIKey:            v.GetString(key + "api_key"),
		BaseURL:           v.GetString(key + "base_url"),
		MaxRetries:        v.GetInt(key + "max_retries"),
		TimeoutSecs:       v.GetInt(key + "timeout_secs"),
		RequestsPerMinute: v.GetInt(key + "requests_per_minute"),
	}
}

// loadRoster accepts a list of entries from config.yaml or the compact
// BIDFLOW_ROSTER string, and falls back to DefaultRoster.
func loadRoster(v *viper.Viper) ([]RosterEntry, error) {
	switch raw := v.Get("roster").(type) {
	case string:
		if strings.TrimSpace(raw) == "" {
			return DefaultRoster(), nil
		}
		roster, err := ParseRoster(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing roster: %w", err)
		}
		return roster, nil
	case nil:
		return DefaultRoster(), nil
	default:
		var roster []RosterEntry
		if err := v.UnmarshalKey("roster", &roster); err != nil {
			return nil, fmt.Errorf("decoding roster: %w", err)
		}
		if len(roster) == 0 {
			return DefaultRoster(), nil
		}
		return roster, nil
	}
}

func splitList(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
