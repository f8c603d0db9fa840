package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Gateway  GatewayConfig  `yaml:"gateway" mapstructure:"gateway"`
	Places   PlacesConfig   `yaml:"places" mapstructure:"places"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	AI       AIConfig       `yaml:"ai" mapstructure:"ai"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Branding BrandingConfig `yaml:"branding" mapstructure:"branding"`
	Billing  BillingConfig  `yaml:"billing" mapstructure:"billing"`
	Webhook  WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GatewayConfig configures the outbound API broker.
type GatewayConfig struct {
	Retries         int `yaml:"retries" mapstructure:"retries"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
	CacheMaxEntries int `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
}

// PlacesConfig holds places-search vendor settings.
type PlacesConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig holds web-search vendor settings.
type SearchConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AIConfig holds generative-AI settings.
type AIConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RegistryConfig configures company-registry lookups.
type RegistryConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// BrandingConfig configures per-tenant branding resolution.
type BrandingConfig struct {
	TimeoutMs int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// BillingConfig configures credit metering and checkout.
type BillingConfig struct {
	CheckoutBaseURL string             `yaml:"checkout_base_url" mapstructure:"checkout_base_url"`
	CheckoutKey     string             `yaml:"checkout_key" mapstructure:"checkout_key"`
	Products        map[string]Product `yaml:"products" mapstructure:"products"`
}

// Product maps a sellable product id to its current price.
type Product struct {
	Name     string  `yaml:"name" mapstructure:"name"`
	PriceUSD float64 `yaml:"price_usd" mapstructure:"price_usd"`
	Credits  int     `yaml:"credits" mapstructure:"credits"`
}

// WebhookConfig configures outbound webhook delivery.
type WebhookConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExportConfig holds CRM export integrations.
type ExportConfig struct {
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
}

// NotionConfig holds Notion API credentials and the lead database id.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leadgen.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("gateway.retries", 3)
	v.SetDefault("gateway.cache_ttl_minutes", 60)
	v.SetDefault("gateway.cache_max_entries", 10000)
	v.SetDefault("ai.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("registry.timeout_secs", 5)
	v.SetDefault("registry.rate_limit", 6.0)
	v.SetDefault("registry.max_candidates", 30)
	v.SetDefault("branding.timeout_ms", 2000)
	v.SetDefault("webhook.timeout_secs", 10)
	v.SetDefault("export.salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
