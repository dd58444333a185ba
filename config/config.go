package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SystemBinding maps an external membership system to the local role
// organizations it governs.
type SystemBinding struct {
	Name          string   `mapstructure:"name"`
	Organizations []string `mapstructure:"organizations"`
}

// Config holds all configuration for the membership sync service.
// Tags use mapstructure for Viper unmarshalling and env variable binding.
type Config struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisDB     int    `mapstructure:"REDIS_DB"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// AppVersion tags every cache entry so a deploy invalidates all cached
	// third-party responses at once.
	AppVersion string `mapstructure:"APP_VERSION"`

	// MLA
	MLAAPIKey     string `mapstructure:"MLA_API_KEY"`
	MLAAPISecret  string `mapstructure:"MLA_API_SECRET"`
	MLAAPIBaseURL string `mapstructure:"MLA_API_BASE_URL"`

	// ARLISNA
	ARLISNAAPIToken   string `mapstructure:"ARLISNA_API_TOKEN"`
	ARLISNAAPIBaseURL string `mapstructure:"ARLISNA_API_BASE_URL"`

	// UP (Salesforce)
	UPAPIBaseURL   string `mapstructure:"UP_API_BASE_URL"`
	UPTokenURL     string `mapstructure:"UP_TOKEN_URL"`
	UPClientID     string `mapstructure:"UP_CLIENT_ID"`
	UPClientSecret string `mapstructure:"UP_CLIENT_SECRET"`
	UPRefreshToken string `mapstructure:"UP_REFRESH_TOKEN"`

	CacheCeilingHours int `mapstructure:"CACHE_CEILING_HOURS"`
	RateLimitMaxCalls int `mapstructure:"RATE_LIMIT_MAX_CALLS"`
	RateLimitWindowS  int `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`

	// SyncHours is the period during which a profile's previous sync result
	// is reused without touching the upstream systems.
	SyncHours int `mapstructure:"SYNC_HOURS"`

	WebhookToken    string   `mapstructure:"WEBHOOK_TOKEN"`
	WebhookURLs     []string `mapstructure:"WEBHOOK_URLS"`
	// UpdateEndpoints receive the structured per-identity update feed in
	// addition to the plain webhook ping.
	UpdateEndpoints []string `mapstructure:"UPDATE_ENDPOINTS"`
	UpdateIDP       string   `mapstructure:"UPDATE_IDP"`
	LogoutEndpoints []string `mapstructure:"LOGOUT_ENDPOINTS"`
	StaticAPIBearer string   `mapstructure:"STATIC_API_BEARER"`

	DirectoryPageSize int `mapstructure:"DIRECTORY_PAGE_SIZE"`

	// ExternalSyncSystems is the ordered list of systems the reconciliation
	// engine walks for every profile.
	ExternalSyncSystems []SystemBinding `mapstructure:"EXTERNAL_SYNC_SYSTEMS"`
}

// CacheCeiling returns the configured cache ceiling as a duration.
func (c *Config) CacheCeiling() time.Duration {
	return time.Duration(c.CacheCeilingHours) * time.Hour
}

// RateLimitWindow returns the configured rate-limit window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowS) * time.Second
}

// SyncWindow returns the configured sync reuse window as a duration.
func (c *Config) SyncWindow() time.Duration {
	return time.Duration(c.SyncHours) * time.Hour
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/membersync/")
	v.AddConfigPath("$HOME/.membersync")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/membersync_dev")
	v.SetDefault("MONGO_DB_NAME", "membersync_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "membersync")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("MLA_API_BASE_URL", "https://api.mla.org/2/")
	v.SetDefault("ARLISNA_API_BASE_URL", "https://www.arlisna.org/api/")
	v.SetDefault("UP_API_BASE_URL", "https://www.up.org/api/")
	v.SetDefault("UP_TOKEN_URL", "https://aupresses.my.salesforce.com/services/oauth2/token")
	v.SetDefault("CACHE_CEILING_HOURS", 24)
	v.SetDefault("RATE_LIMIT_MAX_CALLS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("SYNC_HOURS", 24)
	v.SetDefault("UPDATE_IDP", "cilogon")
	v.SetDefault("DIRECTORY_PAGE_SIZE", 25)
	v.SetDefault("EXTERNAL_SYNC_SYSTEMS", defaultSyncSystems())

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we fall back to defaults and env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

func defaultSyncSystems() []map[string]any {
	return []map[string]any{
		{"name": "MLA", "organizations": []string{"Modern Language Association", "MLA"}},
		{"name": "MSU", "organizations": []string{"Michigan State University", "MSU"}},
		{"name": "ARLISNA", "organizations": []string{"Art Libraries Society of North America", "ARLISNA"}},
		{"name": "UP", "organizations": []string{"Association of American University Presses"}},
	}
}
