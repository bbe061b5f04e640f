package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server  ServerConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
	GitHub  GitHubConfig
	Ingest  IngestConfig
	Auth    AuthConfig
	Session SessionConfig
	Archive ArchiveConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GitHubConfig configures the repository content provider. Token is the
// unscoped fallback used when no delegated token is available.
type GitHubConfig struct {
	APIBase string
	Token   string
	Timeout time.Duration
}

type IngestConfig struct {
	Interval  time.Duration
	Workers   int
	QueueSize int
}

// AuthConfig covers principal resolution and the authorization gate.
// AdminUsers bypass ownership checks; GroupPrefix marks owner entries that
// are descriptive team labels, never matched against an individual login.
type AuthConfig struct {
	AdminUsers  []string
	GroupPrefix string
	JWTSecret   string
	OIDCIssuer  string
	OIDCClient  string
}

type SessionConfig struct {
	TTL    time.Duration
	Prefix string
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGODB_DATABASE", "layersite")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("GITHUB_API_BASE", "https://api.github.com")
	viper.SetDefault("GITHUB_TIMEOUT", 10)
	viper.SetDefault("INGEST_INTERVAL_HOURS", 12)
	viper.SetDefault("INGEST_WORKERS", 2)
	viper.SetDefault("INGEST_QUEUE_SIZE", 64)
	viper.SetDefault("OWNER_GROUP_PREFIX", "@")
	viper.SetDefault("SESSION_TTL_HOURS", 168)
	viper.SetDefault("SESSION_PREFIX", "session:")
	viper.SetDefault("ARCHIVE_BUCKET", "layersite-snapshots")
	viper.SetDefault("RATE_LIMIT_RPS", 20.0)
	viper.SetDefault("RATE_LIMIT_BURST", 40)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       0,
		},
		GitHub: GitHubConfig{
			APIBase: viper.GetString("GITHUB_API_BASE"),
			Token:   viper.GetString("GITHUB_TOKEN"),
			Timeout: time.Duration(viper.GetInt("GITHUB_TIMEOUT")) * time.Second,
		},
		Ingest: IngestConfig{
			Interval:  time.Duration(viper.GetInt("INGEST_INTERVAL_HOURS")) * time.Hour,
			Workers:   viper.GetInt("INGEST_WORKERS"),
			QueueSize: viper.GetInt("INGEST_QUEUE_SIZE"),
		},
		Auth: AuthConfig{
			AdminUsers:  splitList(viper.GetString("ADMIN_USERS")),
			GroupPrefix: viper.GetString("OWNER_GROUP_PREFIX"),
			JWTSecret:   viper.GetString("JWT_SECRET"),
			OIDCIssuer:  viper.GetString("OIDC_ISSUER"),
			OIDCClient:  viper.GetString("OIDC_CLIENT_ID"),
		},
		Session: SessionConfig{
			TTL:    time.Duration(viper.GetInt("SESSION_TTL_HOURS")) * time.Hour,
			Prefix: viper.GetString("SESSION_PREFIX"),
		},
		Archive: ArchiveConfig{
			Enabled:   viper.GetBool("ARCHIVE_ENABLED"),
			Endpoint:  viper.GetString("ARCHIVE_ENDPOINT"),
			AccessKey: viper.GetString("ARCHIVE_ACCESS_KEY"),
			SecretKey: viper.GetString("ARCHIVE_SECRET_KEY"),
			UseSSL:    viper.GetBool("ARCHIVE_USE_SSL"),
			Bucket:    viper.GetString("ARCHIVE_BUCKET"),
		},
		RateLimit: RateLimitConfig{
			Enabled: viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   viper.GetInt("RATE_LIMIT_BURST"),
		},
	}

	return cfg, nil
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
