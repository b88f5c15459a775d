// Package config loads and validates the atlassrv TOML configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/tansive/atlas/internal/common/uuid"
)

// Version is the configuration file format this build writes and reads.
const Version = "1.0.0"

// formatConstraint accepts every 1.x configuration file.
const formatConstraint = "^1.0.0"

const (
	StoreKindGitHub = "github"
	StoreKindMemory = "memory"

	IndexKindPostgres = "postgresql"
	IndexKindMemory   = "memory"
)

// Environment overrides for secrets, so they can stay out of the config file.
const (
	EnvGitHubToken    = "ATLAS_GITHUB_TOKEN"
	EnvWebhookSecret  = "ATLAS_WEBHOOK_SECRET"
	EnvAuthSigningKey = "ATLAS_AUTH_SIGNING_KEY"
	EnvDBPassword     = "ATLAS_DB_PASSWORD"
)

// DBConfig selects and configures the metadata index.
type DBConfig struct {
	Kind     string `toml:"kind"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	DBName   string `toml:"dbname"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
}

// ContentStoreConfig selects and configures the content repository.
type ContentStoreConfig struct {
	Kind        string `toml:"kind"`
	APIURL      string `toml:"api_url"`
	Owner       string `toml:"owner"`
	Repo        string `toml:"repo"`
	Branch      string `toml:"branch"`
	Token       string `toml:"token"`
	Timeout     string `toml:"timeout"`
	MaxRetries  uint   `toml:"max_retries"`
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`
}

func (c *ContentStoreConfig) GetTimeout() time.Duration {
	d, err := ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// WebhookConfig configures push notification ingestion.
type WebhookConfig struct {
	Secret       string `toml:"secret"`
	ProcessAsync bool   `toml:"process_async"`
	QueueSize    int    `toml:"queue_size"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	SigningKey string `toml:"signing_key"`
	Issuer     string `toml:"issuer"`
	ClockSkew  string `toml:"clock_skew"`
}

func (a *AuthConfig) GetClockSkew() time.Duration {
	d, err := ParseDuration(a.ClockSkew)
	if err != nil {
		return 0
	}
	return d
}

// ReconcileConfig configures the reconciliation engine.
type ReconcileConfig struct {
	SystemUserID string `toml:"system_user_id"` // owner assigned to entries discovered in the content store
}

// ConfigParam holds all configuration parameters for atlassrv.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	ServerPort         string   `toml:"server_port"`
	HandleCORS         bool     `toml:"handle_cors"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	MaxRequestBodySize int64    `toml:"max_request_body_size"`
	RequestTimeout     string   `toml:"request_timeout"`
	LogLevel           string   `toml:"log_level"`

	DB           DBConfig           `toml:"db"`
	ContentStore ContentStoreConfig `toml:"content_store"`
	Webhook      WebhookConfig      `toml:"webhook"`
	Auth         AuthConfig         `toml:"auth"`
	Reconcile    ReconcileConfig    `toml:"reconcile"`
}

var cfg *ConfigParam

// Config returns the loaded configuration.
func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the loaded configuration. Used by tests and tools that
// build a configuration in code.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// DSN returns the database connection string.
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

func (c *ConfigParam) GetRequestTimeout() time.Duration {
	d, err := ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ParseDuration accepts Go duration strings and the day and year suffixes
// "<n>d" and "<n>y".
func ParseDuration(input string) (time.Duration, error) {
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", input)
	}
	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	switch unit {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

// ValidateConfig checks required values and fills defaults.
func ValidateConfig(cfg *ConfigParam) error {
	applyEnvOverrides(cfg)
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	if err := validateContentStoreConfig(cfg); err != nil {
		return err
	}
	if err := validateWebhookConfig(cfg); err != nil {
		return err
	}
	if err := validateAuthConfig(cfg); err != nil {
		return err
	}
	if err := validateReconcileConfig(cfg); err != nil {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *ConfigParam) {
	if v := os.Getenv(EnvGitHubToken); v != "" {
		cfg.ContentStore.Token = v
	}
	if v := os.Getenv(EnvWebhookSecret); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv(EnvAuthSigningKey); v != "" {
		cfg.Auth.SigningKey = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		cfg.DB.Password = v
	}
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	v, err := semver.NewVersion(cfg.FormatVersion)
	if err != nil {
		return fmt.Errorf("invalid format_version %q: %v", cfg.FormatVersion, err)
	}
	c, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 4 << 20
	}
	if cfg.RequestTimeout != "" {
		if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout: %v", err)
		}
	}
	if cfg.HandleCORS && len(cfg.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("cors_allowed_origins is required when handle_cors is set")
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	if cfg.DB.Kind == "" {
		cfg.DB.Kind = IndexKindPostgres
	}
	switch cfg.DB.Kind {
	case IndexKindMemory:
		return nil
	case IndexKindPostgres:
	default:
		return fmt.Errorf("unknown db.kind: %s", cfg.DB.Kind)
	}
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if cfg.DB.Port <= 0 {
		return fmt.Errorf("db.port must be positive")
	}
	if cfg.DB.DBName == "" {
		return fmt.Errorf("db.dbname is required")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if cfg.DB.Password == "" {
		return fmt.Errorf("db.password is required")
	}
	if cfg.DB.SSLMode == "" {
		return fmt.Errorf("db.sslmode is required")
	}
	return nil
}

func validateContentStoreConfig(cfg *ConfigParam) error {
	cs := &cfg.ContentStore
	if cs.Kind == "" {
		cs.Kind = StoreKindGitHub
	}
	switch cs.Kind {
	case StoreKindMemory:
		return nil
	case StoreKindGitHub:
	default:
		return fmt.Errorf("unknown content_store.kind: %s", cs.Kind)
	}
	if cs.APIURL == "" {
		cs.APIURL = "https://api.github.com"
	}
	cs.APIURL = strings.TrimRight(cs.APIURL, "/")
	if cs.Owner == "" || cs.Repo == "" {
		return fmt.Errorf("content_store.owner and content_store.repo are required")
	}
	if cs.Token == "" {
		return fmt.Errorf("content_store.token is required (or set %s)", EnvGitHubToken)
	}
	if cs.Branch == "" {
		cs.Branch = "main"
	}
	if cs.Timeout == "" {
		cs.Timeout = "30s"
	}
	if _, err := ParseDuration(cs.Timeout); err != nil {
		return fmt.Errorf("invalid content_store.timeout: %v", err)
	}
	if cs.MaxRetries == 0 {
		cs.MaxRetries = 3
	}
	return nil
}

func validateWebhookConfig(cfg *ConfigParam) error {
	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required (or set %s)", EnvWebhookSecret)
	}
	if cfg.Webhook.QueueSize <= 0 {
		cfg.Webhook.QueueSize = 64
	}
	return nil
}

func validateAuthConfig(cfg *ConfigParam) error {
	if len(cfg.Auth.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes (or set %s)", EnvAuthSigningKey)
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "atlas"
	}
	if cfg.Auth.ClockSkew == "" {
		cfg.Auth.ClockSkew = "1m"
	}
	if _, err := ParseDuration(cfg.Auth.ClockSkew); err != nil {
		return fmt.Errorf("invalid auth.clock_skew: %v", err)
	}
	return nil
}

func validateReconcileConfig(cfg *ConfigParam) error {
	if cfg.Reconcile.SystemUserID == "" {
		return fmt.Errorf("reconcile.system_user_id is required")
	}
	if _, err := uuid.Parse(cfg.Reconcile.SystemUserID); err != nil {
		return fmt.Errorf("invalid reconcile.system_user_id: %v", err)
	}
	return nil
}

// LoadConfig reads, decodes and validates a configuration file.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	c, err := ParseConfig(string(content))
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// ParseConfig decodes and validates configuration text.
func ParseConfig(content string) (*ConfigParam, error) {
	c := &ConfigParam{}
	if _, err := toml.Decode(content, c); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}
