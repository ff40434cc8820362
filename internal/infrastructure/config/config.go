package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	License   LicenseConfig
	WMS       WMSConfig
	Update    UpdateConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
	Domain  string // public host name reported to the license server
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	// AuditDSN points sync run records at a separate database. Empty uses the main one.
	AuditDSN string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds settings for verifying admin bearer tokens
type JWTConfig struct {
	Secret    string
	Issuer    string
	AdminRole string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	TrustedProxies  []string
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool
	MetricsEnabled    bool
	LogsEnabled       bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
	ProfilingEnabled  bool
	PyroscopeAddress  string
}

// LicenseConfig holds remote license validation settings
type LicenseConfig struct {
	Key                string
	ProviderURL        string
	ValidationEndpoint string
	ResponseFormat     string // v2 (default) or v1
	Timeout            time.Duration
	CacheTTL           time.Duration
	NegativeCacheTTL   time.Duration
	SnapshotTTL        time.Duration
	GracePeriod        time.Duration
	RenewURL           string
}

// WMSConfig holds warehouse management system integration settings
type WMSConfig struct {
	APIURL           string
	APIKey           string
	WebhookSecret    string
	Timeout          time.Duration
	BatchSize        int
	SyncEnabled      bool
	SyncInterval     time.Duration
	LockTTL          time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	WebhookWorkers   int
	WebhookQueueSize int
	WebhookTries     int
	WebhookBackoff   time.Duration
	MaxWebhookBody   int64
}

// UpdateConfig holds self-update settings
type UpdateConfig struct {
	RepoDir        string
	Remote         string
	Branch         string
	LockFile       string
	InstallCommand string
	PullTimeout    time.Duration
	InstallTimeout time.Duration
	MigrationsPath string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TENANT_ prefix (e.g., TENANT_LICENSE_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TENANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
			Domain:  v.GetString("app.domain"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			AuditDSN:        v.GetString("database.audit_dsn"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			AdminRole: v.GetString("jwt.admin_role"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
		License: LicenseConfig{
			Key:                v.GetString("license.key"),
			ProviderURL:        v.GetString("license.provider_url"),
			ValidationEndpoint: v.GetString("license.validation_endpoint"),
			ResponseFormat:     v.GetString("license.response_format"),
			Timeout:            v.GetDuration("license.timeout"),
			CacheTTL:           v.GetDuration("license.cache_ttl"),
			NegativeCacheTTL:   v.GetDuration("license.negative_cache_ttl"),
			SnapshotTTL:        v.GetDuration("license.snapshot_ttl"),
			GracePeriod:        time.Duration(v.GetInt("license.grace_period_hours")) * time.Hour,
			RenewURL:           v.GetString("license.renew_url"),
		},
		WMS: WMSConfig{
			APIURL:           v.GetString("wms.api_url"),
			APIKey:           v.GetString("wms.api_key"),
			WebhookSecret:    v.GetString("wms.webhook_secret"),
			Timeout:          v.GetDuration("wms.timeout"),
			BatchSize:        v.GetInt("wms.batch_size"),
			SyncEnabled:      v.GetBool("wms.sync_enabled"),
			SyncInterval:     time.Duration(v.GetInt("wms.sync_interval_minutes")) * time.Minute,
			LockTTL:          v.GetDuration("wms.lock_ttl"),
			RetryAttempts:    v.GetInt("wms.retry_attempts"),
			RetryDelay:       v.GetDuration("wms.retry_delay"),
			WebhookWorkers:   v.GetInt("wms.webhook_workers"),
			WebhookQueueSize: v.GetInt("wms.webhook_queue_size"),
			WebhookTries:     v.GetInt("wms.webhook_tries"),
			WebhookBackoff:   v.GetDuration("wms.webhook_backoff"),
			MaxWebhookBody:   v.GetInt64("wms.max_webhook_body"),
		},
		Update: UpdateConfig{
			RepoDir:        v.GetString("update.repo_dir"),
			Remote:         v.GetString("update.remote"),
			Branch:         v.GetString("update.branch"),
			LockFile:       v.GetString("update.lock_file"),
			InstallCommand: v.GetString("update.install_command"),
			PullTimeout:    v.GetDuration("update.pull_timeout"),
			InstallTimeout: v.GetDuration("update.install_timeout"),
			MigrationsPath: v.GetString("update.migrations_path"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tenant-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.App.Domain == "" {
		cfg.App.Domain = "localhost"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "tenant"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "tenant-backend"
	}
	if cfg.JWT.AdminRole == "" {
		cfg.JWT.AdminRole = "admin"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// The update endpoint runs the whole pipeline inside the request.
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tenant-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}

	if cfg.License.ValidationEndpoint == "" {
		cfg.License.ValidationEndpoint = "/api/v1/licenses/validate"
	}
	if cfg.License.ResponseFormat == "" {
		cfg.License.ResponseFormat = "v2"
	}
	if cfg.License.Timeout == 0 {
		cfg.License.Timeout = 10 * time.Second
	}
	if cfg.License.CacheTTL == 0 {
		cfg.License.CacheTTL = time.Hour
	}
	if cfg.License.NegativeCacheTTL == 0 {
		cfg.License.NegativeCacheTTL = 5 * time.Minute
	}
	if cfg.License.SnapshotTTL == 0 {
		cfg.License.SnapshotTTL = 7 * 24 * time.Hour
	}
	if cfg.License.GracePeriod == 0 {
		cfg.License.GracePeriod = 72 * time.Hour
	}

	if cfg.WMS.Timeout == 0 {
		cfg.WMS.Timeout = 30 * time.Second
	}
	if cfg.WMS.BatchSize == 0 {
		cfg.WMS.BatchSize = 100
	}
	if cfg.WMS.SyncInterval == 0 {
		cfg.WMS.SyncInterval = 5 * time.Minute
	}
	if cfg.WMS.LockTTL == 0 {
		cfg.WMS.LockTTL = 10 * time.Minute
	}
	if cfg.WMS.RetryAttempts == 0 {
		cfg.WMS.RetryAttempts = 3
	}
	if cfg.WMS.RetryDelay == 0 {
		cfg.WMS.RetryDelay = 60 * time.Second
	}
	if cfg.WMS.WebhookWorkers == 0 {
		cfg.WMS.WebhookWorkers = 4
	}
	if cfg.WMS.WebhookQueueSize == 0 {
		cfg.WMS.WebhookQueueSize = 100
	}
	if cfg.WMS.WebhookTries == 0 {
		cfg.WMS.WebhookTries = 3
	}
	if cfg.WMS.WebhookBackoff == 0 {
		cfg.WMS.WebhookBackoff = 30 * time.Second
	}
	if cfg.WMS.MaxWebhookBody == 0 {
		cfg.WMS.MaxWebhookBody = 1 << 20
	}

	if cfg.Update.RepoDir == "" {
		cfg.Update.RepoDir = "."
	}
	if cfg.Update.Remote == "" {
		cfg.Update.Remote = "origin"
	}
	if cfg.Update.Branch == "" {
		cfg.Update.Branch = "main"
	}
	if cfg.Update.LockFile == "" {
		cfg.Update.LockFile = "go.sum"
	}
	if cfg.Update.InstallCommand == "" {
		cfg.Update.InstallCommand = "go mod download"
	}
	if cfg.Update.PullTimeout == 0 {
		cfg.Update.PullTimeout = 120 * time.Second
	}
	if cfg.Update.InstallTimeout == 0 {
		cfg.Update.InstallTimeout = 300 * time.Second
	}
	if cfg.Update.MigrationsPath == "" {
		cfg.Update.MigrationsPath = "migrations"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.License.ResponseFormat {
	case "v1", "v2":
	default:
		return fmt.Errorf("license.response_format must be v1 or v2, got %q", c.License.ResponseFormat)
	}
	if c.License.GracePeriod < 0 {
		return fmt.Errorf("license.grace_period_hours cannot be negative")
	}
	if c.WMS.BatchSize < 0 {
		return fmt.Errorf("wms.batch_size cannot be negative")
	}
	if c.WMS.WebhookTries < 1 {
		return fmt.Errorf("wms.webhook_tries must be at least 1")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.License.Key == "" {
			return fmt.Errorf("license.key is required in production")
		}
		if c.WMS.WebhookSecret == "" {
			return fmt.Errorf("wms.webhook_secret is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
