// Package config loads service configuration from config.toml and RMA_
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Admin       AdminConfig
	Engine      EngineConfig
	Notify      NotifyConfig
	Lock        LockConfig
	Maintenance MaintenanceConfig
	Telemetry   TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Timezone string // IANA zone used for counter periods and date stamps
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	SwaggerEnabled   bool
	SwaggerAllowIPs  []string // addresses or CIDRs; empty allows everyone
}

// StoreConfig selects and tunes the document store
type StoreConfig struct {
	Driver         string // memory, redis, postgres
	AtomicRetries  int
	PollInterval   time.Duration // change-feed polling for the postgres store
	KeyNamespace   string        // redis key prefix
	OperationLimit time.Duration // per-call timeout
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
	LogLevel        string
	SlowThreshold   time.Duration
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

// AdminConfig holds the shared secret guarding destructive operations. SecretHash
// is a bcrypt hash; Secret is a plaintext fallback for development.
type AdminConfig struct {
	SecretHash string
	Secret     string
}

// EngineConfig holds lifecycle engine tuning
type EngineConfig struct {
	PlaceholderDocuments []string
	RepairUnit           string
	RepairBranch         string
	RepairCustomer       string
	RepairDestination    string
	RepairQuantity       int64
}

// NotifyConfig holds chat webhook settings
type NotifyConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// LockConfig holds the per-document mutex settings. When disabled, the lock
// guard still runs but concurrent writers are not serialized.
type LockConfig struct {
	Enabled bool
	TTL     time.Duration
	Wait    time.Duration
}

// MaintenanceConfig schedules the daily reconciliation run in the API server
type MaintenanceConfig struct {
	Enabled       bool
	DailySchedule string // cron "minute hour * * *"
	SweepOrphans  bool   // also purge orphaned records; repair always runs
	JobTimeout    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
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

	// Continuous profiling is pushed to a Pyroscope server
	ProfilingEnabled  bool
	ProfilingServer   string
	ProfilingUser     string
	ProfilingPassword string
	ProfileTypes      []string // cpu, alloc_space, inuse_space, goroutines, mutex_count, ...
	SpanProfiles      bool     // label CPU samples with the active span
}

// Load reads configuration. Priority, highest first:
// 1. RMA_ environment variables (e.g. RMA_STORE_DRIVER)
// 2. config.toml
// 3. built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	return load(v)
}

// LoadFile reads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("lock.enabled", true)
	v.SetDefault("http.swagger_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Port:     v.GetString("app.port"),
			Timezone: v.GetString("app.timezone"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			SwaggerEnabled:   v.GetBool("http.swagger_enabled"),
			SwaggerAllowIPs:  v.GetStringSlice("http.swagger_allow_ips"),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(v.GetString("store.driver")),
			AtomicRetries:  v.GetInt("store.atomic_retries"),
			PollInterval:   v.GetDuration("store.poll_interval"),
			KeyNamespace:   v.GetString("store.key_namespace"),
			OperationLimit: v.GetDuration("store.operation_timeout"),
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
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Admin: AdminConfig{
			SecretHash: v.GetString("admin.secret_hash"),
			Secret:     v.GetString("admin.secret"),
		},
		Engine: EngineConfig{
			PlaceholderDocuments: v.GetStringSlice("engine.placeholder_documents"),
			RepairUnit:           v.GetString("engine.repair_unit"),
			RepairBranch:         v.GetString("engine.repair_branch"),
			RepairCustomer:       v.GetString("engine.repair_customer"),
			RepairDestination:    v.GetString("engine.repair_destination"),
			RepairQuantity:       v.GetInt64("engine.repair_quantity"),
		},
		Notify: NotifyConfig{
			Enabled:    v.GetBool("notify.enabled"),
			WebhookURL: v.GetString("notify.webhook_url"),
			Timeout:    v.GetDuration("notify.timeout"),
		},
		Lock: LockConfig{
			Enabled: v.GetBool("lock.enabled"),
			TTL:     v.GetDuration("lock.ttl"),
			Wait:    v.GetDuration("lock.wait"),
		},
		Maintenance: MaintenanceConfig{
			Enabled:       v.GetBool("maintenance.enabled"),
			DailySchedule: v.GetString("maintenance.daily_schedule"),
			SweepOrphans:  v.GetBool("maintenance.sweep_orphans"),
			JobTimeout:    v.GetDuration("maintenance.job_timeout"),
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
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			ProfilingUser:     v.GetString("telemetry.profiling_user"),
			ProfilingPassword: v.GetString("telemetry.profiling_password"),
			ProfileTypes:      v.GetStringSlice("telemetry.profile_types"),
			SpanProfiles:      v.GetBool("telemetry.span_profiles"),
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
		cfg.App.Name = "returnflow"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "UTC"
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
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "X-Operator", "X-Admin-Secret"}
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if cfg.Store.AtomicRetries == 0 {
		cfg.Store.AtomicRetries = 5
	}
	if cfg.Store.PollInterval == 0 {
		cfg.Store.PollInterval = 2 * time.Second
	}
	if cfg.Store.KeyNamespace == "" {
		cfg.Store.KeyNamespace = "rma"
	}
	if cfg.Store.OperationLimit == 0 {
		cfg.Store.OperationLimit = 10 * time.Second
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
		cfg.Database.DBName = "returnflow"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if len(cfg.Engine.PlaceholderDocuments) == 0 {
		cfg.Engine.PlaceholderDocuments = []string{"-", "n/a", "none", "tbd"}
	}
	if cfg.Engine.RepairUnit == "" {
		cfg.Engine.RepairUnit = "Unit"
	}
	if cfg.Engine.RepairBranch == "" {
		cfg.Engine.RepairBranch = "Head Office"
	}
	if cfg.Engine.RepairCustomer == "" {
		cfg.Engine.RepairCustomer = "-"
	}
	if cfg.Engine.RepairDestination == "" {
		cfg.Engine.RepairDestination = "-"
	}
	if cfg.Engine.RepairQuantity == 0 {
		cfg.Engine.RepairQuantity = 1
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 10 * time.Second
	}
	if cfg.Lock.Wait == 0 {
		cfg.Lock.Wait = 3 * time.Second
	}
	if cfg.Maintenance.DailySchedule == "" {
		cfg.Maintenance.DailySchedule = "0 2 * * *"
	}
	if cfg.Maintenance.JobTimeout == 0 {
		cfg.Maintenance.JobTimeout = 10 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if len(cfg.Telemetry.ProfileTypes) == 0 {
		cfg.Telemetry.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("store.driver must be one of memory, redis, postgres, got %q", c.Store.Driver)
	}
	if c.Store.AtomicRetries < 1 {
		return fmt.Errorf("store.atomic_retries must be positive")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Engine.RepairQuantity < 0 {
		return fmt.Errorf("engine.repair_quantity cannot be negative")
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.enabled is true")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "" {
		return fmt.Errorf("telemetry.profiling_server is required when telemetry.profiling_enabled is true")
	}

	if c.App.Env == "production" {
		if c.Admin.SecretHash == "" {
			return fmt.Errorf("admin.secret_hash is required in production")
		}
		if c.Admin.Secret != "" {
			return fmt.Errorf("admin.secret (plaintext) must not be set in production")
		}
		if c.Store.Driver == StoreMemory {
			return fmt.Errorf("store.driver=memory is not allowed in production")
		}
		if c.Store.Driver == StorePostgres && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
		if c.HTTP.SwaggerEnabled && len(c.HTTP.SwaggerAllowIPs) == 0 {
			return fmt.Errorf("http.swagger_allow_ips is required when swagger is enabled in production")
		}
	}
	return nil
}

// Location returns the configured time zone
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
