package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Monitoring MonitoringConfig
	Fleet      FleetConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	TimescaleDB PostgresConfig `mapstructure:"timescaledb"`
	AppDB       PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// Enabled reports whether a host was configured for this database
func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a redis host was configured
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type MonitoringConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// FleetConfig holds the timing parameters of the heartbeat protocol
type FleetConfig struct {
	// a device that has not sent a heartbeat for longer than this is DOWN
	DownThreshold time.Duration `mapstructure:"down_threshold"`
	// how long a live stream request stays active without being resubmitted
	StreamKeepAlive     time.Duration `mapstructure:"stream_keep_alive"`
	LockTimeout         time.Duration `mapstructure:"lock_timeout"`
	StatementTimeout    time.Duration `mapstructure:"statement_timeout"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	TelemetryRetention  time.Duration `mapstructure:"telemetry_retention"`
	LeaderTTL           time.Duration `mapstructure:"leader_ttl"`
	InstanceID          string        `mapstructure:"instance_id"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RECORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Load config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.postgres_app.host", "localhost")
	v.SetDefault("database.postgres_app.port", 5432)
	v.SetDefault("database.postgres_app.dbname", "recorderhub")
	v.SetDefault("database.postgres_app.sslmode", "disable")
	v.SetDefault("database.postgres_app.max_open_conns", 25)
	v.SetDefault("database.postgres_app.max_idle_conns", 5)
	v.SetDefault("database.timescaledb.port", 5432)
	v.SetDefault("database.timescaledb.sslmode", "disable")
	v.SetDefault("database.timescaledb.max_open_conns", 10)
	v.SetDefault("database.timescaledb.max_idle_conns", 2)

	// Redis defaults
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Monitoring defaults
	v.SetDefault("monitoring.log_level", "info")
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Fleet defaults
	v.SetDefault("fleet.down_threshold", "60s")
	v.SetDefault("fleet.stream_keep_alive", "30s")
	v.SetDefault("fleet.lock_timeout", "5s")
	v.SetDefault("fleet.statement_timeout", "10s")
	v.SetDefault("fleet.maintenance_interval", "30s")
	v.SetDefault("fleet.telemetry_retention", "720h")
	v.SetDefault("fleet.leader_ttl", "60s")
}

func validateConfig(config *Config) error {
	if !config.Database.AppDB.Enabled() {
		return fmt.Errorf("postgres app host is required")
	}
	if config.Fleet.DownThreshold <= 0 {
		return fmt.Errorf("fleet.down_threshold must be positive")
	}
	if config.Fleet.StreamKeepAlive <= 0 {
		return fmt.Errorf("fleet.stream_keep_alive must be positive")
	}
	if config.Fleet.LockTimeout <= 0 || config.Fleet.StatementTimeout <= 0 {
		return fmt.Errorf("fleet lock and statement timeouts must be positive")
	}
	if config.Fleet.MaintenanceInterval <= 0 {
		return fmt.Errorf("fleet.maintenance_interval must be positive")
	}
	if config.Redis.Enabled() && config.Fleet.LeaderTTL < time.Second {
		return fmt.Errorf("fleet.leader_ttl must be at least one second")
	}
	return nil
}
