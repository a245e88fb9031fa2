package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
	NLP      NLPConfig      `mapstructure:"nlp"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Build    BuildConfig    `mapstructure:"build"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	HTTPPort    int      `mapstructure:"http_port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds the definition store configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	LogSQL   bool   `mapstructure:"log_sql"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// AuditConfig selects where parse logs and model builds are written.
// An empty DSN reuses the definition store.
type AuditConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NLPConfig points at the remote engine and the parse defaults.
type NLPConfig struct {
	EngineURL     string        `mapstructure:"engine_url"`
	EngineType    string        `mapstructure:"engine_type"`
	DefaultLocale string        `mapstructure:"default_locale"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ExecutorConfig sizes the background task pool.
type ExecutorConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// BuildConfig drives the model build worker.
type BuildConfig struct {
	WorkerEnabled bool          `mapstructure:"worker_enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	Batch         int32         `mapstructure:"batch"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "intentd")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_sql", false)
	viper.SetDefault("database.max_conns", 10)

	viper.SetDefault("audit.driver", "postgres")
	viper.SetDefault("audit.dsn", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("nlp.engine_url", "http://localhost:8081")
	viper.SetDefault("nlp.engine_type", "default")
	viper.SetDefault("nlp.default_locale", "en")
	viper.SetDefault("nlp.timeout", "10s")

	viper.SetDefault("executor.workers", 4)
	viper.SetDefault("executor.queue_size", 256)

	viper.SetDefault("build.worker_enabled", true)
	viper.SetDefault("build.interval", "30s")
	viper.SetDefault("build.batch", 10)
}

func (c *Config) validate() error {
	switch c.Audit.Driver {
	case "postgres":
	case "sqlite3":
		if c.Audit.DSN == "" {
			return fmt.Errorf("audit.dsn is required for the sqlite3 audit driver")
		}
	default:
		return fmt.Errorf("unsupported audit driver %q", c.Audit.Driver)
	}
	if c.Executor.Workers < 1 {
		return fmt.Errorf("executor.workers must be positive, got %d", c.Executor.Workers)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// AuditDSN returns the audit sink data source, defaulting to the definition store.
func (c *Config) AuditDSN() string {
	if c.Audit.DSN != "" {
		return c.Audit.DSN
	}
	return c.DatabaseURL()
}

// HTTPAddr is the listen address of the RPC server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}
