package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"barbearia/internal/timegrid"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type GridConfig struct {
	Open            string `yaml:"open"`
	Close           string `yaml:"close"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	// Schedule is a cron expression for retention cleanup.
	Schedule string `yaml:"schedule"`
}

type ReportsConfig struct {
	ExportEnabled bool   `yaml:"export_enabled"`
	Path          string `yaml:"path"`
	Schedule      string `yaml:"schedule"`
	// BirthdaySchedule is the cron expression of the daily birthday digest.
	BirthdaySchedule string `yaml:"birthday_schedule"`
}

type Config struct {
	Grid    GridConfig    `yaml:"grid"`
	Storage StorageConfig `yaml:"storage"`
	Backup  BackupConfig  `yaml:"backup"`
	Reports ReportsConfig `yaml:"reports"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Engine struct {
		AutoPersist bool `yaml:"auto_persist"`
	} `yaml:"engine"`

	CatalogPath string `yaml:"catalog_path"`
	LogLevel    string `yaml:"log_level"`
}

// envOverrides are read from AGENDA_* variables and win over the file.
type envOverrides struct {
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	DatabasePath  string `envconfig:"DATABASE_PATH"`
	RedisAddress  string `envconfig:"REDIS_ADDRESS"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	BackupPath    string `envconfig:"BACKUP_PATH"`
	CatalogPath   string `envconfig:"CATALOG_PATH"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var env envOverrides
	if err = envconfig.Process("AGENDA", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.apply(env)
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Storage.Driver == DriverSQLite {
		if err = os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) apply(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Storage.Driver, env.StorageDriver)
	set(&c.Storage.SQLite.Path, env.DatabasePath)
	set(&c.Storage.Redis.Address, env.RedisAddress)
	set(&c.Storage.Redis.Password, env.RedisPassword)
	set(&c.Backup.Path, env.BackupPath)
	set(&c.CatalogPath, env.CatalogPath)
	set(&c.LogLevel, env.LogLevel)
}

func (c *Config) applyDefaults() {
	if c.Grid.Open == "" {
		c.Grid.Open = "09:00"
	}
	if c.Grid.Close == "" {
		c.Grid.Close = "20:30"
	}
	if c.Grid.IntervalMinutes == 0 {
		c.Grid.IntervalMinutes = 30
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/agenda.db"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "barbearia:"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Reports.Path == "" {
		c.Reports.Path = "data/relatorios"
	}
	if c.Reports.Schedule == "" {
		c.Reports.Schedule = "1 0 1 * *"
	}
	if c.Reports.BirthdaySchedule == "" {
		c.Reports.BirthdaySchedule = "0 9 * * *"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/catalog.yaml"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.BuildGrid(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverRedis:
		if c.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q, expected sqlite or redis", c.Storage.Driver)
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days cannot be negative")
	}
	return nil
}

// BuildGrid generates the slot grid of a business day.
func (c *Config) BuildGrid() (*timegrid.Grid, error) {
	return timegrid.GenerateFromLabels(c.Grid.Open, c.Grid.Close, c.Grid.IntervalMinutes)
}
