// Package config loads and holds the application configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Conf is the global configuration loaded at startup.
var Conf Config

// Config mirrors the structure of configs/config.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig controls the optional JWT middleware.
type AuthConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// SheetsConfig configures the tabular backing store and its access policy.
type SheetsConfig struct {
	SpreadsheetID    string  `mapstructure:"spreadsheet_id"`
	CredentialsFile  string  `mapstructure:"credentials_file"`
	CacheTTLSeconds  int     `mapstructure:"cache_ttl_seconds"`
	MinIntervalMs    int     `mapstructure:"min_interval_ms"`
	CallsPerMinute   int     `mapstructure:"calls_per_minute"`
	DegradedFraction float64 `mapstructure:"degraded_fraction"`
	MaxRetries       int     `mapstructure:"max_retries"`
	CallTimeoutSec   int     `mapstructure:"call_timeout_seconds"`
}

// MinIOConfig holds object storage settings.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// RedisConfig holds cache settings; when disabled an in-process cache is used.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig holds audit event producer settings.
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// RetentionConfig governs backup expiry and the cleanup schedules.
type RetentionConfig struct {
	Days             int    `mapstructure:"days"`
	SweepSchedule    string `mapstructure:"sweep_schedule"`
	BatchGraceHours  int    `mapstructure:"batch_grace_hours"`
	PurgeSchedule    string `mapstructure:"purge_schedule"`
}

// Init reads the YAML file at configPath into Conf.
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("failed to read config file: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}

	applyDefaults(&Conf)
}

func applyDefaults(c *Config) {
	if c.Retention.Days == 0 {
		c.Retention.Days = 30
	}
	if c.Retention.SweepSchedule == "" {
		c.Retention.SweepSchedule = "0 0 3 * * *" // daily at 03:00
	}
	if c.Retention.PurgeSchedule == "" {
		c.Retention.PurgeSchedule = "0 0 * * * *" // hourly
	}
	if c.Retention.BatchGraceHours == 0 {
		c.Retention.BatchGraceHours = 1
	}
	if c.Sheets.CacheTTLSeconds == 0 {
		c.Sheets.CacheTTLSeconds = 60
	}
	if c.Sheets.MinIntervalMs == 0 {
		c.Sheets.MinIntervalMs = 250
	}
	if c.Sheets.CallsPerMinute == 0 {
		c.Sheets.CallsPerMinute = 60
	}
	if c.Sheets.DegradedFraction == 0 {
		c.Sheets.DegradedFraction = 0.8
	}
	if c.Sheets.MaxRetries == 0 {
		c.Sheets.MaxRetries = 4
	}
	if c.Sheets.CallTimeoutSec == 0 {
		c.Sheets.CallTimeoutSec = 20
	}
}
