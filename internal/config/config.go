// Package config provides configuration management for the points engine.
package config

import "time"

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	Points       PointsConfig       `mapstructure:"points" validate:"required"`
	Eligibility  EligibilityConfig  `mapstructure:"eligibility" validate:"required"`
	Achievements AchievementsConfig `mapstructure:"achievements" validate:"required"`
	ImageService ImageServiceConfig `mapstructure:"image_service"`
	ImageStorage ImageStorageConfig `mapstructure:"image_storage"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Metrics      MetricsConfig      `mapstructure:"metrics" validate:"required"`
	Health       HealthConfig       `mapstructure:"health" validate:"required"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// PointsConfig controls the points configuration store
type PointsConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
}

// EligibilityConfig controls the eligible member id cache
type EligibilityConfig struct {
	CacheTTLSeconds        int `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds" validate:"gte=0"`
}

// AchievementsConfig controls awarding and backfill
type AchievementsConfig struct {
	ProgressEvery        int  `mapstructure:"progress_every" validate:"required,gt=0"`
	GenerateImages       bool `mapstructure:"generate_images"`
	DeleteImagesOnRemove bool `mapstructure:"delete_images_on_remove"`
}

// ImageServiceConfig points at the badge rendering service
type ImageServiceConfig struct {
	BaseURL               string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey                string  `mapstructure:"api_key"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" validate:"gte=0"`
	RetryAttempts         int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RequestsPerSecond     float64 `mapstructure:"requests_per_second" validate:"gte=0"`
}

// ImageStorageConfig is the S3-compatible bucket generated images live in
type ImageStorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

// SchedulerConfig holds cron expressions for background jobs
type SchedulerConfig struct {
	SeasonRecalculation string `mapstructure:"season_recalculation"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig holds the listen ports of the daemon
type HealthConfig struct {
	Port     int `mapstructure:"port" validate:"required,min=1,max=65535"`
	GRPCPort int `mapstructure:"grpc_port" validate:"gte=0,max=65535"`
}

// SecretsConfig names an optional AWS Secrets Manager secret
type SecretsConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// PointsCacheTTL returns the points configuration cache lifetime
func (c *Config) PointsCacheTTL() time.Duration {
	return time.Duration(c.Points.CacheTTLSeconds) * time.Second
}

// EligibilityCacheTTL returns the eligible id set lifetime
func (c *Config) EligibilityCacheTTL() time.Duration {
	return time.Duration(c.Eligibility.CacheTTLSeconds) * time.Second
}

// ImageServiceEnabled reports whether a rendering service is configured
func (c *Config) ImageServiceEnabled() bool {
	return c.Achievements.GenerateImages && c.ImageService.BaseURL != ""
}

// ImageStorageEnabled reports whether a bucket is configured for image cleanup
func (c *Config) ImageStorageEnabled() bool {
	return c.Achievements.DeleteImagesOnRemove && c.ImageStorage.Bucket != ""
}
