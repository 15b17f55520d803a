// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Tenants  []TenantConfig `mapstructure:"tenants"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	SearchPath     string `mapstructure:"search_path"`
}

// GetDSN returns the PostgreSQL connection string. SearchPath rides in
// as a startup option so every pooled connection is bound to the
// schema, not just the one a session-level SET would reach.
func (p PostgresConfig) GetDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
	if p.SearchPath != "" {
		dsn += fmt.Sprintf(" options='-c search_path=%s'", p.SearchPath)
	}
	return dsn
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TenantConfig binds a tenant identifier to its own database. Every
// pipeline request runs against exactly one tenant's store handle.
type TenantConfig struct {
	ID       string `mapstructure:"id"`
	Database string `mapstructure:"database"`
	Schema   string `mapstructure:"schema"`
}

// --- Pipeline Configuration ---

// OracleConfig holds settings for the external classification service.
type OracleConfig struct {
	BaseURL             string  `mapstructure:"base_url"`
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	Timeout             int     `mapstructure:"timeout"` // milliseconds
	MaxRetries          int     `mapstructure:"max_retries"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// PipelineConfig tunes the orchestrator itself.
type PipelineConfig struct {
	RequestTimeout    int `mapstructure:"request_timeout"` // milliseconds, whole pipeline pass
	MinMatchScore     int `mapstructure:"min_match_score"` // resolver threshold
	MaxHistoryTurns   int `mapstructure:"max_history_turns"`
	AnalyticsRowLimit int `mapstructure:"analytics_row_limit"`
}

// HistoryConfig tunes the conversation history store.
type HistoryConfig struct {
	TTL      int `mapstructure:"ttl"` // seconds
	MaxTurns int `mapstructure:"max_turns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig holds the HTTP listener settings for the chat glue.
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}
