package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendRedis = "redis"
	BackendBolt  = "bolt"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Store       StoreConfig       `yaml:"store"`
	Redis       RedisConfig       `yaml:"redis"`
	Bolt        BoltConfig        `yaml:"bolt"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Overlay     OverlayConfig     `yaml:"overlay"`
	Retention   RetentionConfig   `yaml:"retention"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel converts the configured level name to a slog.Level
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreConfig selects the overlay state backend
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisConfig holds Redis connection configuration. URL takes precedence over
// Addr/Password/DB when set (redis:// or rediss://).
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BoltConfig holds the local bbolt store configuration
type BoltConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration for overlay history
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds the overlay event publisher configuration
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	ClientID      string        `yaml:"client_id"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// LeaderboardConfig holds the upstream leaderboard source configuration
type LeaderboardConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RankType       string        `yaml:"rank_type"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	Referer        string        `yaml:"referer"`
	Origin         string        `yaml:"origin"`
}

// OverlayConfig holds overlay timings and write-event delivery settings
type OverlayConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	SuccessIndicator time.Duration `yaml:"success_indicator"`
	FadeDelay        time.Duration `yaml:"fade_delay"`
	HistoryLimit     int           `yaml:"history_limit"`
	HistoryMaxLimit  int           `yaml:"history_max_limit"`
	RecordQueueSize  int           `yaml:"record_queue_size"`
	RecordTimeout    time.Duration `yaml:"record_timeout"`
}

// RetentionConfig holds the overlay history pruning schedule
type RetentionConfig struct {
	Enabled bool          `yaml:"enabled"`
	Cron    string        `yaml:"cron"`
	MaxAge  time.Duration `yaml:"max_age"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no sensible default
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendRedis, BackendBolt:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Retention.Enabled && !c.Postgres.Enabled {
		return fmt.Errorf("retention requires postgres history to be enabled")
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = BackendRedis
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "fab-broadcast:overlay-"
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// Bolt defaults
	if c.Bolt.Path == "" {
		c.Bolt.Path = "data/overlay.db"
	}
	if c.Bolt.Timeout == 0 {
		c.Bolt.Timeout = 1 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 10
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 1
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "overlay-events"
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "overlay-relay"
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = 250 * time.Millisecond
	}

	// Leaderboard defaults
	if c.Leaderboard.BaseURL == "" {
		c.Leaderboard.BaseURL = "https://fabtcg.com/api/fab/v1/leaderboard/"
	}
	if c.Leaderboard.RankType == "" {
		c.Leaderboard.RankType = "ELO"
	}
	if c.Leaderboard.CacheTTL == 0 {
		c.Leaderboard.CacheTTL = 5 * time.Minute
	}
	if c.Leaderboard.Timeout == 0 {
		c.Leaderboard.Timeout = 10 * time.Second
	}
	if c.Leaderboard.UserAgent == "" {
		c.Leaderboard.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if c.Leaderboard.AcceptLanguage == "" {
		c.Leaderboard.AcceptLanguage = "en-US,en;q=0.9"
	}
	if c.Leaderboard.Referer == "" {
		c.Leaderboard.Referer = "https://fabtcg.com/en/leaderboards/"
	}
	if c.Leaderboard.Origin == "" {
		c.Leaderboard.Origin = "https://fabtcg.com"
	}

	// Overlay defaults
	if c.Overlay.PollInterval == 0 {
		c.Overlay.PollInterval = 1 * time.Second
	}
	if c.Overlay.SuccessIndicator == 0 {
		c.Overlay.SuccessIndicator = 3 * time.Second
	}
	if c.Overlay.FadeDelay == 0 {
		c.Overlay.FadeDelay = 800 * time.Millisecond
	}
	if c.Overlay.HistoryLimit == 0 {
		c.Overlay.HistoryLimit = 20
	}
	if c.Overlay.HistoryMaxLimit == 0 {
		c.Overlay.HistoryMaxLimit = 200
	}
	if c.Overlay.RecordQueueSize == 0 {
		c.Overlay.RecordQueueSize = 256
	}
	if c.Overlay.RecordTimeout == 0 {
		c.Overlay.RecordTimeout = 5 * time.Second
	}

	// Retention defaults
	if c.Retention.Cron == "" {
		c.Retention.Cron = "0 4 * * *"
	}
	if c.Retention.MaxAge == 0 {
		c.Retention.MaxAge = 30 * 24 * time.Hour
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
