package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string         `json:"env"`
	Http     HttpConfig     `json:"http"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Nats     NatsConfig     `json:"nats"`
	APIKey   string         `json:"api_key,omitempty"`
	Dispatch DispatchConfig `json:"dispatch"`
	Index    IndexConfig    `json:"index"`
	Store    StoreConfig    `json:"store"`
	Query    QueryConfig    `json:"query"`
	Ingest   IngestConfig   `json:"ingest"`
	Auth     AuthConfig     `json:"auth"`
	CORS     CORSConfig     `json:"cors"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// per client IP; the admin group gets its own, stricter limiter
	RateRPS        int           `json:"rate_rps"`
	RateBurst      int           `json:"rate_burst"`
	AdminRateRPS   int           `json:"admin_rate_rps"`
	AdminRateBurst int           `json:"admin_rate_burst"`
	RateTTL        time.Duration `json:"rate_ttl"`
}

type PostgresConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

// NatsConfig: an empty URL disables event publishing.
type NatsConfig struct {
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix"`
}

// DispatchConfig controls delivery of SOS alerts to responders. With no URL
// alerts are only logged.
type DispatchConfig struct {
	URL         string        `json:"url"`
	QueueKey    string        `json:"queue_key"`
	Workers     int           `json:"workers"`
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
	PollTimeout time.Duration `json:"poll_timeout"`
	Timeout     time.Duration `json:"timeout"`
}

type IndexConfig struct {
	CellDeg float64 `json:"cell_deg"`
}

type StoreConfig struct {
	Shards        int           `json:"shards"`
	QueueSize     int           `json:"queue_size"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryBackoff  time.Duration `json:"retry_backoff"`
}

type QueryConfig struct {
	Timeout             time.Duration `json:"timeout"`
	DefaultRadiusMeters float64       `json:"default_radius_m"`
	MaxRadiusMeters     float64       `json:"max_radius_m"`
}

type IngestConfig struct {
	RejectZeroCoordinates bool `json:"reject_zero_coords"`
	MaxPhotoBytes         int  `json:"max_photo_bytes"`
}

type AuthConfig struct {
	SessionTTL    time.Duration `json:"session_ttl"`
	BcryptCost    int           `json:"bcrypt_cost"`
	AdminName     string        `json:"admin_name"`
	AdminEmail    string        `json:"admin_email"`
	AdminPassword string        `json:"-"`
}

type CORSConfig struct {
	Origins []string `json:"origins"`
}

func Load() (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateRPS:         getEnvInt("HTTP_RATE_RPS", 10),
			RateBurst:       getEnvInt("HTTP_RATE_BURST", 20),
			AdminRateRPS:    getEnvInt("HTTP_ADMIN_RATE_RPS", 2),
			AdminRateBurst:  getEnvInt("HTTP_ADMIN_RATE_BURST", 5),
			RateTTL:         getEnvDuration("HTTP_RATE_TTL", 5*time.Minute),
		},
		Postgres: PostgresConfig{
			Enabled:         getEnvBool("POSTGRES_ENABLED", true),
			Host:            getEnv("POSTGRES_HOST", "pg-local"),
			Port:            getEnvInt("POSTGRES_PORT", 5432),
			Database:        getEnv("POSTGRES_DB", "prohori"),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConns:        int32(getEnvInt("POSTGRES_MAX_CONNS", 20)),
			MinConns:        1,
			MaxConnLifetime: 1 * time.Hour,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "redis-local:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Nats: NatsConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "incidents"),
		},
		APIKey: getEnv("API_KEY", ""),
		Dispatch: DispatchConfig{
			URL:         getEnv("DISPATCH_WEBHOOK_URL", ""),
			QueueKey:    getEnv("DISPATCH_QUEUE_KEY", "sos:dispatch"),
			Workers:     getEnvInt("DISPATCH_WORKERS", 2),
			MaxAttempts: getEnvInt("DISPATCH_MAX_ATTEMPTS", 3),
			Backoff:     getEnvDuration("DISPATCH_BACKOFF", time.Second),
			PollTimeout: getEnvDuration("DISPATCH_POLL_TIMEOUT", 5*time.Second),
			Timeout:     getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second),
		},
		Index: IndexConfig{
			CellDeg: getEnvFloat("INDEX_CELL_DEG", 0.05),
		},
		Store: StoreConfig{
			Shards:        getEnvInt("STORE_SHARDS", 16),
			QueueSize:     getEnvInt("STORE_QUEUE_SIZE", 100),
			RetryAttempts: getEnvInt("STORE_RETRY_ATTEMPTS", 2),
			RetryBackoff:  getEnvDuration("STORE_RETRY_BACKOFF", 100*time.Millisecond),
		},
		Query: QueryConfig{
			Timeout:             getEnvDuration("QUERY_TIMEOUT", 2*time.Second),
			DefaultRadiusMeters: getEnvFloat("NEARBY_DEFAULT_RADIUS_M", 5000),
			MaxRadiusMeters:     getEnvFloat("NEARBY_MAX_RADIUS_M", 50000),
		},
		Ingest: IngestConfig{
			RejectZeroCoordinates: getEnvBool("INGEST_REJECT_ZERO_COORDS", false),
			MaxPhotoBytes:         getEnvInt("INGEST_MAX_PHOTO_BYTES", 5<<20),
		},
		Auth: AuthConfig{
			SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
			BcryptCost:    getEnvInt("BCRYPT_COST", 10),
			AdminName:     getEnv("ADMIN_NAME", "Administrator"),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		CORS: CORSConfig{
			Origins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("config loaded",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.Bool("postgres", cfg.Postgres.Enabled),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("nats", cfg.Nats.URL != ""),
		slog.String("dispatch_url", cfg.Dispatch.URL))

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Http.Port == "" || c.Http.Port[0] != ':' {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}
	if c.Http.RateRPS <= 0 || c.Http.RateBurst <= 0 || c.Http.AdminRateRPS <= 0 || c.Http.AdminRateBurst <= 0 {
		return errors.New("HTTP_*RATE_RPS and HTTP_*RATE_BURST must be positive")
	}
	if c.Postgres.Enabled && c.Postgres.Host == "" {
		return errors.New("POSTGRES_HOST required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR required")
	}
	if c.Index.CellDeg <= 0 || c.Index.CellDeg > 10 {
		return fmt.Errorf("INDEX_CELL_DEG must be in (0, 10], got %v", c.Index.CellDeg)
	}
	if c.Store.Shards <= 0 || c.Store.QueueSize <= 0 {
		return errors.New("STORE_SHARDS and STORE_QUEUE_SIZE must be positive")
	}
	if c.Store.RetryAttempts < 1 {
		return errors.New("STORE_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Query.Timeout <= 0 {
		return errors.New("QUERY_TIMEOUT must be positive")
	}
	if c.Query.DefaultRadiusMeters <= 0 || c.Query.DefaultRadiusMeters > c.Query.MaxRadiusMeters {
		return errors.New("NEARBY_DEFAULT_RADIUS_M must be in (0, NEARBY_MAX_RADIUS_M]")
	}
	if c.Dispatch.Workers < 1 || c.Dispatch.MaxAttempts < 1 {
		return errors.New("DISPATCH_WORKERS and DISPATCH_MAX_ATTEMPTS must be at least 1")
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
