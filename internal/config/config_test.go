package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("QUERY_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Http.Port != ":8080" {
		t.Fatalf("port = %q", cfg.Http.Port)
	}
	if cfg.Query.Timeout != 2*time.Second || cfg.Query.DefaultRadiusMeters != 5000 {
		t.Fatalf("query defaults = %+v", cfg.Query)
	}
	if cfg.Index.CellDeg != 0.05 {
		t.Fatalf("cell deg = %v", cfg.Index.CellDeg)
	}
	if cfg.Ingest.RejectZeroCoordinates {
		t.Fatalf("zero coordinates must be accepted by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INGEST_REJECT_ZERO_COORDS", "true")
	t.Setenv("STORE_SHARDS", "4")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("POSTGRES_ENABLED", "false")
	t.Setenv("POSTGRES_HOST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Ingest.RejectZeroCoordinates || cfg.Store.Shards != 4 || cfg.Postgres.Enabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORS.Origins)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Http:     HttpConfig{Port: ":8080", RateRPS: 1, RateBurst: 1, AdminRateRPS: 1, AdminRateBurst: 1},
			Postgres: PostgresConfig{Enabled: true, Host: "pg"},
			Index:    IndexConfig{CellDeg: 0.05},
			Store:    StoreConfig{Shards: 1, QueueSize: 1, RetryAttempts: 2},
			Query:    QueryConfig{Timeout: time.Second, DefaultRadiusMeters: 5000, MaxRadiusMeters: 50000},
			Dispatch: DispatchConfig{Workers: 1, MaxAttempts: 1},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"port without colon", func(c *Config) { c.Http.Port = "8080" }, true},
		{"zero rate", func(c *Config) { c.Http.RateRPS = 0 }, true},
		{"postgres host", func(c *Config) { c.Postgres.Host = "" }, true},
		{"postgres disabled", func(c *Config) { c.Postgres.Enabled = false; c.Postgres.Host = "" }, false},
		{"cell size", func(c *Config) { c.Index.CellDeg = 0 }, true},
		{"default radius over max", func(c *Config) { c.Query.DefaultRadiusMeters = 60000 }, true},
		{"admin email only", func(c *Config) { c.Auth.AdminEmail = "a@b.c" }, true},
	}
	for _, tc := range cases {
		c := base()
		tc.mutate(&c)
		if err := c.Validate(); (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
