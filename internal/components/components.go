package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"prohori/internal/api"
	"prohori/internal/api/handlers/http/admin"
	"prohori/internal/api/handlers/http/auth"
	"prohori/internal/api/handlers/http/public"
	"prohori/internal/api/handlers/http/system"
	"prohori/internal/blob"
	"prohori/internal/config"
	"prohori/internal/events"
	"prohori/internal/identity"
	"prohori/internal/ingest"
	"prohori/internal/service"
	"prohori/internal/storage/memory"
	"prohori/internal/storage/postgres"
	"prohori/internal/storage/redis"
	"prohori/internal/workers"
	"prohori/pkg/logger"
)

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	Writer     *workers.ShardWriter
	// Dispatcher is nil when there is no alert queue.
	Dispatcher *service.AlertDispatcher
	Postgres   *postgres.Postgres
	Redis      *redis.Redis
	Nats       *events.NatsPublisher
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{logger: logger}
	var checks []system.Check

	var (
		persist  memory.Persister
		users    identity.UserRepository = identity.NewMemoryUsers()
		blobRepo blob.Repository         = blob.NewMemoryRepo()
	)
	if cfg.Postgres.Enabled {
		logger.Info("initializing postgres")
		pg, err := postgres.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		c.Postgres = pg
		if err := pg.EnsureSchema(ctx); err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		persist = pg.Incidents
		users = pg.Users
		blobRepo = pg.Blobs
		checks = append(checks, system.Check{Name: "postgres", Ping: pg.Pool.Ping})
	} else {
		logger.Warn("postgres disabled, incidents are kept in memory only")
	}

	var (
		sessions identity.SessionStore = identity.NewMemorySessions()
		alerts   service.AlertQueue
	)
	if cfg.Redis.Enabled {
		logger.Info("initializing redis")
		r, err := redis.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		c.Redis = r
		sessions = redis.NewSessionStore(r)
		alerts = redis.NewAlertQueue(r.Client, cfg.Dispatch.QueueKey)
		checks = append(checks, system.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return r.Client.Ping(ctx).Err()
		}})
	}

	var publisher service.EventPublisher = events.Noop{}
	if cfg.Nats.URL != "" {
		logger.Info("initializing nats")
		n, err := events.Connect(cfg.Nats, logger)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to init nats: %w", err)
		}
		c.Nats = n
		publisher = n
		checks = append(checks, system.Check{Name: "nats", Ping: n.Ping})
	}

	c.Writer = workers.NewShardWriter(cfg.Store.Shards, cfg.Store.QueueSize, logger)
	store := memory.NewStore(c.Writer, persist, logger, memory.Options{
		CellDeg:       cfg.Index.CellDeg,
		RetryAttempts: cfg.Store.RetryAttempts,
		RetryBackoff:  cfg.Store.RetryBackoff,
	})
	if c.Postgres != nil {
		records, err := c.Postgres.Incidents.LoadAll(ctx)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to load incidents: %w", err)
		}
		if err := store.Warm(ctx, records); err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to warm store: %w", err)
		}
		logger.Info("store warmed", slog.Int("records", len(records)))
	}

	blobs := blob.NewStore(blobRepo, cfg.Ingest.MaxPhotoBytes)
	validator := ingest.New(ingest.Options{RejectZeroCoordinates: cfg.Ingest.RejectZeroCoordinates})

	ids := identity.NewService(users, sessions, blobs, logger, identity.Options{
		SessionTTL: cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if cfg.Auth.AdminEmail != "" {
		if err := ids.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to ensure admin: %w", err)
		}
	}

	svc := service.NewService(
		service.NewIncidentService(store, validator, blobs, publisher, alerts, logger),
		service.NewWorkflow(store, publisher, logger),
		service.NewQueryPlanner(store, service.QueryOptions{
			Timeout:             cfg.Query.Timeout,
			DefaultRadiusMeters: cfg.Query.DefaultRadiusMeters,
			MaxRadiusMeters:     cfg.Query.MaxRadiusMeters,
		}),
		blobs,
	)

	if alerts != nil {
		c.Dispatcher = service.NewAlertDispatcher(logger, cfg.Dispatch, alerts)
	} else {
		logger.Warn("redis disabled, SOS alerts are not dispatched")
	}

	c.HttpServer = api.NewServer(ctx, cfg, logger, api.Handlers{
		Public:   public.NewHandler(logger, svc.Incidents, svc.Workflow, svc.Query, svc.Blobs, cfg.Ingest.MaxPhotoBytes),
		Admin:    admin.NewHandler(logger, svc.Incidents, svc.Query),
		Auth:     auth.NewHandler(logger, ids, cfg.Ingest.MaxPhotoBytes),
		System:   system.NewHandler(logger, 2*time.Second, checks...),
		Sessions: ids,
	})
	logger.Info("initialized server")

	return c, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

// ShutdownAll closes whatever was opened. Safe on a partially built set.
func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("shutting down components")

	if c.Nats != nil {
		c.Nats.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("redis close failed", slog.Any("error", err))
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}

	c.logger.Info("all components shut down", slog.Duration("latency", time.Since(start)))
}
