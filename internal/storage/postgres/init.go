package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"prohori/internal/config"
	"prohori/pkg/e"
)

type Postgres struct {
	Pool      *pgxpool.Pool
	Incidents *IncidentRepo
	Users     *UserRepo
	Blobs     *BlobRepo
}

func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	logger.Info("connecting to postgres", slog.String("host", cfg.Host), slog.String("db", cfg.Database))

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("failed to parse pgx config", slog.Any("error", err))
		return nil, e.Wrap("storage.pg.NewPostgres.ParseConfig", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to create pgx pool", slog.Any("error", err))
		return nil, e.Wrap("storage.pg.NewPostgres.NewWithConfig", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", slog.Any("error", err))
		pool.Close()
		return nil, e.Wrap("storage.pg.NewPostgres.Ping", err)
	}
	logger.Info("connected to postgres")

	return New(pool, logger), nil
}

// New wires the repositories around an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	return &Postgres{
		Pool:      pool,
		Incidents: NewIncidentRepo(pool, logger),
		Users:     NewUserRepo(pool, logger),
		Blobs:     NewBlobRepo(pool, logger),
	}
}

func (p *Postgres) Close() {
	p.Pool.Close()
}
