package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

type BlobRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewBlobRepo(pool *pgxpool.Pool, logger *slog.Logger) *BlobRepo {
	return &BlobRepo{pool: pool, logger: logger}
}

func (r *BlobRepo) Save(ctx context.Context, b *domain.Blob) error {
	const op = "postgres.Blob.Save"

	const query = `
		INSERT INTO blobs (ref, content_type, data, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.pool.Exec(ctx, query, b.Ref, b.ContentType, b.Data, b.CreatedAt); err != nil {
		r.logger.Error("db exec failed", slog.String("op", op), slog.String("ref", b.Ref), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (r *BlobRepo) Load(ctx context.Context, ref string) (*domain.Blob, error) {
	const op = "postgres.Blob.Load"

	var b domain.Blob
	err := r.pool.QueryRow(ctx,
		`SELECT ref, content_type, data, created_at FROM blobs WHERE ref = $1`, ref,
	).Scan(&b.Ref, &b.ContentType, &b.Data, &b.CreatedAt)
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	return &b, nil
}

func (r *BlobRepo) Delete(ctx context.Context, ref string) error {
	const op = "postgres.Blob.Delete"

	if _, err := r.pool.Exec(ctx, `DELETE FROM blobs WHERE ref = $1`, ref); err != nil {
		return e.WrapError(ctx, op, err)
	}
	return nil
}
