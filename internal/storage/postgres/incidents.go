package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

// IncidentRepo is the write-through side of the in-memory store.
type IncidentRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewIncidentRepo(pool *pgxpool.Pool, logger *slog.Logger) *IncidentRepo {
	return &IncidentRepo{pool: pool, logger: logger}
}

// payload holds the kind-specific fields stored in the jsonb column.
type payload struct {
	Crime     *domain.CrimeDetails     `json:"crime,omitempty"`
	Sos       *domain.SosDetails       `json:"sos,omitempty"`
	LostFound *domain.LostFoundDetails `json:"lostfound,omitempty"`
}

func (r *IncidentRepo) Save(ctx context.Context, inc *domain.Incident) error {
	const op = "postgres.Incident.Save"

	if inc == nil || inc.ID == uuid.Nil || !inc.Kind.Valid() {
		return fmt.Errorf("%s: %w", op, e.ErrInvalidInput)
	}

	body, err := json.Marshal(payload{Crime: inc.Crime, Sos: inc.Sos, LostFound: inc.LostFound})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var lng, lat *float64
	if inc.Location != nil {
		x, y := inc.Location.Lng(), inc.Location.Lat()
		lng, lat = &x, &y
	}

	const query = `
		INSERT INTO incidents (id, kind, status, geo_point, place, reporter_name, reporter_contact, payload, created_at, updated_at)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		inc.ID,
		inc.Kind,
		inc.Status,
		lng,
		lat,
		inc.Place,
		inc.Reporter.Name,
		inc.Reporter.Contact,
		body,
		inc.CreatedAt,
		inc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("db exec failed",
			slog.String("op", op),
			slog.String("id", inc.ID.String()),
			slog.Any("error", err),
		)
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (r *IncidentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, updatedAt time.Time) error {
	const op = "postgres.Incident.UpdateStatus"

	const query = `
		UPDATE incidents
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query, id, status, updatedAt)
	if err != nil {
		r.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return nil
}

func (r *IncidentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.Incident.Delete"

	cmd, err := r.pool.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return nil
}

// LoadAll reads every stored incident, oldest first, for warming the
// in-memory store.
func (r *IncidentRepo) LoadAll(ctx context.Context) ([]*domain.Incident, error) {
	const op = "postgres.Incident.LoadAll"

	const query = `
		SELECT id,
			   kind,
			   status,
			   ST_Y(geo_point::geometry) AS lat,
			   ST_X(geo_point::geometry) AS lng,
			   place,
			   reporter_name,
			   reporter_contact,
			   payload,
			   created_at,
			   updated_at
		FROM incidents
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	var out []*domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			r.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return out, nil
}
