package postgres

import (
	"context"

	"prohori/pkg/e"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS incidents (
	id               uuid PRIMARY KEY,
	kind             text NOT NULL CHECK (kind IN ('crime', 'sos', 'lostfound')),
	status           text NOT NULL,
	geo_point        geography(Point, 4326),
	place            text NOT NULL DEFAULT '',
	reporter_name    text NOT NULL,
	reporter_contact text NOT NULL DEFAULT '',
	payload          jsonb NOT NULL DEFAULT '{}'::jsonb,
	created_at       timestamptz NOT NULL,
	updated_at       timestamptz NOT NULL,
	CHECK (kind = 'lostfound' OR geo_point IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS incidents_kind_created_idx ON incidents (kind, created_at DESC);
CREATE INDEX IF NOT EXISTS incidents_geo_idx ON incidents USING GIST (geo_point);

CREATE TABLE IF NOT EXISTS users (
	id            uuid PRIMARY KEY,
	name          text NOT NULL,
	email         text NOT NULL UNIQUE,
	password_hash bytea NOT NULL,
	role          text NOT NULL,
	photo         text NOT NULL DEFAULT '',
	created_at    timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS blobs (
	ref          text PRIMARY KEY,
	content_type text NOT NULL,
	data         bytea NOT NULL,
	created_at   timestamptz NOT NULL
);
`

// EnsureSchema creates the tables the service needs. Safe to run on every
// start.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const op = "postgres.EnsureSchema"

	if _, err := p.Pool.Exec(ctx, schema); err != nil {
		return e.WrapError(ctx, op, err)
	}
	return nil
}
