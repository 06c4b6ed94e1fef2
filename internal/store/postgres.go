package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/school-risk/internal/db"
	"github.com/sells-group/school-risk/internal/model"
)

// PostgresStore implements Store using pgxpool. Zone geometry is stored as
// EWKB (SRID 4326) so that PostGIS can read it with ST_GeomFromEWKB.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	center_lat      DOUBLE PRECISION NOT NULL,
	center_lng      DOUBLE PRECISION NOT NULL,
	total_radius_km DOUBLE PRECISION NOT NULL,
	zone_width_km   DOUBLE PRECISION NOT NULL,
	result          JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_zones (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	zone_id     INTEGER NOT NULL,
	radius_km   DOUBLE PRECISION NOT NULL,
	risk        TEXT NOT NULL,
	approximate BOOLEAN NOT NULL DEFAULT false,
	buffer      BYTEA,
	ring        BYTEA,
	PRIMARY KEY (run_id, zone_id)
);

CREATE TABLE IF NOT EXISTS layer_cache (
	name       TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_layer_cache_expires_at ON layer_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	rows, err := zoneRows(run)
	if err != nil {
		return err
	}

	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO runs (id, center_lat, center_lng, total_radius_km, zone_width_km, result, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.ID, run.Center.Lat, run.Center.Lng, run.Config.TotalRadiusKm, run.Config.ZoneWidthKm, resultJSON, run.CreatedAt,
		); err != nil {
			return eris.Wrap(err, "insert run")
		}
		_, err := db.CopyFrom(ctx, tx, "run_zones", zoneColumns, rows)
		return err
	})
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, center_lat, center_lng, total_radius_km, zone_width_km, result, created_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT zone_id, buffer, ring FROM run_zones WHERE run_id = $1 ORDER BY zone_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: zones of run %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		var zoneID int
		var buffer, ring []byte
		if err := rows.Scan(&zoneID, &buffer, &ring); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone")
		}
		if err := attachZoneGeometry(r.Result, zoneID, buffer, ring); err != nil {
			return nil, err
		}
	}
	return r, eris.Wrap(rows.Err(), "postgres: zones iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, center_lat, center_lng, total_radius_km, zone_width_km, result, created_at FROM runs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCachedLayer(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM layer_cache WHERE name = $1 AND expires_at > now()`,
		name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached layer %s", name)
	}
	return data, nil
}

func (s *PostgresStore) SetCachedLayer(ctx context.Context, name string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO layer_cache (name, data, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		name, data, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set cached layer %s", name)
}

func (s *PostgresStore) DeleteExpiredLayers(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM layer_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired layers")
	}
	return int(tag.RowsAffected()), nil
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var resultJSON []byte

	if err := row.Scan(&r.ID, &r.Center.Lat, &r.Center.Lng, &r.Config.TotalRadiusKm, &r.Config.ZoneWidthKm, &resultJSON, &r.CreatedAt); err != nil {
		return nil, err
	}
	if len(resultJSON) > 0 && string(resultJSON) != "null" {
		r.Result = &model.AnalysisResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
