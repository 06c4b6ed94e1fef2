package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/school-risk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are stored
// as Unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	center_lat      REAL NOT NULL,
	center_lng      REAL NOT NULL,
	total_radius_km REAL NOT NULL,
	zone_width_km   REAL NOT NULL,
	result          TEXT,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_zones (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	zone_id     INTEGER NOT NULL,
	radius_km   REAL NOT NULL,
	risk        TEXT NOT NULL,
	approximate INTEGER NOT NULL DEFAULT 0,
	buffer      BLOB,
	ring        BLOB,
	PRIMARY KEY (run_id, zone_id)
);

CREATE TABLE IF NOT EXISTS layer_cache (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_layer_cache_expires_at ON layer_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	rows, err := zoneRows(run)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, center_lat, center_lng, total_radius_km, zone_width_km, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Center.Lat, run.Center.Lng, run.Config.TotalRadiusKm, run.Config.ZoneWidthKm,
		string(resultJSON), run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_zones (run_id, zone_id, radius_km, risk, approximate, buffer, ring) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row...,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert zone of run %s", run.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, center_lat, center_lng, total_radius_km, zone_width_km, result, created_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT zone_id, buffer, ring FROM run_zones WHERE run_id = ? ORDER BY zone_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: zones of run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var zoneID int
		var buffer, ring []byte
		if err := rows.Scan(&zoneID, &buffer, &ring); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone")
		}
		if err := attachZoneGeometry(r.Result, zoneID, buffer, ring); err != nil {
			return nil, err
		}
	}
	return r, eris.Wrap(rows.Err(), "sqlite: zones iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, center_lat, center_lng, total_radius_km, zone_width_km, result, created_at FROM runs
		 ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedLayer(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM layer_cache WHERE name = ? AND expires_at > ?`,
		name, time.Now().UnixMilli(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached layer %s", name)
	}
	return data, nil
}

func (s *SQLiteStore) SetCachedLayer(ctx context.Context, name string, data []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO layer_cache (name, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		name, data, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: set cached layer %s", name)
}

func (s *SQLiteStore) DeleteExpiredLayers(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM layer_cache WHERE expires_at <= ?`,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired layers")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString
	var createdAt int64

	err := row.Scan(&r.ID, &r.Center.Lat, &r.Center.Lng, &r.Config.TotalRadiusKm, &r.Config.ZoneWidthKm, &resultJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()

	if resultJSON.Valid && resultJSON.String != "null" {
		r.Result = &model.AnalysisResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
