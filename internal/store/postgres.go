package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/civicsignal/safescore/internal/db"
	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an existing pool. The caller owns pool lifetime when it
// outlives the store; Close is still safe to call once.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	id            TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	subtype       TEXT NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	premises_type TEXT NOT NULL DEFAULT 'Unknown',
	neighbourhood TEXT NOT NULL DEFAULT 'Unknown',
	source_file   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS refresh_ledger (
	source       TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	record_count BIGINT NOT NULL,
	min_occurred TIMESTAMPTZ NOT NULL,
	max_occurred TIMESTAMPTZ NOT NULL,
	refreshed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_lat_lon ON incidents(lat, lon);
CREATE INDEX IF NOT EXISTS idx_incidents_occurred ON incidents(occurred_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// InsertIncidents inserts incidents, skipping duplicate event IDs.
// An empty table is bulk-loaded with COPY; otherwise per-row upserts keep
// the dedup semantics without a connection-scoped staging table.
func (s *PostgresStore) InsertIncidents(ctx context.Context, incidents []model.Incident) (int64, error) {
	valid := make([]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Valid() {
			valid = append(valid, inc)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	existing, err := s.CountIncidents(ctx)
	if err != nil {
		return 0, err
	}
	if existing == 0 {
		rows := make([][]any, 0, len(valid))
		seen := make(map[string]struct{}, len(valid))
		for _, inc := range valid {
			if _, dup := seen[inc.ID]; dup {
				continue
			}
			seen[inc.ID] = struct{}{}
			rows = append(rows, []any{
				inc.ID, string(inc.Category), inc.Subtype, inc.Latitude, inc.Longitude,
				inc.OccurredAt.UTC(), inc.PremisesType, inc.Neighbourhood, inc.SourceFile,
			})
		}
		columns := []string{"id", "category", "subtype", "lat", "lon", "occurred_at", "premises_type", "neighbourhood", "source_file"}
		return db.CopyFrom(ctx, s.pool, "incidents", columns, rows)
	}

	var inserted int64
	for _, inc := range valid {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO incidents
				(id, category, subtype, lat, lon, occurred_at, premises_type, neighbourhood, source_file)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			inc.ID, string(inc.Category), inc.Subtype, inc.Latitude, inc.Longitude,
			inc.OccurredAt.UTC(), inc.PremisesType, inc.Neighbourhood, inc.SourceFile,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert incident %s", inc.ID)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (s *PostgresStore) QueryWindow(ctx context.Context, bbox geo.BBox, since time.Time) ([]model.Incident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, subtype, lat, lon, occurred_at, premises_type, neighbourhood
		FROM incidents
		WHERE lat BETWEEN $1 AND $2
		  AND lon BETWEEN $3 AND $4
		  AND occurred_at >= $5`,
		bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query window")
	}
	defer rows.Close()

	return scanIncidents(rows)
}

func scanIncidents(rows pgx.Rows) ([]model.Incident, error) {
	var incidents []model.Incident
	for rows.Next() {
		var inc model.Incident
		var category string
		if err := rows.Scan(&inc.ID, &category, &inc.Subtype, &inc.Latitude, &inc.Longitude,
			&inc.OccurredAt, &inc.PremisesType, &inc.Neighbourhood); err != nil {
			return nil, eris.Wrap(err, "postgres: scan incident")
		}
		inc.Category = model.Category(category)
		incidents = append(incidents, inc)
	}
	return incidents, eris.Wrap(rows.Err(), "postgres: iterate incidents")
}

func (s *PostgresStore) CountIncidents(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count incidents")
}

func (s *PostgresStore) DateRange(ctx context.Context) (time.Time, time.Time, error) {
	var minT, maxT *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(occurred_at), MAX(occurred_at) FROM incidents`).Scan(&minT, &maxT)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "postgres: date range")
	}
	if minT == nil || maxT == nil {
		return time.Time{}, time.Time{}, nil
	}
	return *minT, *maxT, nil
}

func (s *PostgresStore) RecordRefresh(ctx context.Context, rec RefreshRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_ledger (source, run_id, record_count, min_occurred, max_occurred, refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			record_count = EXCLUDED.record_count,
			min_occurred = EXCLUDED.min_occurred,
			max_occurred = EXCLUDED.max_occurred,
			refreshed_at = EXCLUDED.refreshed_at`,
		rec.Source, rec.RunID, rec.RecordCount,
		rec.MinOccurred.UTC(), rec.MaxOccurred.UTC(), rec.RefreshedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record refresh for %s", rec.Source)
}

func (s *PostgresStore) LastRefresh(ctx context.Context, source string) (*RefreshRecord, error) {
	var rec RefreshRecord
	err := s.pool.QueryRow(ctx, `
		SELECT source, run_id, record_count, min_occurred, max_occurred, refreshed_at
		FROM refresh_ledger WHERE source = $1`, source,
	).Scan(&rec.Source, &rec.RunID, &rec.RecordCount, &rec.MinOccurred, &rec.MaxOccurred, &rec.RefreshedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: last refresh for %s", source)
	}
	return &rec, nil
}

func (s *PostgresStore) LatestRefreshAt(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(refreshed_at) FROM refresh_ledger`).Scan(&latest)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "postgres: latest refresh")
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}
