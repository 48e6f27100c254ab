package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as RFC3339 UTC strings: fixed-width and
// lexicographically ordered, so range predicates and MIN/MAX work on the
// text column directly.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse timestamp %q", s)
	}
	return t, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	id            TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	subtype       TEXT NOT NULL,
	lat           REAL NOT NULL,
	lon           REAL NOT NULL,
	occurred_at   TEXT NOT NULL,
	premises_type TEXT NOT NULL DEFAULT 'Unknown',
	neighbourhood TEXT NOT NULL DEFAULT 'Unknown',
	source_file   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS refresh_ledger (
	source       TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	record_count INTEGER NOT NULL,
	min_occurred TEXT NOT NULL,
	max_occurred TEXT NOT NULL,
	refreshed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_lat ON incidents(lat);
CREATE INDEX IF NOT EXISTS idx_incidents_lon ON incidents(lon);
CREATE INDEX IF NOT EXISTS idx_incidents_occurred ON incidents(occurred_at);
CREATE INDEX IF NOT EXISTS idx_incidents_lat_lon_occurred ON incidents(lat, lon, occurred_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertIncidents inserts incidents, skipping duplicates by event ID.
// Invalid incidents (non-finite coordinates, zero timestamps) are dropped.
func (s *SQLiteStore) InsertIncidents(ctx context.Context, incidents []model.Incident) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO incidents
			(id, category, subtype, lat, lon, occurred_at, premises_type, neighbourhood, source_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	var inserted int64
	for _, inc := range incidents {
		if !inc.Valid() {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			inc.ID, string(inc.Category), inc.Subtype, inc.Latitude, inc.Longitude,
			encodeTime(inc.OccurredAt), inc.PremisesType, inc.Neighbourhood, inc.SourceFile,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert incident %s", inc.ID)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "sqlite: commit")
	}
	return inserted, nil
}

// QueryWindow returns incidents inside the bounding box occurring at or
// after since. The precise radius filter happens in the aggregator.
func (s *SQLiteStore) QueryWindow(ctx context.Context, bbox geo.BBox, since time.Time) ([]model.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, subtype, lat, lon, occurred_at, premises_type, neighbourhood
		FROM incidents
		WHERE lat BETWEEN ? AND ?
		  AND lon BETWEEN ? AND ?
		  AND occurred_at >= ?`,
		bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon, encodeTime(since),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query window")
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		var inc model.Incident
		var category, occurred string
		if err := rows.Scan(&inc.ID, &category, &inc.Subtype, &inc.Latitude, &inc.Longitude,
			&occurred, &inc.PremisesType, &inc.Neighbourhood); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan incident")
		}
		inc.Category = model.Category(category)
		if inc.OccurredAt, err = decodeTime(occurred); err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, eris.Wrap(rows.Err(), "sqlite: iterate incidents")
}

func (s *SQLiteStore) CountIncidents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count incidents")
}

// DateRange returns the earliest and latest occurrence timestamps.
func (s *SQLiteStore) DateRange(ctx context.Context) (time.Time, time.Time, error) {
	var minRaw, maxRaw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(occurred_at), MAX(occurred_at) FROM incidents`).Scan(&minRaw, &maxRaw)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "sqlite: date range")
	}
	if !minRaw.Valid || !maxRaw.Valid {
		return time.Time{}, time.Time{}, nil
	}
	minT, err := decodeTime(minRaw.String)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	maxT, err := decodeTime(maxRaw.String)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return minT, maxT, nil
}

func (s *SQLiteStore) RecordRefresh(ctx context.Context, rec RefreshRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_ledger (source, run_id, record_count, min_occurred, max_occurred, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			run_id = excluded.run_id,
			record_count = excluded.record_count,
			min_occurred = excluded.min_occurred,
			max_occurred = excluded.max_occurred,
			refreshed_at = excluded.refreshed_at`,
		rec.Source, rec.RunID, rec.RecordCount,
		encodeTime(rec.MinOccurred), encodeTime(rec.MaxOccurred), encodeTime(rec.RefreshedAt),
	)
	return eris.Wrapf(err, "sqlite: record refresh for %s", rec.Source)
}

func (s *SQLiteStore) LastRefresh(ctx context.Context, source string) (*RefreshRecord, error) {
	var rec RefreshRecord
	var minRaw, maxRaw, refreshedRaw string
	err := s.db.QueryRowContext(ctx, `
		SELECT source, run_id, record_count, min_occurred, max_occurred, refreshed_at
		FROM refresh_ledger WHERE source = ?`, source,
	).Scan(&rec.Source, &rec.RunID, &rec.RecordCount, &minRaw, &maxRaw, &refreshedRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last refresh for %s", source)
	}
	if rec.MinOccurred, err = decodeTime(minRaw); err != nil {
		return nil, err
	}
	if rec.MaxOccurred, err = decodeTime(maxRaw); err != nil {
		return nil, err
	}
	if rec.RefreshedAt, err = decodeTime(refreshedRaw); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestRefreshAt returns the most recent refresh across all sources,
// or the zero time when the ledger is empty.
func (s *SQLiteStore) LatestRefreshAt(ctx context.Context) (time.Time, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(refreshed_at) FROM refresh_ledger`).Scan(&latest)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "sqlite: latest refresh")
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return decodeTime(latest.String)
}
