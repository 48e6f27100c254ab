// Package store persists incidents and the ingestion refresh ledger.
package store

import (
	"context"
	"time"

	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

// RefreshRecord is one refresh-ledger row: the last successful ingestion
// window for a single upstream data source.
type RefreshRecord struct {
	Source      string    `json:"source"`
	RunID       string    `json:"run_id"`
	RecordCount int       `json:"record_count"`
	MinOccurred time.Time `json:"min_occurred"`
	MaxOccurred time.Time `json:"max_occurred"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Store defines the persistence interface for the scoring pipeline.
// The scoring core treats it as a bounded synchronous read collaborator.
type Store interface {
	// Incidents
	InsertIncidents(ctx context.Context, incidents []model.Incident) (int64, error)
	QueryWindow(ctx context.Context, bbox geo.BBox, since time.Time) ([]model.Incident, error)
	CountIncidents(ctx context.Context) (int64, error)
	DateRange(ctx context.Context) (min, max time.Time, err error)

	// Refresh ledger
	RecordRefresh(ctx context.Context, rec RefreshRecord) error
	LastRefresh(ctx context.Context, source string) (*RefreshRecord, error)
	LatestRefreshAt(ctx context.Context) (time.Time, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
