package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicsignal/safescore/internal/benchmark"
	"github.com/civicsignal/safescore/internal/db"
	"github.com/civicsignal/safescore/internal/forecast"
	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/scorer"
	"github.com/civicsignal/safescore/internal/store"
)

// env wires the store, boundary, benchmark snapshot, and scoring engine
// for a command run.
type env struct {
	Store    store.Store
	Boundary *geo.Boundary
	Snapshot *benchmark.Snapshot
	Engine   *scorer.Engine
}

// initEnv builds the shared runtime. A missing benchmark artifact is not
// fatal here: scoring reports unavailability until one is generated.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	boundary, err := loadBoundary()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	snap := &benchmark.Snapshot{}
	if err := snap.LoadFile(cfg.Grid.ArtifactPath); err != nil {
		zap.L().Warn("benchmark artifact not loaded, scoring unavailable until generated",
			zap.String("path", cfg.Grid.ArtifactPath),
			zap.Error(err),
		)
	}

	policy, err := scorer.NewPolicy(cfg.Scoring)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &env{
		Store:    st,
		Boundary: boundary,
		Snapshot: snap,
		Engine:   scorer.New(st, snap, boundary, policy, forecast.New(cfg.Forecast)),
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// loadBoundary resolves the service area: a polygon file when configured,
// otherwise the rectangular bounding box from the grid settings.
func loadBoundary() (*geo.Boundary, error) {
	bbox := geo.BBox{
		MinLat: cfg.Grid.MinLat,
		MaxLat: cfg.Grid.MaxLat,
		MinLon: cfg.Grid.MinLon,
		MaxLon: cfg.Grid.MaxLon,
	}

	path := cfg.Grid.BoundaryPath
	if path == "" {
		return geo.FromBBox("service area", bbox), nil
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return geo.LoadShapefile(path, name)
	case ".yaml", ".yml":
		return geo.LoadYAML(path)
	default:
		return nil, eris.Errorf("unsupported boundary file %s", path)
	}
}
