package benchmark

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

// PointScoreFunc computes the raw weighted impact at one coordinate: the
// overall value plus the per-category split. The generator is handed the
// exact function the live scoring path uses, which keeps benchmarks and
// live scores on one shared algorithm.
type PointScoreFunc func(lat, lon float64) (float64, map[model.Category]float64)

// GenerateOptions configures a grid benchmark run.
type GenerateOptions struct {
	Boundary     *geo.Boundary
	ResolutionKM float64
	RadiusKM     float64
	Workers      int

	// Metadata pass-through.
	DataRecords int
	DataStart   time.Time
	DataEnd     time.Time
}

// Generate lays a uniform grid over the service area, scores every point
// through fn, and returns the sorted reference distribution. Points are
// scored in parallel across disjoint shards; each shard writes only its
// own preallocated slots. A point with zero incidents in range scores 0,
// the defined floor, so sequences are always total-length and sortable.
func Generate(ctx context.Context, opts GenerateOptions, fn PointScoreFunc) (*Distribution, error) {
	if opts.ResolutionKM <= 0 {
		return nil, eris.New("benchmark: resolution_km must be positive")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Boundary == nil {
		return nil, eris.New("benchmark: boundary is required")
	}

	bbox := opts.Boundary.BBox()
	points := gridPoints(opts.Boundary, opts.ResolutionKM)
	if len(points) == 0 {
		return nil, eris.New("benchmark: grid is empty; check boundary and resolution")
	}

	log := zap.L().With(
		zap.String("component", "benchmark.generate"),
		zap.Float64("resolution_km", opts.ResolutionKM),
		zap.Int("points", len(points)),
		zap.Int("workers", opts.Workers),
	)
	log.Info("scoring grid points",
		zap.Float64("min_lat", bbox.MinLat), zap.Float64("max_lat", bbox.MaxLat),
		zap.Float64("min_lon", bbox.MinLon), zap.Float64("max_lon", bbox.MaxLon),
	)
	start := time.Now()

	scored := make([]GridScore, len(points))
	byCategory := make([]map[model.Category]float64, len(points))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		shard := w
		g.Go(func() error {
			for i := shard; i < len(points); i += opts.Workers {
				if err := gctx.Err(); err != nil {
					return eris.Wrap(err, "benchmark: generation cancelled")
				}
				lat, lon := points[i].Lat, points[i].Lon
				overall, cats := fn(lat, lon)
				scored[i] = GridScore{Lat: lat, Lon: lon, Score: overall}
				byCategory[i] = cats
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Distribution{
		Meta: Metadata{
			GeneratedAt:      time.Now().UTC(),
			GridResolutionKM: opts.ResolutionKM,
			RadiusKM:         opts.RadiusKM,
			TotalPoints:      len(points),
			DataRecords:      opts.DataRecords,
			DataStart:        opts.DataStart,
			DataEnd:          opts.DataEnd,
		},
		Overall:    make([]float64, len(points)),
		ByCategory: make(map[model.Category][]float64, len(model.Categories)),
		Points:     scored,
	}

	for _, cat := range model.Categories {
		d.ByCategory[cat] = make([]float64, len(points))
	}
	for i := range scored {
		d.Overall[i] = scored[i].Score
		for _, cat := range model.Categories {
			d.ByCategory[cat][i] = byCategory[i][cat]
		}
	}

	sort.Float64s(d.Overall)
	for _, cat := range model.Categories {
		sort.Float64s(d.ByCategory[cat])
	}

	log.Info("benchmark generation complete", zap.Duration("elapsed", time.Since(start)))
	return d, nil
}

type gridPoint struct {
	Lat, Lon float64
}

// gridPoints enumerates the uniform grid inside the boundary. Longitude
// step widens with latitude so cells stay roughly square on the ground.
func gridPoints(boundary *geo.Boundary, resolutionKM float64) []gridPoint {
	bbox := boundary.BBox()
	midLat := (bbox.MinLat + bbox.MaxLat) / 2

	latStep := resolutionKM * geo.DegreesPerKM
	lonStep := resolutionKM / (111.0 * math.Cos(midLat*math.Pi/180))

	var points []gridPoint
	for lat := bbox.MinLat; lat < bbox.MaxLat; lat += latStep {
		for lon := bbox.MinLon; lon < bbox.MaxLon; lon += lonStep {
			if boundary.Contains(lat, lon) {
				points = append(points, gridPoint{Lat: lat, Lon: lon})
			}
		}
	}
	return points
}
