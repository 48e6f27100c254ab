package main

import (
	"math"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicsignal/safescore/internal/benchmark"
	"github.com/civicsignal/safescore/internal/geo"
)

var (
	benchIfStale bool
	benchOutput  string
)

var benchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "Generate the city-wide benchmark distribution",
	Long:  "Scores a uniform grid over the service area with the live scoring algorithm and writes the sorted reference distribution artifact.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		output := benchOutput
		if output == "" {
			output = cfg.Grid.ArtifactPath
		}

		if benchIfStale && !artifactStale(cmd, env, output) {
			zap.L().Info("benchmark artifact is current, skipping", zap.String("path", output))
			return nil
		}

		now := time.Now()
		windowStart := now.AddDate(0, 0, -cfg.Scoring.WindowDays)

		// Grid points at the boundary edge still need their full radius,
		// so the data query pads the service-area box by one radius.
		incidents, err := env.Store.QueryWindow(ctx, padBBox(env.Boundary.BBox(), cfg.Scoring.RadiusKM), windowStart)
		if err != nil {
			return err
		}

		dataStart, dataEnd, err := env.Store.DateRange(ctx)
		if err != nil {
			return err
		}

		dist, err := benchmark.Generate(ctx, benchmark.GenerateOptions{
			Boundary:     env.Boundary,
			ResolutionKM: cfg.Grid.ResolutionKM,
			RadiusKM:     cfg.Scoring.RadiusKM,
			Workers:      cfg.Grid.Workers,
			DataRecords:  len(incidents),
			DataStart:    dataStart,
			DataEnd:      dataEnd,
		}, env.Engine.GridScoreFunc(incidents, now))
		if err != nil {
			return err
		}

		if err := benchmark.WriteFile(output, dist); err != nil {
			return err
		}
		env.Snapshot.Swap(dist)

		zap.L().Info("benchmark distribution generated",
			zap.String("path", output),
			zap.Int("grid_points", dist.Meta.TotalPoints),
			zap.Int("data_records", dist.Meta.DataRecords),
		)
		return nil
	},
}

// artifactStale reports whether the artifact predates the newest
// ingestion. A missing or unreadable artifact counts as stale.
func artifactStale(cmd *cobra.Command, env *env, path string) bool {
	existing, err := benchmark.ReadFile(path)
	if err != nil {
		return true
	}
	latest, err := env.Store.LatestRefreshAt(cmd.Context())
	if err != nil {
		zap.L().Warn("read refresh ledger", zap.Error(err))
		return true
	}
	return latest.After(existing.Meta.GeneratedAt)
}

// padBBox grows a bounding box by the given distance on every side.
func padBBox(b geo.BBox, km float64) geo.BBox {
	latPad := km * geo.DegreesPerKM
	midLat := (b.MinLat + b.MaxLat) / 2
	lonPad := km * geo.DegreesPerKM / math.Cos(midLat*math.Pi/180)
	return geo.BBox{
		MinLat: b.MinLat - latPad,
		MaxLat: b.MaxLat + latPad,
		MinLon: b.MinLon - lonPad,
		MaxLon: b.MaxLon + lonPad,
	}
}

func init() {
	benchmarksCmd.Flags().BoolVar(&benchIfStale, "if-stale", false, "only regenerate when data is newer than the artifact")
	benchmarksCmd.Flags().StringVar(&benchOutput, "output", "", "artifact path (default from config)")
	rootCmd.AddCommand(benchmarksCmd)
}
