package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicsignal/safescore/internal/ingest"
)

var (
	ingestDownload bool
	ingestDataDir  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load incident data into the store",
	Long:  "Ingests CSV and GeoJSON extracts from the data directory, or downloads fresh datasets from the open-data portal with --download.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ing := ingest.New(env.Store, ingest.NewPortalClient(cfg.Ingest), cfg.Ingest)

		var sum *ingest.Summary
		if ingestDownload {
			sum, err = ing.Download(ctx)
		} else {
			dir := ingestDataDir
			if dir == "" {
				dir = cfg.Ingest.DataDir
			}
			sum, err = ing.LoadDir(ctx, dir)
		}
		if err != nil {
			return err
		}

		zap.L().Info("ingestion complete",
			zap.String("run_id", sum.RunID),
			zap.Int("sources", sum.Sources),
			zap.Int("parsed", sum.Parsed),
			zap.Int64("inserted", sum.Inserted),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDownload, "download", false, "download fresh data from the portal before ingesting")
	ingestCmd.Flags().StringVar(&ingestDataDir, "data-dir", "", "directory of CSV/GeoJSON extracts (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
