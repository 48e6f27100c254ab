package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civicsignal/safescore/pkg/geocode"
)

var (
	scoreLat     float64
	scoreLon     float64
	scorePincode string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single location and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		lat, lon := scoreLat, scoreLon
		if scorePincode != "" {
			geocoder := geocode.New(geocode.Options{
				BaseURL:     cfg.Geocode.BaseURL,
				CountryCode: cfg.Geocode.CountryCode,
				RatePerSec:  cfg.Geocode.RatePerSec,
				CacheSize:   cfg.Geocode.CacheSize,
			})
			loc, err := geocoder.Lookup(ctx, scorePincode)
			if err != nil {
				return eris.Wrapf(err, "resolve pincode %s", scorePincode)
			}
			lat, lon = loc.Latitude, loc.Longitude
		} else if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			return eris.New("either --pincode or both --lat and --lon are required")
		}

		res, err := env.Engine.ScoreCoordinate(ctx, lat, lon)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	scoreCmd.Flags().Float64Var(&scoreLat, "lat", 0, "latitude")
	scoreCmd.Flags().Float64Var(&scoreLon, "lon", 0, "longitude")
	scoreCmd.Flags().StringVar(&scorePincode, "pincode", "", "postal code to geocode")
	rootCmd.AddCommand(scoreCmd)
}
