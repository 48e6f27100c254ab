package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicsignal/safescore/internal/model"
	"github.com/civicsignal/safescore/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the safety scoring HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		geocoder := geocode.New(geocode.Options{
			BaseURL:     cfg.Geocode.BaseURL,
			CountryCode: cfg.Geocode.CountryCode,
			RatePerSec:  cfg.Geocode.RatePerSec,
			CacheSize:   cfg.Geocode.CacheSize,
		})

		api := &apiServer{env: env, geocoder: geocoder}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	env      *env
	geocoder *geocode.Client
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/score", s.handleScoreByPostal)
	r.Get("/score/coords", s.handleScoreByCoords)
	r.Get("/heatmap", s.handleHeatmap)

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if _, err := s.env.Snapshot.Get(); err != nil {
		status["benchmark"] = "unavailable"
	} else {
		status["benchmark"] = "loaded"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleScoreByPostal(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("pincode")
	if code == "" {
		writeError(w, http.StatusBadRequest, "pincode is required")
		return
	}

	loc, err := s.geocoder.Lookup(r.Context(), code)
	if err != nil {
		if eris.Is(err, geocode.ErrNoMatch) {
			writeError(w, http.StatusNotFound, "postal code not found")
			return
		}
		zap.L().Error("geocode lookup failed", zap.String("pincode", code), zap.Error(err))
		writeError(w, http.StatusBadGateway, "geocoding unavailable")
		return
	}

	s.score(w, r, loc.Latitude, loc.Longitude)
}

func (s *apiServer) handleScoreByCoords(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be valid numbers")
		return
	}
	s.score(w, r, lat, lon)
}

func (s *apiServer) score(w http.ResponseWriter, r *http.Request, lat, lon float64) {
	res, err := s.env.Engine.ScoreCoordinate(r.Context(), lat, lon)
	if err != nil {
		switch {
		case eris.Is(err, model.ErrInvalidCoordinate):
			writeError(w, http.StatusBadRequest, "invalid coordinates")
		case eris.Is(err, model.ErrOutOfCoverage):
			writeError(w, http.StatusUnprocessableEntity, "location is outside the service area")
		case eris.Is(err, model.ErrBenchmarkUnavailable):
			writeError(w, http.StatusServiceUnavailable, "benchmarks not generated yet")
		default:
			zap.L().Error("scoring failed",
				zap.Float64("lat", lat),
				zap.Float64("lon", lon),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "scoring failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *apiServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	points, err := s.env.Engine.Heatmap()
	if err != nil {
		if eris.Is(err, model.ErrBenchmarkUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "benchmarks not generated yet")
			return
		}
		zap.L().Error("heatmap failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "heatmap failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
