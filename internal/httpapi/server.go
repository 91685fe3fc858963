// Package httpapi exposes the daemon's observability surface: health,
// renderer status, a frame snapshot and Prometheus metrics. It is a window
// into the pipeline, not part of it; the renderer works without it.
package httpapi

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"displayd/internal/pixel"
	"displayd/pkg/types"
)

// Service defines the methods required by the HTTP layer.
type Service interface {
	Status() types.StatusResponse
	Snapshot() *pixel.Buffer
	Paused() bool
	Pause()
	Resume()
}

// NewMux builds the router: /healthz, /readyz, /status, /frame, /pause,
// /resume, /metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	// The retained previous frame as PNG. Diagnostic aid: shows what the
	// pipeline believes is on the device.
	r.Get("/frame", func(w http.ResponseWriter, r *http.Request) {
		buf := svc.Snapshot()
		if buf == nil {
			writeJSONError(w, http.StatusNotFound, "no frame processed yet")
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, buf.W, buf.H))
		for y := 0; y < buf.H; y++ {
			for x := 0; x < buf.W; x++ {
				pr, pg, pb := buf.At(x, y)
				img.Set(x, y, color.RGBA{R: pr, G: pg, B: pb, A: 255})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, img); err != nil && zlog != nil {
			zlog.Error().Err(err).Msg("failed to encode frame snapshot")
		}
	})

	r.Post("/pause", func(w http.ResponseWriter, r *http.Request) {
		svc.Pause()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/resume", func(w http.ResponseWriter, r *http.Request) {
		svc.Resume()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !svc.Paused() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("paused"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
