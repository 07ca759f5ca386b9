package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storywire/internal/app"
	"storywire/internal/resilience/feedbreaker"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// FeedHealthResponse reports the per-feed circuit breakers.
type FeedHealthResponse struct {
	Healthy bool `json:"healthy"`
	feedbreaker.Status
}

// breakerStatus is implemented by *feedbreaker.Breaker.
type breakerStatus interface {
	Status(ctx context.Context) (feedbreaker.Status, error)
}

// startMetricsServer starts the Prometheus metrics HTTP server on port and
// shuts it down when ctx is cancelled.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics
//   - GET /health: liveness probe
//   - GET /health/feeds: open feed circuits; 503 when every tracked feed is open
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, ingestion *app.Ingestion) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      metricsMux(ingestion.Breaker),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

func metricsMux(breaker breakerStatus) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/feeds", feedHealthHandler(breaker))
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func feedHealthHandler(breaker breakerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := breaker.Status(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		healthy := st.TotalTracked == 0 || st.OpenCircuits < st.TotalTracked
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, FeedHealthResponse{Healthy: healthy, Status: st})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
