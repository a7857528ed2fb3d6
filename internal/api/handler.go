package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridelens/ridelens/internal/analytics"
	"github.com/ridelens/ridelens/internal/chat"
	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/observability"
	"github.com/ridelens/ridelens/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// Answerer runs the natural-language pipeline for one question.
type Answerer interface {
	Answer(ctx context.Context, question string) chat.Outcome
}

type AnalyticsReader interface {
	KPIs(ctx context.Context, filter analytics.Filter) (analytics.KPIs, error)
	Cancellations(ctx context.Context, filter analytics.Filter) ([]analytics.ChartPoint, error)
	PaymentMethods(ctx context.Context, filter analytics.Filter) ([]analytics.ChartPoint, error)
	HourlyTraffic(ctx context.Context, filter analytics.Filter) ([]analytics.ChartPoint, error)
	VehicleStats(ctx context.Context, filter analytics.Filter) ([]analytics.VehicleStats, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Chat              Answerer
	Analytics         AnalyticsReader
	// Schema defaults to schema.TripDataset.
	Schema *schema.Descriptor
	// ChatLimiter guards the chat route; nil disables limiting.
	ChatLimiter *ClientLimiter
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/schema", func(w http.ResponseWriter, _ *http.Request) {
		descriptor := schema.TripDataset
		if deps.Schema != nil {
			descriptor = *deps.Schema
		}
		writeJSON(w, http.StatusOK, descriptor)
	})

	limitChat := deps.ChatLimiter.Middleware(writeChatRateLimited)
	mux.Handle("POST /api/chat/ask", limitChat(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})))

	mux.HandleFunc("GET /api/analytics/kpis", func(w http.ResponseWriter, r *http.Request) {
		handleKPIs(deps, w, r)
	})
	mux.HandleFunc("GET /api/analytics/charts/cancellations", func(w http.ResponseWriter, r *http.Request) {
		handleChart(deps, w, r, "cancellations")
	})
	mux.HandleFunc("GET /api/analytics/charts/payment-methods", func(w http.ResponseWriter, r *http.Request) {
		handleChart(deps, w, r, "payment_methods")
	})
	mux.HandleFunc("GET /api/analytics/charts/traffic-hourly", func(w http.ResponseWriter, r *http.Request) {
		handleChart(deps, w, r, "traffic_hourly")
	})
	mux.HandleFunc("GET /api/analytics/charts/vehicles", func(w http.ResponseWriter, r *http.Request) {
		handleVehicles(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// PingReadiness checks that the warehouse answers.
func PingReadiness(ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New("warehouse is not configured")
		}
		return ping(ctx)
	}
}

// WarehouseReadiness pings the warehouse, then runs each table check in
// order.
func WarehouseReadiness(ping func(ctx context.Context) error, tableChecks ...ReadinessCheck) ReadinessCheck {
	return CombineReadinessChecks(append([]ReadinessCheck{PingReadiness(ping)}, tableChecks...)...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
