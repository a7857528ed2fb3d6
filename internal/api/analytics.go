package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ridelens/ridelens/internal/analytics"
)

var _ AnalyticsReader = (*analytics.Repository)(nil)

func handleKPIs(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	filter, ok := analyticsFilter(deps, w, r)
	if !ok {
		return
	}
	kpis, err := deps.Analytics.KPIs(r.Context(), filter)
	if err != nil {
		writeAnalyticsFailure(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func handleChart(deps Dependencies, w http.ResponseWriter, r *http.Request, report string) {
	filter, ok := analyticsFilter(deps, w, r)
	if !ok {
		return
	}

	var (
		points []analytics.ChartPoint
		err    error
	)
	switch report {
	case "cancellations":
		points, err = deps.Analytics.Cancellations(r.Context(), filter)
	case "payment_methods":
		points, err = deps.Analytics.PaymentMethods(r.Context(), filter)
	case "traffic_hourly":
		points, err = deps.Analytics.HourlyTraffic(r.Context(), filter)
	default:
		writeError(r.Context(), w, http.StatusNotFound, "UNKNOWN_REPORT", "unknown report "+report, false, nil)
		return
	}
	if err != nil {
		writeAnalyticsFailure(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func handleVehicles(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	filter, ok := analyticsFilter(deps, w, r)
	if !ok {
		return
	}
	stats, err := deps.Analytics.VehicleStats(r.Context(), filter)
	if err != nil {
		writeAnalyticsFailure(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// analyticsFilter writes the error response itself when it returns false.
func analyticsFilter(deps Dependencies, w http.ResponseWriter, r *http.Request) (analytics.Filter, bool) {
	if deps.Analytics == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ANALYTICS_NOT_CONFIGURED", "analytics dependencies are not configured", false, nil)
		return analytics.Filter{}, false
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILTER", err.Error(), false, nil)
		return analytics.Filter{}, false
	}
	return filter, true
}

func parseFilter(values url.Values) (analytics.Filter, error) {
	var filter analytics.Filter
	for _, field := range []struct {
		name string
		dst  **time.Time
	}{
		{"start", &filter.Start},
		{"end", &filter.End},
	} {
		raw := strings.TrimSpace(values.Get(field.name))
		if raw == "" {
			continue
		}
		parsed, err := parseDate(raw)
		if err != nil {
			return analytics.Filter{}, errors.New(field.name + " must be YYYY-MM-DD or RFC3339")
		}
		*field.dst = &parsed
	}
	filter.VehicleType = strings.TrimSpace(values.Get("vehicleType"))
	if err := filter.Validate(); err != nil {
		return analytics.Filter{}, err
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeAnalyticsFailure(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, analytics.ErrInvalidFilter) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILTER", err.Error(), false, nil)
		return
	}
	if deps.Logger != nil {
		deps.Logger.ErrorContext(r.Context(), "analytics query failed", "path", r.URL.Path, "error", err)
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "ANALYTICS_FAILED", "analytics query failed", true, nil)
}
