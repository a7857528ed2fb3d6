package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ridelens/ridelens/internal/observability"
	"github.com/ridelens/ridelens/internal/schema"
)

// Repository runs the dashboard aggregates. The SQL sticks to the subset
// shared by PostgreSQL and DuckDB.
type Repository struct {
	db    *sql.DB
	table string
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, table: schema.TripDataset.Table}
}

// HealthCheck reports whether the trip table can be read. An empty table is
// healthy.
func (r *Repository) HealthCheck(ctx context.Context) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM `+r.table+` LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read %s: %w", r.table, err)
	}
	return nil
}

func (r *Repository) KPIs(ctx context.Context, filter Filter) (KPIs, error) {
	where := newClause(filter, true)
	completed := where.arg(schema.CompletedStatus)
	query := `
SELECT COUNT(*),
  COUNT(CASE WHEN booking_status = ` + completed + ` THEN 1 END),
  CAST(COALESCE(SUM(CASE WHEN booking_status = ` + completed + ` THEN booking_value END), 0) AS DOUBLE PRECISION)
FROM ` + r.table + where.sql()

	start := time.Now()
	var kpis KPIs
	if err := r.db.QueryRowContext(ctx, query, where.args...).Scan(
		&kpis.TotalBookings,
		&kpis.SuccessfulBookings,
		&kpis.TotalRevenue,
	); err != nil {
		return KPIs{}, fmt.Errorf("query kpis: %w", err)
	}
	observability.ObserveAnalyticsQuery("kpis", time.Since(start))

	if kpis.TotalBookings > 0 {
		kpis.SuccessRate = math.Round(float64(kpis.SuccessfulBookings)/float64(kpis.TotalBookings)*100*100) / 100
	}
	return kpis, nil
}

// Cancellations counts non-completed trips by unified reason.
func (r *Repository) Cancellations(ctx context.Context, filter Filter) ([]ChartPoint, error) {
	where := newClause(filter, true)
	where.add("booking_status <> " + where.arg(schema.CompletedStatus))
	query := `
SELECT COALESCE(unified_cancellation_reason, 'Unknown') AS label, COUNT(*) AS value
FROM ` + r.table + where.sql() + `
GROUP BY COALESCE(unified_cancellation_reason, 'Unknown')
ORDER BY value DESC, label ASC`
	return r.chart(ctx, "cancellations", query, where.args)
}

func (r *Repository) PaymentMethods(ctx context.Context, filter Filter) ([]ChartPoint, error) {
	where := newClause(filter, true)
	query := `
SELECT COALESCE(payment_method, 'Unknown') AS label, COUNT(*) AS value
FROM ` + r.table + where.sql() + `
GROUP BY COALESCE(payment_method, 'Unknown')
ORDER BY value DESC, label ASC`
	return r.chart(ctx, "payment_methods", query, where.args)
}

// HourlyTraffic counts bookings per hour of day, labelled "H:00".
func (r *Repository) HourlyTraffic(ctx context.Context, filter Filter) ([]ChartPoint, error) {
	where := newClause(filter, true)
	where.add("hour IS NOT NULL")
	query := `
SELECT hour, COUNT(*) AS value
FROM ` + r.table + where.sql() + `
GROUP BY hour
ORDER BY hour ASC`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("query hourly traffic: %w", err)
	}
	defer func() { _ = rows.Close() }()

	points := make([]ChartPoint, 0, 24)
	for rows.Next() {
		var hour, count int64
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("scan hourly traffic row: %w", err)
		}
		points = append(points, ChartPoint{Label: strconv.FormatInt(hour, 10) + ":00", Value: float64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly traffic rows: %w", err)
	}
	observability.ObserveAnalyticsQuery("traffic_hourly", time.Since(start))
	return points, nil
}

// VehicleStats summarizes completed trips per vehicle type. The vehicle
// filter does not apply here.
func (r *Repository) VehicleStats(ctx context.Context, filter Filter) ([]VehicleStats, error) {
	where := newClause(filter, false)
	where.add("booking_status = " + where.arg(schema.CompletedStatus))
	query := `
SELECT vehicle_type, COUNT(*) AS trip_count,
  CAST(COALESCE(AVG(customer_rating), 0) AS DOUBLE PRECISION) AS average_rating
FROM ` + r.table + where.sql() + `
GROUP BY vehicle_type
ORDER BY trip_count DESC, vehicle_type ASC`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("query vehicle stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]VehicleStats, 0)
	for rows.Next() {
		var (
			item        VehicleStats
			vehicleType sql.NullString
		)
		if err := rows.Scan(&vehicleType, &item.TripCount, &item.AverageRating); err != nil {
			return nil, fmt.Errorf("scan vehicle stats row: %w", err)
		}
		item.VehicleType = vehicleType.String
		stats = append(stats, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicle stats rows: %w", err)
	}
	observability.ObserveAnalyticsQuery("vehicles", time.Since(start))
	return stats, nil
}

func (r *Repository) chart(ctx context.Context, report, query string, args []any) ([]ChartPoint, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", report, err)
	}
	defer func() { _ = rows.Close() }()

	points := make([]ChartPoint, 0)
	for rows.Next() {
		var (
			point ChartPoint
			count int64
		)
		if err := rows.Scan(&point.Label, &count); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", report, err)
		}
		point.Value = float64(count)
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", report, err)
	}
	observability.ObserveAnalyticsQuery(report, time.Since(start))
	return points, nil
}

// clause accumulates WHERE conditions with numbered placeholders.
type clause struct {
	conditions []string
	args       []any
}

func newClause(filter Filter, withVehicle bool) *clause {
	c := &clause{}
	if filter.Start != nil {
		c.add("booking_date >= " + c.arg(dateOnly(*filter.Start)))
	}
	if filter.End != nil {
		c.add("booking_date <= " + c.arg(dateOnly(*filter.End)))
	}
	if withVehicle && strings.TrimSpace(filter.VehicleType) != "" {
		c.add("vehicle_type = " + c.arg(strings.TrimSpace(filter.VehicleType)))
	}
	return c
}

func (c *clause) arg(value any) string {
	c.args = append(c.args, value)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *clause) add(condition string) {
	c.conditions = append(c.conditions, condition)
}

func (c *clause) sql() string {
	if len(c.conditions) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(c.conditions, "\n  AND ")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
