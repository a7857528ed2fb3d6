package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{DateLayout, "2006-01-02 15:04:05", "2006/01/02", "02-01-2006", "01/02/2006"}

var timeLayouts = []string{TimeLayout, "15:04", "15:04:05.999999"}

// ReadCSV parses a cleaned trips export. Columns are matched by header name,
// case-insensitively; unknown columns are ignored. Empty cells and the
// literal null/NaN become NULL.
func ReadCSV(r io.Reader) ([]Trip, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeHeader(name)] = i
	}
	for _, required := range []string{"booking_id", "booking_date", "booking_status", "vehicle_type"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv is missing column %q", required)
		}
	}

	trips := make([]Trip, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		trip, err := parseRecord(columns, record)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

func parseRecord(columns map[string]int, record []string) (Trip, error) {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		value := strings.TrimSpace(record[i])
		switch strings.ToLower(value) {
		case "null", "nan", "none":
			return ""
		}
		return value
	}

	trip := Trip{
		BookingID:                 strings.Trim(cell("booking_id"), `"`),
		BookingStatus:             cell("booking_status"),
		CustomerID:                strings.Trim(cell("customer_id"), `"`),
		VehicleType:               cell("vehicle_type"),
		DayOfWeek:                 cell("day_of_week"),
		PeriodOfTheDay:            cell("period_of_the_day"),
		CustomerCancelReason:      optionalText(cell("customer_cancel_reason")),
		DriverCancelReason:        optionalText(cell("driver_cancel_reason")),
		IncompleteReason:          optionalText(cell("incomplete_reason")),
		PaymentMethod:             optionalText(cell("payment_method")),
		UnifiedCancellationReason: optionalText(cell("unified_cancellation_reason")),
	}
	if trip.BookingID == "" {
		return Trip{}, fmt.Errorf("booking_id is required")
	}

	date, err := parseWithLayouts(cell("booking_date"), dateLayouts)
	if err != nil {
		return Trip{}, fmt.Errorf("booking_date: %w", err)
	}
	trip.BookingDate = date.Format(DateLayout)

	if raw := cell("booking_time"); raw != "" {
		clock, err := parseWithLayouts(raw, timeLayouts)
		if err != nil {
			return Trip{}, fmt.Errorf("booking_time: %w", err)
		}
		trip.BookingTime = clock.Format(TimeLayout)
		trip.Hour = int32(clock.Hour())
	}
	if raw := cell("hour"); raw != "" {
		hour, err := strconv.Atoi(raw)
		if err != nil || hour < 0 || hour > 23 {
			return Trip{}, fmt.Errorf("hour: invalid value %q", raw)
		}
		trip.Hour = int32(hour)
	}

	numbers := []struct {
		column string
		dst    **float64
	}{
		{"booking_value", &trip.BookingValue},
		{"ride_distance", &trip.RideDistance},
		{"driver_rating", &trip.DriverRating},
		{"customer_rating", &trip.CustomerRating},
		{"revenue_per_km", &trip.RevenuePerKm},
	}
	for _, n := range numbers {
		value, err := optionalFloat(cell(n.column))
		if err != nil {
			return Trip{}, fmt.Errorf("%s: %w", n.column, err)
		}
		*n.dst = value
	}

	trip.Derive()
	return trip, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"`))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	if alias, ok := headerAliases[name]; ok {
		return alias
	}
	return name
}

// headerAliases maps the raw export's column titles onto trip columns.
var headerAliases = map[string]string{
	"date":                              "booking_date",
	"time":                              "booking_time",
	"reason_for_cancelling_by_customer": "customer_cancel_reason",
	"driver_cancellation_reason":        "driver_cancel_reason",
	"incomplete_rides_reason":           "incomplete_reason",
	"driver_ratings":                    "driver_rating",
	"customer_ratings":                  "customer_rating",
}

func parseWithLayouts(raw string, layouts []string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized value %q", raw)
}

func optionalText(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}

func optionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &value, nil
}
