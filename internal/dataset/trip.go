// Package dataset builds and publishes the Parquet files behind
// gold.cleaned_dataset.
package dataset

import (
	"time"

	"github.com/ridelens/ridelens/internal/schema"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Trip is one row of the cleaned trips table. Dates and times are kept as
// text and typed by the warehouse view.
type Trip struct {
	BookingID                 string   `parquet:"booking_id"`
	BookingDate               string   `parquet:"booking_date"`
	BookingTime               string   `parquet:"booking_time"`
	DayOfWeek                 string   `parquet:"day_of_week"`
	Hour                      int32    `parquet:"hour"`
	PeriodOfTheDay            string   `parquet:"period_of_the_day"`
	BookingStatus             string   `parquet:"booking_status"`
	CustomerID                string   `parquet:"customer_id"`
	VehicleType               string   `parquet:"vehicle_type"`
	CancelledByCustomer       int32    `parquet:"cancelled_by_customer"`
	CustomerCancelReason      *string  `parquet:"customer_cancel_reason,optional"`
	CancelledByDriver         int32    `parquet:"cancelled_by_driver"`
	DriverCancelReason        *string  `parquet:"driver_cancel_reason,optional"`
	IncompleteRide            int32    `parquet:"incomplete_ride"`
	IncompleteReason          *string  `parquet:"incomplete_reason,optional"`
	BookingValue              *float64 `parquet:"booking_value,optional"`
	RideDistance              *float64 `parquet:"ride_distance,optional"`
	PaymentMethod             *string  `parquet:"payment_method,optional"`
	DriverRating              *float64 `parquet:"driver_rating,optional"`
	CustomerRating            *float64 `parquet:"customer_rating,optional"`
	HasDriverRating           int32    `parquet:"has_driver_rating"`
	HasCustomerRating         int32    `parquet:"has_customer_rating"`
	UnifiedCancellationReason *string  `parquet:"unified_cancellation_reason,optional"`
	RevenuePerKm              *float64 `parquet:"revenue_per_km,optional"`
}

// PeriodOfTheDay buckets an hour of day.
func PeriodOfTheDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 18:
		return "Afternoon"
	case hour >= 18 && hour < 23:
		return "Night"
	default:
		return "MidNight"
	}
}

// RevenuePerKm is value/distance, zero for non-positive distances and nil
// when the value is unknown.
func RevenuePerKm(value, distance *float64) *float64 {
	if value == nil {
		return nil
	}
	if distance == nil || *distance <= 0 {
		zero := 0.0
		return &zero
	}
	perKm := *value / *distance
	return &perKm
}

// SetBookedAt fills the date and time columns and everything derived from
// them.
func (t *Trip) SetBookedAt(at time.Time) {
	t.BookingDate = at.Format(DateLayout)
	t.BookingTime = at.Format(TimeLayout)
	t.DayOfWeek = at.Weekday().String()
	t.Hour = int32(at.Hour())
	t.PeriodOfTheDay = PeriodOfTheDay(at.Hour())
}

// Derive recomputes the convenience columns from the source columns.
func (t *Trip) Derive() {
	if t.PeriodOfTheDay == "" {
		t.PeriodOfTheDay = PeriodOfTheDay(int(t.Hour))
	}
	if t.DayOfWeek == "" {
		if date, err := time.Parse(DateLayout, t.BookingDate); err == nil {
			t.DayOfWeek = date.Weekday().String()
		}
	}
	t.HasDriverRating = flag(t.DriverRating != nil)
	t.HasCustomerRating = flag(t.CustomerRating != nil)
	t.CancelledByCustomer = flag(t.BookingStatus == StatusCancelledByCustomer)
	t.CancelledByDriver = flag(t.BookingStatus == StatusCancelledByDriver)
	t.IncompleteRide = flag(t.BookingStatus == StatusIncomplete)
	if t.UnifiedCancellationReason == nil && t.BookingStatus != schema.CompletedStatus {
		t.UnifiedCancellationReason = firstNonEmpty(t.CustomerCancelReason, t.DriverCancelReason, t.IncompleteReason)
		if t.UnifiedCancellationReason == nil && t.BookingStatus == StatusNoDriverFound {
			t.UnifiedCancellationReason = ptr(StatusNoDriverFound)
		}
	}
	if t.RevenuePerKm == nil {
		t.RevenuePerKm = RevenuePerKm(t.BookingValue, t.RideDistance)
	}
}

// BookingMonth is the first day of the trip's booking month, or false when
// the booking date is malformed.
func (t Trip) BookingMonth() (time.Time, bool) {
	date, err := time.Parse(DateLayout, t.BookingDate)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

const (
	StatusCancelledByCustomer = "Cancelled by Customer"
	StatusCancelledByDriver   = "Cancelled by Driver"
	StatusNoDriverFound       = "No Driver Found"
	StatusIncomplete          = "Incomplete"
)

func flag(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
