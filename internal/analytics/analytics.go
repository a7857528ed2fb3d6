// Package analytics serves the fixed dashboard aggregates over the trip
// dataset.
package analytics

import (
	"errors"
	"time"
)

// ErrInvalidFilter is returned when a filter cannot be applied.
var ErrInvalidFilter = errors.New("invalid analytics filter")

// Filter narrows every report. Zero values mean no restriction. Start and
// End are inclusive booking dates.
type Filter struct {
	Start       *time.Time
	End         *time.Time
	VehicleType string
}

func (f Filter) Validate() error {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return errors.Join(ErrInvalidFilter, errors.New("end is before start"))
	}
	return nil
}

type KPIs struct {
	TotalBookings      int64   `json:"totalBookings"`
	SuccessfulBookings int64   `json:"successfulBookings"`
	TotalRevenue       float64 `json:"totalRevenue"`
	SuccessRate        float64 `json:"successRate"`
}

type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type VehicleStats struct {
	VehicleType   string  `json:"vehicleType"`
	TripCount     int64   `json:"tripCount"`
	AverageRating float64 `json:"averageRating"`
}
