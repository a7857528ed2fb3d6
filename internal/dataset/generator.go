package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ridelens/ridelens/internal/schema"
)

var (
	vehicleTypes   = []string{"Auto", "Go Mini", "Go Sedan", "Bike", "Premier Sedan", "eBike", "Uber XL"}
	paymentMethods = []string{"UPI", "Cash", "Uber Wallet", "Credit Card", "Debit Card"}

	customerCancelReasons = []string{
		"Wrong Address",
		"Change of plans",
		"Driver is not moving towards pickup location",
		"Driver asked to cancel",
		"AC is not working",
	}
	driverCancelReasons = []string{
		"Personal & Car related issues",
		"Customer related issue",
		"The customer was coughing/sick",
		"More than permitted people in there",
	}
	incompleteReasons = []string{"Customer Demand", "Vehicle Breakdown", "Other Issue"}
)

// Generator produces synthetic trips spread over a date range. The same seed
// always yields the same sequence.
type Generator struct {
	rnd       *rand.Rand
	start     time.Time
	days      int
	customers int
	sequence  int64
}

func NewGenerator(seed int64, start time.Time, days int) *Generator {
	if days <= 0 {
		days = 1
	}
	return &Generator{
		rnd:       rand.New(rand.NewSource(seed)),
		start:     time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		days:      days,
		customers: 5000,
	}
}

func (g *Generator) Next() Trip {
	g.sequence++
	bookedAt := g.start.
		Add(time.Duration(g.rnd.Intn(g.days)) * 24 * time.Hour).
		Add(time.Duration(g.rnd.Intn(24*60*60)) * time.Second)

	trip := Trip{
		BookingID:     "CNR" + g.bookingID(),
		BookingStatus: g.pickStatus(),
		CustomerID:    fmt.Sprintf("CID%07d", g.rnd.Intn(g.customers)+1),
		VehicleType:   pickOne(g.rnd, vehicleTypes),
	}
	trip.SetBookedAt(bookedAt)

	switch trip.BookingStatus {
	case schema.CompletedStatus:
		g.fillRide(&trip)
		trip.DriverRating = ptr(round1(3 + g.rnd.Float64()*2))
		trip.CustomerRating = ptr(round1(3 + g.rnd.Float64()*2))
	case StatusIncomplete:
		g.fillRide(&trip)
		trip.IncompleteReason = ptr(pickOne(g.rnd, incompleteReasons))
	case StatusCancelledByCustomer:
		trip.CustomerCancelReason = ptr(pickOne(g.rnd, customerCancelReasons))
	case StatusCancelledByDriver:
		trip.DriverCancelReason = ptr(pickOne(g.rnd, driverCancelReasons))
	}

	trip.Derive()
	return trip
}

// Batch returns the next n trips.
func (g *Generator) Batch(n int) []Trip {
	trips := make([]Trip, 0, n)
	for i := 0; i < n; i++ {
		trips = append(trips, g.Next())
	}
	return trips
}

func (g *Generator) bookingID() string {
	id, err := uuid.NewRandomFromReader(g.rnd)
	if err != nil {
		return fmt.Sprintf("seq-%012d", g.sequence)
	}
	return id.String()
}

func (g *Generator) fillRide(trip *Trip) {
	distance := round2(1 + g.rnd.Float64()*49)
	value := math.Round(50 + distance*(8+g.rnd.Float64()*12))
	trip.RideDistance = &distance
	trip.BookingValue = &value
	trip.PaymentMethod = ptr(pickOne(g.rnd, paymentMethods))
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 62:
		return schema.CompletedStatus
	case p < 80:
		return StatusCancelledByDriver
	case p < 87:
		return StatusNoDriverFound
	case p < 94:
		return StatusCancelledByCustomer
	default:
		return StatusIncomplete
	}
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
