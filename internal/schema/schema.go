// Package schema holds the hand-maintained description of the trip fact
// table that is handed to the completion service as query context.
package schema

import "strings"

// CompletedStatus is the booking_status value of a successful trip.
const CompletedStatus = "Completed"

type Column struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values,omitempty"`
	Hint   string   `json:"hint,omitempty"`
}

type Descriptor struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// TripDataset describes gold.cleaned_dataset. Treat it as read-only.
var TripDataset = Descriptor{
	Table: "gold.cleaned_dataset",
	Columns: []Column{
		{Name: "booking_id", Type: "VARCHAR", Hint: "Unique booking identifier"},
		{
			Name:   "booking_status",
			Type:   "VARCHAR",
			Values: []string{CompletedStatus, "Cancelled by Customer", "No Driver Found", "Cancelled by Driver", "Incomplete"},
		},
		{
			Name:   "vehicle_type",
			Type:   "VARCHAR",
			Values: []string{"Auto", "Bike", "eBike", "Go Mini", "Go Sedan", "Premier Sedan", "Uber XL"},
		},
		{Name: "booking_value", Type: "DECIMAL", Hint: "The revenue or cost of the trip"},
		{Name: "ride_distance", Type: "DECIMAL", Hint: "Distance in km"},
		{Name: "booking_date", Type: "DATE"},
		{Name: "booking_time", Type: "TIME"},
		{Name: "day_of_week", Type: "VARCHAR", Hint: "English weekday name, e.g. 'Monday'"},
		{Name: "hour", Type: "INTEGER", Hint: "Hour of the booking, 0-23"},
		{
			Name:   "period_of_the_day",
			Type:   "VARCHAR",
			Values: []string{"Morning", "Afternoon", "Night", "MidNight"},
		},
		{Name: "customer_id", Type: "VARCHAR"},
		{Name: "payment_method", Type: "VARCHAR", Hint: "How the customer paid, e.g. 'UPI', 'Cash'"},
		{Name: "driver_rating", Type: "DECIMAL", Hint: "Rating given to the driver, 1-5"},
		{Name: "customer_rating", Type: "DECIMAL", Hint: "Rating given to the customer, 1-5"},
		{Name: "customer_cancel_reason", Type: "VARCHAR", Hint: "Reason if customer cancelled"},
		{Name: "driver_cancel_reason", Type: "VARCHAR", Hint: "Reason if driver cancelled"},
		{Name: "incomplete_reason", Type: "VARCHAR", Hint: "Reason if the ride was not completed"},
		{
			Name: "unified_cancellation_reason",
			Type: "VARCHAR",
			Hint: "The text reason why a trip failed (Main column for reasons)",
		},
		{
			Name: "revenue_per_km",
			Type: "DECIMAL",
			Hint: "Pre-calculated revenue per km. Use this instead of dividing.",
		},
	},
}

// Render formats the descriptor as the plain-text block embedded in prompts.
func (d Descriptor) Render() string {
	var b strings.Builder
	b.WriteString("Table: ")
	b.WriteString(d.Table)
	b.WriteString("\nColumns:\n")
	for _, col := range d.Columns {
		b.WriteString("- ")
		b.WriteString(col.Name)
		b.WriteString(" (")
		b.WriteString(col.Type)
		b.WriteString(")")
		if len(col.Values) > 0 {
			quoted := make([]string, 0, len(col.Values))
			for _, v := range col.Values {
				quoted = append(quoted, "'"+v+"'")
			}
			b.WriteString(" values: ")
			b.WriteString(strings.Join(quoted, ", "))
		}
		if col.Hint != "" {
			b.WriteString(" -- ")
			b.WriteString(col.Hint)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Column returns the named column and whether it exists.
func (d Descriptor) Column(name string) (Column, bool) {
	for _, col := range d.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Column{}, false
}
