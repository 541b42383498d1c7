// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"
)

// Deal is a vehicle purchase opportunity owned by a user.
// The evaluation pipeline only ever reads it.
type Deal struct {
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	VehicleMake    string    `json:"vehicle_make"`
	VehicleModel   string    `json:"vehicle_model"`
	VIN            string    `json:"vin"`
	VehicleYear    int       `json:"vehicle_year"`
	VehicleMileage int       `json:"vehicle_mileage"`
	AskingPrice    float64   `json:"asking_price"`
}

// FairValueQuote is a market valuation for a vehicle
type FairValueQuote struct {
	FetchedAt  time.Time       `json:"fetched_at"`
	Source     string          `json:"source,omitempty"`
	Confidence ValueConfidence `json:"confidence"`
	FairValue  float64         `json:"fair_value"`
}

// ValueConfidence grades how much a fair value can be trusted
type ValueConfidence string

const (
	ConfidenceHigh   ValueConfidence = "high"
	ConfidenceMedium ValueConfidence = "medium"
	ConfidenceLow    ValueConfidence = "low"
)

// IsLow reports whether the quote should be penalized as low confidence.
// Unknown grades count as low.
func (c ValueConfidence) IsLow() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium:
		return false
	default:
		return true
	}
}

// NormalizeVIN upper-cases and trims a VIN
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// ValidVIN reports whether vin is a 17 character VIN.
// I, O and Q never appear in a VIN.
func ValidVIN(vin string) bool {
	vin = NormalizeVIN(vin)
	if len(vin) != 17 {
		return false
	}
	for _, r := range vin {
		switch {
		case r == 'I' || r == 'O' || r == 'Q':
			return false
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
