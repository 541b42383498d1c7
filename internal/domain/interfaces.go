package domain

import (
	"context"
	"encoding/json"
)

// DealStore provides read-only access to deals
type DealStore interface {
	// GetDeal returns ErrDealNotFound when no deal has the given id
	GetDeal(ctx context.Context, dealID string) (*Deal, error)
}

// AssessmentProvider runs a named AI prompt with template variables.
// Callers must tolerate errors and substitute a deterministic fallback.
type AssessmentProvider interface {
	Assess(ctx context.Context, promptID string, variables map[string]any) (json.RawMessage, error)
}

// MarketDataProvider prices a vehicle against comparable listings
type MarketDataProvider interface {
	FairValue(ctx context.Context, manufacturer, model string, year, mileage int) (FairValueQuote, error)
}

// Prompt identifiers understood by the assessment provider
const (
	PromptVehicleCondition = "vehicle_condition"
	PromptFinalNarrative   = "final_narrative"
)
