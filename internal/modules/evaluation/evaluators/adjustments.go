package evaluators

import (
	"strings"

	"github.com/aristath/dealeval/internal/modules/evaluation/config"
)

// MileageAdjustment returns the mileage band adjustment for a vehicle.
// Bands are checked in ascending order; mileage beyond the last band gets the configured tail value.
func MileageAdjustment(cfg config.ConditionConfig, mileage int) float64 {
	for _, band := range cfg.MileageBands {
		if mileage < band.Below {
			return band.Adjustment
		}
	}
	return cfg.MileageAdjustmentBeyondBands
}

// ConditionKeywordAdjustment returns the adjustment of the first keyword band matching description.
// Matching is case-insensitive; no match yields 0.
func ConditionKeywordAdjustment(cfg config.ConditionConfig, description string) float64 {
	text := strings.ToLower(description)
	for _, band := range cfg.KeywordBands {
		for _, keyword := range band.Keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				return band.Adjustment
			}
		}
	}
	return 0
}
