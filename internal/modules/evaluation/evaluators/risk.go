package evaluators

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/dustin/go-humanize"
)

// Risk recommendations
const (
	RiskLowRecommendation      = "Low risk — proceed with confidence"
	RiskModerateRecommendation = "Moderate risk — proceed with caution"
	RiskHighRecommendation     = "High risk — consider alternatives"
)

// Risk levels
const (
	RiskLevelLow      = "low"
	RiskLevelModerate = "moderate"
	RiskLevelHigh     = "high"
)

// RiskInput carries vehicle facts plus what earlier steps learned
type RiskInput struct {
	FairValue             *float64 // nil when the price step had no market quote
	VehicleYear           int
	VehicleMileage        int
	AskingPrice           float64
	InspectionCompleted   bool
	RecommendedInspection bool
}

// RiskAssessment is the stored result of the risk step
type RiskAssessment struct {
	RiskFactors    []string `json:"risk_factors"`
	Recommendation string   `json:"recommendation"`
	RiskLevel      string   `json:"risk_level"`
	RiskScore      float64  `json:"risk_score"`
}

// RiskEvaluator adds independent penalties to a base risk score
type RiskEvaluator struct {
	cfg config.RiskConfig
	now func() time.Time
}

// NewRiskEvaluator creates a risk evaluator. now supplies the current year; nil means time.Now.
func NewRiskEvaluator(cfg config.EvaluationConfig, now func() time.Time) *RiskEvaluator {
	if now == nil {
		now = time.Now
	}
	return &RiskEvaluator{cfg: cfg.Clone().Risk, now: now}
}

// Evaluate scores the purchase risk
func (e *RiskEvaluator) Evaluate(in RiskInput) RiskAssessment {
	score := e.cfg.BaseScore
	factors := []string{}

	switch {
	case in.VehicleMileage > e.cfg.HighMileage:
		score += e.cfg.HighMileagePenalty
		factors = append(factors, fmt.Sprintf("High mileage (%s miles)", humanize.Comma(int64(in.VehicleMileage))))
	case in.VehicleMileage > e.cfg.ElevatedMileage:
		score += e.cfg.ElevatedMileagePenalty
		factors = append(factors, fmt.Sprintf("Above-average mileage (%s miles)", humanize.Comma(int64(in.VehicleMileage))))
	}

	age := e.now().Year() - in.VehicleYear
	switch {
	case age > e.cfg.OldAgeYears:
		score += e.cfg.OldAgePenalty
		factors = append(factors, fmt.Sprintf("Vehicle is %d years old", age))
	case age > e.cfg.AgingYears:
		score += e.cfg.AgingPenalty
		factors = append(factors, fmt.Sprintf("Vehicle is %d years old; age-related repairs are likely", age))
	}

	if in.RecommendedInspection && !in.InspectionCompleted {
		score += e.cfg.UninspectedPenalty
		factors = append(factors, "Pre-purchase inspection recommended but not completed")
	}

	if in.FairValue != nil {
		premium := in.AskingPrice - *in.FairValue
		if premium > e.cfg.PricePremiumThreshold {
			score += e.cfg.PricePremiumPenalty
			factors = append(factors, fmt.Sprintf("Asking price is $%s above market value", dollars(premium)))
		}
	}

	score = math.Min(e.cfg.MaxScore, math.Max(e.cfg.MinScore, score))

	a := RiskAssessment{
		RiskScore:   round2(score),
		RiskFactors: factors,
	}
	switch {
	case score < e.cfg.LowRiskBelow:
		a.RiskLevel, a.Recommendation = RiskLevelLow, RiskLowRecommendation
	case score < e.cfg.ModerateRiskBelow:
		a.RiskLevel, a.Recommendation = RiskLevelModerate, RiskModerateRecommendation
	default:
		a.RiskLevel, a.Recommendation = RiskLevelHigh, RiskHighRecommendation
	}
	return a
}
