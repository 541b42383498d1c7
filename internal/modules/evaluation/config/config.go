// Package config holds the versioned thresholds and weights behind every evaluation score.
//
// An EvaluationConfig is a plain value. Evaluators take a Clone at construction time,
// so changing a config after it has been handed out never affects running evaluators.
package config

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/dealeval/internal/domain"
)

// DefaultVersion identifies the built-in threshold table
const DefaultVersion = "2024.1"

// EvaluationConfig is the complete threshold table for one pipeline
type EvaluationConfig struct {
	Version   string          `mapstructure:"version" json:"version"`
	Condition ConditionConfig `mapstructure:"condition" json:"condition"`
	Price     PriceConfig     `mapstructure:"price" json:"price"`
	Financing FinancingConfig `mapstructure:"financing" json:"financing"`
	Risk      RiskConfig      `mapstructure:"risk" json:"risk"`
	Final     FinalConfig     `mapstructure:"final" json:"final"`
}

// MileageBand applies Adjustment to vehicles with fewer than Below miles
type MileageBand struct {
	Below      int     `mapstructure:"below" json:"below"`
	Adjustment float64 `mapstructure:"adjustment" json:"adjustment"`
}

// KeywordBand applies Adjustment when any keyword appears in a condition description
type KeywordBand struct {
	Keywords   []string `mapstructure:"keywords" json:"keywords"`
	Adjustment float64  `mapstructure:"adjustment" json:"adjustment"`
}

// ConditionConfig drives the condition step
type ConditionConfig struct {
	FallbackScore                float64       `mapstructure:"fallback_score" json:"fallback_score"`
	FallbackNotes                []string      `mapstructure:"fallback_notes" json:"fallback_notes"`
	FallbackRecommendInspection  bool          `mapstructure:"fallback_recommend_inspection" json:"fallback_recommend_inspection"`
	MileageBands                 []MileageBand `mapstructure:"mileage_bands" json:"mileage_bands"`
	MileageAdjustmentBeyondBands float64       `mapstructure:"mileage_adjustment_beyond_bands" json:"mileage_adjustment_beyond_bands"`
	KeywordBands                 []KeywordBand `mapstructure:"keyword_bands" json:"keyword_bands"` // first match wins
}

// ScoreBand maps a percent difference up to and including UpTo onto Score
type ScoreBand struct {
	UpTo  float64 `mapstructure:"up_to" json:"up_to"`
	Score float64 `mapstructure:"score" json:"score"`
}

// PriceConfig drives the price step
type PriceConfig struct {
	Bands                []ScoreBand `mapstructure:"bands" json:"bands"`
	ScoreAboveBands      float64     `mapstructure:"score_above_bands" json:"score_above_bands"`
	LowConfidencePenalty float64     `mapstructure:"low_confidence_penalty" json:"low_confidence_penalty"`
}

// AffordabilityBand maps a payment-to-income ratio (percent) up to and including MaxRatio
type AffordabilityBand struct {
	MaxRatio float64 `mapstructure:"max_ratio" json:"max_ratio"`
	Score    float64 `mapstructure:"score" json:"score"`
	Rating   string  `mapstructure:"rating" json:"rating"`
}

// FinancingConfig drives the financing step
type FinancingConfig struct {
	DefaultInterestRate       float64             `mapstructure:"default_interest_rate" json:"default_interest_rate"`               // percent per year
	DefaultDownPaymentPercent float64             `mapstructure:"default_down_payment_percent" json:"default_down_payment_percent"` // percent of asking price
	LoanTermMonths            int                 `mapstructure:"loan_term_months" json:"loan_term_months"`
	AffordabilityBands        []AffordabilityBand `mapstructure:"affordability_bands" json:"affordability_bands"`
	AffordabilityAboveBands   AffordabilityBand   `mapstructure:"affordability_above_bands" json:"affordability_above_bands"`
	NeutralAffordabilityScore float64             `mapstructure:"neutral_affordability_score" json:"neutral_affordability_score"`
	CashAffordabilityScore    float64             `mapstructure:"cash_affordability_score" json:"cash_affordability_score"`
	ExcellentDealScore        float64             `mapstructure:"excellent_deal_score" json:"excellent_deal_score"`
	ExcellentDealMaxRate      float64             `mapstructure:"excellent_deal_max_rate" json:"excellent_deal_max_rate"`
	GoodDealScore             float64             `mapstructure:"good_deal_score" json:"good_deal_score"`
	GoodDealMaxRate           float64             `mapstructure:"good_deal_max_rate" json:"good_deal_max_rate"`
	BudgetStrainBelow         float64             `mapstructure:"budget_strain_below" json:"budget_strain_below"`
}

// RiskConfig drives the risk step
type RiskConfig struct {
	BaseScore              float64 `mapstructure:"base_score" json:"base_score"`
	HighMileage            int     `mapstructure:"high_mileage" json:"high_mileage"`
	HighMileagePenalty     float64 `mapstructure:"high_mileage_penalty" json:"high_mileage_penalty"`
	ElevatedMileage        int     `mapstructure:"elevated_mileage" json:"elevated_mileage"`
	ElevatedMileagePenalty float64 `mapstructure:"elevated_mileage_penalty" json:"elevated_mileage_penalty"`
	OldAgeYears            int     `mapstructure:"old_age_years" json:"old_age_years"`
	OldAgePenalty          float64 `mapstructure:"old_age_penalty" json:"old_age_penalty"`
	AgingYears             int     `mapstructure:"aging_years" json:"aging_years"`
	AgingPenalty           float64 `mapstructure:"aging_penalty" json:"aging_penalty"`
	UninspectedPenalty     float64 `mapstructure:"uninspected_penalty" json:"uninspected_penalty"`
	PricePremiumThreshold  float64 `mapstructure:"price_premium_threshold" json:"price_premium_threshold"`
	PricePremiumPenalty    float64 `mapstructure:"price_premium_penalty" json:"price_premium_penalty"`
	MinScore               float64 `mapstructure:"min_score" json:"min_score"`
	MaxScore               float64 `mapstructure:"max_score" json:"max_score"`
	LowRiskBelow           float64 `mapstructure:"low_risk_below" json:"low_risk_below"`
	ModerateRiskBelow      float64 `mapstructure:"moderate_risk_below" json:"moderate_risk_below"`
}

// FinalConfig drives the final aggregation
type FinalConfig struct {
	ConditionWeight        float64 `mapstructure:"condition_weight" json:"condition_weight"`
	PriceWeight            float64 `mapstructure:"price_weight" json:"price_weight"`
	RiskWeight             float64 `mapstructure:"risk_weight" json:"risk_weight"` // applied to (10 - risk score)
	HighlyRecommendedAbove float64 `mapstructure:"highly_recommended_above" json:"highly_recommended_above"`
	RecommendedAbove       float64 `mapstructure:"recommended_above" json:"recommended_above"`
	FairAbove              float64 `mapstructure:"fair_above" json:"fair_above"`
	MaxInsights            int     `mapstructure:"max_insights" json:"max_insights"`
}

// Default returns the built-in threshold table
func Default() EvaluationConfig {
	return EvaluationConfig{
		Version: DefaultVersion,
		Condition: ConditionConfig{
			FallbackScore:               7.0,
			FallbackNotes:               []string{"analysis unavailable"},
			FallbackRecommendInspection: true,
			MileageBands: []MileageBand{
				{Below: 30000, Adjustment: 1.0},
				{Below: 60000, Adjustment: 0.5},
				{Below: 100000, Adjustment: 0},
				{Below: 150000, Adjustment: -0.5},
			},
			MileageAdjustmentBeyondBands: -1.0,
			KeywordBands: []KeywordBand{
				{Keywords: []string{"excellent", "like new"}, Adjustment: 1.5},
				{Keywords: []string{"very good", "good"}, Adjustment: 0.5},
				{Keywords: []string{"fair"}, Adjustment: -0.5},
				{Keywords: []string{"poor"}, Adjustment: -1.5},
			},
		},
		Price: PriceConfig{
			Bands: []ScoreBand{
				{UpTo: -15, Score: 9.5},
				{UpTo: -10, Score: 9.0},
				{UpTo: -5, Score: 8.0},
				{UpTo: 0, Score: 7.0},
				{UpTo: 5, Score: 6.0},
				{UpTo: 10, Score: 5.0},
				{UpTo: 15, Score: 4.0},
			},
			ScoreAboveBands:      3.0,
			LowConfidencePenalty: 0.3,
		},
		Financing: FinancingConfig{
			DefaultInterestRate:       5.5,
			DefaultDownPaymentPercent: 20,
			LoanTermMonths:            60,
			AffordabilityBands: []AffordabilityBand{
				{MaxRatio: 10, Score: 9.0, Rating: "excellent"},
				{MaxRatio: 15, Score: 7.0, Rating: "good"},
				{MaxRatio: 20, Score: 5.0, Rating: "moderate"},
			},
			AffordabilityAboveBands:   AffordabilityBand{Score: 3.0, Rating: "warning"},
			NeutralAffordabilityScore: 5.0,
			CashAffordabilityScore:    10.0,
			ExcellentDealScore:        8.0,
			ExcellentDealMaxRate:      4.0,
			GoodDealScore:             6.5,
			GoodDealMaxRate:           5.0,
			BudgetStrainBelow:         5.0,
		},
		Risk: RiskConfig{
			BaseScore:              5.0,
			HighMileage:            100000,
			HighMileagePenalty:     1.5,
			ElevatedMileage:        75000,
			ElevatedMileagePenalty: 0.5,
			OldAgeYears:            10,
			OldAgePenalty:          1.0,
			AgingYears:             7,
			AgingPenalty:           0.5,
			UninspectedPenalty:     1.5,
			PricePremiumThreshold:  2000,
			PricePremiumPenalty:    1.0,
			MinScore:               1.0,
			MaxScore:               10.0,
			LowRiskBelow:           4.0,
			ModerateRiskBelow:      7.0,
		},
		Final: FinalConfig{
			ConditionWeight:        0.2,
			PriceWeight:            0.5,
			RiskWeight:             0.3,
			HighlyRecommendedAbove: 8.0,
			RecommendedAbove:       6.5,
			FairAbove:              5.0,
			MaxInsights:            5,
		},
	}
}

// Clone returns a deep copy sharing no slices with c
func (c EvaluationConfig) Clone() EvaluationConfig {
	out := c
	out.Condition.FallbackNotes = append([]string(nil), c.Condition.FallbackNotes...)
	out.Condition.MileageBands = append([]MileageBand(nil), c.Condition.MileageBands...)
	out.Condition.KeywordBands = make([]KeywordBand, len(c.Condition.KeywordBands))
	for i, band := range c.Condition.KeywordBands {
		out.Condition.KeywordBands[i] = KeywordBand{
			Keywords:   append([]string(nil), band.Keywords...),
			Adjustment: band.Adjustment,
		}
	}
	out.Price.Bands = append([]ScoreBand(nil), c.Price.Bands...)
	out.Financing.AffordabilityBands = append([]AffordabilityBand(nil), c.Financing.AffordabilityBands...)
	return out
}

// Validate checks that the table is internally consistent
func (c EvaluationConfig) Validate() error {
	if c.Version == "" {
		return invalid("version: must be specified")
	}

	if err := c.Condition.validate(); err != nil {
		return err
	}
	if err := c.Price.validate(); err != nil {
		return err
	}
	if err := c.Financing.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	return c.Final.validate()
}

func (c ConditionConfig) validate() error {
	if !inScoreRange(c.FallbackScore) {
		return invalid("condition.fallback_score: must be within [0, 10]")
	}
	if len(c.FallbackNotes) == 0 {
		return invalid("condition.fallback_notes: must not be empty")
	}
	if !sort.SliceIsSorted(c.MileageBands, func(i, j int) bool {
		return c.MileageBands[i].Below < c.MileageBands[j].Below
	}) {
		return invalid("condition.mileage_bands: must be sorted by ascending mileage")
	}
	for i, band := range c.KeywordBands {
		if len(band.Keywords) == 0 {
			return invalid(fmt.Sprintf("condition.keyword_bands[%d]: keywords must not be empty", i))
		}
	}
	return nil
}

func (c PriceConfig) validate() error {
	if len(c.Bands) == 0 {
		return invalid("price.bands: must not be empty")
	}
	for i, band := range c.Bands {
		if !inScoreRange(band.Score) {
			return invalid(fmt.Sprintf("price.bands[%d].score: must be within [0, 10]", i))
		}
		if i > 0 && band.UpTo <= c.Bands[i-1].UpTo {
			return invalid("price.bands: must be sorted by ascending percent difference")
		}
	}
	if !inScoreRange(c.ScoreAboveBands) {
		return invalid("price.score_above_bands: must be within [0, 10]")
	}
	if c.LowConfidencePenalty < 0 {
		return invalid("price.low_confidence_penalty: must not be negative")
	}
	return nil
}

func (c FinancingConfig) validate() error {
	if c.LoanTermMonths <= 0 {
		return invalid("financing.loan_term_months: must be positive")
	}
	if c.DefaultInterestRate < 0 {
		return invalid("financing.default_interest_rate: must not be negative")
	}
	if c.DefaultDownPaymentPercent < 0 || c.DefaultDownPaymentPercent > 100 {
		return invalid("financing.default_down_payment_percent: must be within [0, 100]")
	}
	for i, band := range c.AffordabilityBands {
		if i > 0 && band.MaxRatio <= c.AffordabilityBands[i-1].MaxRatio {
			return invalid("financing.affordability_bands: must be sorted by ascending ratio")
		}
	}
	if c.GoodDealScore > c.ExcellentDealScore {
		return invalid("financing.good_deal_score: must not exceed excellent_deal_score")
	}
	return nil
}

func (c RiskConfig) validate() error {
	if c.MinScore > c.MaxScore {
		return invalid("risk.min_score: must not exceed max_score")
	}
	if c.ElevatedMileage > c.HighMileage {
		return invalid("risk.elevated_mileage: must not exceed high_mileage")
	}
	if c.AgingYears > c.OldAgeYears {
		return invalid("risk.aging_years: must not exceed old_age_years")
	}
	if c.LowRiskBelow > c.ModerateRiskBelow {
		return invalid("risk.low_risk_below: must not exceed moderate_risk_below")
	}
	return nil
}

func (c FinalConfig) validate() error {
	sum := c.ConditionWeight + c.PriceWeight + c.RiskWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return invalid(fmt.Sprintf("final weights: must sum to 1.0, got %.4f", sum))
	}
	if c.ConditionWeight < 0 || c.PriceWeight < 0 || c.RiskWeight < 0 {
		return invalid("final weights: must not be negative")
	}
	if !(c.HighlyRecommendedAbove >= c.RecommendedAbove && c.RecommendedAbove >= c.FairAbove) {
		return invalid("final bands: must be in descending order")
	}
	if c.MaxInsights < 0 {
		return invalid("final.max_insights: must not be negative")
	}
	return nil
}

func inScoreRange(score float64) bool {
	return score >= 0 && score <= 10
}

func invalid(msg string) error {
	return fmt.Errorf("%w: evaluation config %s", domain.ErrValidation, msg)
}
