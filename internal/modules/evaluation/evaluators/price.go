package evaluators

import (
	"fmt"
	"math"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
)

// Fair value sources
const (
	FairValueSourceMarket = "market"
	// FairValueSourceAskingPrice marks an estimate used when no market quote was available
	FairValueSourceAskingPrice = "asking_price"
)

// bandEpsilon absorbs float noise at band edges (e.g. exactly +5%)
const bandEpsilon = 1e-9

// PriceInput is the asking price against a fair value obtained by the caller
type PriceInput struct {
	AskingPrice   float64
	FairValue     float64
	LowConfidence bool
	Source        string
	// Notes are carried into the assessment (e.g. why the fair value is an estimate)
	Notes []string
}

// PriceAssessment is the stored result of the price step
type PriceAssessment struct {
	Notes           []string `json:"notes,omitempty"`
	FairValueSource string   `json:"fair_value_source"`
	FairValue       float64  `json:"fair_value"`
	Score           float64  `json:"score"`
	PercentDiff     float64  `json:"percent_diff"`
	LowConfidence   bool     `json:"low_confidence"`
}

// PriceEvaluator bands the asking price premium over fair value.
// It never fetches market data itself.
type PriceEvaluator struct {
	cfg config.PriceConfig
}

// NewPriceEvaluator creates a price evaluator
func NewPriceEvaluator(cfg config.EvaluationConfig) *PriceEvaluator {
	return &PriceEvaluator{cfg: cfg.Clone().Price}
}

// Evaluate scores in. A non-positive fair value or asking price is a validation error.
func (e *PriceEvaluator) Evaluate(in PriceInput) (PriceAssessment, error) {
	if in.FairValue <= 0 {
		return PriceAssessment{}, fmt.Errorf("%w: fair value must be positive, got %.2f", domain.ErrValidation, in.FairValue)
	}
	if in.AskingPrice <= 0 {
		return PriceAssessment{}, fmt.Errorf("%w: asking price must be positive, got %.2f", domain.ErrValidation, in.AskingPrice)
	}

	percentDiff := PercentDiff(in.AskingPrice, in.FairValue)
	score := e.bandScore(percentDiff)
	if in.LowConfidence {
		score = math.Max(0, score-e.cfg.LowConfidencePenalty)
	}

	source := in.Source
	if source == "" {
		source = FairValueSourceMarket
	}

	return PriceAssessment{
		FairValueSource: source,
		FairValue:       in.FairValue,
		Score:           round2(score),
		PercentDiff:     round2(percentDiff),
		LowConfidence:   in.LowConfidence,
		Notes:           in.Notes,
	}, nil
}

func (e *PriceEvaluator) bandScore(percentDiff float64) float64 {
	for _, band := range e.cfg.Bands {
		if percentDiff <= band.UpTo+bandEpsilon {
			return band.Score
		}
	}
	return e.cfg.ScoreAboveBands
}

// PercentDiff is the asking premium over fair value, in percent
func PercentDiff(askingPrice, fairValue float64) float64 {
	return (askingPrice - fairValue) * 100 / fairValue
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
