package evaluators

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Final recommendations
const (
	RecommendationHighlyRecommended = "highly_recommended"
	RecommendationRecommended       = "recommended"
	RecommendationFair              = "fair"
	RecommendationNotRecommended    = "not_recommended"
)

// FinalInput collects the prior step results the aggregation reads
type FinalInput struct {
	EstimatedTotalCost *float64
	VehicleMake        string
	VehicleModel       string
	RiskFactors        []string
	ConditionNotes     []string
	FinancingReasoning []string
	VehicleYear        int
	ConditionScore     float64
	PriceScore         float64
	RiskScore          float64
}

// FinalAssessment is the stored result of the final step
type FinalAssessment struct {
	EstimatedTotalCost *float64 `json:"estimated_total_cost"`
	Recommendation     string   `json:"recommendation"`
	Summary            string   `json:"summary"`
	Insights           []string `json:"insights"`
	FinalScore         float64  `json:"final_score"`
	AIAssisted         bool     `json:"ai_assisted"`
}

type narrativeResponse struct {
	Summary string `json:"summary" validate:"required"`
}

// FinalAggregator combines step scores into one weighted recommendation
type FinalAggregator struct {
	provider domain.AssessmentProvider
	cfg      config.FinalConfig
	log      zerolog.Logger
}

// NewFinalAggregator creates an aggregator. provider only supplies narrative text and may be nil.
func NewFinalAggregator(provider domain.AssessmentProvider, cfg config.EvaluationConfig, log zerolog.Logger) *FinalAggregator {
	return &FinalAggregator{
		provider: provider,
		cfg:      cfg.Clone().Final,
		log:      log.With().Str("evaluator", "final").Logger(),
	}
}

// Score is the weighted final score, before rounding
func (a *FinalAggregator) Score(conditionScore, priceScore, riskScore float64) float64 {
	weights := []float64{a.cfg.ConditionWeight, a.cfg.PriceWeight, a.cfg.RiskWeight}
	scores := []float64{conditionScore, priceScore, 10 - riskScore}
	return floats.Dot(weights, scores)
}

// Recommendation bands a final score
func (a *FinalAggregator) Recommendation(finalScore float64) string {
	switch {
	case finalScore >= a.cfg.HighlyRecommendedAbove-bandEpsilon:
		return RecommendationHighlyRecommended
	case finalScore >= a.cfg.RecommendedAbove-bandEpsilon:
		return RecommendationRecommended
	case finalScore >= a.cfg.FairAbove-bandEpsilon:
		return RecommendationFair
	default:
		return RecommendationNotRecommended
	}
}

// Aggregate never fails; the narrative falls back to a deterministic summary
func (a *FinalAggregator) Aggregate(ctx context.Context, in FinalInput) FinalAssessment {
	score := a.Score(in.ConditionScore, in.PriceScore, in.RiskScore)

	result := FinalAssessment{
		FinalScore:         round2(score),
		Recommendation:     a.Recommendation(score),
		Insights:           a.insights(in),
		EstimatedTotalCost: in.EstimatedTotalCost,
	}

	summary, err := a.narrative(ctx, in, result)
	if err != nil {
		a.log.Warn().Err(err).Msg("Narrative unavailable, using deterministic summary")
		summary = fallbackSummary(in, result)
	} else {
		result.AIAssisted = true
	}
	result.Summary = summary

	return result
}

// insights draws up to MaxInsights distinct talking points: risk factors, then condition
// notes, then financing reasoning
func (a *FinalAggregator) insights(in FinalInput) []string {
	out := []string{}
	seen := make(map[string]bool)

	for _, group := range [][]string{in.RiskFactors, in.ConditionNotes, in.FinancingReasoning} {
		for _, item := range group {
			item = strings.TrimSpace(item)
			if item == "" || seen[item] {
				continue
			}
			if len(out) >= a.cfg.MaxInsights {
				return out
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

func (a *FinalAggregator) narrative(ctx context.Context, in FinalInput, result FinalAssessment) (string, error) {
	if a.provider == nil {
		return "", domain.ErrProviderUnavailable
	}

	raw, err := a.provider.Assess(ctx, domain.PromptFinalNarrative, map[string]any{
		"make":            in.VehicleMake,
		"model":           in.VehicleModel,
		"year":            in.VehicleYear,
		"final_score":     result.FinalScore,
		"recommendation":  result.Recommendation,
		"condition_score": in.ConditionScore,
		"price_score":     in.PriceScore,
		"risk_score":      in.RiskScore,
		"insights":        result.Insights,
	})
	if err != nil {
		return "", fmt.Errorf("final narrative prompt failed: %w", err)
	}

	var resp narrativeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("malformed final narrative response: %w", err)
	}
	if err := validate.Struct(&resp); err != nil {
		return "", fmt.Errorf("invalid final narrative response: %w", err)
	}
	return strings.TrimSpace(resp.Summary), nil
}

func fallbackSummary(in FinalInput, result FinalAssessment) string {
	vehicle := strings.TrimSpace(fmt.Sprintf("%d %s %s", in.VehicleYear, in.VehicleMake, in.VehicleModel))
	summary := fmt.Sprintf("The %s scores %.1f/10 overall (%s): condition %.1f, price %.1f, risk %.1f.",
		vehicle, result.FinalScore, strings.ReplaceAll(result.Recommendation, "_", " "),
		in.ConditionScore, in.PriceScore, in.RiskScore)
	if result.EstimatedTotalCost != nil {
		summary += fmt.Sprintf(" Estimated total cost is $%s.", dollars(*result.EstimatedTotalCost))
	}
	return summary
}
