// Package evaluators implements the stateless scoring units of the deal evaluation pipeline.
package evaluators

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConditionInput carries the vehicle facts the condition step needs
type ConditionInput struct {
	Make                 string
	Model                string
	VIN                  string
	ConditionDescription string
	Year                 int
	Mileage              int
}

// ConditionAssessment is the stored result of the condition step
type ConditionAssessment struct {
	ConditionNotes        []string `json:"condition_notes"`
	ConditionScore        float64  `json:"condition_score"`
	MileageAdjustment     float64  `json:"mileage_adjustment"`
	ConditionAdjustment   float64  `json:"condition_adjustment"`
	RecommendedInspection bool     `json:"recommended_inspection"`
	AIAssisted            bool     `json:"ai_assisted"`
}

// conditionResponse is the structured result expected from the vehicle_condition prompt
type conditionResponse struct {
	ConditionScore        *float64 `json:"condition_score" validate:"required,gte=0,lte=10"`
	ConditionNotes        []string `json:"condition_notes" validate:"dive,required"`
	RecommendedInspection *bool    `json:"recommended_inspection" validate:"required"`
}

// ConditionEvaluator scores vehicle condition with AI assistance and a fixed fallback
type ConditionEvaluator struct {
	provider domain.AssessmentProvider
	cfg      config.ConditionConfig
	log      zerolog.Logger
}

// NewConditionEvaluator creates a condition evaluator. provider may be nil, in which case
// every evaluation uses the fallback assessment.
func NewConditionEvaluator(provider domain.AssessmentProvider, cfg config.EvaluationConfig, log zerolog.Logger) *ConditionEvaluator {
	return &ConditionEvaluator{
		provider: provider,
		cfg:      cfg.Clone().Condition,
		log:      log.With().Str("evaluator", "condition").Logger(),
	}
}

// Evaluate never fails: provider errors and malformed responses produce the fallback assessment
func (e *ConditionEvaluator) Evaluate(ctx context.Context, in ConditionInput) ConditionAssessment {
	mileageAdj := MileageAdjustment(e.cfg, in.Mileage)
	conditionAdj := ConditionKeywordAdjustment(e.cfg, in.ConditionDescription)

	assessment, err := e.assess(ctx, in, mileageAdj, conditionAdj)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("vin", in.VIN).
			Msg("Condition assessment unavailable, using fallback")
		assessment = e.Fallback()
	}

	assessment.MileageAdjustment = mileageAdj
	assessment.ConditionAdjustment = conditionAdj
	return assessment
}

// Fallback returns the neutral assessment used when AI assistance is unavailable
func (e *ConditionEvaluator) Fallback() ConditionAssessment {
	return ConditionAssessment{
		ConditionScore:        e.cfg.FallbackScore,
		ConditionNotes:        append([]string(nil), e.cfg.FallbackNotes...),
		RecommendedInspection: e.cfg.FallbackRecommendInspection,
		AIAssisted:            false,
	}
}

func (e *ConditionEvaluator) assess(ctx context.Context, in ConditionInput, mileageAdj, conditionAdj float64) (ConditionAssessment, error) {
	if e.provider == nil {
		return ConditionAssessment{}, domain.ErrProviderUnavailable
	}

	raw, err := e.provider.Assess(ctx, domain.PromptVehicleCondition, map[string]any{
		"make":                  in.Make,
		"model":                 in.Model,
		"year":                  in.Year,
		"vin":                   in.VIN,
		"mileage":               in.Mileage,
		"condition_description": in.ConditionDescription,
		"mileage_adjustment":    mileageAdj,
		"condition_adjustment":  conditionAdj,
	})
	if err != nil {
		return ConditionAssessment{}, fmt.Errorf("vehicle condition prompt failed: %w", err)
	}

	var resp conditionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ConditionAssessment{}, fmt.Errorf("malformed vehicle condition response: %w", err)
	}
	if err := validate.Struct(&resp); err != nil {
		return ConditionAssessment{}, fmt.Errorf("invalid vehicle condition response: %w", err)
	}

	notes := resp.ConditionNotes
	if notes == nil {
		notes = []string{}
	}

	return ConditionAssessment{
		ConditionScore:        *resp.ConditionScore,
		ConditionNotes:        notes,
		RecommendedInspection: *resp.RecommendedInspection,
		AIAssisted:            true,
	}, nil
}
