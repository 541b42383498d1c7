package evaluators

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	testingpkg "github.com/aristath/dealeval/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func conditionInput() ConditionInput {
	return ConditionInput{
		Make:                 "Honda",
		Model:                "Accord",
		Year:                 2022,
		VIN:                  testingpkg.FixtureVIN,
		Mileage:              15000,
		ConditionDescription: "excellent",
	}
}

func TestConditionEvaluator_UsesProviderResult(t *testing.T) {
	provider := new(testingpkg.MockAssessmentProvider)
	provider.On("Assess", mock.Anything, domain.PromptVehicleCondition, mock.MatchedBy(func(vars map[string]any) bool {
		return vars["vin"] == testingpkg.FixtureVIN &&
			vars["mileage_adjustment"] == 1.0 &&
			vars["condition_adjustment"] == 1.5
	})).Return(json.RawMessage(`{
		"condition_score": 8.5,
		"condition_notes": ["Clean history", "Original paint"],
		"recommended_inspection": false
	}`), nil)

	e := NewConditionEvaluator(provider, config.Default(), zerolog.Nop())
	got := e.Evaluate(context.Background(), conditionInput())

	assert.Equal(t, 8.5, got.ConditionScore)
	assert.Equal(t, []string{"Clean history", "Original paint"}, got.ConditionNotes)
	assert.False(t, got.RecommendedInspection)
	assert.True(t, got.AIAssisted)
	assert.Equal(t, 1.0, got.MileageAdjustment)
	assert.Equal(t, 1.5, got.ConditionAdjustment)
	provider.AssertExpectations(t)
}

func TestConditionEvaluator_FallbackOnProviderFailure(t *testing.T) {
	testCases := []struct {
		name     string
		response json.RawMessage
		err      error
	}{
		{"provider error", nil, errors.New("timeout")},
		{"malformed json", json.RawMessage(`{"condition_score":`), nil},
		{"score out of range", json.RawMessage(`{"condition_score": 12, "condition_notes": [], "recommended_inspection": false}`), nil},
		{"missing score", json.RawMessage(`{"condition_notes": ["ok"], "recommended_inspection": false}`), nil},
		{"missing inspection flag", json.RawMessage(`{"condition_score": 6}`), nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			provider := new(testingpkg.MockAssessmentProvider)
			provider.On("Assess", mock.Anything, domain.PromptVehicleCondition, mock.Anything).Return(tc.response, tc.err)

			e := NewConditionEvaluator(provider, config.Default(), zerolog.Nop())
			got := e.Evaluate(context.Background(), conditionInput())

			assert.Equal(t, 7.0, got.ConditionScore)
			assert.Equal(t, []string{"analysis unavailable"}, got.ConditionNotes)
			assert.True(t, got.RecommendedInspection)
			assert.False(t, got.AIAssisted)
		})
	}
}

func TestConditionEvaluator_NilProviderUsesFallback(t *testing.T) {
	e := NewConditionEvaluator(nil, config.Default(), zerolog.Nop())
	got := e.Evaluate(context.Background(), conditionInput())

	assert.Equal(t, 7.0, got.ConditionScore)
	assert.True(t, got.RecommendedInspection)
	// Adjustments are reported even without AI assistance
	assert.Equal(t, 1.0, got.MileageAdjustment)
	assert.Equal(t, 1.5, got.ConditionAdjustment)
}

func TestConditionEvaluator_FallbackDoesNotShareConfigSlices(t *testing.T) {
	cfg := config.Default()
	e := NewConditionEvaluator(nil, cfg, zerolog.Nop())

	cfg.Condition.FallbackNotes[0] = "mutated after construction"
	got := e.Fallback()
	got.ConditionNotes[0] = "mutated result"

	assert.Equal(t, []string{"analysis unavailable"}, e.Fallback().ConditionNotes)
}
