package evaluators

import (
	"testing"

	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/stretchr/testify/assert"
)

func TestMileageAdjustment_Bands(t *testing.T) {
	cfg := config.Default().Condition

	testCases := []struct {
		mileage  int
		expected float64
	}{
		{0, 1.0},
		{29999, 1.0},
		{30000, 0.5},
		{59999, 0.5},
		{60000, 0},
		{99999, 0},
		{100000, -0.5},
		{149999, -0.5},
		{150000, -1.0},
		{400000, -1.0},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, MileageAdjustment(cfg, tc.mileage), "mileage %d", tc.mileage)
	}
}

func TestConditionKeywordAdjustment_Bands(t *testing.T) {
	cfg := config.Default().Condition

	testCases := []struct {
		description string
		expected    float64
	}{
		{"Excellent, garage kept", 1.5},
		{"like new interior", 1.5},
		{"Very good overall", 0.5},
		{"good", 0.5},
		{"fair, some rust on the sills", -0.5},
		{"POOR - needs a clutch", -1.5},
		{"runs and drives", 0},
		{"", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, ConditionKeywordAdjustment(cfg, tc.description))
		})
	}
}
