package evaluation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aristath/dealeval/internal/modules/evaluation/evaluators"
	testingpkg "github.com/aristath/dealeval/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepCacheKey_Format(t *testing.T) {
	deal := testingpkg.NewDealFixture()
	results := &Results{UserInputs: map[string]any{InputVIN: testingpkg.FixtureVIN}}

	key, err := stepCacheKey(deal, StepVehicleCondition, results, "v1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "deal:deal-1:vehicle_condition:"))
	assert.Len(t, strings.TrimPrefix(key, "deal:deal-1:vehicle_condition:"), 64)
}

func TestStepCacheKey_StableAcrossMapOrder(t *testing.T) {
	deal := testingpkg.NewDealFixture()
	a := &Results{UserInputs: map[string]any{InputVIN: "X", InputFinancingType: "cash", "notes": "n", "extra": 1.0}}
	b := &Results{UserInputs: map[string]any{"extra": 1.0, "notes": "n", InputFinancingType: "cash", InputVIN: "X"}}

	keyA, err := stepCacheKey(deal, StepFinancing, a, "v1")
	require.NoError(t, err)
	keyB, err := stepCacheKey(deal, StepFinancing, b, "v1")
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB)
}

func TestStepCacheKey_ChangesWithInputs(t *testing.T) {
	deal := testingpkg.NewDealFixture()
	base := &Results{UserInputs: map[string]any{InputFinancingType: "cash"}}
	require.NoError(t, base.complete(StepVehicleCondition, evaluators.ConditionAssessment{ConditionScore: 7}))
	require.NoError(t, base.complete(StepPrice, evaluators.PriceAssessment{Score: 5}))

	key, err := stepCacheKey(deal, StepFinancing, base, "v1")
	require.NoError(t, err)

	otherInputs := &Results{UserInputs: map[string]any{InputFinancingType: "loan"}, VehicleCondition: base.VehicleCondition, Price: base.Price}
	k, err := stepCacheKey(deal, StepFinancing, otherInputs, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, key, k, "user inputs")

	otherPrior := &Results{UserInputs: base.UserInputs, VehicleCondition: base.VehicleCondition}
	require.NoError(t, otherPrior.complete(StepPrice, evaluators.PriceAssessment{Score: 9}))
	k, err = stepCacheKey(deal, StepFinancing, otherPrior, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, key, k, "prior results")

	k, err = stepCacheKey(deal, StepFinancing, base, "v2")
	require.NoError(t, err)
	assert.NotEqual(t, key, k, "config version")

	changed := testingpkg.NewDealFixture()
	changed.AskingPrice = 24000
	k, err = stepCacheKey(changed, StepFinancing, base, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, key, k, "deal facts")
}

func TestStepCacheKey_StableAcrossStorageRoundTrip(t *testing.T) {
	deal := testingpkg.NewDealFixture()

	// Request bodies decode numbers as json.Number
	var body struct {
		Answers map[string]any `json:"answers"`
	}
	decoder := json.NewDecoder(strings.NewReader(`{"answers": {"financing_type": "cash", "trade_in_value": 4200, "extras": {"warranty_years": 3}}}`))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&body))

	normalized, err := normalizeAnswers(body.Answers)
	require.NoError(t, err)

	var fresh Results
	fresh.mergeInputs(normalized)
	freshKey, err := stepCacheKey(deal, StepFinancing, &fresh, "v1")
	require.NoError(t, err)

	data, err := json.Marshal(fresh)
	require.NoError(t, err)
	var reloaded Results
	require.NoError(t, json.Unmarshal(data, &reloaded))
	reloadedKey, err := stepCacheKey(deal, StepFinancing, &reloaded, "v1")
	require.NoError(t, err)

	assert.Equal(t, freshKey, reloadedKey)
}
