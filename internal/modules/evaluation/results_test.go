package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/aristath/dealeval/internal/modules/evaluation/evaluators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_PreservesUnknownKeys(t *testing.T) {
	stored := `{
		"vehicle_condition": {"completed": true, "questions": [], "assessment": {"condition_score": 8.5, "condition_notes": ["clean"], "recommended_inspection": false, "ai_assisted": true, "mileage_adjustment": 1, "condition_adjustment": 0.5}},
		"user_inputs": {"vin": "1HGCM82633A004352", "dealer_notes": "one owner"},
		"negotiation": {"rounds": 2, "last_offer": 24100}
	}`

	var results Results
	require.NoError(t, json.Unmarshal([]byte(stored), &results))

	require.True(t, results.Completed(StepVehicleCondition))
	assert.Equal(t, 8.5, results.VehicleCondition.Assessment.ConditionScore)
	assert.Equal(t, "one owner", results.UserInputs["dealer_notes"])
	require.Contains(t, results.Extra, "negotiation")

	out, err := json.Marshal(results)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.JSONEq(t, `{"rounds": 2, "last_offer": 24100}`, string(doc["negotiation"]))
	assert.Contains(t, doc, "vehicle_condition")
	assert.Contains(t, doc, "user_inputs")
	assert.NotContains(t, doc, "price")
}

func TestResults_EmptyDocument(t *testing.T) {
	out, err := json.Marshal(Results{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_inputs": {}}`, string(out))

	var results Results
	require.NoError(t, json.Unmarshal([]byte(`{}`), &results))
	assert.False(t, results.Completed(StepVehicleCondition))
	assert.Nil(t, results.Questions(StepVehicleCondition))
	assert.Nil(t, results.Assessment(StepVehicleCondition))
}

func TestResults_RejectsMalformedEntry(t *testing.T) {
	var results Results
	err := json.Unmarshal([]byte(`{"price": {"completed": "yes"}}`), &results)
	assert.Error(t, err)
}

func TestResults_CompletedEntriesAreAppendOnly(t *testing.T) {
	var results Results
	require.NoError(t, results.complete(StepPrice, evaluators.PriceAssessment{Score: 7}))

	err := results.complete(StepPrice, evaluators.PriceAssessment{Score: 3})
	assert.ErrorIs(t, err, errEntryOverwrite)
	err = results.block(StepPrice, []string{"again?"})
	assert.ErrorIs(t, err, errEntryOverwrite)

	assert.Equal(t, 7.0, results.Price.Assessment.Score)
}

func TestResults_CompleteRejectsWrongAssessmentType(t *testing.T) {
	var results Results
	err := results.complete(StepRisk, evaluators.PriceAssessment{})
	assert.Error(t, err)
	assert.False(t, results.Completed(StepRisk))
}

func TestResults_CompletedEntryShape(t *testing.T) {
	var results Results
	require.NoError(t, results.complete(StepRisk, evaluators.RiskAssessment{RiskScore: 4, RiskFactors: []string{}}))

	out, err := json.Marshal(results)
	require.NoError(t, err)

	var doc struct {
		Risk struct {
			Completed  bool            `json:"completed"`
			Questions  []string        `json:"questions"`
			Assessment json.RawMessage `json:"assessment"`
		} `json:"risk"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.True(t, doc.Risk.Completed)
	assert.NotNil(t, doc.Risk.Questions)
	assert.Empty(t, doc.Risk.Questions)
	assert.NotEmpty(t, doc.Risk.Assessment)
}

func TestResults_MergeInputsNeverDeletes(t *testing.T) {
	var results Results
	results.mergeInputs(map[string]any{InputVIN: "A", InputFinancingType: "cash"})
	results.mergeInputs(map[string]any{InputFinancingType: "loan"})
	results.mergeInputs(nil)

	assert.Equal(t, map[string]any{InputVIN: "A", InputFinancingType: "loan"}, results.UserInputs)
}
