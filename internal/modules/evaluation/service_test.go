package evaluation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/aristath/dealeval/internal/modules/evaluation/evaluators"
	testingpkg "github.com/aristath/dealeval/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

var marketQuote = testingpkg.StaticMarketData{
	Quote: domain.FairValueQuote{FairValue: 23800, Confidence: domain.ConfidenceHigh, Source: "test"},
}

type serviceFixture struct {
	service *Service
	repo    *Repository
	deals   *testingpkg.MemoryDealStore
}

func newServiceFixture(t *testing.T, provider domain.AssessmentProvider, market domain.MarketDataProvider, cache ResultCache) serviceFixture {
	t.Helper()

	repo := newTestRepository(t)
	deals := testingpkg.NewMemoryDealStore(testingpkg.NewDealFixtures()...)
	cfg := config.Default()
	orchestrator := NewOrchestrator(repo, NewEvaluators(cfg, provider, fixedNow, zerolog.Nop()),
		market, cache, time.Hour, configID(t, cfg), zerolog.Nop())

	return serviceFixture{
		service: NewService(repo, deals, orchestrator, zerolog.Nop()),
		repo:    repo,
		deals:   deals,
	}
}

func (f serviceFixture) process(t *testing.T, rec *Record, answers map[string]any) *ProcessResponse {
	t.Helper()
	resp, err := f.service.ProcessStep(context.Background(), ProcessRequest{
		EvaluationID: rec.ID,
		DealID:       rec.DealID,
		Answers:      answers,
	})
	require.NoError(t, err)
	return resp
}

func TestService_FallbackRunCompletes(t *testing.T) {
	provider := &testingpkg.FailingAssessmentProvider{}
	f := newServiceFixture(t, provider, marketQuote, nil)
	ctx := context.Background()

	rec, created, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, testingpkg.FixtureVIN, rec.Results.UserInputs[InputVIN])

	// VIN came from the deal, only the description is asked for
	resp := f.process(t, rec, nil)
	assert.Equal(t, StatusAwaitingInput, resp.Status)
	assert.Equal(t, StepVehicleCondition, resp.CurrentStep)
	assert.False(t, resp.StepResult.Completed)
	assert.Equal(t, []string{questionText[InputConditionDescription]}, resp.StepResult.Questions)

	resp = f.process(t, rec, map[string]any{InputConditionDescription: "good, small dent on rear bumper"})
	assert.Equal(t, StatusAnalyzing, resp.Status)
	assert.Equal(t, StepPrice, resp.CurrentStep)
	condition := resp.ResultJSON.VehicleCondition.Assessment
	assert.Equal(t, 7.0, condition.ConditionScore)
	assert.Equal(t, []string{"analysis unavailable"}, condition.ConditionNotes)
	assert.True(t, condition.RecommendedInspection)
	assert.False(t, condition.AIAssisted)
	assert.Equal(t, 0.5, condition.ConditionAdjustment)
	assert.Equal(t, 1.0, condition.MileageAdjustment)

	resp = f.process(t, rec, nil)
	assert.Equal(t, StepFinancing, resp.CurrentStep)
	price := resp.ResultJSON.Price.Assessment
	assert.Equal(t, 5.04, price.PercentDiff)
	assert.Equal(t, 5.0, price.Score)

	resp = f.process(t, rec, nil)
	assert.Equal(t, StatusAwaitingInput, resp.Status)
	assert.Equal(t, StepFinancing, resp.CurrentStep)

	resp = f.process(t, rec, map[string]any{InputFinancingType: "cash"})
	assert.Equal(t, StepRisk, resp.CurrentStep)
	financing := resp.ResultJSON.Financing.Assessment
	assert.Equal(t, 25000.0, financing.TotalCost)
	assert.Equal(t, 10.0, financing.AffordabilityScore)
	assert.Equal(t, evaluators.RecommendEither, financing.Recommendation)

	resp = f.process(t, rec, nil)
	assert.Equal(t, StepFinal, resp.CurrentStep)
	risk := resp.ResultJSON.Risk.Assessment
	assert.Equal(t, 6.5, risk.RiskScore)
	assert.Equal(t, evaluators.RiskModerateRecommendation, risk.Recommendation)

	resp = f.process(t, rec, nil)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, StepFinal, resp.CurrentStep)
	final := resp.ResultJSON.Final.Assessment
	assert.InDelta(t, 4.95, final.FinalScore, 1e-9)
	assert.Equal(t, evaluators.RecommendationNotRecommended, final.Recommendation)
	require.NotNil(t, final.EstimatedTotalCost)
	assert.Equal(t, 25000.0, *final.EstimatedTotalCost)
	assert.False(t, final.AIAssisted)
	assert.Equal(t, "Pre-purchase inspection recommended but not completed", final.Insights[0])

	stored, err := f.service.Get(ctx, "deal-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	for _, step := range Steps {
		assert.True(t, stored.Results.Completed(step), step)
	}

	// condition and narrative prompts were both attempted
	assert.Equal(t, 2, provider.Calls())
}

func TestService_CompletedRecordRejectsCalls(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	f.process(t, rec, nil)
	f.process(t, rec, map[string]any{InputConditionDescription: "fair", InputFinancingType: "cash"})
	for i := 0; i < 4; i++ {
		f.process(t, rec, nil)
	}

	_, err = f.service.ProcessStep(ctx, ProcessRequest{EvaluationID: rec.ID, DealID: "deal-1"})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.service.ProcessStep(ctx, ProcessRequest{
		EvaluationID: rec.ID,
		DealID:       "deal-1",
		Answers:      map[string]any{InputFinancingType: "loan"},
	})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	// a completed record no longer blocks a fresh start
	next, created, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, rec.ID, next.ID)
}

func TestService_AnswersWhileAnalyzingAreIllegal(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)

	_, err = f.service.ProcessStep(ctx, ProcessRequest{
		EvaluationID: rec.ID,
		DealID:       "deal-1",
		Answers:      map[string]any{InputConditionDescription: "good"},
	})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	stored, err := f.repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
}

func TestService_EmptyAnswersCountAsNone(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)

	resp := f.process(t, rec, map[string]any{})
	assert.Equal(t, StatusAwaitingInput, resp.Status)
}

func TestService_DealMismatch(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)

	_, err = f.service.ProcessStep(ctx, ProcessRequest{EvaluationID: rec.ID, DealID: "deal-2"})
	assert.ErrorIs(t, err, domain.ErrDealMismatch)

	_, err = f.service.Get(ctx, "deal-2", rec.ID)
	assert.ErrorIs(t, err, domain.ErrDealMismatch)

	assert.ErrorIs(t, f.service.Delete(ctx, "deal-2", rec.ID), domain.ErrDealMismatch)
}

func TestService_StartResumesOpenEvaluation(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	first, created, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	require.True(t, created)
	f.process(t, first, nil)

	again, created, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, StatusAwaitingInput, again.Status)
}

func TestService_StartValidation(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	_, _, err := f.service.Start(ctx, " ", "deal-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.service.Start(ctx, "user-1", "no-such-deal")
	assert.ErrorIs(t, err, domain.ErrDealNotFound)
}

func TestService_StartWithoutVINAsksForIt(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-2", "deal-3")
	require.NoError(t, err)
	assert.NotContains(t, rec.Results.UserInputs, InputVIN)

	resp := f.process(t, rec, nil)
	assert.Equal(t, []string{questionText[InputVIN], questionText[InputConditionDescription]}, resp.StepResult.Questions)

	// a partial answer is kept and the remaining question is asked
	resp = f.process(t, rec, map[string]any{InputVIN: "jm1nd2b16g0100001"})
	assert.Equal(t, StatusAwaitingInput, resp.Status)
	assert.Equal(t, []string{questionText[InputConditionDescription]}, resp.StepResult.Questions)
	assert.Equal(t, "JM1ND2B16G0100001", resp.ResultJSON.UserInputs[InputVIN])
}

func TestService_ConcurrentCallsSerialize(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	f.process(t, rec, nil)
	f.process(t, rec, map[string]any{InputConditionDescription: "excellent", InputFinancingType: "cash"})

	const callers = 4
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		steps []Step
		errs  []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.service.ProcessStep(ctx, ProcessRequest{EvaluationID: rec.ID, DealID: "deal-1"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			steps = append(steps, resp.StepResult.Step)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.ElementsMatch(t, []Step{StepPrice, StepFinancing, StepRisk, StepFinal}, steps)

	stored, err := f.repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestService_Delete(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, "deal-1", rec.ID))
	_, err = f.service.Get(ctx, "deal-1", rec.ID)
	assert.ErrorIs(t, err, domain.ErrEvaluationNotFound)
}

func TestService_ListByDeal(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	_, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	_, _, err = f.service.Start(ctx, "user-2", "deal-1")
	require.NoError(t, err)

	records, err := f.service.ListByDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestProcessResponse_JSONShape(t *testing.T) {
	f := newServiceFixture(t, nil, marketQuote, nil)
	ctx := context.Background()

	rec, _, err := f.service.Start(ctx, "user-1", "deal-1")
	require.NoError(t, err)
	resp := f.process(t, rec, nil)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, rec.ID, doc["evaluation_id"])
	assert.Equal(t, "deal-1", doc["deal_id"])
	assert.Equal(t, "AWAITING_INPUT", doc["status"])
	assert.Equal(t, "VEHICLE_CONDITION", doc["current_step"])

	stepResult := doc["step_result"].(map[string]any)
	assert.Equal(t, false, stepResult["completed"])
	assert.NotEmpty(t, stepResult["questions"])

	resultJSON := doc["result_json"].(map[string]any)
	assert.Contains(t, resultJSON, "vehicle_condition")
	assert.Contains(t, resultJSON, "user_inputs")
}
