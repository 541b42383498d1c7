package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/dealeval/internal/database"
	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	testingpkg "github.com/aristath/dealeval/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := zerolog.Nop()

	repo := evaluation.NewRepository(testingpkg.NewMemoryDB(t, database.NameDealEval), log)
	deals := testingpkg.NewMemoryDealStore(testingpkg.NewDealFixtures()...)
	cfg := config.Default()
	market := testingpkg.StaticMarketData{
		Quote: domain.FairValueQuote{FairValue: 23800, Confidence: domain.ConfidenceHigh},
	}
	configID, err := cfg.Fingerprint()
	require.NoError(t, err)
	orchestrator := evaluation.NewOrchestrator(repo, evaluation.NewEvaluators(cfg, nil, nil, log),
		market, nil, time.Hour, configID, log)

	router := chi.NewRouter()
	NewHandler(evaluation.NewService(repo, deals, orchestrator, log), log).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func startEvaluation(t *testing.T, router http.Handler) evaluation.Record {
	t.Helper()
	rec := do(t, router, "POST", "/api/deals/deal-1/evaluations", `{"user_id": "user-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var record evaluation.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	return record
}

func TestHandleStart(t *testing.T) {
	router := newTestRouter(t)

	record := startEvaluation(t, router)
	assert.Equal(t, evaluation.StatusAnalyzing, record.Status)
	assert.Equal(t, evaluation.StepVehicleCondition, record.CurrentStep)

	// a second start resumes the same evaluation
	rec := do(t, router, "POST", "/api/deals/deal-1/evaluations", `{"user_id": "user-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), record.ID)
}

func TestHandleStart_Errors(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, router, "POST", "/api/deals/deal-1/evaluations", `{bad`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, "POST", "/api/deals/deal-1/evaluations", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, "POST", "/api/deals/nope/evaluations", `{"user_id": "u"}`).Code)
}

func TestHandleProcessStep_Flow(t *testing.T) {
	router := newTestRouter(t)
	record := startEvaluation(t, router)
	stepsPath := fmt.Sprintf("/api/deals/deal-1/evaluations/%s/steps", record.ID)

	rec := do(t, router, "POST", stepsPath, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AWAITING_INPUT", resp["status"])
	assert.Equal(t, record.ID, resp["evaluation_id"])

	rec = do(t, router, "POST", stepsPath, `{"answers": {"condition_description": "good", "financing_type": "cash"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ANALYZING", resp["status"])
	assert.Equal(t, "PRICE", resp["current_step"])

	for i := 0; i < 4; i++ {
		rec = do(t, router, "POST", stepsPath, `{}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "COMPLETED", resp["status"])

	// completed evaluations accept no further calls
	rec = do(t, router, "POST", stepsPath, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, "GET", fmt.Sprintf("/api/deals/deal-1/evaluations/%s", record.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"final"`)
}

func TestHandleProcessStep_Errors(t *testing.T) {
	router := newTestRouter(t)
	record := startEvaluation(t, router)
	stepsPath := fmt.Sprintf("/api/deals/deal-1/evaluations/%s/steps", record.ID)

	// answers while analyzing
	rec := do(t, router, "POST", stepsPath, `{"answers": {"condition_description": "good"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, do(t, router, "POST", stepsPath, "").Code)

	rec = do(t, router, "POST", stepsPath, `{"answers": {"vin": "short"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, "POST", stepsPath, `{"answers": [1, 2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, "POST", fmt.Sprintf("/api/deals/deal-2/evaluations/%s/steps", record.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, "POST", "/api/deals/deal-1/evaluations/missing/steps", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListAndDelete(t *testing.T) {
	router := newTestRouter(t)
	record := startEvaluation(t, router)

	rec := do(t, router, "GET", "/api/deals/deal-1/evaluations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	path := fmt.Sprintf("/api/deals/deal-1/evaluations/%s", record.ID)
	assert.Equal(t, http.StatusNoContent, do(t, router, "DELETE", path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, "GET", path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, "DELETE", path, "").Code)
}

func TestHandleProcessStep_NonFiniteAnswer(t *testing.T) {
	router := newTestRouter(t)
	record := startEvaluation(t, router)
	stepsPath := fmt.Sprintf("/api/deals/deal-1/evaluations/%s/steps", record.ID)

	require.Equal(t, http.StatusOK, do(t, router, "POST", stepsPath, "").Code)

	rec := do(t, router, "POST", stepsPath, `{"answers": {"condition_description": "good", "monthly_income": "Inf"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "monthly_income")

	rec = do(t, router, "GET", fmt.Sprintf("/api/deals/deal-1/evaluations/%s", record.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AWAITING_INPUT")
	assert.NotContains(t, rec.Body.String(), "monthly_income")
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrEvaluationNotFound, http.StatusNotFound},
		{domain.ErrDealNotFound, http.StatusNotFound},
		{domain.ErrIllegalTransition, http.StatusConflict},
		{domain.ErrDealMismatch, http.StatusConflict},
		{domain.ErrConcurrentModification, http.StatusConflict},
		{domain.ErrStepFailed, http.StatusInternalServerError},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}
