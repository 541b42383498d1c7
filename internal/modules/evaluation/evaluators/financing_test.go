package evaluators

import (
	"testing"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestFinancingEvaluator_CashAffordability(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	for _, priceScore := range []float64{3.0, 6.0, 6.5, 9.5} {
		got, err := e.Evaluate(FinancingInput{
			FinancingType: FinancingCash,
			AskingPrice:   25000,
			PriceScore:    priceScore,
		})
		require.NoError(t, err)
		assert.Equal(t, 10.0, got.AffordabilityScore)
		assert.Equal(t, 25000.0, got.TotalCost)
		assert.Equal(t, 0.0, got.TotalInterest)
	}
}

func TestFinancingEvaluator_CashRecommendation(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	got, err := e.Evaluate(FinancingInput{FinancingType: FinancingCash, AskingPrice: 25000, PriceScore: 6.5})
	require.NoError(t, err)
	assert.Equal(t, RecommendCash, got.Recommendation)

	got, err = e.Evaluate(FinancingInput{FinancingType: FinancingCash, AskingPrice: 25000, PriceScore: 6.4})
	require.NoError(t, err)
	assert.Equal(t, RecommendEither, got.Recommendation)
}

func TestFinancingEvaluator_LoanDefaults(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	got, err := e.Evaluate(FinancingInput{
		FinancingType: FinancingLoan,
		AskingPrice:   25000,
		PriceScore:    6.0,
	})
	require.NoError(t, err)

	assert.Equal(t, 5.5, got.InterestRate)
	assert.Equal(t, 5000.0, got.DownPayment)
	assert.Equal(t, 20000.0, got.LoanAmount)
	assert.Equal(t, 60, got.LoanTermMonths)
	assert.InDelta(t, 382.02, got.MonthlyPayment, 0.01)
	assert.InDelta(t, 27921.39, got.TotalCost, 0.01)
	assert.InDelta(t, 2921.39, got.TotalInterest, 0.01)
	assert.Equal(t, got.TotalInterest, got.CashVsFinancingSavings)

	// No income: neutral affordability, noted
	assert.Equal(t, 5.0, got.AffordabilityScore)
	assert.Equal(t, RatingUnknown, got.AffordabilityRating)
	assert.Nil(t, got.PaymentToIncomeRatio)
	assert.Contains(t, got.Reasoning, "Affordability could not be assessed without monthly income")
}

func TestFinancingEvaluator_ZeroRateLoan(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	got, err := e.Evaluate(FinancingInput{
		FinancingType: FinancingLoan,
		AskingPrice:   24000,
		InterestRate:  ptr(0),
		DownPayment:   ptr(0),
		PriceScore:    7.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 400.0, got.MonthlyPayment)
	assert.Equal(t, 24000.0, got.TotalCost)
	assert.Equal(t, 0.0, got.TotalInterest)
}

func TestFinancingEvaluator_AffordabilityBands(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	// 0% rate, no down payment: $30,000 over 60 months = $500/month
	testCases := []struct {
		income float64
		score  float64
		rating string
	}{
		{10000, 9.0, "excellent"}, // 5%
		{5000, 9.0, "excellent"},  // exactly 10%
		{4000, 7.0, "good"},       // 12.5%
		{2500, 5.0, "moderate"},   // 20%
		{2000, 3.0, "warning"},    // 25%
	}

	for _, tc := range testCases {
		got, err := e.Evaluate(FinancingInput{
			FinancingType: FinancingLoan,
			AskingPrice:   30000,
			InterestRate:  ptr(0),
			DownPayment:   ptr(0),
			MonthlyIncome: ptr(tc.income),
			PriceScore:    7.0,
		})
		require.NoError(t, err)
		assert.Equal(t, tc.score, got.AffordabilityScore, "income %.0f", tc.income)
		assert.Equal(t, tc.rating, got.AffordabilityRating, "income %.0f", tc.income)
		require.NotNil(t, got.PaymentToIncomeRatio)
	}
}

func TestFinancingEvaluator_LoanRecommendations(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	testCases := []struct {
		name       string
		priceScore float64
		rate       float64
		income     *float64
		expected   string
		warning    bool
	}{
		{"excellent deal, cheap money", 9.0, 3.9, nil, RecommendFinancing, false},
		{"excellent deal, rate at limit", 8.0, 4.0, nil, RecommendFinancing, false},
		{"excellent deal, expensive money", 9.0, 6.0, nil, RecommendEither, false},
		{"good deal, cheap money", 7.0, 5.0, nil, RecommendFinancing, false},
		{"good deal, expensive money", 7.0, 7.5, nil, RecommendCash, false},
		{"mediocre deal", 6.0, 3.0, nil, RecommendCash, false},
		{"mediocre deal, budget strain", 5.0, 7.0, ptr(1500), RecommendCash, true},
		{"mediocre deal, neutral affordability", 5.0, 7.0, nil, RecommendCash, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(FinancingInput{
				FinancingType: FinancingLoan,
				AskingPrice:   25000,
				InterestRate:  ptr(tc.rate),
				MonthlyIncome: tc.income,
				PriceScore:    tc.priceScore,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.Recommendation)
			if tc.warning {
				assert.Contains(t, got.Warnings, "Monthly payment may strain your budget")
			} else {
				assert.Empty(t, got.Warnings)
			}
		})
	}
}

func TestFinancingEvaluator_GoodDealExpensiveMoneyCitesInterest(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	got, err := e.Evaluate(FinancingInput{
		FinancingType: FinancingLoan,
		AskingPrice:   25000,
		InterestRate:  ptr(7.0),
		PriceScore:    7.0,
	})
	require.NoError(t, err)
	assert.Equal(t, RecommendCash, got.Recommendation)
	assert.Contains(t, got.Reasoning, "Paying cash saves $3,761 in interest")
}

func TestFinancingEvaluator_Validation(t *testing.T) {
	e := NewFinancingEvaluator(config.Default())

	testCases := []struct {
		name string
		in   FinancingInput
	}{
		{"unknown type", FinancingInput{FinancingType: "lease", AskingPrice: 25000}},
		{"negative rate", FinancingInput{FinancingType: FinancingLoan, AskingPrice: 25000, InterestRate: ptr(-1)}},
		{"negative down payment", FinancingInput{FinancingType: FinancingLoan, AskingPrice: 25000, DownPayment: ptr(-1)}},
		{"down payment above price", FinancingInput{FinancingType: FinancingLoan, AskingPrice: 25000, DownPayment: ptr(30000)}},
		{"zero income", FinancingInput{FinancingType: FinancingLoan, AskingPrice: 25000, MonthlyIncome: ptr(0)}},
		{"no price", FinancingInput{FinancingType: FinancingCash}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Evaluate(tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestFinancingEvaluator_NonPositiveTermIsValidationError(t *testing.T) {
	cfg := config.Default()
	cfg.Financing.LoanTermMonths = 0

	e := NewFinancingEvaluator(cfg)
	_, err := e.Evaluate(FinancingInput{FinancingType: FinancingLoan, AskingPrice: 25000})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMonthlyPayment(t *testing.T) {
	assert.InDelta(t, 382.02, MonthlyPayment(20000, 5.5, 60), 0.01)
	assert.InDelta(t, 359.37, MonthlyPayment(20000, 3.0, 60), 0.01)
	assert.Equal(t, 500.0, MonthlyPayment(30000, 0, 60))
	assert.Equal(t, 0.0, MonthlyPayment(0, 5.5, 60))
	assert.Equal(t, 0.0, MonthlyPayment(20000, 5.5, 0))
}
