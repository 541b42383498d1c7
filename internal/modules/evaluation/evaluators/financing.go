package evaluators

import (
	"fmt"
	"math"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/dustin/go-humanize"
)

// FinancingType is how the buyer intends to pay
type FinancingType string

const (
	FinancingCash FinancingType = "cash"
	FinancingLoan FinancingType = "loan"
)

// Financing recommendations
const (
	RecommendCash      = "cash"
	RecommendFinancing = "financing"
	RecommendEither    = "either"
)

// Affordability rating reported when no income was supplied
const RatingUnknown = "unknown"

// FinancingInput carries the buyer's payment plan.
// Nil loan fields fall back to configured defaults; MonthlyIncome has no default.
type FinancingInput struct {
	InterestRate  *float64 // percent per year
	DownPayment   *float64
	MonthlyIncome *float64
	FinancingType FinancingType
	AskingPrice   float64
	PriceScore    float64
}

// FinancingAssessment is the stored result of the financing step
type FinancingAssessment struct {
	PaymentToIncomeRatio   *float64      `json:"payment_to_income_ratio,omitempty"`
	FinancingType          FinancingType `json:"financing_type"`
	Recommendation         string        `json:"recommendation"`
	AffordabilityRating    string        `json:"affordability_rating"`
	Reasoning              []string      `json:"reasoning"`
	Warnings               []string      `json:"warnings,omitempty"`
	TotalCost              float64       `json:"total_cost"`
	AffordabilityScore     float64       `json:"affordability_score"`
	InterestRate           float64       `json:"interest_rate"`
	DownPayment            float64       `json:"down_payment"`
	LoanAmount             float64       `json:"loan_amount"`
	MonthlyPayment         float64       `json:"monthly_payment"`
	TotalInterest          float64       `json:"total_interest"`
	CashVsFinancingSavings float64       `json:"cash_vs_financing_savings"`
	LoanTermMonths         int           `json:"loan_term_months,omitempty"`
}

// FinancingEvaluator compares paying cash against an amortized loan
type FinancingEvaluator struct {
	cfg config.FinancingConfig
}

// NewFinancingEvaluator creates a financing evaluator
func NewFinancingEvaluator(cfg config.EvaluationConfig) *FinancingEvaluator {
	return &FinancingEvaluator{cfg: cfg.Clone().Financing}
}

// Evaluate scores the payment plan. Invalid loan parameters are validation errors.
func (e *FinancingEvaluator) Evaluate(in FinancingInput) (FinancingAssessment, error) {
	if in.AskingPrice <= 0 {
		return FinancingAssessment{}, fmt.Errorf("%w: asking price must be positive", domain.ErrValidation)
	}

	switch in.FinancingType {
	case FinancingCash:
		return e.evaluateCash(in), nil
	case FinancingLoan:
		return e.evaluateLoan(in)
	default:
		return FinancingAssessment{}, fmt.Errorf("%w: unknown financing type %q", domain.ErrValidation, in.FinancingType)
	}
}

func (e *FinancingEvaluator) evaluateCash(in FinancingInput) FinancingAssessment {
	a := FinancingAssessment{
		FinancingType:       FinancingCash,
		TotalCost:           in.AskingPrice,
		AffordabilityScore:  e.cfg.CashAffordabilityScore,
		AffordabilityRating: "cash",
	}

	if in.PriceScore >= e.cfg.GoodDealScore {
		a.Recommendation = RecommendCash
		a.Reasoning = []string{"Good price; paying cash avoids all interest costs"}
	} else {
		a.Recommendation = RecommendEither
		a.Reasoning = []string{"Price is not compelling; negotiate before committing cash"}
	}
	return a
}

func (e *FinancingEvaluator) evaluateLoan(in FinancingInput) (FinancingAssessment, error) {
	if e.cfg.LoanTermMonths <= 0 {
		return FinancingAssessment{}, fmt.Errorf("%w: loan term must be positive", domain.ErrValidation)
	}

	rate := e.cfg.DefaultInterestRate
	if in.InterestRate != nil {
		rate = *in.InterestRate
	}
	if rate < 0 {
		return FinancingAssessment{}, fmt.Errorf("%w: interest rate must not be negative", domain.ErrValidation)
	}

	downPayment := in.AskingPrice * e.cfg.DefaultDownPaymentPercent / 100
	if in.DownPayment != nil {
		downPayment = *in.DownPayment
	}
	if downPayment < 0 || downPayment > in.AskingPrice {
		return FinancingAssessment{}, fmt.Errorf("%w: down payment must be between 0 and the asking price", domain.ErrValidation)
	}

	if in.MonthlyIncome != nil && *in.MonthlyIncome <= 0 {
		return FinancingAssessment{}, fmt.Errorf("%w: monthly income must be positive", domain.ErrValidation)
	}

	term := e.cfg.LoanTermMonths
	loanAmount := in.AskingPrice - downPayment
	payment := MonthlyPayment(loanAmount, rate, term)
	totalCost := downPayment + payment*float64(term)
	totalInterest := totalCost - in.AskingPrice

	a := FinancingAssessment{
		FinancingType:          FinancingLoan,
		InterestRate:           rate,
		DownPayment:            round2(downPayment),
		LoanAmount:             round2(loanAmount),
		LoanTermMonths:         term,
		MonthlyPayment:         round2(payment),
		TotalCost:              round2(totalCost),
		TotalInterest:          round2(totalInterest),
		CashVsFinancingSavings: round2(totalInterest),
	}

	if in.MonthlyIncome != nil {
		ratio := payment / *in.MonthlyIncome * 100
		band := e.affordabilityBand(ratio)
		a.PaymentToIncomeRatio = floatPtr(round2(ratio))
		a.AffordabilityScore = band.Score
		a.AffordabilityRating = band.Rating
		a.Reasoning = append(a.Reasoning, fmt.Sprintf("Monthly payment of $%s is %.1f%% of monthly income (%s)",
			dollars(payment), ratio, band.Rating))
	} else {
		a.AffordabilityScore = e.cfg.NeutralAffordabilityScore
		a.AffordabilityRating = RatingUnknown
		a.Reasoning = append(a.Reasoning, "Affordability could not be assessed without monthly income")
	}

	e.recommendLoan(in.PriceScore, rate, &a)
	return a, nil
}

// recommendLoan applies the deal-quality priority order
func (e *FinancingEvaluator) recommendLoan(priceScore, rate float64, a *FinancingAssessment) {
	switch {
	case priceScore >= e.cfg.ExcellentDealScore:
		if rate <= e.cfg.ExcellentDealMaxRate {
			a.Recommendation = RecommendFinancing
			a.Reasoning = append(a.Reasoning, fmt.Sprintf("Excellent deal at a low %.2f%% rate; financing keeps cash available", rate))
		} else {
			a.Recommendation = RecommendEither
			a.Reasoning = append(a.Reasoning, fmt.Sprintf("Excellent deal; at %.2f%% both cash and financing are reasonable", rate))
		}
	case priceScore >= e.cfg.GoodDealScore:
		if rate <= e.cfg.GoodDealMaxRate {
			a.Recommendation = RecommendFinancing
			a.Reasoning = append(a.Reasoning, fmt.Sprintf("Good deal with an affordable %.2f%% rate", rate))
		} else {
			a.Recommendation = RecommendCash
			a.Reasoning = append(a.Reasoning, fmt.Sprintf("Paying cash saves $%s in interest", dollars(a.TotalInterest)))
		}
	default:
		a.Recommendation = RecommendCash
		a.Reasoning = append(a.Reasoning, "Price is not strong enough to justify paying interest")
		if a.AffordabilityScore < e.cfg.BudgetStrainBelow {
			a.Warnings = append(a.Warnings, "Monthly payment may strain your budget")
		}
	}
}

func (e *FinancingEvaluator) affordabilityBand(ratio float64) config.AffordabilityBand {
	for _, band := range e.cfg.AffordabilityBands {
		if ratio <= band.MaxRatio+bandEpsilon {
			return band
		}
	}
	return e.cfg.AffordabilityAboveBands
}

// MonthlyPayment is the standard amortized payment for principal at annualRate percent over months.
// A zero rate divides the principal evenly.
func MonthlyPayment(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	monthlyRate := annualRate / 100 / 12
	if monthlyRate == 0 {
		return principal / float64(months)
	}
	return principal * monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(months)))
}

func dollars(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

func floatPtr(v float64) *float64 {
	return &v
}
