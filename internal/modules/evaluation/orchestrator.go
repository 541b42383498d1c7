package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/aristath/dealeval/internal/modules/evaluation/evaluators"
	"github.com/rs/zerolog"
)

// marketFallbackNote explains a price step scored without a market quote
const marketFallbackNote = "Market data unavailable; fair value estimated from the asking price"

// RecordStore is the single write path of the orchestrator
type RecordStore interface {
	Save(ctx context.Context, rec *Record) error
}

// ResultCache stores serialized step assessments by fingerprint key
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Evaluators bundles the step evaluators the orchestrator dispatches to
type Evaluators struct {
	Condition *evaluators.ConditionEvaluator
	Price     *evaluators.PriceEvaluator
	Financing *evaluators.FinancingEvaluator
	Risk      *evaluators.RiskEvaluator
	Final     *evaluators.FinalAggregator
}

// NewEvaluators builds every evaluator from one config snapshot.
// provider may be nil; now may be nil.
func NewEvaluators(cfg config.EvaluationConfig, provider domain.AssessmentProvider, now func() time.Time, log zerolog.Logger) Evaluators {
	return Evaluators{
		Condition: evaluators.NewConditionEvaluator(provider, cfg, log),
		Price:     evaluators.NewPriceEvaluator(cfg),
		Financing: evaluators.NewFinancingEvaluator(cfg),
		Risk:      evaluators.NewRiskEvaluator(cfg, now),
		Final:     evaluators.NewFinalAggregator(provider, cfg, log),
	}
}

// Orchestrator runs exactly one pipeline step per call and persists the outcome in one write
type Orchestrator struct {
	store      RecordStore
	evals      Evaluators
	marketData domain.MarketDataProvider
	cache      ResultCache
	cacheTTL   time.Duration
	configID   string
	log        zerolog.Logger
}

// NewOrchestrator creates an orchestrator. marketData and cache may be nil.
func NewOrchestrator(
	store RecordStore,
	evals Evaluators,
	marketData domain.MarketDataProvider,
	cache ResultCache,
	cacheTTL time.Duration,
	configID string,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		evals:      evals,
		marketData: marketData,
		cache:      cache,
		cacheTTL:   cacheTTL,
		configID:   configID,
		log:        log.With().Str("component", "orchestrator").Logger(),
	}
}

// Process merges answers into rec, then either records the questions that block the current
// step or runs its evaluator and advances. rec is updated only after a successful write.
func (o *Orchestrator) Process(ctx context.Context, rec *Record, deal *domain.Deal, answers map[string]any) (StepResult, error) {
	if rec.DealID != deal.ID {
		return StepResult{}, fmt.Errorf("%w: evaluation %s is for deal %s, not %s",
			domain.ErrDealMismatch, rec.ID, rec.DealID, deal.ID)
	}
	if !rec.Status.CanProcess() {
		return StepResult{}, fmt.Errorf("%w: evaluation %s is %s", domain.ErrIllegalTransition, rec.ID, rec.Status)
	}
	if len(answers) > 0 && !rec.Status.CanAcceptAnswers() {
		return StepResult{}, fmt.Errorf("%w: evaluation %s is %s and not awaiting input",
			domain.ErrIllegalTransition, rec.ID, rec.Status)
	}

	normalized, err := normalizeAnswers(answers)
	if err != nil {
		return StepResult{}, err
	}

	work, err := rec.Clone()
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to copy evaluation %s: %w", rec.ID, err)
	}
	work.Results.mergeInputs(normalized)

	step := work.CurrentStep
	log := o.log.With().
		Str("evaluation_id", rec.ID).
		Str("deal_id", deal.ID).
		Str("step", string(step)).
		Logger()

	if missing := missingInputs(step, work.Results.UserInputs); len(missing) > 0 {
		questions := questionsFor(missing)
		result := StepResult{Step: step, Questions: questions}

		if len(normalized) == 0 && rec.Status == StatusAwaitingInput &&
			slices.Equal(questions, rec.Results.Questions(step)) {
			log.Debug().Msg("Step still blocked, nothing to write")
			return result, nil
		}

		if err := work.Results.block(step, questions); err != nil {
			return StepResult{}, err
		}
		work.Status = StatusAwaitingInput
		if err := o.save(ctx, rec, work); err != nil {
			return StepResult{}, err
		}

		log.Info().Strs("missing", missing).Msg("Step awaiting input")
		return result, nil
	}

	start := time.Now()
	assessment, err := o.runStep(ctx, step, &work.Results, deal, log)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return StepResult{}, err
		}
		log.Error().Err(err).Msg("Step evaluation failed")
		return StepResult{}, fmt.Errorf("%w: %s: %v", domain.ErrStepFailed, step, err)
	}

	if err := work.Results.complete(step, assessment); err != nil {
		return StepResult{}, fmt.Errorf("%w: %s: %v", domain.ErrStepFailed, step, err)
	}
	work.CurrentStep, work.Status = afterStep(step)

	if err := o.save(ctx, rec, work); err != nil {
		return StepResult{}, err
	}

	log.Info().
		Str("next_step", string(work.CurrentStep)).
		Str("status", string(work.Status)).
		Dur("duration", time.Since(start)).
		Msg("Step completed")

	return StepResult{
		Step:       step,
		Completed:  true,
		Assessment: work.Results.Assessment(step),
		Questions:  []string{},
	}, nil
}

// save persists work and copies it over rec. A cancelled context writes nothing.
func (o *Orchestrator) save(ctx context.Context, rec, work *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.store.Save(ctx, work); err != nil {
		return err
	}
	*rec = *work
	return nil
}

// runStep returns the assessment for step, from the cache when an identical run was stored
func (o *Orchestrator) runStep(ctx context.Context, step Step, results *Results, deal *domain.Deal, log zerolog.Logger) (any, error) {
	key := ""
	if o.cache != nil {
		var err error
		if key, err = stepCacheKey(deal, step, results, o.configID); err != nil {
			log.Warn().Err(err).Msg("Failed to fingerprint step, skipping cache")
		} else if cached, ok := o.cached(ctx, key, step, log); ok {
			log.Debug().Str("cache_key", key).Msg("Using cached step result")
			return cached, nil
		}
	}

	assessment, cacheable, err := o.evaluate(ctx, step, results, deal)
	if err != nil {
		return nil, err
	}

	if key != "" && cacheable {
		if data, err := json.Marshal(assessment); err != nil {
			log.Warn().Err(err).Msg("Failed to encode step result for cache")
		} else if err := o.cache.Set(ctx, key, data, o.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache step result")
		}
	}
	return assessment, nil
}

func (o *Orchestrator) cached(ctx context.Context, key string, step Step, log zerolog.Logger) (any, bool) {
	data, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Step cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	assessment, err := decodeAssessment(step, data)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable cached step result")
		return nil, false
	}
	return assessment, true
}

func decodeAssessment(step Step, data []byte) (any, error) {
	switch step {
	case StepVehicleCondition:
		return decodeAs[evaluators.ConditionAssessment](data)
	case StepPrice:
		return decodeAs[evaluators.PriceAssessment](data)
	case StepFinancing:
		return decodeAs[evaluators.FinancingAssessment](data)
	case StepRisk:
		return decodeAs[evaluators.RiskAssessment](data)
	case StepFinal:
		return decodeAs[evaluators.FinalAssessment](data)
	default:
		return nil, fmt.Errorf("unknown evaluation step %q", step)
	}
}

func decodeAs[A any](data []byte) (any, error) {
	var a A
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// evaluate dispatches to the step evaluator. cacheable is false for results produced
// without the external provider they normally rely on. Panics become errors.
func (o *Orchestrator) evaluate(ctx context.Context, step Step, results *Results, deal *domain.Deal) (assessment any, cacheable bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			assessment, cacheable = nil, false
			err = fmt.Errorf("panic in %s evaluator: %v", step, p)
		}
	}()

	inputs := results.UserInputs

	switch step {
	case StepVehicleCondition:
		a := o.evals.Condition.Evaluate(ctx, evaluators.ConditionInput{
			Make:                 deal.VehicleMake,
			Model:                deal.VehicleModel,
			Year:                 deal.VehicleYear,
			Mileage:              deal.VehicleMileage,
			VIN:                  inputString(inputs, InputVIN),
			ConditionDescription: inputString(inputs, InputConditionDescription),
		})
		return a, a.AIAssisted, nil

	case StepPrice:
		in := o.priceInput(ctx, deal)
		a, err := o.evals.Price.Evaluate(in)
		return a, in.Source == evaluators.FairValueSourceMarket, err

	case StepFinancing:
		price, err := priorAssessment(results.Price, StepPrice)
		if err != nil {
			return nil, false, err
		}
		a, err := o.evals.Financing.Evaluate(evaluators.FinancingInput{
			FinancingType: evaluators.FinancingType(inputString(inputs, InputFinancingType)),
			InterestRate:  inputFloat(inputs, InputInterestRate),
			DownPayment:   inputFloat(inputs, InputDownPayment),
			MonthlyIncome: inputFloat(inputs, InputMonthlyIncome),
			AskingPrice:   deal.AskingPrice,
			PriceScore:    price.Score,
		})
		return a, true, err

	case StepRisk:
		condition, err := priorAssessment(results.VehicleCondition, StepVehicleCondition)
		if err != nil {
			return nil, false, err
		}
		price, err := priorAssessment(results.Price, StepPrice)
		if err != nil {
			return nil, false, err
		}
		in := evaluators.RiskInput{
			VehicleYear:           deal.VehicleYear,
			VehicleMileage:        deal.VehicleMileage,
			AskingPrice:           deal.AskingPrice,
			InspectionCompleted:   inputBool(inputs, InputInspectionCompleted),
			RecommendedInspection: condition.RecommendedInspection,
		}
		if price.FairValueSource == evaluators.FairValueSourceMarket {
			fairValue := price.FairValue
			in.FairValue = &fairValue
		}
		return o.evals.Risk.Evaluate(in), true, nil

	case StepFinal:
		condition, err := priorAssessment(results.VehicleCondition, StepVehicleCondition)
		if err != nil {
			return nil, false, err
		}
		price, err := priorAssessment(results.Price, StepPrice)
		if err != nil {
			return nil, false, err
		}
		financing, err := priorAssessment(results.Financing, StepFinancing)
		if err != nil {
			return nil, false, err
		}
		risk, err := priorAssessment(results.Risk, StepRisk)
		if err != nil {
			return nil, false, err
		}
		totalCost := financing.TotalCost
		a := o.evals.Final.Aggregate(ctx, evaluators.FinalInput{
			EstimatedTotalCost: &totalCost,
			VehicleMake:        deal.VehicleMake,
			VehicleModel:       deal.VehicleModel,
			VehicleYear:        deal.VehicleYear,
			RiskFactors:        risk.RiskFactors,
			ConditionNotes:     condition.ConditionNotes,
			FinancingReasoning: financing.Reasoning,
			ConditionScore:     condition.ConditionScore,
			PriceScore:         price.Score,
			RiskScore:          risk.RiskScore,
		})
		return a, a.AIAssisted, nil

	default:
		return nil, false, fmt.Errorf("unknown evaluation step %q", step)
	}
}

// priceInput asks the market-data provider for a fair value. Without a usable quote the
// asking price stands in, flagged low confidence.
func (o *Orchestrator) priceInput(ctx context.Context, deal *domain.Deal) evaluators.PriceInput {
	if o.marketData != nil {
		quote, err := o.marketData.FairValue(ctx, deal.VehicleMake, deal.VehicleModel, deal.VehicleYear, deal.VehicleMileage)
		if err == nil && quote.FairValue > 0 {
			return evaluators.PriceInput{
				AskingPrice:   deal.AskingPrice,
				FairValue:     quote.FairValue,
				LowConfidence: quote.Confidence.IsLow(),
				Source:        evaluators.FairValueSourceMarket,
			}
		}
		o.log.Warn().
			Err(err).
			Str("deal_id", deal.ID).
			Msg("No usable market quote, estimating fair value from asking price")
	}

	return evaluators.PriceInput{
		AskingPrice:   deal.AskingPrice,
		FairValue:     deal.AskingPrice,
		LowConfidence: true,
		Source:        evaluators.FairValueSourceAskingPrice,
		Notes:         []string{marketFallbackNote},
	}
}

func priorAssessment[A any](entry *StepEntry[A], step Step) (*A, error) {
	if entry == nil || !entry.Completed || entry.Assessment == nil {
		return nil, fmt.Errorf("step %s has no completed result", step)
	}
	return entry.Assessment, nil
}
