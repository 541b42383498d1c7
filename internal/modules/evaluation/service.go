package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/rs/zerolog"
)

// Service is the entry point for starting and advancing deal evaluations
type Service struct {
	repo         *Repository
	deals        domain.DealStore
	orchestrator *Orchestrator
	locks        *keyedLocks
	log          zerolog.Logger
}

// NewService creates a new evaluation service
func NewService(repo *Repository, deals domain.DealStore, orchestrator *Orchestrator, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		deals:        deals,
		orchestrator: orchestrator,
		locks:        newKeyedLocks(),
		log:          log.With().Str("service", "evaluation").Logger(),
	}
}

// Start resumes the newest unfinished evaluation of the deal by the user, or creates one.
// A valid VIN on the deal pre-fills user_inputs.
func (s *Service) Start(ctx context.Context, userID, dealID string) (rec *Record, created bool, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}

	deal, err := s.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, false, err
	}

	var seed map[string]any
	if domain.ValidVIN(deal.VIN) {
		seed = map[string]any{InputVIN: domain.NormalizeVIN(deal.VIN)}
	}

	unlock := s.locks.Lock("start:" + userID + ":" + deal.ID)
	defer unlock()

	rec, created, err = s.repo.FindOrCreateOpen(ctx, userID, deal.ID, seed)
	if err != nil {
		return nil, false, err
	}

	s.log.Info().
		Str("evaluation_id", rec.ID).
		Str("deal_id", deal.ID).
		Bool("created", created).
		Msg("Evaluation started")
	return rec, created, nil
}

// ProcessStep runs the current step of an evaluation. Calls for the same evaluation
// are serialized; different evaluations proceed in parallel.
func (s *Service) ProcessStep(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	unlock := s.locks.Lock(req.EvaluationID)
	defer unlock()

	rec, err := s.load(ctx, req.DealID, req.EvaluationID)
	if err != nil {
		return nil, err
	}

	deal, err := s.deals.GetDeal(ctx, rec.DealID)
	if err != nil {
		return nil, err
	}

	result, err := s.orchestrator.Process(ctx, rec, deal, req.Answers)
	if err != nil {
		return nil, err
	}

	return &ProcessResponse{
		EvaluationID: rec.ID,
		DealID:       rec.DealID,
		Status:       rec.Status,
		CurrentStep:  rec.CurrentStep,
		StepResult:   result,
		ResultJSON:   rec.Results,
	}, nil
}

// Get returns the current state of an evaluation
func (s *Service) Get(ctx context.Context, dealID, evaluationID string) (*Record, error) {
	return s.load(ctx, dealID, evaluationID)
}

// ListByDeal returns every evaluation of a deal, newest first
func (s *Service) ListByDeal(ctx context.Context, dealID string) ([]*Record, error) {
	return s.repo.ListByDeal(ctx, dealID)
}

// Delete removes an evaluation
func (s *Service) Delete(ctx context.Context, dealID, evaluationID string) error {
	unlock := s.locks.Lock(evaluationID)
	defer unlock()

	if _, err := s.load(ctx, dealID, evaluationID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, evaluationID)
}

func (s *Service) load(ctx context.Context, dealID, evaluationID string) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	if rec.DealID != dealID {
		return nil, fmt.Errorf("%w: evaluation %s is for deal %s, not %s",
			domain.ErrDealMismatch, rec.ID, rec.DealID, dealID)
	}
	return rec, nil
}
