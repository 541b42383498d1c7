package testing

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockAssessmentProvider is a testify mock of domain.AssessmentProvider
type MockAssessmentProvider struct {
	mock.Mock
}

// Assess records the call and returns the configured response
func (m *MockAssessmentProvider) Assess(ctx context.Context, promptID string, variables map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, promptID, variables)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockMarketDataProvider is a testify mock of domain.MarketDataProvider
type MockMarketDataProvider struct {
	mock.Mock
}

// FairValue records the call and returns the configured quote
func (m *MockMarketDataProvider) FairValue(ctx context.Context, manufacturer, model string, year, mileage int) (domain.FairValueQuote, error) {
	args := m.Called(ctx, manufacturer, model, year, mileage)
	return args.Get(0).(domain.FairValueQuote), args.Error(1)
}

// FailingAssessmentProvider always returns err
type FailingAssessmentProvider struct {
	Err error

	mu    sync.Mutex
	calls int
}

// Assess returns the configured error
func (p *FailingAssessmentProvider) Assess(ctx context.Context, promptID string, variables map[string]any) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err == nil {
		return nil, domain.ErrProviderUnavailable
	}
	return nil, p.Err
}

// Calls returns how many times Assess was invoked
func (p *FailingAssessmentProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// StaticMarketData returns the same quote for every vehicle
type StaticMarketData struct {
	Quote domain.FairValueQuote
	Err   error
}

// FairValue returns the configured quote
func (s StaticMarketData) FairValue(ctx context.Context, manufacturer, model string, year, mileage int) (domain.FairValueQuote, error) {
	return s.Quote, s.Err
}

// MemoryDealStore is an in-memory domain.DealStore
type MemoryDealStore struct {
	mu    sync.RWMutex
	deals map[string]*domain.Deal
}

// NewMemoryDealStore creates a store holding deals
func NewMemoryDealStore(deals ...*domain.Deal) *MemoryDealStore {
	s := &MemoryDealStore{deals: make(map[string]*domain.Deal)}
	for _, d := range deals {
		s.Put(d)
	}
	return s
}

// Put adds or replaces a deal
func (s *MemoryDealStore) Put(d *domain.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *d
	s.deals[d.ID] = &copied
}

// GetDeal returns a copy of the stored deal
func (s *MemoryDealStore) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[dealID]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	copied := *d
	return &copied, nil
}
