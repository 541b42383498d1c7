// Package di provides dependency injection type definitions.
//
// Container holds every long-lived dependency of the service. It is built by
// Wire() and handed to the server and the scheduler.
package di

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/aristath/dealeval/internal/clientdata"
	"github.com/aristath/dealeval/internal/clients/assessment"
	"github.com/aristath/dealeval/internal/clients/marketdata"
	"github.com/aristath/dealeval/internal/database"
	"github.com/aristath/dealeval/internal/modules/deals"
	"github.com/aristath/dealeval/internal/modules/evaluation"
	evalconfig "github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/aristath/dealeval/internal/reliability"
	"github.com/aristath/dealeval/internal/scheduler"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	DealEvalDB *database.DB // deals and evaluation records (durable)
	CacheDB    *database.DB // step result cache and fair value quotes

	// Cache
	CacheRepo   *clientdata.Repository
	StepCache   evaluation.ResultCache
	RedisClient *redis.Client // nil unless CACHE_BACKEND=redis

	// Clients (nil when the provider is not configured)
	AssessmentClient *assessment.Client
	MarketDataClient *marketdata.Client

	// Repositories
	DealRepo       *deals.Repository
	EvaluationRepo *evaluation.Repository

	// Services
	EvaluationConfig  evalconfig.EvaluationConfig
	Orchestrator      *evaluation.Orchestrator
	EvaluationService *evaluation.Service
	BackupService     *reliability.BackupService // nil unless backups are enabled

	Scheduler *scheduler.Scheduler
}

// Databases lists the open databases
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.DealEvalDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close releases connections. It is safe on a partially built container.
func (c *Container) Close() error {
	var errs []error
	if c.RedisClient != nil {
		errs = append(errs, c.RedisClient.Close())
	}
	for _, db := range c.Databases() {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
