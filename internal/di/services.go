package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/dealeval/internal/clientdata"
	"github.com/aristath/dealeval/internal/clients/assessment"
	"github.com/aristath/dealeval/internal/clients/marketdata"
	"github.com/aristath/dealeval/internal/config"
	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation"
	evalconfig "github.com/aristath/dealeval/internal/modules/evaluation/config"
	"github.com/aristath/dealeval/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices builds clients, the step cache and the evaluation service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.EvaluationRepo == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	evalCfg, err := evalconfig.Load(cfg.EvaluationConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load evaluation config: %w", err)
	}
	container.EvaluationConfig = evalCfg

	if err := initializeStepCache(ctx, container, cfg, log); err != nil {
		return err
	}

	// Interfaces stay nil when a provider is unconfigured so evaluators take their fallback path
	var provider domain.AssessmentProvider
	if cfg.Assessment.URL != "" {
		container.AssessmentClient = assessment.NewClient(assessment.Config{
			BaseURL:       cfg.Assessment.URL,
			APIKey:        cfg.Assessment.APIKey,
			Timeout:       cfg.Assessment.Timeout,
			RatePerSecond: cfg.Assessment.RatePerSecond,
		}, log)
		provider = container.AssessmentClient
	} else {
		log.Warn().Msg("ASSESSMENT_PROVIDER_URL not set, AI steps use deterministic fallbacks")
	}

	var market domain.MarketDataProvider
	if cfg.MarketData.URL != "" {
		container.MarketDataClient = marketdata.NewClient(cfg.MarketData.URL, cfg.MarketData.APIKey, container.CacheRepo, log)
		market = container.MarketDataClient
	} else {
		log.Warn().Msg("MARKET_DATA_URL not set, prices are scored against the asking price")
	}

	// Step cache keys cover every threshold, not just the version label
	configID, err := evalCfg.Fingerprint()
	if err != nil {
		return err
	}

	evals := evaluation.NewEvaluators(evalCfg, provider, time.Now, log)
	container.Orchestrator = evaluation.NewOrchestrator(
		container.EvaluationRepo,
		evals,
		market,
		container.StepCache,
		cfg.Cache.TTL,
		configID,
		log,
	)
	container.EvaluationService = evaluation.NewService(
		container.EvaluationRepo,
		container.DealRepo,
		container.Orchestrator,
		log,
	)

	if cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			R2AccountID:     cfg.Backup.R2AccountID,
			Endpoint:        cfg.Backup.Endpoint,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Region:          cfg.Backup.Region,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(store, container.Databases(), cfg.BackupDir(), log)
	}

	log.Info().
		Str("config_version", evalCfg.Version).
		Str("config_id", configID).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("assessment_provider", provider != nil).
		Bool("market_data", market != nil).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")

	return nil
}

func initializeStepCache(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client := clientdata.NewRedisClient(cfg.Cache.RedisAddr)
		cache := clientdata.NewRedisStepCache(client)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := cache.Ping(pingCtx); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}

		container.RedisClient = client
		container.StepCache = cache
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using redis step cache")
	default:
		container.StepCache = clientdata.NewStepCache(container.CacheRepo)
	}
	return nil
}
