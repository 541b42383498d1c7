package di

import (
	"fmt"

	"github.com/aristath/dealeval/internal/config"
	"github.com/aristath/dealeval/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// dealeval.db - deals and evaluation records
	dealEvalDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileDurable,
		Name:    database.NameDealEval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dealeval database: %w", err)
	}
	container.DealEvalDB = dealEvalDB

	// cache.db - ephemeral step results and provider responses
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDatabasePath(),
		Profile: database.ProfileCache,
		Name:    database.NameCache,
	})
	if err != nil {
		dealEvalDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
