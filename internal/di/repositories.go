package di

import (
	"fmt"

	"github.com/aristath/dealeval/internal/clientdata"
	"github.com/aristath/dealeval/internal/modules/deals"
	"github.com/aristath/dealeval/internal/modules/evaluation"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DealEvalDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.DealRepo = deals.NewRepository(container.DealEvalDB.Conn(), log)
	container.EvaluationRepo = evaluation.NewRepository(container.DealEvalDB.Conn(), log)
	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())

	log.Info().Msg("Repositories initialized")
	return nil
}
