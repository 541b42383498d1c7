package scheduler

import (
	"testing"

	"github.com/aristath/dealeval/internal/database"
	testingpkg "github.com/aristath/dealeval/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(zerolog.Nop(), nil, nil)
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameDealEval)
	defer cleanup()

	_, err := db.Conn().Exec(`INSERT INTO deals (id, user_id, vehicle_make, vehicle_model, vehicle_year, vehicle_mileage, asking_price, created_at, updated_at)
		VALUES ('deal-1', 'user-1', 'Honda', 'Accord', 2022, 15000, 25000, 0, 0)`)
	require.NoError(t, err)

	job := NewCheckWALCheckpointsJob(zerolog.Nop(), db)
	assert.NoError(t, job.Run())
}

func TestCheckDatabasesJob_Run(t *testing.T) {
	dealDB, cleanupDeals := testingpkg.NewTestDB(t, database.NameDealEval)
	defer cleanupDeals()
	cacheDB, cleanupCache := testingpkg.NewTestDB(t, database.NameCache)
	defer cleanupCache()

	job := NewCheckDatabasesJob(zerolog.Nop(), dealDB, nil, cacheDB)
	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())
}

func TestCheckDatabasesJob_ClosedDatabase(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameCache)
	defer cleanup()
	require.NoError(t, db.Close())

	job := NewCheckDatabasesJob(zerolog.Nop(), db)
	assert.ErrorContains(t, job.Run(), "cache")
}
