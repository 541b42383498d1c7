package di

import (
	"fmt"

	"github.com/aristath/dealeval/internal/clientdata"
	"github.com/aristath/dealeval/internal/config"
	"github.com/aristath/dealeval/internal/reliability"
	"github.com/aristath/dealeval/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed schedules (seconds field first)
const (
	walCheckSchedule    = "0 */30 * * * *"
	integritySchedule   = "0 30 4 * * *"
	maintenanceSchedule = "0 0 2 * * *"
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the scheduler and registers all background jobs.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.CacheRepo == nil {
		return fmt.Errorf("container must be initialized first")
	}

	sched := scheduler.New(log)
	dbs := container.Databases()

	jobs := []scheduledJob{
		{cfg.Cache.CleanupSchedule, clientdata.NewCleanupJob(container.CacheRepo, log)},
		{walCheckSchedule, scheduler.NewCheckWALCheckpointsJob(log, dbs...)},
		{integritySchedule, scheduler.NewCheckDatabasesJob(log, dbs...)},
		{maintenanceSchedule, reliability.NewDailyMaintenanceJob(dbs, cfg.DataDir, log)},
	}
	if container.BackupService != nil {
		backup := reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		jobs = append(jobs, scheduledJob{cfg.Backup.Schedule, backup})
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}

	container.Scheduler = sched
	return nil
}
