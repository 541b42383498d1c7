package reliability

import (
	"fmt"
	"time"

	"github.com/aristath/dealeval/internal/database"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Free-space thresholds for the data directory
const (
	diskCriticalBytes = 500 * humanize.MByte
	diskErrorBytes    = 5 * humanize.GByte
	diskWarningBytes  = 10 * humanize.GByte
)

// DailyMaintenanceJob checkpoints the WAL files and checks free disk space
type DailyMaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	diskUsage func(path string) (*disk.UsageStat, error)
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		diskUsage: disk.Usage,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	for _, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			// Not critical; the next automatic checkpoint retries
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.logDatabaseSizes()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// checkDiskSpace fails only when free space is critically low
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := j.diskUsage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	free := usage.Free
	event := j.log.Debug()
	switch {
	case free < diskCriticalBytes:
		j.log.Error().
			Str("free", humanize.Bytes(free)).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %s free on %s", humanize.Bytes(free), j.dataDir)
	case free < diskErrorBytes:
		event = j.log.Error()
	case free < diskWarningBytes:
		event = j.log.Warn()
	}

	event.
		Str("free", humanize.Bytes(free)).
		Float64("used_percent", usage.UsedPercent).
		Msg("Disk space check")
	return nil
}

func (j *DailyMaintenanceJob) logDatabaseSizes() {
	for _, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}

		j.log.Info().
			Str("database", db.Name()).
			Str("size", humanize.Bytes(uint64(stats.SizeBytes))).
			Str("wal_size", humanize.Bytes(uint64(stats.WALSizeBytes))).
			Int64("free_pages", stats.FreelistCount).
			Msg("Database size")
	}
}
