package server

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/aristath/dealeval/internal/database"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves health and host status
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
	jobs      JobRunner
	startedAt time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, jobs JobRunner) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: databases,
		jobs:      jobs,
		startedAt: time.Now(),
	}
}

// DatabaseStatus summarizes one sqlite database
type DatabaseStatus struct {
	Name      string `json:"name"`
	Profile   string `json:"profile"`
	Path      string `json:"path"`
	Healthy   bool   `json:"healthy"`
	SizeBytes int64  `json:"size_bytes"`
	Size      string `json:"size"`
	WALSize   string `json:"wal_size"`
	Error     string `json:"error,omitempty"`
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	Uptime        string           `json:"uptime"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	GoVersion     string           `json:"go_version"`
	Goroutines    int              `json:"goroutines"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	DiskFree      string           `json:"disk_free,omitempty"`
	DiskPercent   float64          `json:"disk_used_percent"`
	Databases     []DatabaseStatus `json:"databases"`
}

// HandleHealth pings every database
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, db := range h.databases {
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			writeJSON(h.log, w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": db.Name(),
			})
			return
		}
	}

	writeJSON(h.log, w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dealeval",
	})
}

// HandleSystemStatus returns host and database statistics
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		Uptime:        strings.TrimSpace(humanize.RelTime(h.startedAt, time.Now(), "", "")),
		UptimeSeconds: int64(uptime.Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     make([]DatabaseStatus, 0, len(h.databases)),
	}

	if h.dataDir != "" {
		if usage, err := disk.Usage(h.dataDir); err == nil {
			response.DiskFree = humanize.Bytes(usage.Free)
			response.DiskPercent = usage.UsedPercent
		} else {
			h.log.Warn().Err(err).Msg("Failed to get disk usage")
		}
	}

	for _, db := range h.databases {
		status := DatabaseStatus{
			Name:    db.Name(),
			Profile: string(db.Profile()),
			Path:    db.Path(),
			Healthy: true,
		}
		if err := db.QuickCheck(r.Context()); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			response.Status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			status.SizeBytes = stats.SizeBytes
			status.Size = humanize.Bytes(uint64(stats.SizeBytes))
			status.WALSize = humanize.Bytes(uint64(stats.WALSizeBytes))
		}
		response.Databases = append(response.Databases, status)
	}

	writeJSON(h.log, w, http.StatusOK, response)
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the call fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}

// HandleListJobs lists registered background jobs
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.jobs != nil {
		names = h.jobs.JobNames()
		sort.Strings(names)
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// HandleRunJob runs a background job immediately
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		writeError(h.log, w, http.StatusNotFound, "no jobs registered")
		return
	}

	known := false
	for _, n := range h.jobs.JobNames() {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		writeError(h.log, w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	start := time.Now()
	if err := h.jobs.RunByName(name); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
