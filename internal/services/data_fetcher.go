package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	JobPoolRefresh = "pool_refresh"
	JobCacheFlush  = "cache_flush"
)

// JobInfo represents information about a scheduled job
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type jobFunc func(ctx context.Context) error

// Flusher drops every cached roster.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// DataFetcherService refreshes the player pool on a cron schedule.
type DataFetcherService struct {
	holder   *PoolHolder
	flusher  Flusher
	schedule string
	logger   *logrus.Entry
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.RWMutex
	jobs      map[string]JobInfo
	entries   map[string]cron.EntryID
	funcs     map[string]jobFunc
	isRunning bool
}

// NewDataFetcherService schedules pool refreshes with a standard cron spec or
// a descriptor such as "@every 6h". flusher may be nil.
func NewDataFetcherService(holder *PoolHolder, flusher Flusher, schedule string, logger *logrus.Entry) *DataFetcherService {
	ctx, cancel := context.WithCancel(context.Background())
	return &DataFetcherService{
		holder:   holder,
		flusher:  flusher,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger))),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]JobInfo),
		entries:  make(map[string]cron.EntryID),
		funcs:    make(map[string]jobFunc),
	}
}

func (dfs *DataFetcherService) Start() error {
	dfs.mu.Lock()
	defer dfs.mu.Unlock()

	if dfs.isRunning {
		return fmt.Errorf("data fetcher service is already running")
	}

	if err := dfs.scheduleJobs(); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}

	dfs.cron.Start()
	dfs.isRunning = true
	dfs.logger.WithField("component", "data_fetcher").Info("DataFetcherService started")
	return nil
}

func (dfs *DataFetcherService) scheduleJobs() error {
	if err := dfs.addJob(JobPoolRefresh, dfs.schedule, "Player pool refresh", dfs.holder.Refresh); err != nil {
		return err
	}
	if dfs.flusher != nil {
		// weekly, after the deadline rollover
		if err := dfs.addJob(JobCacheFlush, "0 4 * * 1", "Roster cache flush", dfs.flushCache); err != nil {
			return err
		}
	}
	return nil
}

func (dfs *DataFetcherService) addJob(id, schedule, name string, fn jobFunc) error {
	if _, exists := dfs.jobs[id]; exists {
		return nil
	}
	entryID, err := dfs.cron.AddFunc(schedule, func() {
		dfs.runJob(id)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", id, err)
	}

	nextRun := dfs.cron.Entry(entryID).Next
	dfs.entries[id] = entryID
	dfs.funcs[id] = fn
	dfs.jobs[id] = JobInfo{
		ID:       id,
		Name:     name,
		Schedule: schedule,
		NextRun:  nextRun,
		Status:   "scheduled",
	}

	dfs.logger.WithFields(logrus.Fields{
		"component": "data_fetcher",
		"job_id":    id,
		"schedule":  schedule,
	}).Info("Scheduled job added")
	return nil
}

// runJob executes a job with panic recovery and records the outcome.
func (dfs *DataFetcherService) runJob(id string) {
	dfs.mu.Lock()
	job, exists := dfs.jobs[id]
	fn := dfs.funcs[id]
	if !exists || job.Status == "running" {
		dfs.mu.Unlock()
		return
	}
	job.Status = "running"
	job.LastRun = time.Now()
	job.RunCount++
	dfs.jobs[id] = job
	dfs.mu.Unlock()

	logger := dfs.logger.WithFields(logrus.Fields{
		"component": "data_fetcher",
		"job_id":    id,
		"run_count": job.RunCount,
	})
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Job panicked")
			dfs.updateJobStatus(id, "failed", fmt.Sprintf("panic: %v", r), time.Since(startTime))
		}
	}()

	if err := fn(dfs.ctx); err != nil {
		logger.WithError(err).Error("Job failed")
		dfs.updateJobStatus(id, "failed", err.Error(), time.Since(startTime))
		return
	}

	duration := time.Since(startTime)
	logger.WithField("duration", duration).Info("Job completed successfully")
	dfs.updateJobStatus(id, "completed", "", duration)
}

func (dfs *DataFetcherService) updateJobStatus(id, status, errorMsg string, duration time.Duration) {
	dfs.mu.Lock()
	defer dfs.mu.Unlock()

	job, exists := dfs.jobs[id]
	if !exists {
		return
	}
	job.Status = status
	job.Duration = duration
	if errorMsg != "" {
		job.ErrorCount++
		job.LastError = errorMsg
	}
	if entryID, ok := dfs.entries[id]; ok {
		job.NextRun = dfs.cron.Entry(entryID).Next
	}
	dfs.jobs[id] = job
}

func (dfs *DataFetcherService) flushCache(ctx context.Context) error {
	n, err := dfs.flusher.Flush(ctx)
	if err != nil {
		return err
	}
	dfs.logger.WithField("removed", n).Info("Roster cache flushed")
	return nil
}

// GetJobs returns the scheduled jobs ordered by id.
func (dfs *DataFetcherService) GetJobs() []JobInfo {
	dfs.mu.RLock()
	defer dfs.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(dfs.jobs))
	for id, v := range dfs.jobs {
		// entries only get a next run once the scheduler is running
		if next := dfs.cron.Entry(dfs.entries[id]).Next; !next.IsZero() {
			v.NextRun = next
		}
		jobs = append(jobs, v)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// TriggerJob runs a job now, in the background.
func (dfs *DataFetcherService) TriggerJob(id string) error {
	dfs.mu.RLock()
	_, exists := dfs.jobs[id]
	dfs.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}

	dfs.logger.WithField("job_id", id).Info("Manually triggering job")
	go dfs.runJob(id)
	return nil
}

func (dfs *DataFetcherService) Stop() error {
	dfs.mu.Lock()
	if !dfs.isRunning {
		dfs.mu.Unlock()
		return nil
	}
	dfs.isRunning = false
	dfs.mu.Unlock()

	// running jobs still need the lock to record their status
	ctx := dfs.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		dfs.logger.WithField("component", "data_fetcher").Warn("Cron scheduler stop timed out")
	}

	dfs.cancel()
	dfs.logger.WithField("component", "data_fetcher").Info("DataFetcherService stopped")
	return nil
}
