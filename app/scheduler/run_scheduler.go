// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/NathanHayman/rivvi-beta-sub007/business_flow"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/repository"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunScheduler periodically drives dispatch cycles for running runs, promotes
// due scheduled runs, and sweeps rows stuck in calling. Dispatch cycles and
// webhook deliveries stay independently invocable; the per-run redis lock
// only prevents this process from bursting the provider with overlapping
// cycles for the same run.
type RunScheduler struct {
	runRepo repository.RunRepository
	runFlow businessflow.RunFlow
	rc      *redis.Client
	logger  *log.Logger

	interval      time.Duration
	sweepInterval time.Duration
	stuckTimeout  time.Duration
	lockTTL       time.Duration
}

func NewRunScheduler(
	runRepo repository.RunRepository,
	runFlow businessflow.RunFlow,
	rc *redis.Client,
	interval time.Duration,
	sweepInterval time.Duration,
	stuckTimeout time.Duration,
) *RunScheduler {
	if interval <= 0 {
		interval = utils.DefaultSchedulerInterval
	}
	if sweepInterval <= 0 {
		sweepInterval = utils.StuckSweepInterval
	}
	if stuckTimeout <= 0 {
		stuckTimeout = utils.StuckCallingTimeout
	}

	s := &RunScheduler{
		runRepo:       runRepo,
		runFlow:       runFlow,
		rc:            rc,
		interval:      interval,
		sweepInterval: sweepInterval,
		stuckTimeout:  stuckTimeout,
		lockTTL:       utils.DispatchLockTTL,
	}

	// Initialize scheduler-specific logger (to stdout and rotated file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a
// rotated persistent file under data/ (or /data)
func (s *RunScheduler) initSchedulerLogger() error {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		rotated := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "run_scheduler.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		mw := io.MultiWriter(os.Stdout, rotated)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loops in background goroutines and returns a stop function
func (s *RunScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	// Stuck-row sweep worker
	go s.startSweepWorker(ctx)

	return cancel
}

func (s *RunScheduler) runOnce(ctx context.Context) {
	s.promoteScheduledRuns(ctx)

	running, err := s.runRepo.ListByStatus(ctx, models.RunStatusRunning, 100, 0)
	if err != nil {
		s.logger.Printf("scheduler: list running runs failed: %v", err)
		return
	}
	if len(running) == 0 {
		return
	}
	s.logger.Printf("scheduler: %d running runs", len(running))

	for _, run := range running {
		go s.dispatchWithLock(ctx, run)
	}
}

// promoteScheduledRuns moves scheduled runs whose start time has arrived into running
func (s *RunScheduler) promoteScheduledRuns(ctx context.Context) {
	due, err := s.runRepo.ListDueScheduled(ctx, utils.UTCNow(), 100)
	if err != nil {
		s.logger.Printf("scheduler: list due scheduled runs failed: %v", err)
		return
	}

	for _, run := range due {
		applied, err := s.runRepo.UpdateStatus(ctx, run.ID, models.RunStatusScheduled, models.RunStatusRunning)
		if err != nil {
			s.logger.Printf("scheduler: promote run %s failed: %v", run.UUID, err)
			continue
		}
		if !applied {
			continue
		}

		if run.Metadata.Run.StartTime == nil {
			run.Metadata.Run.StartTime = utils.UTCNowPtr()
			if err := s.runRepo.UpdateMetadata(ctx, run.ID, run.Metadata); err != nil {
				s.logger.Printf("scheduler: record start time for run %s failed: %v", run.UUID, err)
			}
		}
		s.logger.Printf("scheduler: promoted scheduled run %s to running", run.UUID)
	}
}

// dispatchWithLock runs one dispatch cycle for the run under a per-run redis
// lock. Losing the lock means another cycle for this run is in flight; that
// cycle will pick up whatever rows this one would have.
func (s *RunScheduler) dispatchWithLock(ctx context.Context, run *models.Run) {
	lockKey := fmt.Sprintf("run:%s:dispatch-lock", run.UUID)

	if s.rc != nil {
		acquired, err := s.rc.SetNX(ctx, lockKey, "1", s.lockTTL).Result()
		if err != nil {
			s.logger.Printf("scheduler: lock acquisition for run %s failed: %v", run.UUID, err)
			return
		}
		if !acquired {
			return
		}
		defer s.rc.Del(ctx, lockKey)
	}

	result, err := s.runFlow.DispatchCycle(ctx, run.ID)
	if err != nil {
		s.logger.Printf("scheduler: dispatch cycle for run %s failed: %v", run.UUID, err)
		return
	}

	switch {
	case result.Dispatched > 0 || result.Failed > 0:
		s.logger.Printf("scheduler: run %s cycle %s: dispatched=%d failed=%d", run.UUID, result.Outcome, result.Dispatched, result.Failed)
	case result.Outcome != "":
		s.logger.Printf("scheduler: run %s cycle: %s", run.UUID, result.Outcome)
	}
}

// startSweepWorker periodically fails rows stuck in calling
func (s *RunScheduler) startSweepWorker(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.runFlow.SweepStuckRows(ctx, s.stuckTimeout)
			if err != nil {
				s.logger.Printf("scheduler: stuck-row sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				s.logger.Printf("scheduler: stuck-row sweep marked %d rows failed after %s in calling", swept, s.stuckTimeout)
			}
		}
	}
}
