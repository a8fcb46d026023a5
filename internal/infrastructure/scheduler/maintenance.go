// Package scheduler runs the reconciliation jobs once a day.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// cronTickerInterval is the interval at which the cron loop checks the clock
const cronTickerInterval = 1 * time.Minute

// Jobs are the maintenance operations the scheduler drives
type Jobs interface {
	RepairMissing(ctx context.Context) returnsapp.ReconcileResult
	PurgeOrphans(ctx context.Context) returnsapp.ReconcileResult
}

// Config holds the daily maintenance schedule
type Config struct {
	Enabled bool
	// DailySchedule is a cron expression; only "minute hour" are honored
	DailySchedule string
	// SweepOrphans also deletes orphaned records. Repair always runs.
	SweepOrphans bool
	JobTimeout   time.Duration
	Location     *time.Location
}

// ParseCronSchedule parses a cron expression "minute hour * * *" to extract hour and minute.
// Returns 2:00 if the expression is empty.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour, minute = 2, 0

	parts := strings.Fields(cronExpr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	if parts[0] != "*" {
		if minute, err = parseField(parts[0]); err != nil {
			return 2, 0, err
		}
	}
	if parts[1] != "*" {
		if hour, err = parseField(parts[1]); err != nil {
			return 2, 0, err
		}
	}

	if minute < 0 || minute > 59 {
		return 2, 0, fmt.Errorf("%w: minute must be 0-59, got %d", ErrInvalidConfig, minute)
	}
	if hour < 0 || hour > 23 {
		return 2, 0, fmt.Errorf("%w: hour must be 0-23, got %d", ErrInvalidConfig, hour)
	}
	return hour, minute, nil
}

func parseField(s string) (int, error) {
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidConfig, s)
		}
		val = val*10 + int(c-'0')
	}
	return val, nil
}

// RunSummary is the outcome of one maintenance run
type RunSummary struct {
	StartedAt time.Time                   `json:"startedAt"`
	Repair    returnsapp.ReconcileResult  `json:"repair"`
	Sweep     *returnsapp.ReconcileResult `json:"sweep,omitempty"`
}

// MaintenanceScheduler runs the reconciliation jobs at a fixed time of day
type MaintenanceScheduler struct {
	config Config
	hour   int
	minute int
	jobs   Jobs
	logger *zap.Logger

	now  func() time.Time
	tick time.Duration

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	running   bool // a job run is in progress
	lastRun   *RunSummary
	nextRunAt time.Time
}

// NewMaintenanceScheduler validates cfg and builds a scheduler
func NewMaintenanceScheduler(cfg Config, jobs Jobs, logger *zap.Logger) (*MaintenanceScheduler, error) {
	hour, minute, err := ParseCronSchedule(cfg.DailySchedule)
	if err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	return &MaintenanceScheduler{
		config: cfg,
		hour:   hour,
		minute: minute,
		jobs:   jobs,
		logger: logger.Named("maintenance"),
		now:    time.Now,
		tick:   cronTickerInterval,
	}, nil
}

// Start launches the cron loop. It is a no-op when disabled or already started.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Maintenance scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.nextRunAt = s.nextRun(s.now())
	next := s.nextRunAt
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Maintenance scheduler started",
		zap.Int("cron_hour", s.hour),
		zap.Int("cron_minute", s.minute),
		zap.Bool("sweep_orphans", s.config.SweepOrphans),
		zap.Time("next_run_at", next),
	)
	return nil
}

// Stop cancels the loop and waits for it, or for ctx
func (s *MaintenanceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *MaintenanceScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if !s.due(now) {
				continue
			}
			if _, err := s.RunNow(ctx); err != nil {
				s.logger.Warn("Scheduled maintenance skipped", zap.Error(err))
			}
			s.mu.Lock()
			s.nextRunAt = s.nextRun(now)
			s.mu.Unlock()
		}
	}
}

// due reports whether now reached the next run time
func (s *MaintenanceScheduler) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !now.Before(s.nextRunAt)
}

// nextRun is the first scheduled time strictly after now
func (s *MaintenanceScheduler) nextRun(now time.Time) time.Time {
	local := now.In(s.config.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.config.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunNow runs the jobs immediately. Concurrent calls are rejected.
func (s *MaintenanceScheduler) RunNow(ctx context.Context) (RunSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return RunSummary{}, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	summary := RunSummary{StartedAt: s.now()}
	telemetry.WithProfileLabels(ctx, telemetry.JobLabels(returnsapp.JobRepairSweep), func(ctx context.Context) {
		summary.Repair = s.jobs.RepairMissing(ctx)
	})
	if s.config.SweepOrphans {
		telemetry.WithProfileLabels(ctx, telemetry.JobLabels(returnsapp.JobOrphanSweep), func(ctx context.Context) {
			sweep := s.jobs.PurgeOrphans(ctx)
			summary.Sweep = &sweep
		})
	}

	fields := []zap.Field{
		zap.Int("repair_found", summary.Repair.Found),
		zap.Int("repair_failed", summary.Repair.Failed),
	}
	if summary.Sweep != nil {
		fields = append(fields,
			zap.Int("sweep_found", summary.Sweep.Found),
			zap.Int("sweep_failed", summary.Sweep.Failed),
		)
	}
	s.logger.Info("Maintenance run finished", fields...)

	s.mu.Lock()
	s.lastRun = &summary
	s.mu.Unlock()
	return summary, nil
}

// Status describes the schedule and the last run
type Status struct {
	Enabled   bool        `json:"enabled"`
	Schedule  string      `json:"schedule"`
	IsRunning bool        `json:"isRunning"`
	NextRunAt *time.Time  `json:"nextRunAt,omitempty"`
	LastRun   *RunSummary `json:"lastRun,omitempty"`
}

// GetStatus returns the current scheduler state
func (s *MaintenanceScheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Enabled:   s.config.Enabled,
		Schedule:  fmt.Sprintf("%02d:%02d %s", s.hour, s.minute, s.config.Location),
		IsRunning: s.running,
		LastRun:   s.lastRun,
	}
	if s.isRunning {
		next := s.nextRunAt
		st.NextRunAt = &next
	}
	return st
}
