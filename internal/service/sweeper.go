package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper enforces the retention window: audit entries and soft-deleted
// tasks and projects older than it are removed, along with expired codes.
type Sweeper struct {
	projects  ProjectStore
	tasks     TaskStore
	activity  ActivityStore
	otps      OTPStore
	retention time.Duration
	log       *zap.Logger
	cron      *cron.Cron
	now       func() time.Time
}

func NewSweeper(projects ProjectStore, tasks TaskStore, activity ActivityStore, otps OTPStore, retentionDays int, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if retentionDays < 1 {
		retentionDays = 30
	}
	return &Sweeper{
		projects: projects, tasks: tasks, activity: activity, otps: otps,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.Named("sweeper"),
		now:       time.Now,
	}
}

// Sweep runs one pass.  Each step runs even if an earlier one failed.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now().UTC()
	cutoff := now.Add(-s.retention)
	var errs []error
	step := func(name string, fn func() (int64, error)) {
		n, err := fn()
		if err != nil {
			s.log.Error("sweep step failed", zap.String("step", name), zap.Error(err))
			errs = append(errs, err)
			return
		}
		if n > 0 {
			s.log.Info("swept", zap.String("step", name), zap.Int64("rows", n))
		}
	}
	step("activity", func() (int64, error) { return s.activity.PurgeBefore(ctx, cutoff) })
	step("tasks", func() (int64, error) { return s.tasks.PurgeDeleted(ctx, cutoff) })
	step("projects", func() (int64, error) { return s.projects.PurgeDeleted(ctx, cutoff) })
	step("otps", func() (int64, error) { return s.otps.PurgeExpired(ctx, now) })
	return errors.Join(errs...)
}

// Start schedules Sweep on spec, a standard cron expression or descriptor
// such as "@midnight".
func (s *Sweeper) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_ = s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("retention sweep scheduled", zap.String("schedule", spec), zap.Duration("retention", s.retention))
	return nil
}

// Stop halts the schedule and returns a context done when a running
// sweep finishes.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}
