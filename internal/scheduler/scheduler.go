package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stanstork/schedule-api/internal/notification"
)

const runTimeout = 50 * time.Second

// Refresher regenerates notifications for every user.
type Refresher interface {
	RefreshAll(ctx context.Context) (notification.RefreshSummary, error)
}

// Scheduler periodically refreshes event notifications. A run that is still
// going when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 1m") and prepares the job without starting it.
func New(spec string, refresher Refresher, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := NewCronLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		refresher: refresher,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "invalid schedule %q", spec)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info().Msg("Starting notification scheduler...")
	s.cron.Start()
}

// Stop halts scheduling, cancels an in-flight run and waits for it to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	var stopped context.Context
	s.once.Do(func() {
		stopped = s.cron.Stop()
		s.cancel()
	})
	if stopped == nil {
		return nil
	}
	select {
	case <-stopped.Done():
		s.logger.Info().Msg("Notification scheduler stopped.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single refresh pass over all users.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	summary, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh all notifications")
	}

	evt := s.logger.Debug()
	if summary.Failed > 0 {
		evt = s.logger.Warn()
	}
	evt.
		Int("users", summary.Users).
		Int("failed", summary.Failed).
		Int("created", summary.Created).
		Int("deleted", summary.Deleted).
		Dur("duration", time.Since(start)).
		Msg("notification refresh finished")
	return nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled notification refresh failed")
	}
}
