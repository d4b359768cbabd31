package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const jobTimeout = 30 * time.Second

// Target is the application state driven by the scheduled jobs.
type Target interface {
	Rollover(ctx context.Context)
	Flush(ctx context.Context) (int, error)
}

// Reloader refreshes the challenge and achievement catalog.
type Reloader interface {
	Reload() error
}

// Scheduler runs the periodic outbox flush and the midnight rollover.
type Scheduler struct {
	scheduler     *gocron.Scheduler
	target        Target
	catalog       Reloader
	flushInterval time.Duration
	logger        *slog.Logger
}

// New creates a scheduler whose calendar jobs run in loc.
// A non-positive flushInterval disables the periodic flush.
func New(target Target, catalog Reloader, loc *time.Location, flushInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:     gocron.NewScheduler(loc),
		target:        target,
		catalog:       catalog,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Start registers the jobs and begins running them in the background.
func (s *Scheduler) Start() error {
	if s.flushInterval > 0 {
		if _, err := s.scheduler.Every(s.flushInterval).Tag("flush").SingletonMode().Do(s.flush); err != nil {
			return err
		}
	}
	if _, err := s.scheduler.Every(1).Day().At("00:00").Tag("rollover").Do(s.rollover); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the registered job count.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sent, err := s.target.Flush(ctx)
	if err != nil {
		s.logger.Warn("Scheduled flush incomplete", "sent", sent, "error", err)
		return
	}
	if sent > 0 {
		s.logger.Debug("Scheduled flush delivered jobs", "sent", sent)
	}
}

func (s *Scheduler) rollover() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if s.catalog != nil {
		if err := s.catalog.Reload(); err != nil {
			s.logger.Error("Failed to reload catalog, keeping current", "error", err)
		}
	}
	s.target.Rollover(ctx)
	s.logger.Info("Day rollover applied")
}
