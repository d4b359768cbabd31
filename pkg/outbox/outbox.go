// Package outbox queues remote writes locally and delivers them to the
// relational store with retry and exponential backoff.
//
// Local state is always written first by the engines; the outbox makes the
// remote mirror eventually consistent instead of fire-and-forget. Pending jobs
// are persisted in the local key-value store so they survive restarts.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/metrics"
	"github.com/deenly/progress-core/pkg/repository"
)

// Config tunes delivery.
type Config struct {
	// MaxElapsed bounds the retry budget of one job within one flush.
	MaxElapsed time.Duration
	// NewBackOff overrides the retry policy. Defaults to exponential backoff bounded by MaxElapsed.
	NewBackOff func() backoff.BackOff
}

// Outbox is a FIFO of pending remote writes. Safe for concurrent use.
type Outbox struct {
	mu      sync.Mutex // guards jobs
	flushMu sync.Mutex // serializes Flush
	jobs    []Job

	store      kv.Store
	repo       repository.ProgressRepository
	clock      common.Clock
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
	notify     chan struct{}
}

// New creates an Outbox that delivers to repo.
func New(store kv.Store, repo repository.ProgressRepository, clock common.Clock, logger *slog.Logger, cfg Config) *Outbox {
	newBackOff := cfg.NewBackOff
	if newBackOff == nil {
		maxElapsed := cfg.MaxElapsed
		if maxElapsed <= 0 {
			maxElapsed = 10 * time.Second
		}
		newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = maxElapsed
			return b
		}
	}

	return &Outbox{
		store:      store,
		repo:       repo,
		clock:      clock,
		logger:     logger,
		newBackOff: newBackOff,
		notify:     make(chan struct{}, 1),
	}
}

// Load restores pending jobs persisted by a previous process.
func (o *Outbox) Load(ctx context.Context) error {
	var jobs []Job
	found, err := kv.GetJSON(ctx, o.store, kv.KeyOutboxJobs, &jobs)
	if err != nil {
		return progresserrors.ErrStorageError("load outbox", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if found {
		o.jobs = o.jobs[:0]
		for _, j := range jobs {
			if !j.Op.IsValid() {
				o.logger.Warn("Dropping outbox job with unknown op", "job_id", j.ID, "op", j.Op)
				continue
			}
			o.jobs = append(o.jobs, j)
		}
	}
	metrics.OutboxPending.Set(float64(len(o.jobs)))

	if len(o.jobs) > 0 {
		o.logger.Info("Outbox restored pending jobs", "pending", len(o.jobs))
		o.signal()
	}
	return nil
}

// Pending returns a copy of the queued jobs in delivery order.
func (o *Outbox) Pending() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Job, len(o.jobs))
	copy(out, o.jobs)
	return out
}

// EnqueueDailyProgress queues a full-row upsert keyed by (user, date).
func (o *Outbox) EnqueueDailyProgress(ctx context.Context, userID string, p domain.DailyProgress) error {
	return o.enqueue(ctx, OpUpsertDailyProgress, userID, p.Date, p)
}

// EnqueueChallengeProgress queues an upsert keyed by (user, challenge, week).
func (o *Outbox) EnqueueChallengeProgress(ctx context.Context, userID string, p domain.ChallengeProgress) error {
	return o.enqueue(ctx, OpUpsertChallengeProgress, userID, string(p.ChallengeID)+"/"+p.WeekStart, p)
}

// EnqueueDeleteChallengesBefore queues removal of challenge rows older than weekStart.
func (o *Outbox) EnqueueDeleteChallengesBefore(ctx context.Context, userID, weekStart string) error {
	return o.enqueue(ctx, OpDeleteChallengesBefore, userID, weekStart, deleteBeforePayload{WeekStart: weekStart})
}

// EnqueueAchievementUnlock queues an insert-only unlock record.
func (o *Outbox) EnqueueAchievementUnlock(ctx context.Context, unlock domain.AchievementUnlock) error {
	return o.enqueue(ctx, OpInsertAchievementUnlock, unlock.UserID, "", unlock)
}

// EnqueuePoints queues the absolute points total for the user.
func (o *Outbox) EnqueuePoints(ctx context.Context, userID string, total int) error {
	return o.enqueue(ctx, OpUpsertPoints, userID, "total", pointsPayload{Total: total})
}

// enqueue appends a job, or replaces the payload of a pending job with the same
// coalescing key. A replaced job gets a new ID so an in-flight delivery of the
// old payload does not remove it.
func (o *Outbox) enqueue(ctx context.Context, op Op, userID, key string, payload any) error {
	if userID == "" {
		return progresserrors.ErrValidationFailed("userID", "remote identity required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode %s payload: %w", op, err)
	}

	job := Job{
		ID:         uuid.NewString(),
		Op:         op,
		UserID:     userID,
		Key:        key,
		Payload:    raw,
		EnqueuedAt: o.clock.Now(),
	}

	o.mu.Lock()
	replaced := false
	if key != "" {
		for i := range o.jobs {
			if o.jobs[i].Op == op && o.jobs[i].UserID == userID && o.jobs[i].Key == key {
				o.jobs[i].ID = job.ID
				o.jobs[i].Payload = job.Payload
				replaced = true
				break
			}
		}
	}
	if !replaced {
		o.jobs = append(o.jobs, job)
	}
	o.persistLocked(ctx)
	o.mu.Unlock()

	o.signal()
	return nil
}

// Flush delivers pending jobs in FIFO order and returns how many were sent.
//
// Each job is retried with backoff. A non-retryable failure drops the job and
// continues; a retryable failure that exhausts the budget keeps the job at the
// head of the queue and stops the flush so ordering is preserved.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	sent := 0
	for {
		job, ok := o.head()
		if !ok {
			return sent, nil
		}

		err := o.deliver(ctx, job)
		switch {
		case err == nil:
			o.remove(ctx, job.ID)
			sent++
			metrics.OutboxJobs.WithLabelValues(string(job.Op), "sent").Inc()

		case !IsRetryableError(err):
			o.remove(ctx, job.ID)
			metrics.OutboxJobs.WithLabelValues(string(job.Op), "dropped").Inc()
			o.logger.Error("Outbox dropped non-retryable job",
				"job_id", job.ID,
				"op", job.Op,
				"user_id", job.UserID,
				"error", err,
			)

		default:
			attempts := o.bumpAttempts(ctx, job.ID)
			metrics.OutboxJobs.WithLabelValues(string(job.Op), "retry").Inc()
			o.logger.Warn("Outbox delivery failed, will retry",
				"job_id", job.ID,
				"op", job.Op,
				"attempts", attempts,
				"error", err,
			)
			return sent, progresserrors.ErrSyncFailed(string(job.Op), err)
		}
	}
}

// Run flushes whenever a job is enqueued and at every interval tick, until ctx is done.
// A non-positive interval disables the periodic flush.
func (o *Outbox) Run(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.notify:
		case <-tick:
		}
		if _, err := o.Flush(ctx); err != nil && ctx.Err() == nil {
			o.logger.Debug("Outbox flush incomplete", "error", err)
		}
	}
}

func (o *Outbox) deliver(ctx context.Context, job Job) error {
	b := backoff.WithContext(o.newBackOff(), ctx)
	return backoff.Retry(func() error {
		err := o.dispatch(ctx, job)
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (o *Outbox) dispatch(ctx context.Context, job Job) error {
	switch job.Op {
	case OpUpsertDailyProgress:
		var p domain.DailyProgress
		if err := decode(job, &p); err != nil {
			return err
		}
		return o.repo.UpsertDailyProgress(ctx, job.UserID, &p)

	case OpUpsertChallengeProgress:
		var p domain.ChallengeProgress
		if err := decode(job, &p); err != nil {
			return err
		}
		return o.repo.UpsertChallengeProgress(ctx, job.UserID, &p)

	case OpDeleteChallengesBefore:
		var p deleteBeforePayload
		if err := decode(job, &p); err != nil {
			return err
		}
		deleted, err := o.repo.DeleteChallengeProgressBefore(ctx, job.UserID, p.WeekStart)
		if err == nil && deleted > 0 {
			o.logger.Debug("Removed old challenge rows", "user_id", job.UserID, "before", p.WeekStart, "rows", deleted)
		}
		return err

	case OpInsertAchievementUnlock:
		var u domain.AchievementUnlock
		if err := decode(job, &u); err != nil {
			return err
		}
		return o.repo.InsertAchievementUnlock(ctx, &u)

	case OpUpsertPoints:
		var p pointsPayload
		if err := decode(job, &p); err != nil {
			return err
		}
		return o.repo.UpsertTotalPoints(ctx, job.UserID, p.Total)

	default:
		return fmt.Errorf("%w: unknown op %q", errInvalidPayload, job.Op)
	}
}

func decode(job Job, v any) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errInvalidPayload, job.Op, err)
	}
	return nil
}

func (o *Outbox) head() (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.jobs) == 0 {
		return Job{}, false
	}
	return o.jobs[0], true
}

func (o *Outbox) remove(ctx context.Context, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.jobs {
		if o.jobs[i].ID == id {
			o.jobs = append(o.jobs[:i], o.jobs[i+1:]...)
			o.persistLocked(ctx)
			return
		}
	}
}

func (o *Outbox) bumpAttempts(ctx context.Context, id string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.jobs {
		if o.jobs[i].ID == id {
			o.jobs[i].Attempts++
			o.persistLocked(ctx)
			return o.jobs[i].Attempts
		}
	}
	return 0
}

// persistLocked must be called with o.mu held. Failures are logged; the
// in-memory queue stays authoritative for this process.
func (o *Outbox) persistLocked(ctx context.Context) {
	metrics.OutboxPending.Set(float64(len(o.jobs)))
	if err := kv.SetJSON(ctx, o.store, kv.KeyOutboxJobs, o.jobs); err != nil {
		o.logger.Error("Failed to persist outbox", "pending", len(o.jobs), "error", err)
	}
}

func (o *Outbox) signal() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}
