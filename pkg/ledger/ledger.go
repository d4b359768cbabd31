// Package ledger owns the user's points total.
//
// A single goroutine owns the total; every read and grant is a message to it,
// so concurrent grants from the challenge and achievement engines never lose
// an update. Grants are additive only.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/metrics"
	"github.com/deenly/progress-core/pkg/repository"
)

// Sources label what a grant was awarded for.
const (
	SourceChallenge   = "challenge"
	SourceAchievement = "achievement"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("ledger: closed")

// PointsQueue receives the absolute total after each grant for remote mirroring.
type PointsQueue interface {
	EnqueuePoints(ctx context.Context, userID string, total int) error
}

// Deps wires a Ledger. Repo and Queue are only used when UserID is set.
type Deps struct {
	UserID string
	Store  kv.Store
	Repo   repository.ProgressRepository
	Queue  PointsQueue
	Logger *slog.Logger
}

type requestKind int

const (
	kindAdd requestKind = iota
	kindTotal
	kindLoad
)

type request struct {
	ctx    context.Context
	kind   requestKind
	points int
	source string
	reply  chan result
}

type result struct {
	total int
	err   error
}

// Ledger is the points actor.
type Ledger struct {
	deps     Deps
	requests chan request
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	total int // owned by run
}

// New starts the ledger goroutine. Call Close to stop it.
func New(deps Deps) *Ledger {
	l := &Ledger{
		deps:     deps,
		requests: make(chan request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Load reads the local total and reconciles it with the remote mirror as
// max(local, remote). A lower local value is written back.
func (l *Ledger) Load(ctx context.Context) (int, error) {
	return l.call(ctx, request{kind: kindLoad})
}

// Add grants points and returns the new total.
func (l *Ledger) Add(ctx context.Context, points int, source string) (int, error) {
	if points <= 0 {
		return 0, progresserrors.ErrValidationFailed("points", "grant must be positive, got "+strconv.Itoa(points))
	}
	return l.call(ctx, request{kind: kindAdd, points: points, source: source})
}

// Total returns the current total.
func (l *Ledger) Total(ctx context.Context) (int, error) {
	return l.call(ctx, request{kind: kindTotal})
}

// Close stops the actor and waits for it to exit. Safe to call more than once.
func (l *Ledger) Close() {
	l.once.Do(func() { close(l.done) })
	<-l.stopped
}

func (l *Ledger) call(ctx context.Context, req request) (int, error) {
	req.ctx = ctx
	req.reply = make(chan result, 1)

	select {
	case l.requests <- req:
	case <-l.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	res := <-req.reply
	return res.total, res.err
}

func (l *Ledger) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case req := <-l.requests:
			req.reply <- l.handle(req)
		}
	}
}

func (l *Ledger) handle(req request) result {
	switch req.kind {
	case kindAdd:
		l.total += req.points
		metrics.PointsAwarded.WithLabelValues(req.source).Add(float64(req.points))
		l.deps.Logger.Info("Points awarded",
			"points", req.points,
			"source", req.source,
			"total", l.total,
		)
		l.persist(req.ctx)
		l.mirror(req.ctx)
		return result{total: l.total}

	case kindLoad:
		return l.load(req.ctx)

	default:
		return result{total: l.total}
	}
}

func (l *Ledger) load(ctx context.Context) result {
	raw, err := l.deps.Store.Get(ctx, kv.KeyTotalPoints)
	switch {
	case err == nil:
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			l.deps.Logger.Warn("Ignoring corrupt local points total", "value", raw, "error", convErr)
			n = 0
		}
		l.total = n
	case errors.Is(err, kv.ErrNotFound):
		l.total = 0
	default:
		l.deps.Logger.Error("Failed to read local points total", "error", err)
	}

	if !l.remoteEnabled() {
		return result{total: l.total}
	}

	remote, err := l.deps.Repo.GetTotalPoints(ctx, l.deps.UserID)
	if err != nil {
		l.deps.Logger.Warn("Failed to read remote points total, using local",
			"user_id", l.deps.UserID,
			"error", err,
		)
		return result{total: l.total}
	}

	switch {
	case remote > l.total:
		l.deps.Logger.Info("Remote points total ahead of local", "local", l.total, "remote", remote)
		l.total = remote
		l.persist(ctx)
	case remote < l.total:
		// Grants made while offline never reached the mirror.
		l.mirror(ctx)
	}
	return result{total: l.total}
}

func (l *Ledger) persist(ctx context.Context) {
	if err := l.deps.Store.Set(ctx, kv.KeyTotalPoints, strconv.Itoa(l.total)); err != nil {
		l.deps.Logger.Error("Failed to persist points total", "total", l.total, "error", err)
	}
}

func (l *Ledger) mirror(ctx context.Context) {
	if !l.remoteEnabled() || l.deps.Queue == nil {
		return
	}
	if err := l.deps.Queue.EnqueuePoints(ctx, l.deps.UserID, l.total); err != nil {
		l.deps.Logger.Warn("Failed to enqueue points mirror", "total", l.total, "error", err)
	}
}

func (l *Ledger) remoteEnabled() bool {
	return l.deps.UserID != "" && l.deps.Repo != nil
}
