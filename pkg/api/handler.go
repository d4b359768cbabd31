package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/deenly/progress-core/pkg/app"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
)

const requestTimeout = 5 * time.Second

// Service is the application surface the handlers drive. *app.State implements it.
type Service interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
	CompletePrayers(ctx context.Context, completed int) (app.Outcome, error)
	IncrementTasbih(ctx context.Context, n int) (app.Outcome, error)
	ResetTasbihSession() int
	RecordQuran(ctx context.Context, pages, verses int) (app.Outcome, error)
	WatchLecture(ctx context.Context) (app.Outcome, error)
	RecordWorkout(ctx context.Context) (app.Outcome, error)
	SetWellnessStreak(ctx context.Context, streak int) (app.Outcome, error)
	SetStreaks(ctx context.Context, prayer, dhikr, quran int) (app.Outcome, error)
	UpdateChallenge(ctx context.Context, id domain.ChallengeID, value int) (app.Outcome, error)
	Challenges() []domain.ChallengeStatus
	Achievements() []domain.AchievementStatus
	Achievement(id domain.AchievementID) (domain.AchievementStatus, error)
	TotalPoints(ctx context.Context) (int, error)
}

// Handler serves the progress API.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler creates a Handler over svc.
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type prayersRequest struct {
	Completed int `json:"completed"`
}

type tasbihRequest struct {
	Count int `json:"count"`
}

type quranRequest struct {
	Pages  int `json:"pages"`
	Verses int `json:"verses"`
}

type streaksRequest struct {
	Prayer int `json:"prayer"`
	Dhikr  int `json:"dhikr"`
	Quran  int `json:"quran"`
}

type wellnessRequest struct {
	Streak int `json:"streak"`
}

type challengeRequest struct {
	Progress int `json:"progress"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetSnapshot returns the full user-visible state.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := h.svc.Snapshot(ctx)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snap)
}

// CompletePrayers sets how many of today's prayers are done. Body: {"completed": n}.
func (h *Handler) CompletePrayers(w http.ResponseWriter, r *http.Request) {
	var req prayersRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context) (app.Outcome, error) {
		return h.svc.CompletePrayers(ctx, req.Completed)
	})
}

// IncrementTasbih counts dhikr repetitions. Body: {"count": n}, one when omitted.
func (h *Handler) IncrementTasbih(w http.ResponseWriter, r *http.Request) {
	req := tasbihRequest{Count: 1}
	if !h.decode(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context) (app.Outcome, error) {
		return h.svc.IncrementTasbih(ctx, req.Count)
	})
}

// ResetTasbih zeroes the tasbih session counter.
func (h *Handler) ResetTasbih(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]int{"tasbihSession": h.svc.ResetTasbihSession()})
}

// RecordQuran adds pages read and verses memorized. Body: {"pages": n, "verses": n}.
func (h *Handler) RecordQuran(w http.ResponseWriter, r *http.Request) {
	var req quranRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context) (app.Outcome, error) {
		return h.svc.RecordQuran(ctx, req.Pages, req.Verses)
	})
}

// WatchLecture counts one watched lecture.
func (h *Handler) WatchLecture(w http.ResponseWriter, r *http.Request) {
	h.outcome(w, r, h.svc.WatchLecture)
}

// RecordWorkout counts one workout.
func (h *Handler) RecordWorkout(w http.ResponseWriter, r *http.Request) {
	h.outcome(w, r, h.svc.RecordWorkout)
}

// SetStreaks records the prayer, dhikr and Quran streaks.
func (h *Handler) SetStreaks(w http.ResponseWriter, r *http.Request) {
	var req streaksRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context) (app.Outcome, error) {
		return h.svc.SetStreaks(ctx, req.Prayer, req.Dhikr, req.Quran)
	})
}

// SetWellnessStreak records the journaling streak. Body: {"streak": n}.
func (h *Handler) SetWellnessStreak(w http.ResponseWriter, r *http.Request) {
	var req wellnessRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context) (app.Outcome, error) {
		return h.svc.SetWellnessStreak(ctx, req.Streak)
	})
}

// UpdateChallenge sets the progress of the challenge named by the {id} path variable.
func (h *Handler) UpdateChallenge(w http.ResponseWriter, r *http.Request) {
	id := domain.ChallengeID(mux.Vars(r)["id"])

	var req challengeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context) (app.Outcome, error) {
		return h.svc.UpdateChallenge(ctx, id, req.Progress)
	})
}

// GetChallenges returns this week's challenges.
func (h *Handler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.svc.Challenges())
}

// GetAchievements returns every achievement with its unlock state.
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.svc.Achievements())
}

// GetAchievement returns the achievement named by the {id} path variable.
func (h *Handler) GetAchievement(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Achievement(domain.AchievementID(mux.Vars(r)["id"]))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

// GetPoints returns the points ledger total.
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	total, err := h.svc.TotalPoints(ctx)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"totalPoints": total})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "progress-core"})
}

func (h *Handler) outcome(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (app.Outcome, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	out, err := fn(ctx)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.respondWithError(w, progresserrors.ErrInvalidInput("invalid request body", err))
	return false
}

func (h *Handler) respondWithError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Code: "INTERNAL_ERROR", Message: "internal server error"}

	var pe *progresserrors.ProgressError
	if errors.As(err, &pe) {
		resp.Code = pe.Code
		resp.Message = pe.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	respondWithJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case progresserrors.HasCode(err, progresserrors.ErrCodeValidationFailed),
		progresserrors.HasCode(err, progresserrors.ErrCodeInvalidInput):
		return http.StatusBadRequest
	case progresserrors.HasCode(err, progresserrors.ErrCodeChallengeNotFound),
		progresserrors.HasCode(err, progresserrors.ErrCodeAchievementNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
