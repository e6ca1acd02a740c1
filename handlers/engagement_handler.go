package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/services"
)

type EngagementHandler struct {
	activityService *services.ActivityService
	streakService   *services.StreakService
	metricsService  *services.MetricsService
	scoreService    *services.ScoreService
}

func NewEngagementHandler(
	activityService *services.ActivityService,
	streakService *services.StreakService,
	metricsService *services.MetricsService,
	scoreService *services.ScoreService,
) *EngagementHandler {
	return &EngagementHandler{
		activityService: activityService,
		streakService:   streakService,
		metricsService:  metricsService,
		scoreService:    scoreService,
	}
}

type trackActivityRequest struct {
	Type    activity.Type  `json:"type"`
	Payload map[string]any `json:"payload"`
	EventID string         `json:"event_id,omitempty"`
}

// TrackActivity accepts one activity event from the client.
func (h *EngagementHandler) TrackActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	var req trackActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	event := activity.Event{
		UserID:  userID,
		Type:    req.Type,
		Payload: req.Payload,
	}
	// Client-supplied event IDs become idempotency keys for offline replays.
	if req.EventID != "" {
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid event_id")
			return
		}
		event.ID = eventID
	}

	if err := h.activityService.Track(ctx, event); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "tracked"})
}

// RecordLogin advances the login streak and logs a login event.
func (h *EngagementHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	loginStreak, err := h.streakService.RecordLogin(ctx, userID, time.Now())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	event := activity.Event{UserID: userID, Type: activity.TypeLogin}
	if err := h.activityService.Track(ctx, event); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, loginStreak)
}

// GetStats returns the live stats snapshot for the authenticated user.
func (h *EngagementHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	st, err := h.metricsService.Snapshot(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, st)
}

// GetScore returns the rollup row with its three period buckets.
func (h *EngagementHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	row, err := h.scoreService.Get(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, row)
}
