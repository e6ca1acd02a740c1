package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"jerkyClubAPI/internal/score"
	"jerkyClubAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

func parsePeriod(r *http.Request) score.Period {
	period := score.Period(r.URL.Query().Get("period"))
	if period == "" {
		return score.PeriodAllTime
	}
	return period
}

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	period := parsePeriod(r)
	// -1 marks the limit as unset; an explicit limit=0 yields an empty page.
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	view, err := h.leaderboardService.TopN(ctx, period, limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *LeaderboardHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	pos, err := h.leaderboardService.Position(ctx, userID, parsePeriod(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, pos)
}
