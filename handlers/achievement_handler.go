package handlers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/achievement"
	"jerkyClubAPI/middleware"
	"jerkyClubAPI/services"
)

type AchievementHandler struct {
	metricsService     *services.MetricsService
	achievementService *services.AchievementService
	progressService    *services.ProgressService
}

func NewAchievementHandler(
	metricsService *services.MetricsService,
	achievementService *services.AchievementService,
	progressService *services.ProgressService,
) *AchievementHandler {
	return &AchievementHandler{
		metricsService:     metricsService,
		achievementService: achievementService,
		progressService:    progressService,
	}
}

// GetAchievements lists the registry joined with the caller's progress.
func (h *AchievementHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
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

	category := achievement.Category(r.URL.Query().Get("category"))
	list, err := h.achievementService.ListWithProgress(ctx, userID, st, category)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// GetClosest returns the next coin or tier the caller is closest to.
func (h *AchievementHandler) GetClosest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	category := achievement.Category(r.URL.Query().Get("category"))
	next, err := h.progressService.Closest(ctx, userID, category)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if next == nil {
		respondWithJSON(w, http.StatusOK, map[string]any{"next": nil})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"next": next})
}

// isAdmin checks the caller against the ADMIN_USER_IDS allow list.
func isAdmin(clerkID string) bool {
	for _, admin := range strings.Split(os.Getenv("ADMIN_USER_IDS"), ",") {
		if admin != "" && strings.TrimSpace(admin) == clerkID {
			return true
		}
	}
	return false
}

// ClearUserAchievements wipes one user's awards. Admin only.
func (h *AchievementHandler) ClearUserAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok || !isAdmin(clerkID) {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}
	adminID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid userId")
		return
	}

	cleared, err := h.achievementService.ClearForUser(ctx, targetID, adminID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

// ClearAllAchievements wipes every award. Admin only.
func (h *AchievementHandler) ClearAllAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok || !isAdmin(clerkID) {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}
	adminID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	cleared, err := h.achievementService.ClearAll(ctx, adminID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
