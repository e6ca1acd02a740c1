package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/ranking"
	"jerkyClubAPI/services"
)

type RankingHandler struct {
	rankingService *services.RankingService
}

func NewRankingHandler(rankingService *services.RankingService) *RankingHandler {
	return &RankingHandler{rankingService: rankingService}
}

func (h *RankingHandler) SaveRanking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	var req ranking.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ListID == uuid.Nil || req.ProductID == uuid.Nil {
		respondWithError(w, http.StatusBadRequest, "list_id and product_id are required")
		return
	}

	saved, err := h.rankingService.Save(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, saved)
}

func (h *RankingHandler) DeleteRanking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	listID, err := uuid.Parse(r.URL.Query().Get("listId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid listId")
		return
	}
	productID, err := uuid.Parse(r.URL.Query().Get("productId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid productId")
		return
	}

	if err := h.rankingService.Delete(ctx, userID, listID, productID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Ranking removed"})
}

func (h *RankingHandler) GetList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w)
	if !ok {
		return
	}

	listID, err := uuid.Parse(r.URL.Query().Get("listId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid listId")
		return
	}

	list, err := h.rankingService.List(ctx, userID, listID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}
