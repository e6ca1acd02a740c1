package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/apperr"
	"jerkyClubAPI/middleware"
)

// authedUser pulls the user id the auth middleware resolved into context.
func authedUser(ctx context.Context, w http.ResponseWriter) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, false
	}
	return userID, true
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps the error taxonomy onto HTTP statuses.
func respondWithAppError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		respondWithError(w, http.StatusBadRequest, err.Error())
	case apperr.KindNotFound:
		respondWithError(w, http.StatusNotFound, err.Error())
	case apperr.KindConflict:
		respondWithError(w, http.StatusConflict, err.Error())
	case apperr.KindTransient:
		respondWithError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry shortly")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
