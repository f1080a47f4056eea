package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gatherly/pushpipe/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrMuted):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrSuppressed):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrNoTokens):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidSession),
		errors.Is(err, domain.ErrInvalidPlatform),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrInvalidCountry),
		errors.Is(err, domain.ErrUnknownPartition),
		errors.Is(err, domain.ErrUnknownCollection):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
