package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wkite/neutron-fwaas/internal/domain"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &domain.APIError{
		Code:    status,
		Message: message,
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrRuleNotAssociated):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrRuleInUse),
		errors.Is(err, domain.ErrPolicyInUse),
		errors.Is(err, domain.ErrPortInUse),
		errors.Is(err, domain.ErrRuleAlreadyAssociated),
		errors.Is(err, domain.ErrRuleConflict),
		errors.Is(err, domain.ErrRuleSharingConflict),
		errors.Is(err, domain.ErrPolicySharingConflict),
		errors.Is(err, domain.ErrPolicyConflict),
		errors.Is(err, domain.ErrDefaultResourceProtected),
		errors.Is(err, domain.ErrDefaultGroupDeleteRestricted):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}
