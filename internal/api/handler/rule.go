package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wkite/neutron-fwaas/internal/api/middleware"
	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/firewall"
)

// RuleHandler handles firewall rule endpoints.
type RuleHandler struct {
	svc *firewall.Service
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(svc *firewall.Service) *RuleHandler {
	return &RuleHandler{svc: svc}
}

// Create creates a new firewall rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	rule, err := h.svc.CreateRule(r.Context(), auth, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// List lists the firewall rules visible to the caller.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())

	filter := domain.RuleFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		Action:    r.URL.Query().Get("action"),
	}
	if v := r.URL.Query().Get("shared"); v != "" {
		shared, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid shared filter")
			return
		}
		filter.Shared = &shared
	}
	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid enabled filter")
			return
		}
		filter.Enabled = &enabled
	}

	rules, err := h.svc.ListRules(r.Context(), auth, filter)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

// Get gets a firewall rule by ID.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	rule, err := h.svc.GetRule(r.Context(), auth, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Update updates a firewall rule.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	rule, err := h.svc.UpdateRule(r.Context(), auth, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Delete deletes a firewall rule.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	if err := h.svc.DeleteRule(r.Context(), auth, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
