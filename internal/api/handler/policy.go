package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wkite/neutron-fwaas/internal/api/middleware"
	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/firewall"
)

// PolicyHandler handles firewall policy endpoints, including the rule
// ordering actions.
type PolicyHandler struct {
	svc *firewall.Service
}

// NewPolicyHandler creates a new PolicyHandler.
func NewPolicyHandler(svc *firewall.Service) *PolicyHandler {
	return &PolicyHandler{svc: svc}
}

// Create creates a new firewall policy.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	policy, err := h.svc.CreatePolicy(r.Context(), auth, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, policy)
}

// List lists the firewall policies visible to the caller.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())

	filter := domain.PolicyFilter{
		ProjectID: r.URL.Query().Get("project_id"),
	}
	if v := r.URL.Query().Get("shared"); v != "" {
		shared, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid shared filter")
			return
		}
		filter.Shared = &shared
	}

	policies, err := h.svc.ListPolicies(r.Context(), auth, filter)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policies)
}

// Get gets a firewall policy by ID.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	policy, err := h.svc.GetPolicy(r.Context(), auth, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}

// Update updates a firewall policy.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	policy, err := h.svc.UpdatePolicy(r.Context(), auth, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}

// Delete deletes a firewall policy.
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	if err := h.svc.DeletePolicy(r.Context(), auth, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertRule inserts a rule into the policy's ordered list.
func (h *PolicyHandler) InsertRule(w http.ResponseWriter, r *http.Request) {
	var req domain.RuleOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	policy, err := h.svc.InsertRule(r.Context(), auth, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}

// RemoveRule removes a rule from the policy's ordered list.
func (h *PolicyHandler) RemoveRule(w http.ResponseWriter, r *http.Request) {
	var req domain.RuleOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	policy, err := h.svc.RemoveRule(r.Context(), auth, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}
