package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wkite/neutron-fwaas/internal/api/middleware"
	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/firewall"
)

// GroupHandler handles firewall group endpoints and the per-port resolve.
type GroupHandler struct {
	svc *firewall.Service
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(svc *firewall.Service) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// Create creates a new firewall group.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	group, err := h.svc.CreateGroup(r.Context(), auth, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

// List lists the firewall groups visible to the caller.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())

	filter := domain.GroupFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		Status:    r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("shared"); v != "" {
		shared, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid shared filter")
			return
		}
		filter.Shared = &shared
	}

	groups, err := h.svc.ListGroups(r.Context(), auth, filter)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// Get gets a firewall group by ID. With ?details=true the response carries
// the resolved ingress and egress rule lists.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	details := false
	if v := r.URL.Query().Get("details"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid details flag")
			return
		}
		details = parsed
	}

	auth := middleware.GetAuthContext(r.Context())
	group, err := h.svc.GetGroup(r.Context(), auth, chi.URLParam(r, "id"), details)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Update updates a firewall group.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := middleware.GetAuthContext(r.Context())
	group, err := h.svc.UpdateGroup(r.Context(), auth, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Delete deletes a firewall group. Deleting a missing group succeeds.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	if err := h.svc.DeleteGroup(r.Context(), auth, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status string   `json:"status"`
	NotIn  []string `json:"not_in,omitempty"`
}

// UpdateStatus conditionally transitions a group's status. This is the
// enforcement feedback path and is admin-only.
func (h *GroupHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	if !auth.IsAdmin {
		handleError(w, domain.ErrUnauthorized)
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdateGroupStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.NotIn...)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// GetForPort resolves the group bound to a port, with rule lists.
func (h *GroupHandler) GetForPort(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuthContext(r.Context())
	group, err := h.svc.GetGroupForPort(r.Context(), auth, chi.URLParam(r, "port_id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}
