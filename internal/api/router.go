package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wkite/neutron-fwaas/internal/api/handler"
	"github.com/wkite/neutron-fwaas/internal/api/middleware"
	"github.com/wkite/neutron-fwaas/internal/firewall"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(svc *firewall.Service) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth context required, JSON Content-Type)
	r.Route("/v2.0/fwaas", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth)

		// Firewall rules
		ruleHandler := handler.NewRuleHandler(svc)
		r.Post("/firewall_rules", ruleHandler.Create)
		r.Get("/firewall_rules", ruleHandler.List)
		r.Get("/firewall_rules/{id}", ruleHandler.Get)
		r.Put("/firewall_rules/{id}", ruleHandler.Update)
		r.Delete("/firewall_rules/{id}", ruleHandler.Delete)

		// Firewall policies and rule ordering actions
		policyHandler := handler.NewPolicyHandler(svc)
		r.Post("/firewall_policies", policyHandler.Create)
		r.Get("/firewall_policies", policyHandler.List)
		r.Get("/firewall_policies/{id}", policyHandler.Get)
		r.Put("/firewall_policies/{id}", policyHandler.Update)
		r.Delete("/firewall_policies/{id}", policyHandler.Delete)
		r.Put("/firewall_policies/{id}/insert_rule", policyHandler.InsertRule)
		r.Put("/firewall_policies/{id}/remove_rule", policyHandler.RemoveRule)

		// Firewall groups
		groupHandler := handler.NewGroupHandler(svc)
		r.Post("/firewall_groups", groupHandler.Create)
		r.Get("/firewall_groups", groupHandler.List)
		r.Get("/firewall_groups/{id}", groupHandler.Get)
		r.Put("/firewall_groups/{id}", groupHandler.Update)
		r.Put("/firewall_groups/{id}/status", groupHandler.UpdateStatus)
		r.Delete("/firewall_groups/{id}", groupHandler.Delete)

		// Per-port group resolution for enforcement
		r.Get("/ports/{port_id}/firewall_group", groupHandler.GetForPort)
	})

	return r
}
