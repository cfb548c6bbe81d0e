package firewall

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/validation"
)

// CreateRule validates and persists a new firewall rule owned by the
// caller's project.
func (s *Service) CreateRule(ctx context.Context, auth domain.AuthContext, req *domain.CreateRuleRequest) (*domain.Rule, error) {
	rule := &domain.Rule{
		ID:                   uuid.New().String(),
		ProjectID:            auth.ProjectID,
		Name:                 req.Name,
		Description:          req.Description,
		Shared:               req.Shared,
		Protocol:             req.Protocol,
		IPVersion:            req.IPVersion,
		SourceIPAddress:      req.SourceIPAddress,
		DestinationIPAddress: req.DestinationIPAddress,
		Action:               req.Action,
		Enabled:              true,
	}
	if rule.IPVersion == 0 {
		rule.IPVersion = 4
	}
	if rule.Action == "" {
		rule.Action = domain.ActionDeny
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	var err error
	rule.SourcePortRangeMin, rule.SourcePortRangeMax, err = validation.ParsePortRange(req.SourcePort)
	if err != nil {
		return nil, err
	}
	rule.DestinationPortRangeMin, rule.DestinationPortRangeMax, err = validation.ParsePortRange(req.DestinationPort)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	return ruleView(rule), nil
}

// GetRule returns a rule visible to the caller, together with the ids of
// policies referencing it.
func (s *Service) GetRule(ctx context.Context, auth domain.AuthContext, id string) (*domain.Rule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, rule.ProjectID, rule.Shared) {
		return nil, domain.ErrNotFound
	}
	rule.FirewallPolicies, err = s.store.GetPoliciesWithRule(ctx, id)
	if err != nil {
		return nil, err
	}
	return ruleView(rule), nil
}

// ListRules lists the rules visible to the caller.
func (s *Service) ListRules(ctx context.Context, auth domain.AuthContext, filter domain.RuleFilter) ([]*domain.Rule, error) {
	if !auth.IsAdmin {
		filter.ProjectID = auth.ProjectID
	}
	rules, err := s.store.ListRules(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		ruleView(rule)
	}
	return rules, nil
}

// UpdateRule applies a partial update to a rule. The merged result (patch
// overlaid on the stored rule) is re-validated as a whole, and the audited
// flag is cleared on every policy containing the rule.
func (s *Service) UpdateRule(ctx context.Context, auth domain.AuthContext, id string, req *domain.UpdateRuleRequest) (*domain.Rule, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rule, err := tx.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, rule.ProjectID, rule.Shared) {
		return nil, domain.ErrNotFound
	}
	if err := mustOwn(auth, rule.ProjectID, rule.Shared); err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.Shared != nil {
		rule.Shared = *req.Shared
	}
	if req.Protocol != nil {
		rule.Protocol = *req.Protocol
	}
	if req.IPVersion != nil {
		rule.IPVersion = *req.IPVersion
	}
	if req.SourceIPAddress != nil {
		rule.SourceIPAddress = *req.SourceIPAddress
	}
	if req.DestinationIPAddress != nil {
		rule.DestinationIPAddress = *req.DestinationIPAddress
	}
	if req.SourcePort != nil {
		rule.SourcePortRangeMin, rule.SourcePortRangeMax, err = validation.ParsePortRange(*req.SourcePort)
		if err != nil {
			return nil, err
		}
	}
	if req.DestinationPort != nil {
		rule.DestinationPortRangeMin, rule.DestinationPortRangeMax, err = validation.ParsePortRange(*req.DestinationPort)
		if err != nil {
			return nil, err
		}
	}
	if req.Action != nil {
		rule.Action = *req.Action
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := validation.ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := tx.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}

	// A rule edit invalidates every policy containing it: downstream
	// enforcement caches are potentially stale.
	policyIDs, err := tx.GetPoliciesWithRule(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, policyID := range policyIDs {
		if err := tx.SetPolicyAudited(ctx, policyID, false); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ruleView(rule), nil
}

// DeleteRule deletes a rule unless a policy still references it.
func (s *Service) DeleteRule(ctx context.Context, auth domain.AuthContext, id string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rule, err := tx.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if !canSee(auth, rule.ProjectID, rule.Shared) {
		return domain.ErrNotFound
	}
	if err := mustOwn(auth, rule.ProjectID, rule.Shared); err != nil {
		return err
	}

	policyIDs, err := tx.GetPoliciesWithRule(ctx, id)
	if err != nil {
		return err
	}
	if len(policyIDs) > 0 {
		return fmt.Errorf("%w: firewall rule %s", domain.ErrRuleInUse, id)
	}

	if err := tx.DeleteRule(ctx, id); err != nil {
		return err
	}
	return tx.Commit()
}
