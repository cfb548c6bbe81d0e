package firewall

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
)

func isDefaultPolicyName(name string) bool {
	return name == domain.DefaultIngressPolicyName || name == domain.DefaultEgressPolicyName
}

// ensureNotDefaultPolicy blocks non-admin mutation of the bootstrap-owned
// default policies.
func ensureNotDefaultPolicy(auth domain.AuthContext, policy *domain.Policy) error {
	if isDefaultPolicyName(policy.Name) && !auth.IsAdmin {
		return fmt.Errorf("%w: firewall policy %s", domain.ErrDefaultResourceProtected, policy.ID)
	}
	return nil
}

// CreatePolicy persists a new policy, optionally with an initial ordered rule
// list. The reserved default policy names are not creatable through the API.
func (s *Service) CreatePolicy(ctx context.Context, auth domain.AuthContext, req *domain.CreatePolicyRequest) (*domain.Policy, error) {
	if isDefaultPolicyName(req.Name) {
		return nil, fmt.Errorf("%w: reserved policy name %q", domain.ErrDefaultResourceProtected, req.Name)
	}

	policy := &domain.Policy{
		ID:          uuid.New().String(),
		ProjectID:   auth.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		Audited:     req.Audited,
		Shared:      req.Shared,
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := tx.CreatePolicy(ctx, policy); err != nil {
		return nil, err
	}
	if len(req.Rules) > 0 {
		if err := setRulesForPolicy(ctx, tx, policy, policy.Shared, req.Rules); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	policy.Rules = append([]string{}, req.Rules...)
	return policy, nil
}

// GetPolicy returns a policy visible to the caller with its ordered rule ids.
func (s *Service) GetPolicy(ctx context.Context, auth domain.AuthContext, id string) (*domain.Policy, error) {
	policy, err := s.store.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, policy.ProjectID, policy.Shared) {
		return nil, domain.ErrNotFound
	}
	return policyView(ctx, s.store, policy)
}

// ListPolicies lists the policies visible to the caller.
func (s *Service) ListPolicies(ctx context.Context, auth domain.AuthContext, filter domain.PolicyFilter) ([]*domain.Policy, error) {
	if !auth.IsAdmin {
		filter.ProjectID = auth.ProjectID
	}
	policies, err := s.store.ListPolicies(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, policy := range policies {
		if _, err := policyView(ctx, s.store, policy); err != nil {
			return nil, err
		}
	}
	return policies, nil
}

// UpdatePolicy applies a partial update. The audited flag resets to false
// unless the request sets it explicitly. A non-nil rule list replaces the
// whole ordered association set after validating every candidate.
func (s *Service) UpdatePolicy(ctx context.Context, auth domain.AuthContext, id string, req *domain.UpdatePolicyRequest) (*domain.Policy, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	policy, err := tx.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, policy.ProjectID, policy.Shared) {
		return nil, domain.ErrNotFound
	}
	if err := mustOwn(auth, policy.ProjectID, policy.Shared); err != nil {
		return nil, err
	}
	if err := ensureNotDefaultPolicy(auth, policy); err != nil {
		return nil, err
	}
	if req.Name != nil && isDefaultPolicyName(*req.Name) {
		return nil, fmt.Errorf("%w: reserved policy name %q", domain.ErrDefaultResourceProtected, *req.Name)
	}

	if req.Shared != nil {
		if *req.Shared && !policy.Shared && req.Rules == nil {
			if err := ensurePolicyRulesShareable(ctx, tx, policy); err != nil {
				return nil, err
			}
		}
		if !*req.Shared && policy.Shared {
			if err := ensureNoForeignGroupReferences(ctx, tx, policy.ID, policy.ProjectID); err != nil {
				return nil, err
			}
		}
		policy.Shared = *req.Shared
	}
	if req.Name != nil {
		policy.Name = *req.Name
	}
	if req.Description != nil {
		policy.Description = *req.Description
	}
	// Any edit leaves the policy unaudited unless the caller vouches for it
	// in the same request.
	policy.Audited = false
	if req.Audited != nil {
		policy.Audited = *req.Audited
	}

	if req.Rules != nil {
		if err := setRulesForPolicy(ctx, tx, policy, policy.Shared, *req.Rules); err != nil {
			return nil, err
		}
	}

	if err := tx.UpdatePolicy(ctx, policy); err != nil {
		return nil, err
	}
	if _, err := policyView(ctx, tx, policy); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return policy, nil
}

// DeletePolicy deletes a policy unless a group still references it.
func (s *Service) DeletePolicy(ctx context.Context, auth domain.AuthContext, id string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	policy, err := tx.GetPolicy(ctx, id)
	if err != nil {
		return err
	}
	if !canSee(auth, policy.ProjectID, policy.Shared) {
		return domain.ErrNotFound
	}
	if err := mustOwn(auth, policy.ProjectID, policy.Shared); err != nil {
		return err
	}
	if err := ensureNotDefaultPolicy(auth, policy); err != nil {
		return err
	}

	groups, err := tx.GetGroupsWithPolicy(ctx, id)
	if err != nil {
		return err
	}
	if len(groups) > 0 {
		return fmt.Errorf("%w: firewall policy %s", domain.ErrPolicyInUse, id)
	}

	if err := tx.DeletePolicyRuleAssociations(ctx, id); err != nil {
		return err
	}
	if err := tx.DeletePolicy(ctx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertRule inserts a rule into a policy's ordered list. insert_before wins
// over insert_after; with neither the rule goes to the front. Positions are
// renumbered to a dense 1..n sequence afterwards and the audited flag drops.
func (s *Service) InsertRule(ctx context.Context, auth domain.AuthContext, policyID string, req *domain.RuleOrderRequest) (*domain.Policy, error) {
	if req.FirewallRuleID == "" {
		return nil, fmt.Errorf("%w: firewall_rule_id is required", domain.ErrInvalidInput)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := tx.LockPolicy(ctx, policyID); err != nil {
		return nil, err
	}
	policy, err := tx.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, policy.ProjectID, policy.Shared) {
		return nil, domain.ErrNotFound
	}
	if err := mustOwn(auth, policy.ProjectID, policy.Shared); err != nil {
		return nil, err
	}
	if err := ensureNotDefaultPolicy(auth, policy); err != nil {
		return nil, err
	}

	rule, err := tx.GetRule(ctx, req.FirewallRuleID)
	if err != nil {
		return nil, fmt.Errorf("firewall rule %s: %w", req.FirewallRuleID, err)
	}
	if policy.Shared && !rule.Shared {
		return nil, fmt.Errorf("%w: firewall rule %s", domain.ErrRuleSharingConflict, rule.ID)
	}
	if err := checkRuleConflict(rule, policy); err != nil {
		return nil, err
	}

	if _, err := tx.GetPolicyRuleAssociation(ctx, policyID, rule.ID); err == nil {
		return nil, fmt.Errorf("%w: firewall rule %s in policy %s", domain.ErrRuleAlreadyAssociated, rule.ID, policyID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	assocs, err := tx.ListPolicyRuleAssociations(ctx, policyID)
	if err != nil {
		return nil, err
	}
	ordered := make([]string, 0, len(assocs)+1)
	for _, assoc := range assocs {
		ordered = append(ordered, assoc.RuleID)
	}

	at := 0
	switch {
	case req.InsertBefore != "":
		idx, err := indexOf(ordered, req.InsertBefore)
		if err != nil {
			return nil, err
		}
		at = idx
	case req.InsertAfter != "":
		idx, err := indexOf(ordered, req.InsertAfter)
		if err != nil {
			return nil, err
		}
		at = idx + 1
	}
	ordered = append(ordered, "")
	copy(ordered[at+1:], ordered[at:])
	ordered[at] = rule.ID

	if err := tx.CreatePolicyRuleAssociation(ctx, &domain.PolicyRuleAssociation{
		PolicyID: policyID,
		RuleID:   rule.ID,
		Position: 0,
	}); err != nil {
		return nil, err
	}
	if err := renumberPolicyRules(ctx, tx, policyID, ordered); err != nil {
		return nil, err
	}
	if err := tx.SetPolicyAudited(ctx, policyID, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	policy.Audited = false
	policy.Rules = ordered
	return policy, nil
}

// RemoveRule removes a rule from a policy's ordered list, renumbering the
// remaining rules to a dense 1..n sequence.
func (s *Service) RemoveRule(ctx context.Context, auth domain.AuthContext, policyID string, req *domain.RuleOrderRequest) (*domain.Policy, error) {
	if req.FirewallRuleID == "" {
		return nil, fmt.Errorf("%w: firewall_rule_id is required", domain.ErrInvalidInput)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := tx.LockPolicy(ctx, policyID); err != nil {
		return nil, err
	}
	policy, err := tx.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, policy.ProjectID, policy.Shared) {
		return nil, domain.ErrNotFound
	}
	if err := mustOwn(auth, policy.ProjectID, policy.Shared); err != nil {
		return nil, err
	}
	if err := ensureNotDefaultPolicy(auth, policy); err != nil {
		return nil, err
	}

	if _, err := tx.GetPolicyRuleAssociation(ctx, policyID, req.FirewallRuleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: firewall rule %s in policy %s", domain.ErrRuleNotAssociated, req.FirewallRuleID, policyID)
		}
		return nil, err
	}
	if err := tx.DeletePolicyRuleAssociation(ctx, policyID, req.FirewallRuleID); err != nil {
		return nil, err
	}

	assocs, err := tx.ListPolicyRuleAssociations(ctx, policyID)
	if err != nil {
		return nil, err
	}
	ordered := make([]string, 0, len(assocs))
	for _, assoc := range assocs {
		ordered = append(ordered, assoc.RuleID)
	}
	if err := renumberPolicyRules(ctx, tx, policyID, ordered); err != nil {
		return nil, err
	}
	if err := tx.SetPolicyAudited(ctx, policyID, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	policy.Audited = false
	policy.Rules = ordered
	return policy, nil
}

// setRulesForPolicy replaces a policy's whole ordered rule list. The entire
// candidate list is validated before any association row changes.
func setRulesForPolicy(ctx context.Context, db storage.Storage, policy *domain.Policy, targetShared bool, ruleIDs []string) error {
	if len(ruleIDs) == 0 {
		return db.DeletePolicyRuleAssociations(ctx, policy.ID)
	}

	rules, err := db.GetRulesByIDs(ctx, ruleIDs)
	if err != nil {
		return err
	}
	if err := validateRulesForPolicy(policy, targetShared, ruleIDs, rules); err != nil {
		return err
	}

	if err := db.DeletePolicyRuleAssociations(ctx, policy.ID); err != nil {
		return err
	}
	for i, id := range ruleIDs {
		if err := db.CreatePolicyRuleAssociation(ctx, &domain.PolicyRuleAssociation{
			PolicyID: policy.ID,
			RuleID:   id,
			Position: i + 1,
		}); err != nil {
			return err
		}
	}
	return nil
}

// renumberPolicyRules writes a dense 1..n position sequence matching the
// given rule order.
func renumberPolicyRules(ctx context.Context, db storage.Storage, policyID string, orderedRuleIDs []string) error {
	for i, ruleID := range orderedRuleIDs {
		if err := db.SetPolicyRuleAssociationPosition(ctx, policyID, ruleID, i+1); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(ruleIDs []string, ruleID string) (int, error) {
	for i, id := range ruleIDs {
		if id == ruleID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: firewall rule %s not in policy", domain.ErrRuleNotAssociated, ruleID)
}
