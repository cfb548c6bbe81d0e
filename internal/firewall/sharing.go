package firewall

import (
	"context"
	"fmt"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
)

// checkRuleConflict rejects a private rule referenced by a policy in a
// different project.
func checkRuleConflict(rule *domain.Rule, policy *domain.Policy) error {
	if !rule.Shared && rule.ProjectID != policy.ProjectID {
		return fmt.Errorf("%w: firewall rule %s", domain.ErrRuleConflict, rule.ID)
	}
	return nil
}

// validateRulesForPolicy checks a full candidate rule list before a bulk
// replace mutates anything. targetShared is the shared flag the policy will
// have after the surrounding update.
func validateRulesForPolicy(policy *domain.Policy, targetShared bool, ruleIDs []string, rules []*domain.Rule) error {
	byID := make(map[string]*domain.Rule, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule
	}
	seen := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		rule, ok := byID[id]
		if !ok {
			// Bail as soon as we find an invalid rule.
			return fmt.Errorf("%w: firewall rule %s", domain.ErrNotFound, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate firewall rule %s", domain.ErrInvalidInput, id)
		}
		seen[id] = true
		if targetShared {
			if !rule.Shared {
				return fmt.Errorf("%w: firewall rule %s", domain.ErrRuleSharingConflict, id)
			}
			continue
		}
		if err := checkRuleConflict(rule, policy); err != nil {
			return err
		}
	}
	return nil
}

// ensurePolicyRulesShareable guards the shared=false -> shared=true
// transition when the rule list itself is not changing: every associated
// private rule owned by another project blocks the transition.
func ensurePolicyRulesShareable(ctx context.Context, db storage.Storage, policy *domain.Policy) error {
	assocs, err := db.ListPolicyRuleAssociations(ctx, policy.ID)
	if err != nil {
		return err
	}
	for _, assoc := range assocs {
		rule, err := db.GetRule(ctx, assoc.RuleID)
		if err != nil {
			return err
		}
		if !rule.Shared && rule.ProjectID != policy.ProjectID {
			return fmt.Errorf("%w: firewall rule %s", domain.ErrPolicySharingConflict, rule.ID)
		}
	}
	return nil
}

// ensureNoForeignGroupReferences guards the shared=true -> shared=false
// transition: the policy may not be referenced by groups outside its own
// project once it stops being shared.
func ensureNoForeignGroupReferences(ctx context.Context, db storage.Storage, policyID, projectID string) error {
	groups, err := db.GetGroupsWithPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group.ProjectID != projectID {
			return fmt.Errorf("%w: firewall policy %s", domain.ErrPolicyInUse, policyID)
		}
	}
	return nil
}

// checkGroupPolicyRef verifies that a group may reference the given policy:
// a policy owned by a different project must be shared.
func checkGroupPolicyRef(ctx context.Context, db storage.Storage, policyID, groupProjectID string) error {
	policy, err := db.GetPolicy(ctx, policyID)
	if err != nil {
		return fmt.Errorf("firewall policy %s: %w", policyID, err)
	}
	if policy.ProjectID != groupProjectID && !policy.Shared {
		return fmt.Errorf("%w: firewall policy %s", domain.ErrPolicyConflict, policyID)
	}
	return nil
}
