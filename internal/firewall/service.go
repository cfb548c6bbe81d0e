// Package firewall implements the firewall configuration engine: rule and
// policy management, rule ordering within policies, cross-project sharing
// invariants, group lifecycle and the per-project default resource bootstrap.
package firewall

import (
	"context"
	"fmt"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
	"github.com/wkite/neutron-fwaas/internal/validation"
)

// Service exposes the firewall configuration operations. Every public
// mutating operation runs inside a single storage transaction; validation
// happens before any mutating statement so a failure leaves no partial
// effect.
type Service struct {
	store storage.Storage

	// routerDistributed selects the status new groups start in: CREATED
	// for distributed deployments, PENDING_CREATE otherwise.
	routerDistributed bool
}

// New creates a firewall service on top of the given store.
func New(store storage.Storage, routerDistributed bool) *Service {
	return &Service{store: store, routerDistributed: routerDistributed}
}

// ruleView fills the API-facing port range strings on a stored rule.
func ruleView(rule *domain.Rule) *domain.Rule {
	rule.SourcePort = validation.FormatPortRange(rule.SourcePortRangeMin, rule.SourcePortRangeMax)
	rule.DestinationPort = validation.FormatPortRange(rule.DestinationPortRangeMin, rule.DestinationPortRangeMax)
	return rule
}

// policyView fills the ordered rule-id list on a policy.
func policyView(ctx context.Context, db storage.Storage, policy *domain.Policy) (*domain.Policy, error) {
	assocs, err := db.ListPolicyRuleAssociations(ctx, policy.ID)
	if err != nil {
		return nil, err
	}
	policy.Rules = make([]string, 0, len(assocs))
	for _, assoc := range assocs {
		policy.Rules = append(policy.Rules, assoc.RuleID)
	}
	return policy, nil
}

// canSee reports whether the caller may observe a resource owned by
// projectID with the given shared flag.
func canSee(auth domain.AuthContext, projectID string, shared bool) bool {
	return auth.IsAdmin || shared || projectID == auth.ProjectID
}

// mustOwn returns nil when the caller may mutate a resource owned by
// projectID. Invisible resources yield ErrNotFound so callers cannot probe
// for foreign private ids; visible-but-foreign ones yield ErrUnauthorized.
func mustOwn(auth domain.AuthContext, projectID string, shared bool) error {
	if auth.IsAdmin || projectID == auth.ProjectID {
		return nil
	}
	if shared {
		return domain.ErrUnauthorized
	}
	return domain.ErrNotFound
}

// policyOrderedRules returns a policy's rules in position order.
func policyOrderedRules(ctx context.Context, db storage.Storage, policyID string) ([]*domain.Rule, error) {
	assocs, err := db.ListPolicyRuleAssociations(ctx, policyID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assocs))
	for _, assoc := range assocs {
		ids = append(ids, assoc.RuleID)
	}
	rules, err := db.GetRulesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Rule, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule
	}
	ordered := make([]*domain.Rule, 0, len(ids))
	for _, id := range ids {
		rule, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: firewall rule %s", domain.ErrNotFound, id)
		}
		ordered = append(ordered, ruleView(rule))
	}
	return ordered, nil
}
