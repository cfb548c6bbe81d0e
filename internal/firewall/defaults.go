package firewall

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
)

// EnsureDefaultGroup guarantees the project has its default firewall group:
// four baseline rules (drop all ingress, allow all egress, v4 and v6), the
// two default policies wrapping them, the group itself and the marker row.
// The marker row is the sole source of truth for existence. Safe to call
// concurrently: the loser of a marker-row race rolls back its own work and
// adopts the winner's group.
func (s *Service) EnsureDefaultGroup(ctx context.Context, projectID string) (string, error) {
	marker, err := s.store.GetDefaultGroupMarker(ctx, projectID)
	if err == nil {
		return marker.GroupID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	ingressPolicyID, err := createDefaultPolicy(ctx, tx, projectID,
		domain.DefaultIngressPolicyName, "Ingress firewall policy",
		defaultIngressRules(projectID))
	if err != nil {
		return "", err
	}
	egressPolicyID, err := createDefaultPolicy(ctx, tx, projectID,
		domain.DefaultEgressPolicyName, "Egress firewall policy",
		defaultEgressRules(projectID))
	if err != nil {
		return "", err
	}

	group := &domain.Group{
		ID:              uuid.New().String(),
		ProjectID:       projectID,
		Name:            domain.DefaultGroupName,
		Description:     "Default firewall group",
		IngressPolicyID: &ingressPolicyID,
		EgressPolicyID:  &egressPolicyID,
		AdminStateUp:    true,
		Status:          domain.StatusInactive,
	}
	if err := tx.CreateGroup(ctx, group); err != nil {
		return "", err
	}

	err = tx.CreateDefaultGroupMarker(ctx, &domain.DefaultGroupMarker{
		ProjectID: projectID,
		GroupID:   group.ID,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race. Drop everything built here and use the group the
		// winning transaction recorded.
		if rbErr := tx.Rollback(); rbErr != nil {
			return "", rbErr
		}
		marker, err := s.store.GetDefaultGroupMarker(ctx, projectID)
		if err != nil {
			return "", err
		}
		return marker.GroupID, nil
	}
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return group.ID, nil
}

// createDefaultPolicy persists one default policy and its rules, associated
// at positions 1..n.
func createDefaultPolicy(ctx context.Context, db storage.Storage, projectID, name, description string, rules []*domain.Rule) (string, error) {
	policy := &domain.Policy{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Name:        name,
		Description: description,
	}
	if err := db.CreatePolicy(ctx, policy); err != nil {
		return "", err
	}
	for i, rule := range rules {
		if err := db.CreateRule(ctx, rule); err != nil {
			return "", err
		}
		if err := db.CreatePolicyRuleAssociation(ctx, &domain.PolicyRuleAssociation{
			PolicyID: policy.ID,
			RuleID:   rule.ID,
			Position: i + 1,
		}); err != nil {
			return "", err
		}
	}
	return policy.ID, nil
}

func defaultIngressRules(projectID string) []*domain.Rule {
	return []*domain.Rule{
		{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			Name:        "default ingress ipv4 (deny all)",
			Description: "default ingress rule for IPv4",
			IPVersion:   4,
			Action:      domain.ActionDeny,
			Enabled:     true,
		},
		{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			Name:        "default ingress ipv6 (deny all)",
			Description: "default ingress rule for IPv6",
			IPVersion:   6,
			Action:      domain.ActionDeny,
			Enabled:     true,
		},
	}
}

func defaultEgressRules(projectID string) []*domain.Rule {
	return []*domain.Rule{
		{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			Name:        "default egress ipv4 (allow all)",
			Description: "default egress rule for IPv4",
			IPVersion:   4,
			Action:      domain.ActionAllow,
			Enabled:     true,
		},
		{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			Name:        "default egress ipv6 (allow all)",
			Description: "default egress rule for IPv6",
			IPVersion:   6,
			Action:      domain.ActionAllow,
			Enabled:     true,
		},
	}
}
