package firewall

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
)

// CreateGroup creates a firewall group. Creating an ordinary group first
// makes sure the project's default group exists.
func (s *Service) CreateGroup(ctx context.Context, auth domain.AuthContext, req *domain.CreateGroupRequest) (*domain.Group, error) {
	if req.Name == domain.DefaultGroupName {
		return nil, fmt.Errorf("%w: reserved group name %q", domain.ErrDefaultResourceProtected, req.Name)
	}
	if _, err := s.EnsureDefaultGroup(ctx, auth.ProjectID); err != nil {
		return nil, err
	}

	status := domain.StatusPendingCreate
	if s.routerDistributed {
		status = domain.StatusCreated
	}
	group := &domain.Group{
		ID:           uuid.New().String(),
		ProjectID:    auth.ProjectID,
		Name:         req.Name,
		Description:  req.Description,
		AdminStateUp: true,
		Status:       status,
		Shared:       req.Shared,
	}
	if req.AdminStateUp != nil {
		group.AdminStateUp = *req.AdminStateUp
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if req.IngressPolicyID != nil && *req.IngressPolicyID != "" {
		if err := checkGroupPolicyRef(ctx, tx, *req.IngressPolicyID, group.ProjectID); err != nil {
			return nil, err
		}
		group.IngressPolicyID = req.IngressPolicyID
	}
	if req.EgressPolicyID != nil && *req.EgressPolicyID != "" {
		if err := checkGroupPolicyRef(ctx, tx, *req.EgressPolicyID, group.ProjectID); err != nil {
			return nil, err
		}
		group.EgressPolicyID = req.EgressPolicyID
	}

	if err := tx.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	if err := bindPorts(ctx, tx, group.ID, req.Ports); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	group.Ports = append([]string{}, req.Ports...)
	return group, nil
}

// GetGroup returns a group visible to the caller. With details the ingress
// and egress rule lists are resolved in position order for enforcement
// snapshotting.
func (s *Service) GetGroup(ctx context.Context, auth domain.AuthContext, id string, details bool) (*domain.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, group.ProjectID, group.Shared) {
		return nil, domain.ErrNotFound
	}
	group.Ports, err = s.store.ListGroupPorts(ctx, id)
	if err != nil {
		return nil, err
	}
	if details {
		if err := s.resolveGroupRules(ctx, group); err != nil {
			return nil, err
		}
	}
	return group, nil
}

// ListGroups lists the groups visible to the caller. Listing on behalf of a
// project bootstraps that project's default group first.
func (s *Service) ListGroups(ctx context.Context, auth domain.AuthContext, filter domain.GroupFilter) ([]*domain.Group, error) {
	if !auth.IsAdmin {
		filter.ProjectID = auth.ProjectID
	}
	bootstrapProject := filter.ProjectID
	if bootstrapProject == "" {
		bootstrapProject = auth.ProjectID
	}
	if bootstrapProject != "" {
		if _, err := s.EnsureDefaultGroup(ctx, bootstrapProject); err != nil {
			return nil, err
		}
	}

	groups, err := s.store.ListGroups(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		group.Ports, err = s.store.ListGroupPorts(ctx, group.ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// UpdateGroup applies a partial update. The default group is immutable except
// for the admin-driven delete orchestration, which sets status PENDING_DELETE.
func (s *Service) UpdateGroup(ctx context.Context, auth domain.AuthContext, id string, req *domain.UpdateGroupRequest) (*domain.Group, error) {
	if req.Name != nil && *req.Name == domain.DefaultGroupName {
		return nil, fmt.Errorf("%w: reserved group name %q", domain.ErrDefaultResourceProtected, *req.Name)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	group, err := tx.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(auth, group.ProjectID, group.Shared) {
		return nil, domain.ErrNotFound
	}
	if err := mustOwn(auth, group.ProjectID, group.Shared); err != nil {
		return nil, err
	}
	if group.Name == domain.DefaultGroupName {
		deleteOrchestration := auth.IsAdmin && req.Status != nil && *req.Status == domain.StatusPendingDelete
		if !deleteOrchestration {
			return nil, fmt.Errorf("%w: firewall group %s", domain.ErrDefaultResourceProtected, id)
		}
	}

	if req.IngressPolicyID != nil {
		if *req.IngressPolicyID == "" {
			group.IngressPolicyID = nil
		} else {
			if err := checkGroupPolicyRef(ctx, tx, *req.IngressPolicyID, group.ProjectID); err != nil {
				return nil, err
			}
			group.IngressPolicyID = req.IngressPolicyID
		}
	}
	if req.EgressPolicyID != nil {
		if *req.EgressPolicyID == "" {
			group.EgressPolicyID = nil
		} else {
			if err := checkGroupPolicyRef(ctx, tx, *req.EgressPolicyID, group.ProjectID); err != nil {
				return nil, err
			}
			group.EgressPolicyID = req.EgressPolicyID
		}
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.AdminStateUp != nil {
		group.AdminStateUp = *req.AdminStateUp
	}
	if req.Shared != nil {
		group.Shared = *req.Shared
	}
	if req.Status != nil {
		group.Status = *req.Status
	}

	if req.Ports != nil {
		if err := tx.DeleteGroupPorts(ctx, id); err != nil {
			return nil, err
		}
		if err := bindPorts(ctx, tx, id, *req.Ports); err != nil {
			return nil, err
		}
	}

	if err := tx.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}
	group.Ports, err = tx.ListGroupPorts(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroupStatus conditionally transitions a group's status, skipping the
// update when the current status is in the notIn set. Returns the number of
// rows changed (0 or 1). Used by the enforcement feedback path.
func (s *Service) UpdateGroupStatus(ctx context.Context, id, status string, notIn ...string) (int, error) {
	return s.store.UpdateGroupStatusNotIn(ctx, id, status, notIn)
}

// DeleteGroup deletes a group. A missing group is a silent no-op. The default
// group may only be deleted by an admin, and its default policies and their
// now-unreferenced rules go with it.
func (s *Service) DeleteGroup(ctx context.Context, auth domain.AuthContext, id string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	group, err := tx.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !canSee(auth, group.ProjectID, group.Shared) {
		return nil
	}
	if err := mustOwn(auth, group.ProjectID, group.Shared); err != nil {
		return err
	}

	if group.Name == domain.DefaultGroupName {
		if !auth.IsAdmin {
			return fmt.Errorf("%w: firewall group %s", domain.ErrDefaultGroupDeleteRestricted, id)
		}
		if err := deleteDefaultGroupCascade(ctx, tx, group); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := tx.DeleteGroup(ctx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// GetGroupForPort resolves the group a port is bound to, with both rule lists
// resolved.
func (s *Service) GetGroupForPort(ctx context.Context, auth domain.AuthContext, portID string) (*domain.Group, error) {
	if _, err := s.EnsureDefaultGroup(ctx, auth.ProjectID); err != nil {
		return nil, err
	}
	groupID, err := s.store.GetGroupIDForPort(ctx, portID)
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, auth, groupID, true)
}

// resolveGroupRules fills the ordered ingress and egress rule lists.
func (s *Service) resolveGroupRules(ctx context.Context, group *domain.Group) error {
	var err error
	if group.IngressPolicyID != nil {
		group.IngressRuleList, err = policyOrderedRules(ctx, s.store, *group.IngressPolicyID)
		if err != nil {
			return err
		}
	}
	if group.EgressPolicyID != nil {
		group.EgressRuleList, err = policyOrderedRules(ctx, s.store, *group.EgressPolicyID)
		if err != nil {
			return err
		}
	}
	return nil
}

// bindPorts binds every port to the group. Each port may belong to one group
// globally; all conflicting ports are collected first so the caller learns
// the full offending subset in one error.
func bindPorts(ctx context.Context, db storage.Storage, groupID string, ports []string) error {
	var conflicts []string
	for _, portID := range ports {
		ownerID, err := db.GetGroupIDForPort(ctx, portID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		if ownerID != groupID {
			conflicts = append(conflicts, portID)
		}
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrPortInUse, strings.Join(conflicts, ", "))
	}

	for _, portID := range ports {
		err := db.CreatePortAssociation(ctx, groupID, portID)
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Raced with another binder between the check and the insert.
			return fmt.Errorf("%w: %s", domain.ErrPortInUse, portID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteDefaultGroupCascade removes the default group, then its two default
// policies and any of their rules left unreferenced. The group row goes first
// so the policies are no longer in use when deleted.
func deleteDefaultGroupCascade(ctx context.Context, db storage.Storage, group *domain.Group) error {
	policyIDs := make([]string, 0, 2)
	if group.IngressPolicyID != nil {
		policyIDs = append(policyIDs, *group.IngressPolicyID)
	}
	if group.EgressPolicyID != nil {
		policyIDs = append(policyIDs, *group.EgressPolicyID)
	}

	if err := db.DeleteGroup(ctx, group.ID); err != nil {
		return err
	}

	for _, policyID := range policyIDs {
		assocs, err := db.ListPolicyRuleAssociations(ctx, policyID)
		if err != nil {
			return err
		}
		if err := db.DeletePolicyRuleAssociations(ctx, policyID); err != nil {
			return err
		}
		if err := db.DeletePolicy(ctx, policyID); err != nil {
			return err
		}
		for _, assoc := range assocs {
			remaining, err := db.GetPoliciesWithRule(ctx, assoc.RuleID)
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				if err := db.DeleteRule(ctx, assoc.RuleID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
