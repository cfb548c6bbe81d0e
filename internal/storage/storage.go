package storage

import (
	"context"

	"github.com/wkite/neutron-fwaas/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Rules
	CreateRule(ctx context.Context, rule *domain.Rule) error
	GetRule(ctx context.Context, id string) (*domain.Rule, error)
	ListRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.Rule, error)
	GetRulesByIDs(ctx context.Context, ids []string) ([]*domain.Rule, error)
	UpdateRule(ctx context.Context, rule *domain.Rule) error
	DeleteRule(ctx context.Context, id string) error

	// Policies
	CreatePolicy(ctx context.Context, policy *domain.Policy) error
	GetPolicy(ctx context.Context, id string) (*domain.Policy, error)
	ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]*domain.Policy, error)
	UpdatePolicy(ctx context.Context, policy *domain.Policy) error
	SetPolicyAudited(ctx context.Context, id string, audited bool) error
	DeletePolicy(ctx context.Context, id string) error
	// LockPolicy takes a row-level exclusive lock on the policy for the
	// duration of the ambient transaction, serializing concurrent ordering
	// operations on the same policy.
	LockPolicy(ctx context.Context, id string) error

	// Policy/rule associations (the only place ordering is recorded)
	ListPolicyRuleAssociations(ctx context.Context, policyID string) ([]*domain.PolicyRuleAssociation, error)
	GetPolicyRuleAssociation(ctx context.Context, policyID, ruleID string) (*domain.PolicyRuleAssociation, error)
	CreatePolicyRuleAssociation(ctx context.Context, assoc *domain.PolicyRuleAssociation) error
	SetPolicyRuleAssociationPosition(ctx context.Context, policyID, ruleID string, position int) error
	DeletePolicyRuleAssociation(ctx context.Context, policyID, ruleID string) error
	DeletePolicyRuleAssociations(ctx context.Context, policyID string) error
	GetPoliciesWithRule(ctx context.Context, ruleID string) ([]string, error)

	// Groups
	CreateGroup(ctx context.Context, group *domain.Group) error
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	ListGroups(ctx context.Context, filter domain.GroupFilter) ([]*domain.Group, error)
	UpdateGroup(ctx context.Context, group *domain.Group) error
	// UpdateGroupStatusNotIn conditionally sets the group status when the
	// current status is not in the excluded set, returning the number of
	// rows changed. The guard and update execute as one statement.
	UpdateGroupStatusNotIn(ctx context.Context, id, status string, notIn []string) (int, error)
	DeleteGroup(ctx context.Context, id string) error
	GetGroupsWithPolicy(ctx context.Context, policyID string) ([]*domain.Group, error)

	// Group/port associations
	CreatePortAssociation(ctx context.Context, groupID, portID string) error
	ListGroupPorts(ctx context.Context, groupID string) ([]string, error)
	DeleteGroupPorts(ctx context.Context, groupID string) error
	GetGroupIDForPort(ctx context.Context, portID string) (string, error)

	// Default group markers
	CreateDefaultGroupMarker(ctx context.Context, marker *domain.DefaultGroupMarker) error
	GetDefaultGroupMarker(ctx context.Context, projectID string) (*domain.DefaultGroupMarker, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
