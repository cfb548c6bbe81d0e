// Package memory provides an in-memory implementation of the storage
// interface for testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
)

// Store is an in-memory implementation of the storage interface.
type Store struct {
	mu sync.RWMutex

	rules    map[string]*domain.Rule
	policies map[string]*domain.Policy
	groups   map[string]*domain.Group
	// assocs records rule positions per policy: policyID -> ruleID -> position.
	assocs map[string]map[string]int
	// ports records the exclusive port binding: portID -> groupID.
	ports   map[string]string
	markers map[string]*domain.DefaultGroupMarker
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		rules:    make(map[string]*domain.Rule),
		policies: make(map[string]*domain.Policy),
		groups:   make(map[string]*domain.Group),
		assocs:   make(map[string]map[string]int),
		ports:    make(map[string]string),
		markers:  make(map[string]*domain.DefaultGroupMarker),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx applies writes to the store immediately but records an undo step for
// every row it creates. Rollback removes those rows in reverse order, which
// is enough for the engine: mutating operations validate before writing, and
// the one rollback that happens after real writes (the losing side of a
// default-group bootstrap race) only ever created rows.
type Tx struct {
	store *Store
	undo  []func()
}

func (t *Tx) Commit() error {
	t.undo = nil
	return nil
}

func (t *Tx) Rollback() error {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}

func (t *Tx) Close() error { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// ============================================
// Rules
// ============================================

func (s *Store) CreateRule(ctx context.Context, rule *domain.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *rule
	s.rules[rule.ID] = &stored
	return nil
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *rule
	return &copied, nil
}

func (s *Store) ListRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rules []*domain.Rule
	for _, rule := range s.rules {
		if filter.ProjectID != "" && rule.ProjectID != filter.ProjectID && !rule.Shared {
			continue
		}
		if filter.Shared != nil && rule.Shared != *filter.Shared {
			continue
		}
		if filter.Action != "" && rule.Action != filter.Action {
			continue
		}
		if filter.Enabled != nil && rule.Enabled != *filter.Enabled {
			continue
		}
		copied := *rule
		rules = append(rules, &copied)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *Store) GetRulesByIDs(ctx context.Context, ids []string) ([]*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rules []*domain.Rule
	for _, id := range ids {
		if rule, ok := s.rules[id]; ok {
			copied := *rule
			rules = append(rules, &copied)
		}
	}
	return rules, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := *rule
	s.rules[rule.ID] = &stored
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// ============================================
// Policies
// ============================================

func (s *Store) CreatePolicy(ctx context.Context, policy *domain.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[policy.ID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *policy
	stored.Rules = nil
	s.policies[policy.ID] = &stored
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *policy
	return &copied, nil
}

func (s *Store) ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]*domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var policies []*domain.Policy
	for _, policy := range s.policies {
		if filter.ProjectID != "" && policy.ProjectID != filter.ProjectID && !policy.Shared {
			continue
		}
		if filter.Shared != nil && policy.Shared != *filter.Shared {
			continue
		}
		copied := *policy
		policies = append(policies, &copied)
	}
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Name != policies[j].Name {
			return policies[i].Name < policies[j].Name
		}
		return policies[i].ID < policies[j].ID
	})
	return policies, nil
}

func (s *Store) UpdatePolicy(ctx context.Context, policy *domain.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[policy.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := *policy
	stored.Rules = nil
	s.policies[policy.ID] = &stored
	return nil
}

func (s *Store) SetPolicyAudited(ctx context.Context, id string, audited bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	policy, ok := s.policies[id]
	if !ok {
		return domain.ErrNotFound
	}
	policy.Audited = audited
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.policies, id)
	delete(s.assocs, id)
	return nil
}

func (s *Store) LockPolicy(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.policies[id]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

// ============================================
// Policy/rule associations
// ============================================

func (s *Store) ListPolicyRuleAssociations(ctx context.Context, policyID string) ([]*domain.PolicyRuleAssociation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var assocs []*domain.PolicyRuleAssociation
	for ruleID, position := range s.assocs[policyID] {
		assocs = append(assocs, &domain.PolicyRuleAssociation{
			PolicyID: policyID,
			RuleID:   ruleID,
			Position: position,
		})
	}
	sort.Slice(assocs, func(i, j int) bool {
		return assocs[i].Position < assocs[j].Position
	})
	return assocs, nil
}

func (s *Store) GetPolicyRuleAssociation(ctx context.Context, policyID, ruleID string) (*domain.PolicyRuleAssociation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position, ok := s.assocs[policyID][ruleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.PolicyRuleAssociation{
		PolicyID: policyID,
		RuleID:   ruleID,
		Position: position,
	}, nil
}

func (s *Store) CreatePolicyRuleAssociation(ctx context.Context, assoc *domain.PolicyRuleAssociation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assocs[assoc.PolicyID][assoc.RuleID]; ok {
		return domain.ErrAlreadyExists
	}
	if s.assocs[assoc.PolicyID] == nil {
		s.assocs[assoc.PolicyID] = make(map[string]int)
	}
	s.assocs[assoc.PolicyID][assoc.RuleID] = assoc.Position
	return nil
}

func (s *Store) SetPolicyRuleAssociationPosition(ctx context.Context, policyID, ruleID string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assocs[policyID][ruleID]; !ok {
		return domain.ErrNotFound
	}
	s.assocs[policyID][ruleID] = position
	return nil
}

func (s *Store) DeletePolicyRuleAssociation(ctx context.Context, policyID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assocs[policyID][ruleID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.assocs[policyID], ruleID)
	return nil
}

func (s *Store) DeletePolicyRuleAssociations(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assocs, policyID)
	return nil
}

func (s *Store) GetPoliciesWithRule(ctx context.Context, ruleID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for policyID, rules := range s.assocs {
		if _, ok := rules[ruleID]; ok {
			ids = append(ids, policyID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ============================================
// Groups
// ============================================

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *group
	stored.Ports = nil
	stored.IngressRuleList = nil
	stored.EgressRuleList = nil
	s.groups[group.ID] = &stored
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *group
	copied.Ports = s.portsForGroupLocked(id)
	return &copied, nil
}

func (s *Store) ListGroups(ctx context.Context, filter domain.GroupFilter) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []*domain.Group
	for _, group := range s.groups {
		if filter.ProjectID != "" && group.ProjectID != filter.ProjectID && !group.Shared {
			continue
		}
		if filter.Status != "" && group.Status != filter.Status {
			continue
		}
		if filter.Shared != nil && group.Shared != *filter.Shared {
			continue
		}
		copied := *group
		copied.Ports = s.portsForGroupLocked(group.ID)
		groups = append(groups, &copied)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

func (s *Store) UpdateGroup(ctx context.Context, group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := *group
	stored.Ports = nil
	stored.IngressRuleList = nil
	stored.EgressRuleList = nil
	s.groups[group.ID] = &stored
	return nil
}

func (s *Store) UpdateGroupStatusNotIn(ctx context.Context, id, status string, notIn []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok {
		return 0, nil
	}
	for _, excluded := range notIn {
		if group.Status == excluded {
			return 0, nil
		}
	}
	group.Status = status
	return 1, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.groups, id)
	for portID, groupID := range s.ports {
		if groupID == id {
			delete(s.ports, portID)
		}
	}
	for projectID, marker := range s.markers {
		if marker.GroupID == id {
			delete(s.markers, projectID)
		}
	}
	return nil
}

func (s *Store) GetGroupsWithPolicy(ctx context.Context, policyID string) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []*domain.Group
	for _, group := range s.groups {
		if (group.IngressPolicyID != nil && *group.IngressPolicyID == policyID) ||
			(group.EgressPolicyID != nil && *group.EgressPolicyID == policyID) {
			copied := *group
			groups = append(groups, &copied)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// ============================================
// Group/port associations
// ============================================

func (s *Store) CreatePortAssociation(ctx context.Context, groupID, portID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ports[portID]; ok {
		return domain.ErrAlreadyExists
	}
	s.ports[portID] = groupID
	return nil
}

func (s *Store) ListGroupPorts(ctx context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portsForGroupLocked(groupID), nil
}

func (s *Store) portsForGroupLocked(groupID string) []string {
	var ports []string
	for portID, boundGroupID := range s.ports {
		if boundGroupID == groupID {
			ports = append(ports, portID)
		}
	}
	sort.Strings(ports)
	return ports
}

func (s *Store) DeleteGroupPorts(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for portID, boundGroupID := range s.ports {
		if boundGroupID == groupID {
			delete(s.ports, portID)
		}
	}
	return nil
}

func (s *Store) GetGroupIDForPort(ctx context.Context, portID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groupID, ok := s.ports[portID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return groupID, nil
}

// ============================================
// Default group markers
// ============================================

func (s *Store) CreateDefaultGroupMarker(ctx context.Context, marker *domain.DefaultGroupMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[marker.ProjectID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *marker
	s.markers[marker.ProjectID] = &stored
	return nil
}

func (s *Store) GetDefaultGroupMarker(ctx context.Context, projectID string) (*domain.DefaultGroupMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marker, ok := s.markers[projectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *marker
	return &copied, nil
}

// ============================================
// Transaction pass-through
// ============================================

func (t *Tx) CreateRule(ctx context.Context, rule *domain.Rule) error {
	if err := t.store.CreateRule(ctx, rule); err != nil {
		return err
	}
	id := rule.ID
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		delete(t.store.rules, id)
	})
	return nil
}
func (t *Tx) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	return t.store.GetRule(ctx, id)
}
func (t *Tx) ListRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.Rule, error) {
	return t.store.ListRules(ctx, filter)
}
func (t *Tx) GetRulesByIDs(ctx context.Context, ids []string) ([]*domain.Rule, error) {
	return t.store.GetRulesByIDs(ctx, ids)
}
func (t *Tx) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	return t.store.UpdateRule(ctx, rule)
}
func (t *Tx) DeleteRule(ctx context.Context, id string) error {
	return t.store.DeleteRule(ctx, id)
}
func (t *Tx) CreatePolicy(ctx context.Context, policy *domain.Policy) error {
	if err := t.store.CreatePolicy(ctx, policy); err != nil {
		return err
	}
	id := policy.ID
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		delete(t.store.policies, id)
	})
	return nil
}
func (t *Tx) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	return t.store.GetPolicy(ctx, id)
}
func (t *Tx) ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]*domain.Policy, error) {
	return t.store.ListPolicies(ctx, filter)
}
func (t *Tx) UpdatePolicy(ctx context.Context, policy *domain.Policy) error {
	return t.store.UpdatePolicy(ctx, policy)
}
func (t *Tx) SetPolicyAudited(ctx context.Context, id string, audited bool) error {
	return t.store.SetPolicyAudited(ctx, id, audited)
}
func (t *Tx) DeletePolicy(ctx context.Context, id string) error {
	return t.store.DeletePolicy(ctx, id)
}
func (t *Tx) LockPolicy(ctx context.Context, id string) error {
	return t.store.LockPolicy(ctx, id)
}
func (t *Tx) ListPolicyRuleAssociations(ctx context.Context, policyID string) ([]*domain.PolicyRuleAssociation, error) {
	return t.store.ListPolicyRuleAssociations(ctx, policyID)
}
func (t *Tx) GetPolicyRuleAssociation(ctx context.Context, policyID, ruleID string) (*domain.PolicyRuleAssociation, error) {
	return t.store.GetPolicyRuleAssociation(ctx, policyID, ruleID)
}
func (t *Tx) CreatePolicyRuleAssociation(ctx context.Context, assoc *domain.PolicyRuleAssociation) error {
	if err := t.store.CreatePolicyRuleAssociation(ctx, assoc); err != nil {
		return err
	}
	policyID, ruleID := assoc.PolicyID, assoc.RuleID
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		delete(t.store.assocs[policyID], ruleID)
	})
	return nil
}
func (t *Tx) SetPolicyRuleAssociationPosition(ctx context.Context, policyID, ruleID string, position int) error {
	return t.store.SetPolicyRuleAssociationPosition(ctx, policyID, ruleID, position)
}
func (t *Tx) DeletePolicyRuleAssociation(ctx context.Context, policyID, ruleID string) error {
	return t.store.DeletePolicyRuleAssociation(ctx, policyID, ruleID)
}
func (t *Tx) DeletePolicyRuleAssociations(ctx context.Context, policyID string) error {
	return t.store.DeletePolicyRuleAssociations(ctx, policyID)
}
func (t *Tx) GetPoliciesWithRule(ctx context.Context, ruleID string) ([]string, error) {
	return t.store.GetPoliciesWithRule(ctx, ruleID)
}
func (t *Tx) CreateGroup(ctx context.Context, group *domain.Group) error {
	if err := t.store.CreateGroup(ctx, group); err != nil {
		return err
	}
	id := group.ID
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		delete(t.store.groups, id)
	})
	return nil
}
func (t *Tx) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return t.store.GetGroup(ctx, id)
}
func (t *Tx) ListGroups(ctx context.Context, filter domain.GroupFilter) ([]*domain.Group, error) {
	return t.store.ListGroups(ctx, filter)
}
func (t *Tx) UpdateGroup(ctx context.Context, group *domain.Group) error {
	return t.store.UpdateGroup(ctx, group)
}
func (t *Tx) UpdateGroupStatusNotIn(ctx context.Context, id, status string, notIn []string) (int, error) {
	return t.store.UpdateGroupStatusNotIn(ctx, id, status, notIn)
}
func (t *Tx) DeleteGroup(ctx context.Context, id string) error {
	return t.store.DeleteGroup(ctx, id)
}
func (t *Tx) GetGroupsWithPolicy(ctx context.Context, policyID string) ([]*domain.Group, error) {
	return t.store.GetGroupsWithPolicy(ctx, policyID)
}
func (t *Tx) CreatePortAssociation(ctx context.Context, groupID, portID string) error {
	if err := t.store.CreatePortAssociation(ctx, groupID, portID); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		delete(t.store.ports, portID)
	})
	return nil
}
func (t *Tx) ListGroupPorts(ctx context.Context, groupID string) ([]string, error) {
	return t.store.ListGroupPorts(ctx, groupID)
}
func (t *Tx) DeleteGroupPorts(ctx context.Context, groupID string) error {
	return t.store.DeleteGroupPorts(ctx, groupID)
}
func (t *Tx) GetGroupIDForPort(ctx context.Context, portID string) (string, error) {
	return t.store.GetGroupIDForPort(ctx, portID)
}
func (t *Tx) CreateDefaultGroupMarker(ctx context.Context, marker *domain.DefaultGroupMarker) error {
	if err := t.store.CreateDefaultGroupMarker(ctx, marker); err != nil {
		return err
	}
	projectID := marker.ProjectID
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		delete(t.store.markers, projectID)
	})
	return nil
}
func (t *Tx) GetDefaultGroupMarker(ctx context.Context, projectID string) (*domain.DefaultGroupMarker, error) {
	return t.store.GetDefaultGroupMarker(ctx, projectID)
}
