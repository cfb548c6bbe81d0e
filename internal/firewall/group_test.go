package firewall_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/firewall"
	"github.com/wkite/neutron-fwaas/internal/storage/memory"
)

func mustCreateGroup(t *testing.T, svc *firewall.Service, auth domain.AuthContext, req *domain.CreateGroupRequest) *domain.Group {
	t.Helper()
	group, err := svc.CreateGroup(context.Background(), auth, req)
	if err != nil {
		t.Fatalf("CreateGroup() unexpected error: %v", err)
	}
	return group
}

func defaultGroupOf(t *testing.T, store *memory.Store, projectID string) *domain.Group {
	t.Helper()
	marker, err := store.GetDefaultGroupMarker(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetDefaultGroupMarker() unexpected error: %v", err)
	}
	group, err := store.GetGroup(context.Background(), marker.GroupID)
	if err != nil {
		t.Fatalf("GetGroup(default) unexpected error: %v", err)
	}
	return group
}

func TestCreateGroupStatus(t *testing.T) {
	svc, _ := newTestService(t)
	group := mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{Name: "g"})
	if group.Status != domain.StatusPendingCreate {
		t.Errorf("Status = %q, want PENDING_CREATE", group.Status)
	}

	distributed := firewall.New(memory.New(), true)
	group = mustCreateGroup(t, distributed, projectA, &domain.CreateGroupRequest{Name: "g"})
	if group.Status != domain.StatusCreated {
		t.Errorf("Status with distributed routers = %q, want CREATED", group.Status)
	}
}

func TestCreateGroupBootstrapsDefault(t *testing.T) {
	svc, store := newTestService(t)

	mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{Name: "g"})

	def := defaultGroupOf(t, store, projectA.ProjectID)
	if def.Name != domain.DefaultGroupName {
		t.Errorf("default group name = %q", def.Name)
	}
	if def.Status != domain.StatusInactive {
		t.Errorf("default group status = %q, want INACTIVE", def.Status)
	}
	if def.IngressPolicyID == nil || def.EgressPolicyID == nil {
		t.Fatal("default group missing policy references")
	}
}

func TestCreateGroupReservedName(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateGroup(context.Background(), projectA, &domain.CreateGroupRequest{Name: domain.DefaultGroupName})
	if !errors.Is(err, domain.ErrDefaultResourceProtected) {
		t.Errorf("CreateGroup(\"default\") error = %v, want ErrDefaultResourceProtected", err)
	}
}

func TestPortBindingConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{
		Name:  "g1",
		Ports: []string{"port-1", "port-2"},
	})

	_, err := svc.CreateGroup(ctx, projectA, &domain.CreateGroupRequest{
		Name:  "g2",
		Ports: []string{"port-1", "port-2", "port-3"},
	})
	if !errors.Is(err, domain.ErrPortInUse) {
		t.Fatalf("CreateGroup(conflicting ports) error = %v, want ErrPortInUse", err)
	}
	// The error names exactly the offending subset.
	msg := err.Error()
	for _, want := range []string{"port-1", "port-2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
	if strings.Contains(msg, "port-3") {
		t.Errorf("error %q mentions the unbound port-3", msg)
	}

	// The failed create must not leave a half-made group behind.
	groups, err := svc.ListGroups(ctx, projectA, domain.GroupFilter{})
	if err != nil {
		t.Fatalf("ListGroups() unexpected error: %v", err)
	}
	for _, group := range groups {
		if group.Name == "g2" {
			t.Error("conflicting group g2 was persisted")
		}
	}

	// port-3 stayed free and is bindable by a later group.
	if _, err := svc.CreateGroup(ctx, projectA, &domain.CreateGroupRequest{
		Name:  "g3",
		Ports: []string{"port-3"},
	}); err != nil {
		t.Errorf("CreateGroup(port-3) unexpected error: %v", err)
	}
}

func TestUpdateGroupPortsReplace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{
		Name:  "g",
		Ports: []string{"port-1", "port-2"},
	})

	ports := []string{"port-2", "port-3"}
	got, err := svc.UpdateGroup(ctx, projectA, group.ID, &domain.UpdateGroupRequest{Ports: &ports})
	if err != nil {
		t.Fatalf("UpdateGroup(ports) unexpected error: %v", err)
	}
	if len(got.Ports) != 2 || got.Ports[0] != "port-2" || got.Ports[1] != "port-3" {
		t.Errorf("Ports = %v, want [port-2 port-3]", got.Ports)
	}

	// port-1 was released by the replace.
	if _, err := svc.CreateGroup(ctx, projectA, &domain.CreateGroupRequest{
		Name:  "g2",
		Ports: []string{"port-1"},
	}); err != nil {
		t.Errorf("CreateGroup(port-1) unexpected error: %v", err)
	}
}

func TestUpdateGroupClearsPolicyRef(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p"})
	group := mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{
		Name:            "g",
		IngressPolicyID: &policy.ID,
	})

	clear := ""
	got, err := svc.UpdateGroup(ctx, projectA, group.ID, &domain.UpdateGroupRequest{IngressPolicyID: &clear})
	if err != nil {
		t.Fatalf("UpdateGroup(clear ingress) unexpected error: %v", err)
	}
	if got.IngressPolicyID != nil {
		t.Errorf("IngressPolicyID = %v, want nil", *got.IngressPolicyID)
	}
}

func TestDeleteGroupSilentNoop(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.DeleteGroup(context.Background(), projectA, "no-such-group"); err != nil {
		t.Errorf("DeleteGroup(missing) error = %v, want nil", err)
	}
}

func TestDefaultGroupProtection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{Name: "g"})
	def := defaultGroupOf(t, store, projectA.ProjectID)

	name := "renamed"
	if _, err := svc.UpdateGroup(ctx, projectA, def.ID, &domain.UpdateGroupRequest{Name: &name}); !errors.Is(err, domain.ErrDefaultResourceProtected) {
		t.Errorf("UpdateGroup(default) error = %v, want ErrDefaultResourceProtected", err)
	}

	// Renaming any group to the reserved name is refused as well.
	other := mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{Name: "other"})
	reserved := domain.DefaultGroupName
	if _, err := svc.UpdateGroup(ctx, projectA, other.ID, &domain.UpdateGroupRequest{Name: &reserved}); !errors.Is(err, domain.ErrDefaultResourceProtected) {
		t.Errorf("UpdateGroup(rename to default) error = %v, want ErrDefaultResourceProtected", err)
	}

	if err := svc.DeleteGroup(ctx, projectA, def.ID); !errors.Is(err, domain.ErrDefaultGroupDeleteRestricted) {
		t.Errorf("DeleteGroup(default, non-admin) error = %v, want ErrDefaultGroupDeleteRestricted", err)
	}

	// Admin may only touch the default group to stage its deletion.
	if _, err := svc.UpdateGroup(ctx, admin, def.ID, &domain.UpdateGroupRequest{Name: &name}); !errors.Is(err, domain.ErrDefaultResourceProtected) {
		t.Errorf("UpdateGroup(default, admin rename) error = %v, want ErrDefaultResourceProtected", err)
	}
	pending := domain.StatusPendingDelete
	got, err := svc.UpdateGroup(ctx, admin, def.ID, &domain.UpdateGroupRequest{Status: &pending})
	if err != nil {
		t.Fatalf("UpdateGroup(default, admin PENDING_DELETE) unexpected error: %v", err)
	}
	if got.Status != domain.StatusPendingDelete {
		t.Errorf("Status = %q, want PENDING_DELETE", got.Status)
	}
}

func TestAdminDeleteDefaultCascades(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{Name: "g"})
	def := defaultGroupOf(t, store, projectA.ProjectID)
	ingressID, egressID := *def.IngressPolicyID, *def.EgressPolicyID

	if err := svc.DeleteGroup(ctx, admin, def.ID); err != nil {
		t.Fatalf("DeleteGroup(default, admin) unexpected error: %v", err)
	}

	if _, err := store.GetGroup(ctx, def.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("default group still present")
	}
	for _, policyID := range []string{ingressID, egressID} {
		if _, err := store.GetPolicy(ctx, policyID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("default policy %s still present", policyID)
		}
	}
	if _, err := store.GetDefaultGroupMarker(ctx, projectA.ProjectID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("default group marker still present")
	}
	rules, err := store.ListRules(ctx, domain.RuleFilter{ProjectID: projectA.ProjectID})
	if err != nil {
		t.Fatalf("ListRules() unexpected error: %v", err)
	}
	for _, rule := range rules {
		if strings.HasPrefix(rule.Name, "default ") {
			t.Errorf("default rule %q survived the cascade", rule.Name)
		}
	}
}

func TestConditionalStatusUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{Name: "g"})

	// Excluded current status: no transition.
	updated, err := svc.UpdateGroupStatus(ctx, group.ID, domain.StatusActive, domain.StatusPendingCreate)
	if err != nil {
		t.Fatalf("UpdateGroupStatus() unexpected error: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated = %d, want 0", updated)
	}
	got, err := svc.GetGroup(ctx, projectA, group.ID, false)
	if err != nil {
		t.Fatalf("GetGroup() unexpected error: %v", err)
	}
	if got.Status != domain.StatusPendingCreate {
		t.Errorf("Status = %q, want unchanged PENDING_CREATE", got.Status)
	}

	// Not excluded: transition applies.
	updated, err = svc.UpdateGroupStatus(ctx, group.ID, domain.StatusActive, domain.StatusError, domain.StatusPendingDelete)
	if err != nil {
		t.Fatalf("UpdateGroupStatus() unexpected error: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	got, err = svc.GetGroup(ctx, projectA, group.ID, false)
	if err != nil {
		t.Fatalf("GetGroup() unexpected error: %v", err)
	}
	if got.Status != domain.StatusActive {
		t.Errorf("Status = %q, want ACTIVE", got.Status)
	}
}

func TestGetGroupForPort(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r1 := mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r1"})
	r2 := mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r2"})
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{
		Name:  "p",
		Rules: []string{r1.ID, r2.ID},
	})
	group := mustCreateGroup(t, svc, projectA, &domain.CreateGroupRequest{
		Name:            "g",
		IngressPolicyID: &policy.ID,
		Ports:           []string{"port-9"},
	})

	got, err := svc.GetGroupForPort(ctx, projectA, "port-9")
	if err != nil {
		t.Fatalf("GetGroupForPort() unexpected error: %v", err)
	}
	if got.ID != group.ID {
		t.Errorf("group = %s, want %s", got.ID, group.ID)
	}
	if len(got.IngressRuleList) != 2 || got.IngressRuleList[0].ID != r1.ID || got.IngressRuleList[1].ID != r2.ID {
		t.Errorf("ingress rule list out of order: %v", got.IngressRuleList)
	}

	if _, err := svc.GetGroupForPort(ctx, projectA, "unbound-port"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetGroupForPort(unbound) error = %v, want ErrNotFound", err)
	}
}
