package firewall_test

import (
	"context"
	"sync"
	"testing"

	"github.com/wkite/neutron-fwaas/internal/domain"
)

func TestEnsureDefaultGroupIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureDefaultGroup(ctx, projectA.ProjectID)
	if err != nil {
		t.Fatalf("EnsureDefaultGroup() unexpected error: %v", err)
	}
	second, err := svc.EnsureDefaultGroup(ctx, projectA.ProjectID)
	if err != nil {
		t.Fatalf("EnsureDefaultGroup() second call unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("second bootstrap returned %s, want %s", second, first)
	}

	def := defaultGroupOf(t, store, projectA.ProjectID)
	if def.ID != first {
		t.Errorf("marker points at %s, want %s", def.ID, first)
	}

	policies, err := store.ListPolicies(ctx, domain.PolicyFilter{ProjectID: projectA.ProjectID})
	if err != nil {
		t.Fatalf("ListPolicies() unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("bootstrap created %d policies, want 2", len(policies))
	}

	rules, err := store.ListRules(ctx, domain.RuleFilter{ProjectID: projectA.ProjectID})
	if err != nil {
		t.Fatalf("ListRules() unexpected error: %v", err)
	}
	if len(rules) != 4 {
		t.Errorf("bootstrap created %d rules, want 4", len(rules))
	}
}

func TestEnsureDefaultGroupContents(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureDefaultGroup(ctx, projectA.ProjectID); err != nil {
		t.Fatalf("EnsureDefaultGroup() unexpected error: %v", err)
	}
	def := defaultGroupOf(t, store, projectA.ProjectID)

	got, err := svc.GetGroup(ctx, projectA, def.ID, true)
	if err != nil {
		t.Fatalf("GetGroup(details) unexpected error: %v", err)
	}

	if len(got.IngressRuleList) != 2 {
		t.Fatalf("ingress rule list has %d rules, want 2", len(got.IngressRuleList))
	}
	for i, wantVersion := range []int{4, 6} {
		rule := got.IngressRuleList[i]
		if rule.Action != domain.ActionDeny || rule.IPVersion != wantVersion {
			t.Errorf("ingress rule %d = %s/v%d, want deny/v%d", i, rule.Action, rule.IPVersion, wantVersion)
		}
	}
	if len(got.EgressRuleList) != 2 {
		t.Fatalf("egress rule list has %d rules, want 2", len(got.EgressRuleList))
	}
	for i, wantVersion := range []int{4, 6} {
		rule := got.EgressRuleList[i]
		if rule.Action != domain.ActionAllow || rule.IPVersion != wantVersion {
			t.Errorf("egress rule %d = %s/v%d, want allow/v%d", i, rule.Action, rule.IPVersion, wantVersion)
		}
	}
}

func TestEnsureDefaultGroupConcurrent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = svc.EnsureDefaultGroup(ctx, "race-project")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("caller %d observed group %s, caller 0 observed %s", i, ids[i], ids[0])
		}
	}

	groups, err := store.ListGroups(ctx, domain.GroupFilter{ProjectID: "race-project"})
	if err != nil {
		t.Fatalf("ListGroups() unexpected error: %v", err)
	}
	defaults := 0
	for _, group := range groups {
		if group.Name == domain.DefaultGroupName {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("found %d default groups, want exactly 1", defaults)
	}

	policies, err := store.ListPolicies(ctx, domain.PolicyFilter{ProjectID: "race-project"})
	if err != nil {
		t.Fatalf("ListPolicies() unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("found %d policies after the race, want 2", len(policies))
	}
}
