package firewall_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/firewall"
	"github.com/wkite/neutron-fwaas/internal/storage/memory"
)

// assertOrder checks both the externally observed rule order and that the
// stored positions are exactly the dense sequence 1..n in that order.
func assertOrder(t *testing.T, store *memory.Store, policyID string, want []string) {
	t.Helper()
	assocs, err := store.ListPolicyRuleAssociations(context.Background(), policyID)
	if err != nil {
		t.Fatalf("ListPolicyRuleAssociations() unexpected error: %v", err)
	}
	got := make([]string, 0, len(assocs))
	for i, assoc := range assocs {
		if assoc.Position != i+1 {
			t.Errorf("position[%d] = %d, want dense %d", i, assoc.Position, i+1)
		}
		got = append(got, assoc.RuleID)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rule order = %v, want %v", got, want)
	}
}

func threeRules(t *testing.T, svc *firewall.Service) (r1, r2, r3 *domain.Rule) {
	t.Helper()
	r1 = mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r1"})
	r2 = mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r2"})
	r3 = mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r3"})
	return r1, r2, r3
}

func TestInsertRuleFront(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, r2, _ := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p"})

	// No reference rule: always the front, insert_after notwithstanding.
	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r1.ID}); err != nil {
		t.Fatalf("InsertRule() unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r1.ID})

	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r2.ID}); err != nil {
		t.Fatalf("InsertRule() unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r2.ID, r1.ID})
}

func TestInsertRuleBeforeAfter(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, r2, r3 := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{
		Name:  "p",
		Rules: []string{r1.ID, r2.ID},
	})
	assertOrder(t, store, policy.ID, []string{r1.ID, r2.ID})

	// Before r2 (index 2): r3 lands at index 2, r2 shifts to 3.
	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{
		FirewallRuleID: r3.ID,
		InsertBefore:   r2.ID,
	}); err != nil {
		t.Fatalf("InsertRule(before) unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r1.ID, r3.ID, r2.ID})

	r4 := mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r4"})
	// After r1 (index 1): r4 lands at index 2.
	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{
		FirewallRuleID: r4.ID,
		InsertAfter:    r1.ID,
	}); err != nil {
		t.Fatalf("InsertRule(after) unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r1.ID, r4.ID, r3.ID, r2.ID})

	// insert_before wins when both references are set.
	r5 := mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{Name: "r5"})
	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{
		FirewallRuleID: r5.ID,
		InsertBefore:   r1.ID,
		InsertAfter:    r2.ID,
	}); err != nil {
		t.Fatalf("InsertRule(both refs) unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r5.ID, r1.ID, r4.ID, r3.ID, r2.ID})
}

func TestInsertDuplicateLeavesOrderUnchanged(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, r2, _ := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{
		Name:  "p",
		Rules: []string{r1.ID, r2.ID},
	})

	_, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{
		FirewallRuleID: r1.ID,
		InsertAfter:    r2.ID,
	})
	if !errors.Is(err, domain.ErrRuleAlreadyAssociated) {
		t.Fatalf("InsertRule(duplicate) error = %v, want ErrRuleAlreadyAssociated", err)
	}
	assertOrder(t, store, policy.ID, []string{r1.ID, r2.ID})
}

func TestRemoveRuleRenumbers(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, r2, r3 := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{
		Name:    "p",
		Audited: true,
		Rules:   []string{r1.ID, r2.ID, r3.ID},
	})

	got, err := svc.RemoveRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r2.ID})
	if err != nil {
		t.Fatalf("RemoveRule() unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r1.ID, r3.ID})
	if got.Audited {
		t.Error("policy still audited after rule removal")
	}
}

func TestRemoveUnassociatedRule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r1, r2, _ := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{
		Name:  "p",
		Rules: []string{r1.ID},
	})

	_, err := svc.RemoveRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r2.ID})
	if !errors.Is(err, domain.ErrRuleNotAssociated) {
		t.Errorf("RemoveRule() error = %v, want ErrRuleNotAssociated", err)
	}
}

func TestSingleElementRoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, _, _ := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p"})

	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r1.ID}); err != nil {
		t.Fatalf("InsertRule() unexpected error: %v", err)
	}
	if _, err := svc.RemoveRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r1.ID}); err != nil {
		t.Fatalf("RemoveRule() unexpected error: %v", err)
	}
	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{FirewallRuleID: r1.ID}); err != nil {
		t.Fatalf("re-InsertRule() unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r1.ID})
}

func TestInsertRuleRequiresRuleID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p"})

	if _, err := svc.InsertRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("InsertRule() error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.RemoveRule(ctx, projectA, policy.ID, &domain.RuleOrderRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("RemoveRule() error = %v, want ErrInvalidInput", err)
	}
}

func TestSetRulesBulkReplace(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, r2, r3 := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{
		Name:  "p",
		Rules: []string{r1.ID, r2.ID},
	})

	rules := []string{r3.ID, r1.ID}
	if _, err := svc.UpdatePolicy(ctx, projectA, policy.ID, &domain.UpdatePolicyRequest{Rules: &rules}); err != nil {
		t.Fatalf("UpdatePolicy(rules) unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{r3.ID, r1.ID})

	empty := []string{}
	if _, err := svc.UpdatePolicy(ctx, projectA, policy.ID, &domain.UpdatePolicyRequest{Rules: &empty}); err != nil {
		t.Fatalf("UpdatePolicy(clear rules) unexpected error: %v", err)
	}
	assertOrder(t, store, policy.ID, []string{})
}

func TestSetRulesRejectsBadLists(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1, _, _ := threeRules(t, svc)
	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p"})

	missing := []string{r1.ID, "no-such-rule"}
	if _, err := svc.UpdatePolicy(ctx, projectA, policy.ID, &domain.UpdatePolicyRequest{Rules: &missing}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdatePolicy(missing rule) error = %v, want ErrNotFound", err)
	}

	dup := []string{r1.ID, r1.ID}
	if _, err := svc.UpdatePolicy(ctx, projectA, policy.ID, &domain.UpdatePolicyRequest{Rules: &dup}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("UpdatePolicy(duplicate rule) error = %v, want ErrInvalidInput", err)
	}

	// Failed validation must leave the association list untouched.
	assertOrder(t, store, policy.ID, []string{})
}

func TestUpdatePolicyAuditedReset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p", Audited: true})

	name := "renamed"
	got, err := svc.UpdatePolicy(ctx, projectA, policy.ID, &domain.UpdatePolicyRequest{Name: &name})
	if err != nil {
		t.Fatalf("UpdatePolicy() unexpected error: %v", err)
	}
	if got.Audited {
		t.Error("audited survived an update that did not set it")
	}

	audited := true
	got, err = svc.UpdatePolicy(ctx, projectA, policy.ID, &domain.UpdatePolicyRequest{Audited: &audited})
	if err != nil {
		t.Fatalf("UpdatePolicy(audited) unexpected error: %v", err)
	}
	if !got.Audited {
		t.Error("explicit audited=true was not kept")
	}
}

func TestCreatePolicyReservedName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{domain.DefaultIngressPolicyName, domain.DefaultEgressPolicyName} {
		if _, err := svc.CreatePolicy(ctx, projectA, &domain.CreatePolicyRequest{Name: name}); !errors.Is(err, domain.ErrDefaultResourceProtected) {
			t.Errorf("CreatePolicy(%q) error = %v, want ErrDefaultResourceProtected", name, err)
		}
	}
}

func TestDeletePolicyInUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	policy := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p"})
	if _, err := svc.CreateGroup(ctx, projectA, &domain.CreateGroupRequest{
		Name:            "g",
		IngressPolicyID: &policy.ID,
	}); err != nil {
		t.Fatalf("CreateGroup() unexpected error: %v", err)
	}

	if err := svc.DeletePolicy(ctx, projectA, policy.ID); !errors.Is(err, domain.ErrPolicyInUse) {
		t.Errorf("DeletePolicy() error = %v, want ErrPolicyInUse", err)
	}
}

// The create-insert-remove walkthrough: R1 in, R2 in front, R1 out.
func TestOrderingWalkthrough(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r1 := mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{
		Protocol:        domain.ProtocolTCP,
		DestinationPort: "80:80",
	})
	p1 := mustCreatePolicy(t, svc, projectA, &domain.CreatePolicyRequest{Name: "p1", Rules: []string{}})

	got, err := svc.InsertRule(ctx, projectA, p1.ID, &domain.RuleOrderRequest{FirewallRuleID: r1.ID})
	if err != nil {
		t.Fatalf("InsertRule(r1) unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Rules, []string{r1.ID}) {
		t.Errorf("rules after r1 insert = %v, want [%s]", got.Rules, r1.ID)
	}

	r2 := mustCreateRule(t, svc, projectA, &domain.CreateRuleRequest{
		Protocol:        domain.ProtocolUDP,
		DestinationPort: "53",
	})
	got, err = svc.InsertRule(ctx, projectA, p1.ID, &domain.RuleOrderRequest{
		FirewallRuleID: r2.ID,
		InsertBefore:   r1.ID,
	})
	if err != nil {
		t.Fatalf("InsertRule(r2 before r1) unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Rules, []string{r2.ID, r1.ID}) {
		t.Errorf("rules after r2 insert = %v, want [%s %s]", got.Rules, r2.ID, r1.ID)
	}

	got, err = svc.RemoveRule(ctx, projectA, p1.ID, &domain.RuleOrderRequest{FirewallRuleID: r1.ID})
	if err != nil {
		t.Fatalf("RemoveRule(r1) unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Rules, []string{r2.ID}) {
		t.Errorf("rules after r1 removal = %v, want [%s]", got.Rules, r2.ID)
	}
	if got.Audited {
		t.Error("policy still audited after removal")
	}
	assertOrder(t, store, p1.ID, []string{r2.ID})
}
