package domain

// Policy is a named ordered list of rules applied in sequence.
type Policy struct {
	ID          string `json:"id" db:"id"`
	ProjectID   string `json:"project_id" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Audited     bool   `json:"audited" db:"audited"`
	Shared      bool   `json:"shared" db:"shared"`

	// Rules holds the referenced rule ids in position order.
	Rules []string `json:"firewall_rules" db:"-"`
}

// PolicyRuleAssociation is the join row recording rule ordering within a
// policy. Positions are a dense 1-based sequence per policy.
type PolicyRuleAssociation struct {
	PolicyID string `db:"firewall_policy_id"`
	RuleID   string `db:"firewall_rule_id"`
	Position int    `db:"position"`
}

// CreatePolicyRequest is the request body for creating a firewall policy.
type CreatePolicyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Shared      bool     `json:"shared"`
	Audited     bool     `json:"audited"`
	Rules       []string `json:"firewall_rules"`
}

// UpdatePolicyRequest is the request body for updating a firewall policy.
// Nil fields are left unchanged. A non-nil Rules replaces the whole ordered
// rule list (an empty list clears it).
type UpdatePolicyRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Shared      *bool     `json:"shared,omitempty"`
	Audited     *bool     `json:"audited,omitempty"`
	Rules       *[]string `json:"firewall_rules,omitempty"`
}

// RuleOrderRequest identifies a rule to insert into or remove from a policy.
// On insert, InsertBefore takes precedence over InsertAfter; when neither
// names a reference rule the new rule goes to the front.
type RuleOrderRequest struct {
	FirewallRuleID string `json:"firewall_rule_id"`
	InsertBefore   string `json:"insert_before,omitempty"`
	InsertAfter    string `json:"insert_after,omitempty"`
}

// PolicyFilter narrows policy listings. Zero values match everything.
type PolicyFilter struct {
	ProjectID string
	Shared    *bool
}
