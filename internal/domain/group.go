package domain

// Group binds an ingress and an egress policy to a set of network ports.
// Either policy reference may be absent. A port belongs to at most one group
// globally.
type Group struct {
	ID          string `json:"id" db:"id"`
	ProjectID   string `json:"project_id" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	IngressPolicyID *string `json:"ingress_firewall_policy_id" db:"ingress_firewall_policy_id"`
	EgressPolicyID  *string `json:"egress_firewall_policy_id" db:"egress_firewall_policy_id"`

	AdminStateUp bool   `json:"admin_state_up" db:"admin_state_up"`
	Status       string `json:"status" db:"status"`
	Shared       bool   `json:"shared" db:"shared"`

	Ports []string `json:"ports" db:"-"`

	// Resolved rule lists for enforcement snapshotting. Populated only by
	// the detailed read path.
	IngressRuleList []*Rule `json:"ingress_rule_list,omitempty" db:"-"`
	EgressRuleList  []*Rule `json:"egress_rule_list,omitempty" db:"-"`
}

// DefaultGroupMarker is the one-row-per-project record naming the project's
// default group. Its existence is the sole source of truth for "a default has
// been created".
type DefaultGroupMarker struct {
	ProjectID string `db:"project_id"`
	GroupID   string `db:"firewall_group_id"`
}

// CreateGroupRequest is the request body for creating a firewall group.
type CreateGroupRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	IngressPolicyID *string  `json:"ingress_firewall_policy_id"`
	EgressPolicyID  *string  `json:"egress_firewall_policy_id"`
	AdminStateUp    *bool    `json:"admin_state_up"`
	Shared          bool     `json:"shared"`
	Ports           []string `json:"ports"`
}

// UpdateGroupRequest is the request body for updating a firewall group.
// Nil fields are left unchanged. An empty-string policy id clears the
// reference; a non-nil Ports replaces the whole binding set.
type UpdateGroupRequest struct {
	Name            *string   `json:"name,omitempty"`
	Description     *string   `json:"description,omitempty"`
	IngressPolicyID *string   `json:"ingress_firewall_policy_id,omitempty"`
	EgressPolicyID  *string   `json:"egress_firewall_policy_id,omitempty"`
	AdminStateUp    *bool     `json:"admin_state_up,omitempty"`
	Shared          *bool     `json:"shared,omitempty"`
	Status          *string   `json:"status,omitempty"`
	Ports           *[]string `json:"ports,omitempty"`
}

// GroupFilter narrows group listings. Zero values match everything.
type GroupFilter struct {
	ProjectID string
	Status    string
	Shared    *bool
}
