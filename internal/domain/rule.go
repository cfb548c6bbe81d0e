package domain

// Rule is an atomic match+action firewall statement.
//
// Port ranges are stored as min/max pairs (both set or both zero) and exposed
// through the API as a single "min:max" string, collapsed to a bare number
// when min == max. The string forms are filled in by the service layer on
// every read.
type Rule struct {
	ID          string `json:"id" db:"id"`
	ProjectID   string `json:"project_id" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Shared      bool   `json:"shared" db:"shared"`

	Protocol             string `json:"protocol,omitempty" db:"protocol"` // empty = any
	IPVersion            int    `json:"ip_version" db:"ip_version"`
	SourceIPAddress      string `json:"source_ip_address,omitempty" db:"source_ip_address"`
	DestinationIPAddress string `json:"destination_ip_address,omitempty" db:"destination_ip_address"`

	SourcePortRangeMin      int `json:"-" db:"source_port_range_min"`
	SourcePortRangeMax      int `json:"-" db:"source_port_range_max"`
	DestinationPortRangeMin int `json:"-" db:"destination_port_range_min"`
	DestinationPortRangeMax int `json:"-" db:"destination_port_range_max"`

	SourcePort      string `json:"source_port,omitempty" db:"-"`
	DestinationPort string `json:"destination_port,omitempty" db:"-"`

	Action  string `json:"action" db:"action"`
	Enabled bool   `json:"enabled" db:"enabled"`

	// FirewallPolicies lists the ids of policies referencing this rule.
	// Populated on single-rule reads only.
	FirewallPolicies []string `json:"firewall_policy_id,omitempty" db:"-"`
}

// CreateRuleRequest is the request body for creating a firewall rule.
type CreateRuleRequest struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Shared               bool   `json:"shared"`
	Protocol             string `json:"protocol"`
	IPVersion            int    `json:"ip_version"`
	SourceIPAddress      string `json:"source_ip_address"`
	DestinationIPAddress string `json:"destination_ip_address"`
	SourcePort           string `json:"source_port"`
	DestinationPort      string `json:"destination_port"`
	Action               string `json:"action"`
	Enabled              *bool  `json:"enabled"`
}

// UpdateRuleRequest is the request body for updating a firewall rule.
// Nil fields are left unchanged.
type UpdateRuleRequest struct {
	Name                 *string `json:"name,omitempty"`
	Description          *string `json:"description,omitempty"`
	Shared               *bool   `json:"shared,omitempty"`
	Protocol             *string `json:"protocol,omitempty"`
	IPVersion            *int    `json:"ip_version,omitempty"`
	SourceIPAddress      *string `json:"source_ip_address,omitempty"`
	DestinationIPAddress *string `json:"destination_ip_address,omitempty"`
	SourcePort           *string `json:"source_port,omitempty"`
	DestinationPort      *string `json:"destination_port,omitempty"`
	Action               *string `json:"action,omitempty"`
	Enabled              *bool   `json:"enabled,omitempty"`
}

// RuleFilter narrows rule listings. Zero values match everything.
type RuleFilter struct {
	ProjectID string
	Shared    *bool
	Action    string
	Enabled   *bool
}
