package domain

// Rule actions.
const (
	ActionAllow  = "allow"
	ActionDeny   = "deny"
	ActionReject = "reject"
)

// Transport protocols that carry port numbers.
const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

// Other recognized protocols. An empty protocol means "any".
const (
	ProtocolICMP   = "icmp"
	ProtocolICMPv6 = "ipv6-icmp"
)

// Group lifecycle statuses. This service only ever sets CREATED,
// PENDING_CREATE and INACTIVE; the remaining transitions are driven by
// enforcement feedback through UpdateGroupStatus.
const (
	StatusActive        = "ACTIVE"
	StatusDown          = "DOWN"
	StatusInactive      = "INACTIVE"
	StatusCreated       = "CREATED"
	StatusPendingCreate = "PENDING_CREATE"
	StatusPendingUpdate = "PENDING_UPDATE"
	StatusPendingDelete = "PENDING_DELETE"
	StatusError         = "ERROR"
)

// Reserved names for the per-project default resources. Users cannot create
// or rename resources to these names.
const (
	DefaultGroupName         = "default"
	DefaultIngressPolicyName = "default ingress"
	DefaultEgressPolicyName  = "default egress"
)

// PortCarryingProtocol reports whether rules with this protocol may specify
// source/destination port ranges.
func PortCarryingProtocol(protocol string) bool {
	return protocol == ProtocolTCP || protocol == ProtocolUDP
}

// ValidAction reports whether the action is one of allow, deny, reject.
func ValidAction(action string) bool {
	return action == ActionAllow || action == ActionDeny || action == ActionReject
}
