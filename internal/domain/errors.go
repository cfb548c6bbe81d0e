package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")

	// ErrRuleInUse is returned when deleting a rule that is still
	// referenced by one or more policies.
	ErrRuleInUse = errors.New("firewall rule is in use")

	// ErrPolicyInUse is returned when deleting a policy referenced by a
	// group, or when un-sharing a policy referenced by a group in another
	// project.
	ErrPolicyInUse = errors.New("firewall policy is in use")

	// ErrPortInUse is returned when binding ports that already belong to a
	// different group. It is wrapped with the offending port ids.
	ErrPortInUse = errors.New("port is already associated with a firewall group")

	// ErrRuleAlreadyAssociated is returned when inserting a rule into a
	// policy that already contains it.
	ErrRuleAlreadyAssociated = errors.New("firewall rule is already associated with the policy")

	// ErrRuleNotAssociated is returned when removing a rule from a policy
	// that does not contain it.
	ErrRuleNotAssociated = errors.New("firewall rule is not associated with the policy")

	// ErrRuleConflict is returned when a non-shared policy references a
	// private rule owned by a different project.
	ErrRuleConflict = errors.New("firewall rule belongs to another project and is not shared")

	// ErrRuleSharingConflict is returned when a shared policy would
	// reference a non-shared rule.
	ErrRuleSharingConflict = errors.New("non-shared rule cannot be added to a shared policy")

	// ErrPolicySharingConflict is returned when sharing a policy that
	// contains private rules owned by other projects.
	ErrPolicySharingConflict = errors.New("policy cannot be shared while it contains private rules of other projects")

	// ErrPolicyConflict is returned when a group references a non-shared
	// policy owned by a different project.
	ErrPolicyConflict = errors.New("firewall policy belongs to another project and is not shared")

	// ErrDefaultResourceProtected is returned on attempts to create, rename
	// or mutate resources reserved for the per-project defaults.
	ErrDefaultResourceProtected = errors.New("operation not allowed on default firewall resource")

	// ErrDefaultGroupDeleteRestricted is returned when a non-admin tries to
	// delete the project default group.
	ErrDefaultGroupDeleteRestricted = errors.New("only an admin can delete the default firewall group")
)

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
