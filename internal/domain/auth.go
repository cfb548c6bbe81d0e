package domain

// AuthContext carries the caller identity supplied by the fronting RPC
// layer: the owning project and whether the caller holds the admin role.
type AuthContext struct {
	ProjectID string
	IsAdmin   bool
}
