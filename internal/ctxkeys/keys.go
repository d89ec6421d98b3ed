// Package ctxkeys provides unified context keys for the application.
package ctxkeys

// Key is the type for all context keys in the application.
// Using a dedicated type prevents collisions with keys from other packages.
type Key string

const (
	// Request-scoped keys
	KeyRequestID Key = "request_id"

	// Auth-scoped keys
	KeyIdentity Key = "identity"
)
