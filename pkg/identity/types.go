package identity

import "time"

// Principal is the normalized result of token validation. It is created
// per-request, never mutated, and discarded once the request is forwarded.
type Principal struct {
	Username string
	UID      string
	Groups   []string // list order as returned by the validator; may contain stale duplicates

	// ExpiresAt is the token's own expiry when the validator knows it
	// (local JWT validation does; opaque introspection does not). Zero
	// means unknown. Anything derived from this principal, caches
	// included, must not outlive it.
	ExpiresAt time.Time
}

// TenantIdentity is the pair of tenant attributes recovered from the
// principal's synthetic groups. The two values are independent; neither is
// ever defaulted from the other.
type TenantIdentity struct {
	OrgID         string
	AccountNumber string
}

// BypassPolicy controls the authorization shortcuts encoded into the
// identity header.
type BypassPolicy struct {
	// AdminGroup, when non-empty, marks principals holding that group as
	// org admins; downstream services skip their own authorization lookup
	// for admins.
	AdminGroup string
	// Capability names the entitlement block asserted in the header.
	Capability string
	// DuplicateRootOrgID repeats org_id at the document root for consumers
	// that read it there instead of inside the identity object. Compatibility
	// shim; disable once no such consumer remains.
	DuplicateRootOrgID bool
}
