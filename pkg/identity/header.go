package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingTenantAttribute is returned when either tenant value is empty.
// There is no safe default: defaulting one value to the other, or to a
// constant, bleeds data across tenants.
var ErrMissingTenantAttribute = errors.New("missing tenant attribute")

// Document is the identity header payload consumed by backend services.
type Document struct {
	// OrgID at the root is only populated when BypassPolicy.DuplicateRootOrgID
	// is set; the authoritative copy lives in Identity.
	OrgID        string                 `json:"org_id,omitempty"`
	Identity     Identity               `json:"identity"`
	Entitlements map[string]Entitlement `json:"entitlements"`
}

type Identity struct {
	OrgID         string `json:"org_id"`
	AccountNumber string `json:"account_number"`
	Type          string `json:"type"`
	User          User   `json:"user"`
}

type User struct {
	Username   string `json:"username"`
	IsOrgAdmin bool   `json:"is_org_admin"`
}

type Entitlement struct {
	IsEntitled bool `json:"is_entitled"`
}

// BuildHeader assembles the identity document for a validated principal and
// returns it base64-encoded for transport as a single header value. Both
// tenant values are mandatory; a missing one rejects the request.
func BuildHeader(p Principal, t TenantIdentity, pol BypassPolicy) (string, error) {
	if t.OrgID == "" {
		return "", fmt.Errorf("%w: org_id", ErrMissingTenantAttribute)
	}
	if t.AccountNumber == "" {
		return "", fmt.Errorf("%w: account_number", ErrMissingTenantAttribute)
	}
	doc := Document{
		Identity: Identity{
			OrgID:         t.OrgID,
			AccountNumber: t.AccountNumber,
			Type:          "User",
			User: User{
				Username:   p.Username,
				IsOrgAdmin: isOrgAdmin(p, pol),
			},
		},
		Entitlements: map[string]Entitlement{},
	}
	if pol.DuplicateRootOrgID {
		doc.OrgID = t.OrgID
	}
	capability := pol.Capability
	if capability == "" {
		capability = "cost_management"
	}
	doc.Entitlements[capability] = Entitlement{IsEntitled: true}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal identity: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeHeader parses a header value back into its document form. Backend
// services and tests use this; the gateway itself never decodes what it emits.
func DecodeHeader(s string) (Document, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Document{}, fmt.Errorf("decode identity: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshal identity: %w", err)
	}
	return doc, nil
}

func isOrgAdmin(p Principal, pol BypassPolicy) bool {
	if pol.AdminGroup == "" {
		// Every authenticated principal is authorized; downstream skips its
		// own authorization lookup entirely.
		return true
	}
	for _, g := range p.Groups {
		if g == pol.AdminGroup {
			return true
		}
	}
	return false
}
