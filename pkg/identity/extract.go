package identity

import (
	"strings"

	"tenantgate/pkg/config"
)

// Extract recovers the tenant identity from a principal's group list.
//
// For each configured prefix the first group in list order that starts with
// the prefix wins; the value is the group name with exactly len(prefix)
// bytes stripped. Multiple matches per prefix are expected while a user's
// attribute change has not yet been reconciled — first-match is the
// tie-break, and the reconciler retires the losers asynchronously.
//
// A prefix with no match yields the empty string; the header builder decides
// whether that is fatal. Pure string processing, no I/O.
func Extract(groups []string, m config.Mapping) TenantIdentity {
	return TenantIdentity{
		OrgID:         firstWithPrefix(groups, m.OrgPrefix),
		AccountNumber: firstWithPrefix(groups, m.AccountPrefix),
	}
}

func firstWithPrefix(groups []string, prefix string) string {
	if prefix == "" {
		return ""
	}
	for _, g := range groups {
		if strings.HasPrefix(g, prefix) {
			return g[len(prefix):]
		}
	}
	return ""
}

// GroupName is the encoder-side inverse of Extract: the canonical synthetic
// group name carrying value under prefix.
func GroupName(prefix, value string) string {
	return prefix + value
}
