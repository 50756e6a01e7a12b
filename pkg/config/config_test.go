package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMapping() Mapping {
	return Mapping{
		OrgAttribute:     "org_id",
		AccountAttribute: "account_number",
		OrgPrefix:        "cost-mgmt-org-",
		AccountPrefix:    "cost-mgmt-account-",
	}
}

func TestMappingValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Mapping)
		wantErr bool
	}{
		{"valid", func(*Mapping) {}, false},
		{"empty org prefix", func(m *Mapping) { m.OrgPrefix = "" }, true},
		{"empty account prefix", func(m *Mapping) { m.AccountPrefix = "" }, true},
		{"org prefix contains account prefix", func(m *Mapping) { m.OrgPrefix = "cost-mgmt-account-org-" }, true},
		{"account prefix contains org prefix", func(m *Mapping) { m.AccountPrefix = "cost-mgmt-org-acct-" }, true},
		{"identical prefixes", func(m *Mapping) { m.AccountPrefix = m.OrgPrefix }, true},
		{"empty attribute name", func(m *Mapping) { m.OrgAttribute = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMapping()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMisconfiguredPrefix)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestApplyRealm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
realms:
  production:
    orgAttributeName: org_id
    accountAttributeName: account_number
    orgGroupPrefix: prod-org-
    accountGroupPrefix: prod-account-
`), 0o600))

	cfg := Config{Realm: "production", RealmFile: path, Mapping: validMapping()}
	require.NoError(t, cfg.ApplyRealm())
	assert.Equal(t, "prod-org-", cfg.Mapping.OrgPrefix)
	assert.Equal(t, "prod-account-", cfg.Mapping.AccountPrefix)
}

func TestApplyRealm_UnknownRealm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realms: {}\n"), 0o600))

	cfg := Config{Realm: "staging", RealmFile: path, Mapping: validMapping()}
	assert.Error(t, cfg.ApplyRealm())
}

func TestApplyRealm_NoFileKeepsEnvMapping(t *testing.T) {
	cfg := Config{Mapping: validMapping()}
	require.NoError(t, cfg.ApplyRealm())
	assert.Equal(t, "cost-mgmt-org-", cfg.Mapping.OrgPrefix)
}
