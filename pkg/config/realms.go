// pkg/config/realms.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// realmFile is the on-disk shape of REALM_FILE:
//
//	realms:
//	  production:
//	    orgAttributeName: org_id
//	    accountAttributeName: account_number
//	    orgGroupPrefix: cost-mgmt-org-
//	    accountGroupPrefix: cost-mgmt-account-
type realmFile struct {
	Realms map[string]Mapping `yaml:"realms"`
}

// ApplyRealm overrides the mapping with the entry for cfg.Realm from
// cfg.RealmFile. A deployment serving a single realm can skip both and rely
// on env vars alone. The selected mapping is validated before use.
func (c *Config) ApplyRealm() error {
	if c.RealmFile == "" {
		return c.Mapping.Validate()
	}
	raw, err := os.ReadFile(c.RealmFile)
	if err != nil {
		return fmt.Errorf("read realm file: %w", err)
	}
	var rf realmFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("parse realm file: %w", err)
	}
	if c.Realm == "" {
		return fmt.Errorf("REALM must be set when REALM_FILE is used")
	}
	m, ok := rf.Realms[c.Realm]
	if !ok {
		return fmt.Errorf("realm %q not present in %s", c.Realm, c.RealmFile)
	}
	c.Mapping = m
	return c.Mapping.Validate()
}
