package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHeader_MandatoryFields(t *testing.T) {
	p := Principal{Username: "jdoe", UID: "u-1"}
	pol := BypassPolicy{Capability: "cost_management"}

	_, err := BuildHeader(p, TenantIdentity{OrgID: "", AccountNumber: "X"}, pol)
	require.ErrorIs(t, err, ErrMissingTenantAttribute)

	_, err = BuildHeader(p, TenantIdentity{OrgID: "X", AccountNumber: ""}, pol)
	require.ErrorIs(t, err, ErrMissingTenantAttribute)
}

func TestBuildHeader_DecodesToExpectedDocument(t *testing.T) {
	p := Principal{Username: "jdoe", UID: "u-1", Groups: []string{"system:authenticated"}}
	pol := BypassPolicy{Capability: "cost_management", DuplicateRootOrgID: true}

	hdr, err := BuildHeader(p, TenantIdentity{OrgID: "1234567", AccountNumber: "9876543"}, pol)
	require.NoError(t, err)

	doc, err := DecodeHeader(hdr)
	require.NoError(t, err)
	assert.Equal(t, "1234567", doc.Identity.OrgID)
	assert.Equal(t, "9876543", doc.Identity.AccountNumber)
	assert.Equal(t, "User", doc.Identity.Type)
	assert.Equal(t, "jdoe", doc.Identity.User.Username)
	assert.True(t, doc.Identity.User.IsOrgAdmin)
	assert.True(t, doc.Entitlements["cost_management"].IsEntitled)
	assert.Equal(t, "1234567", doc.OrgID, "root org_id duplicated for legacy consumers")
}

func TestBuildHeader_RootOrgIDShimDisabled(t *testing.T) {
	p := Principal{Username: "jdoe"}
	pol := BypassPolicy{DuplicateRootOrgID: false}

	hdr, err := BuildHeader(p, TenantIdentity{OrgID: "1", AccountNumber: "2"}, pol)
	require.NoError(t, err)
	doc, err := DecodeHeader(hdr)
	require.NoError(t, err)
	assert.Empty(t, doc.OrgID)
	assert.Equal(t, "1", doc.Identity.OrgID)
}

func TestBuildHeader_AdminGroup(t *testing.T) {
	pol := BypassPolicy{AdminGroup: "platform-admins"}

	hdr, err := BuildHeader(Principal{Username: "a", Groups: []string{"platform-admins"}}, TenantIdentity{OrgID: "1", AccountNumber: "2"}, pol)
	require.NoError(t, err)
	doc, _ := DecodeHeader(hdr)
	assert.True(t, doc.Identity.User.IsOrgAdmin)

	hdr, err = BuildHeader(Principal{Username: "b", Groups: []string{"other"}}, TenantIdentity{OrgID: "1", AccountNumber: "2"}, pol)
	require.NoError(t, err)
	doc, _ = DecodeHeader(hdr)
	assert.False(t, doc.Identity.User.IsOrgAdmin)
}

func TestDecodeHeader_RejectsGarbage(t *testing.T) {
	_, err := DecodeHeader("not base64!!")
	assert.Error(t, err)
}
