package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		provider string
		want     ProviderFamily
	}{
		{"gmail", FamilyGmail},
		{"Gmail (work)", FamilyGmail},
		{"google-workspace", FamilyGmail},
		{"outlook", FamilyOutlook},
		{"Office365", FamilyOutlook},
		{"hotmail", FamilyOutlook},
		{"live.com", FamilyOutlook},
		{"fastmail", FamilyGeneric},
		{"", FamilyGeneric},
	}

	for _, tc := range tests {
		t.Run(tc.provider, func(t *testing.T) {
			assert.Equal(t, tc.want, FamilyOf(tc.provider))
		})
	}
}

func TestFamilyPolicies(t *testing.T) {
	assert.Empty(t, FamilyGeneric.Policy().AltIMAPHosts)
	assert.Equal(t,
		[]string{"outlook.office365.com", "imap-mail.outlook.com"},
		FamilyOutlook.Policy().AltIMAPHosts)
	assert.NotEmpty(t, FamilyGmail.Policy().UserinfoEndpoint)

	for _, f := range []ProviderFamily{FamilyGeneric, FamilyGmail, FamilyOutlook} {
		assert.Equal(t, []string{"email", "preferred_username", "upn"}, f.Policy().ClaimOrder)
	}
}
