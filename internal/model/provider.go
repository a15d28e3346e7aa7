package model

import "strings"

// ProviderFamily identifies the class of mail provider an account
// belongs to. Provider-specific behavior (alternate IMAP hosts, identity
// claim fallback order, userinfo endpoints) hangs off the family policy
// rather than being scattered through the code as string comparisons.
type ProviderFamily int

const (
	FamilyGeneric ProviderFamily = iota
	FamilyGmail
	FamilyOutlook
)

// FamilyPolicy describes the provider-specific quirks for one family.
type FamilyPolicy struct {
	// AltIMAPHosts are well-known IMAP hosts tried after the configured
	// one during connection verification.
	AltIMAPHosts []string

	// ClaimOrder is the fallback order of ID-token claims used to
	// resolve the account email.
	ClaimOrder []string

	// UserinfoEndpoint, when set, is queried with the fresh access
	// token if no email could be resolved from the ID token.
	UserinfoEndpoint string
}

var defaultClaimOrder = []string{"email", "preferred_username", "upn"}

var familyPolicies = map[ProviderFamily]FamilyPolicy{
	FamilyGeneric: {
		ClaimOrder: defaultClaimOrder,
	},
	FamilyGmail: {
		ClaimOrder:       defaultClaimOrder,
		UserinfoEndpoint: "https://openidconnect.googleapis.com/v1/userinfo",
	},
	FamilyOutlook: {
		AltIMAPHosts: []string{
			"outlook.office365.com",
			"imap-mail.outlook.com",
		},
		ClaimOrder: defaultClaimOrder,
	},
}

// Policy returns the quirk record for the family.
func (f ProviderFamily) Policy() FamilyPolicy {
	return familyPolicies[f]
}

// FamilyOf classifies a provider name into a family. Matching is
// case-insensitive and tolerant of decorated names ("Gmail (work)").
func FamilyOf(provider string) ProviderFamily {
	p := strings.ToLower(provider)
	switch {
	case strings.Contains(p, "gmail"), strings.Contains(p, "google"):
		return FamilyGmail
	case strings.Contains(p, "outlook"),
		strings.Contains(p, "office365"),
		strings.Contains(p, "hotmail"),
		strings.Contains(p, "live"):
		return FamilyOutlook
	default:
		return FamilyGeneric
	}
}
