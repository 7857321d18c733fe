package enrich

import (
	"strings"

	"github.com/sentrynode/sentrynode/internal/model"
)

// Keyword lexicons for case-insensitive ASN organization classification
//. Order matters: vpn/proxy brands are checked before the broader
// hosting lexicon since most VPN operators lease hosting ASNs.
var (
	vpnKeywords = []string{
		"vpn", "nordvpn", "expressvpn", "surfshark", "private internet access",
		"protonvpn", "mullvad", "windscribe", "tunnelbear", "cyberghost",
		"ipvanish", "hide.me", "vpn.ac", "astrill",
	}

	hostingKeywords = []string{
		"hosting", "datacenter", "data center", "cloud", "vps", "server",
		"digitalocean", "linode", "vultr", "ovh", "hetzner", "amazon",
		"aws", "google cloud", "microsoft azure", "azure", "cloudflare",
		"oracle cloud", "colocation", "colo",
	}

	mobileKeywords = []string{
		"mobile", "wireless", "cellular", "lte", "4g", "5g", "gsm",
		"vodafone", "verizon wireless", "t-mobile", "at&t mobility",
		"orange mobile", "telecom mobile",
	}

	ispKeywords = []string{
		"telecom", "telecommunications", "communications", "broadband",
		"fiber", "fibra", "cable", "isp", "internet service",
	}

	businessKeywords = []string{
		"enterprise", "business", "corporate", "bank", "financial",
		"university", "college", "school district", "government",
	}
)

// classifyOrgName maps an ASN organization name to a provider type via
// curated keyword lexicons. Returns ProviderISP as the default
// fallback for an unrecognized but non-empty organization name.
func classifyOrgName(orgName string) model.ProviderType {
	if orgName == "" {
		return ""
	}
	lower := strings.ToLower(orgName)

	if containsAny(lower, vpnKeywords) {
		return model.ProviderVPN
	}
	if containsAny(lower, mobileKeywords) {
		return model.ProviderMobileISP
	}
	if containsAny(lower, hostingKeywords) {
		return model.ProviderHosting
	}
	if containsAny(lower, businessKeywords) {
		return model.ProviderBusiness
	}
	if containsAny(lower, ispKeywords) {
		return model.ProviderISP
	}
	return model.ProviderISP
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
