package violation

import (
	"context"

	"github.com/sentrynode/sentrynode/internal/model"
)

// ASNResult is the ASN sub-analyzer's verdict.
type ASNResult struct {
	Score           float64
	Reasons         []string
	IsMobileCarrier bool
}

// analyzeASN classifies the provider types behind every IP seen in the
// window and scores mixed consumer/hosting usage and VPN/proxy presence.
func (d *Detector) analyzeASN(ctx context.Context, active, history []model.Connection) ASNResult {
	ips := make(map[string]struct{})
	for _, c := range active {
		ips[c.IPAddress] = struct{}{}
	}
	for _, c := range history {
		ips[c.IPAddress] = struct{}{}
	}

	providers := make(map[model.ProviderType]struct{})
	for ip := range ips {
		meta, err := d.enricher.Lookup(ctx, ip)
		if err != nil || meta == nil || meta.Private {
			continue
		}
		providers[meta.Provider] = struct{}{}
	}

	if len(providers) == 0 {
		return ASNResult{}
	}

	_, hasVPN := providers[model.ProviderVPN]
	_, hasISP := providers[model.ProviderISP]
	_, hasRegionalISP := providers[model.ProviderRegionalISP]
	_, hasHosting := providers[model.ProviderHosting]
	_, hasMobile := providers[model.ProviderMobile]
	_, hasMobileISP := providers[model.ProviderMobileISP]
	_, hasBusiness := providers[model.ProviderBusiness]

	if hasVPN {
		return ASNResult{Score: 70, Reasons: []string{"VPN or proxy-classified ASN observed"}}
	}

	consumerISP := hasISP || hasRegionalISP
	if consumerISP && hasHosting {
		return ASNResult{Score: 20, Reasons: []string{"mixed consumer ISP and hosting ASNs"}}
	}

	mobileOnly := (hasMobile || hasMobileISP) && len(providers) == 1
	if !mobileOnly && (hasMobile || hasMobileISP) {
		allMobileOrNone := true
		for p := range providers {
			if p != model.ProviderMobile && p != model.ProviderMobileISP {
				allMobileOrNone = false
				break
			}
		}
		mobileOnly = allMobileOrNone
	}
	if mobileOnly {
		return ASNResult{IsMobileCarrier: true}
	}

	businessOnly := hasBusiness && len(providers) == 1
	if businessOnly {
		return ASNResult{}
	}

	return ASNResult{}
}
