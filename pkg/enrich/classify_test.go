package enrich

import (
	"testing"

	"github.com/sentrynode/sentrynode/internal/model"
)

func TestClassifyOrgName(t *testing.T) {
	tests := []struct {
		org  string
		want model.ProviderType
	}{
		{"NordVPN Services Ltd", model.ProviderVPN},
		{"DigitalOcean, LLC", model.ProviderHosting},
		{"Amazon.com, Inc. (AWS)", model.ProviderHosting},
		{"Vodafone Mobile Networks", model.ProviderMobileISP},
		{"Acme University IT Services", model.ProviderBusiness},
		{"Generic Broadband Telecom Co", model.ProviderISP},
		{"Some Unrecognized Org", model.ProviderISP},
		{"", ""},
	}

	for _, tt := range tests {
		if got := classifyOrgName(tt.org); got != tt.want {
			t.Errorf("classifyOrgName(%q) = %v, want %v", tt.org, got, tt.want)
		}
	}
}

func TestClassifyOrgName_VPNTakesPrecedenceOverHosting(t *testing.T) {
	got := classifyOrgName("ExpressVPN Cloud Hosting Partner")
	if got != model.ProviderVPN {
		t.Errorf("got %v, want %v", got, model.ProviderVPN)
	}
}
