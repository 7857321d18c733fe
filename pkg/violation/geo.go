package violation

import (
	"context"
	"sort"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
)

const internationalTravelThreshold = 1 * time.Hour

// GeoResult is the geo sub-analyzer's verdict.
type GeoResult struct {
	Score            float64
	Reasons          []string
	ImpossibleTravel bool
}

// analyzeGeo resolves every IP seen in active+history via the enricher and
// scores geographic implausibility. Absence of enrichment data is not a
// violation: the sub-score is 0.
func (d *Detector) analyzeGeo(ctx context.Context, active, history []model.Connection) GeoResult {
	ips := make(map[string]struct{})
	for _, c := range active {
		ips[c.IPAddress] = struct{}{}
	}
	for _, c := range history {
		ips[c.IPAddress] = struct{}{}
	}

	locations := make(map[string]model.IPMetadata, len(ips))
	for ip := range ips {
		meta, err := d.enricher.Lookup(ctx, ip)
		if err != nil || meta == nil || meta.Private {
			continue
		}
		locations[ip] = *meta
	}

	if len(locations) == 0 {
		return GeoResult{}
	}

	var score float64
	var reasons []string
	impossibleTravel := false

	activeCountries := make(map[string]struct{})
	for _, c := range active {
		if meta, ok := locations[c.IPAddress]; ok && meta.CountryCode != "" {
			activeCountries[meta.CountryCode] = struct{}{}
		}
	}
	if len(activeCountries) > 1 {
		score = 90
		reasons = append(reasons, "simultaneous connections from different countries")
		impossibleTravel = true
	}

	if !impossibleTravel && len(history) > 1 {
		sorted := append([]model.Connection(nil), history...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ConnectedAt.Before(sorted[j].ConnectedAt) })

		for i := 1; i < len(sorted); i++ {
			prevMeta, prevOK := locations[sorted[i-1].IPAddress]
			currMeta, currOK := locations[sorted[i].IPAddress]
			if !prevOK || !currOK {
				continue
			}

			if prevMeta.CountryCode != "" && currMeta.CountryCode != "" && prevMeta.CountryCode != currMeta.CountryCode {
				gap := sorted[i].ConnectedAt.Sub(sorted[i-1].ConnectedAt)
				if gap < internationalTravelThreshold {
					score = maxScore(score, 50)
					reasons = append(reasons, "implausible cross-country travel time")
					impossibleTravel = true
				} else {
					score = maxScore(score, 15)
					reasons = append(reasons, "cross-country connection sequence")
				}
				continue
			}

			if prevMeta.CountryCode == currMeta.CountryCode && prevMeta.City != "" && currMeta.City != "" && prevMeta.City != currMeta.City {
				score = maxScore(score, 5)
				if len(reasons) == 0 {
					reasons = append(reasons, "different cities within the same country")
				}
			}
		}
	}

	return GeoResult{
		Score:            min64(score, 100),
		Reasons:          reasons,
		ImpossibleTravel: impossibleTravel,
	}
}

func maxScore(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
