package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/store"
)

const bulkSyncKey = "asn"

// interBulkCallDelay separates consecutive aut-num fetches during a bulk
// ASN sync run.
const interBulkCallDelay = 500 * time.Millisecond

// asnListEntry is one row of a national ASN list response.
type asnListEntry struct {
	ASN int64 `json:"asn"`
}

// autNumResponse is the subset of a registry's aut-num lookup this sync
// mode consumes.
type autNumResponse struct {
	OrgName     string `json:"org_name"`
	Description string `json:"description"`
	Region      string `json:"region"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
}

// BulkSyncer refreshes the local ASN cache from a public registry. It is
// a distinct collaborator from Enricher since it writes through the store
// rather than serving lookups.
type BulkSyncer struct {
	store       *store.Store
	httpClient  *http.Client
	registryURL string
	maxPerRun   int
}

// NewBulkSyncer builds a BulkSyncer. registryURL is the base URL of the
// public ASN registry; maxPerRun caps how many ASNs are refreshed in a
// single invocation of Run.
func NewBulkSyncer(s *store.Store, registryURL string, maxPerRun int) *BulkSyncer {
	if maxPerRun <= 0 {
		maxPerRun = 100
	}
	return &BulkSyncer{
		store:       s,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		registryURL: registryURL,
		maxPerRun:   maxPerRun,
	}
}

// Run fetches the national ASN list for countryCode, classifies and upserts
// each ASN's record, and records the outcome in sync metadata. Failure
// partway through still records the ASNs synced so far.
func (b *BulkSyncer) Run(ctx context.Context, countryCode string) error {
	if b.registryURL == "" {
		return nil
	}

	asns, err := b.listNationalASNs(ctx, countryCode)
	if err != nil {
		_ = b.store.RecordSync(ctx, model.SyncMetadata{
			Key:          bulkSyncKey,
			SyncStatus:   model.SyncStatusFailed,
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("enrich: listing national ASNs for %s: %w", countryCode, err)
	}
	if len(asns) > b.maxPerRun {
		asns = asns[:b.maxPerRun]
	}

	synced := 0
	for i, asn := range asns {
		if ctx.Err() != nil {
			break
		}
		rec, err := b.fetchAndClassify(ctx, asn, countryCode)
		if err != nil {
			continue
		}
		if err := b.store.UpsertASN(ctx, rec); err != nil {
			continue
		}
		synced++

		if i < len(asns)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(interBulkCallDelay):
			}
		}
	}

	status := model.SyncStatusOK
	if synced < len(asns) {
		status = model.SyncStatusFailed
	}
	return b.store.RecordSync(ctx, model.SyncMetadata{
		Key:           bulkSyncKey,
		SyncStatus:    status,
		RecordsSynced: synced,
	})
}

func (b *BulkSyncer) listNationalASNs(ctx context.Context, countryCode string) ([]int64, error) {
	url := fmt.Sprintf("%s/country/%s/asns", b.registryURL, strings.ToLower(countryCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling registry: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
	}

	var entries []asnListEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding ASN list: %w", err)
	}

	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ASN)
	}
	return out, nil
}

func (b *BulkSyncer) fetchAndClassify(ctx context.Context, asn int64, fallbackCountry string) (model.ASNRecord, error) {
	url := fmt.Sprintf("%s/aut-num/AS%d", b.registryURL, asn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.ASNRecord{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return model.ASNRecord{}, fmt.Errorf("calling registry: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.ASNRecord{}, fmt.Errorf("registry returned HTTP %d for AS%d", resp.StatusCode, asn)
	}

	var aut autNumResponse
	if err := json.NewDecoder(resp.Body).Decode(&aut); err != nil {
		return model.ASNRecord{}, fmt.Errorf("decoding aut-num: %w", err)
	}

	orgName := aut.OrgName
	if orgName == "" {
		orgName = aut.Description
	}

	country := aut.CountryCode
	if country == "" {
		country = fallbackCountry
	}

	return model.ASNRecord{
		ASN:          asn,
		OrgName:      orgName,
		ProviderType: classifyOrgName(orgName),
		Region:       extractRegionCity(aut.Description, aut.Region),
		City:         aut.City,
		CountryCode:  strings.ToUpper(country),
		IsActive:     true,
		LastSyncedAt: time.Now(),
	}, nil
}

// extractRegionCity prefers an explicit region field; otherwise it scans
// the free-text description for a keyword-mapped region.
func extractRegionCity(description, region string) string {
	if region != "" {
		return region
	}
	lower := strings.ToLower(description)
	for keyword, mapped := range regionKeywordMap {
		if strings.Contains(lower, keyword) {
			return mapped
		}
	}
	return ""
}

var regionKeywordMap = map[string]string{
	"northeast":  "Northeast",
	"midwest":    "Midwest",
	"southeast":  "Southeast",
	"southwest":  "Southwest",
	"west coast": "West",
	"east coast": "East",
	"central":    "Central",
}
