// Package enrich resolves an IP address into country, city, ASN, and
// provider-class metadata.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/maypok86/otter"
	"github.com/oschwald/maxminddb-golang"
	"golang.org/x/time/rate"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/telemetry"
)

const cacheTTL = 24 * time.Hour

// mmdbRecord is the subset of a MaxMind City/ASN database's fields this
// enricher needs.
type mmdbRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
	AutonomousSystemNumber       int64  `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// upstreamResponse is the payload shape returned by the configured upstream
// IP-metadata service.
type upstreamResponse struct {
	Status      string  `json:"status"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ASN         int64   `json:"asn"`
	OrgName     string  `json:"org_name"`
	Mobile      bool    `json:"mobile"`
	Hosting     bool    `json:"hosting"`
	Proxy       bool    `json:"proxy"`
}

// Enricher resolves IP metadata with a 24h cache, a local MaxMind-compatible
// database, and a rate-limited upstream HTTP fallback.
type Enricher struct {
	cache       otter.Cache[string, model.IPMetadata]
	mmdb        *maxminddb.Reader // nil if no local database configured
	limiter     *rate.Limiter
	httpClient  *http.Client
	upstreamURL string
}

// Config configures a new Enricher.
type Config struct {
	MaxMindDBPath   string
	UpstreamURL     string
	MinCallInterval time.Duration
	CacheMaxEntries int
}

// New builds an Enricher. The local MaxMind database is optional; when
// MaxMindDBPath is empty, lookups fall straight through to the rate-limited
// upstream.
func New(cfg Config) (*Enricher, error) {
	maxEntries := cfg.CacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	cache, err := otter.MustBuilder[string, model.IPMetadata](maxEntries).
		Cost(func(_ string, _ model.IPMetadata) uint32 { return 1 }).
		WithTTL(cacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("enrich: building cache: %w", err)
	}

	var reader *maxminddb.Reader
	if cfg.MaxMindDBPath != "" {
		reader, err = maxminddb.Open(cfg.MaxMindDBPath)
		if err != nil {
			return nil, fmt.Errorf("enrich: opening maxmind db: %w", err)
		}
	}

	interval := cfg.MinCallInterval
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}

	return &Enricher{
		cache:       cache,
		mmdb:        reader,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		upstreamURL: cfg.UpstreamURL,
	}, nil
}

// Close releases the local database handle, if any.
func (e *Enricher) Close() error {
	if e.mmdb == nil {
		return nil
	}
	return e.mmdb.Close()
}

// Lookup resolves ip to its geo/ASN/provider metadata. Private and
// loopback ranges are short-circuited to a PRIVATE sentinel without
// consuming a cache slot or a rate-limit token. Absent upstream data returns
// (nil, nil) rather than an error; callers treat that as "no data".
func (e *Enricher) Lookup(ctx context.Context, ip string) (*model.IPMetadata, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("enrich: invalid IP %q", ip)
	}
	if isPrivate(parsed) {
		return &model.IPMetadata{IP: ip, Private: true}, nil
	}

	if cached, ok := e.cache.Get(ip); ok {
		telemetry.EnrichCacheHitsTotal.Inc()
		result := cached
		return &result, nil
	}
	telemetry.EnrichCacheMissesTotal.Inc()

	if meta := e.lookupLocal(parsed, ip); meta != nil {
		e.cache.Set(ip, *meta)
		return meta, nil
	}

	meta, err := e.lookupUpstream(ctx, ip)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}
	e.cache.Set(ip, *meta)
	return meta, nil
}

func (e *Enricher) lookupLocal(parsed net.IP, ip string) *model.IPMetadata {
	if e.mmdb == nil {
		return nil
	}
	var rec mmdbRecord
	if err := e.mmdb.Lookup(parsed, &rec); err != nil {
		return nil
	}
	if rec.Country.ISOCode == "" && rec.AutonomousSystemNumber == 0 {
		return nil
	}

	meta := model.IPMetadata{
		IP:          ip,
		CountryCode: rec.Country.ISOCode,
		City:        rec.City.Names["en"],
		Latitude:    rec.Location.Latitude,
		Longitude:   rec.Location.Longitude,
		ASN:         rec.AutonomousSystemNumber,
		OrgName:     rec.AutonomousSystemOrganization,
	}
	meta.Provider = classifyOrgName(meta.OrgName)
	meta.IsMobile = meta.Provider == model.ProviderMobile || meta.Provider == model.ProviderMobileISP
	meta.IsHosting = meta.Provider == model.ProviderHosting
	meta.IsVPN = meta.Provider == model.ProviderVPN
	return &meta
}

// lookupUpstream calls the configured upstream IP-metadata service,
// serialized behind the rate limiter.
func (e *Enricher) lookupUpstream(ctx context.Context, ip string) (*model.IPMetadata, error) {
	if e.upstreamURL == "" {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("enrich: rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s", e.upstreamURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: building upstream request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		telemetry.EnrichUpstreamCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("enrich: calling upstream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		telemetry.EnrichUpstreamCallsTotal.WithLabelValues("no_data").Inc()
		return nil, nil
	}

	var body upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		telemetry.EnrichUpstreamCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("enrich: decoding upstream response: %w", err)
	}
	if body.Status != "success" {
		telemetry.EnrichUpstreamCallsTotal.WithLabelValues("no_data").Inc()
		return nil, nil
	}
	telemetry.EnrichUpstreamCallsTotal.WithLabelValues("ok").Inc()

	meta := model.IPMetadata{
		IP:          ip,
		CountryCode: body.CountryCode,
		City:        body.City,
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		ASN:         body.ASN,
		OrgName:     body.OrgName,
		IsMobile:    body.Mobile,
		IsHosting:   body.Hosting,
		IsProxy:     body.Proxy,
	}
	meta.Provider = classifyOrgName(meta.OrgName)
	if body.Mobile && (meta.Provider == "" || meta.Provider == model.ProviderISP) {
		meta.Provider = model.ProviderMobile
	}
	if body.Hosting && (meta.Provider == "" || meta.Provider == model.ProviderISP) {
		meta.Provider = model.ProviderHosting
	}
	if body.Proxy {
		meta.Provider = model.ProviderVPN
		meta.IsVPN = true
	}
	return &meta, nil
}

func isPrivate(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("enrich: invalid CIDR literal " + c)
		}
		nets = append(nets, n)
	}
	return nets
}
