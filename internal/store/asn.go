package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sentrynode/sentrynode/internal/model"
)

// ASNByNumber returns the cached classification for an ASN from asn_cache.
// The Enricher does not read this table; its lookups go to the local MMDB
// and the upstream service.
func (s *Store) ASNByNumber(ctx context.Context, asn int64) (model.ASNRecord, error) {
	var r model.ASNRecord
	err := s.db.QueryRow(ctx, `
		SELECT asn, org_name, provider_type, region, city, country_code, is_active, last_synced_at
		FROM asn_cache WHERE asn = $1
	`, asn).Scan(&r.ASN, &r.OrgName, &r.ProviderType, &r.Region, &r.City, &r.CountryCode, &r.IsActive, &r.LastSyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ASNRecord{}, ErrNotFound
		}
		return model.ASNRecord{}, fmt.Errorf("fetching ASN %d: %w", asn, err)
	}
	return r, nil
}

// UpsertASN writes or refreshes a cached ASN classification.
func (s *Store) UpsertASN(ctx context.Context, r model.ASNRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO asn_cache (asn, org_name, provider_type, region, city, country_code, is_active, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (asn) DO UPDATE SET
			org_name = EXCLUDED.org_name,
			provider_type = EXCLUDED.provider_type,
			region = EXCLUDED.region,
			city = EXCLUDED.city,
			country_code = EXCLUDED.country_code,
			is_active = EXCLUDED.is_active,
			last_synced_at = EXCLUDED.last_synced_at
	`, r.ASN, r.OrgName, r.ProviderType, r.Region, r.City, r.CountryCode, r.IsActive, r.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("upserting ASN %d: %w", r.ASN, err)
	}
	return nil
}

// StaleASNs returns ASNs whose last_synced_at is older than olderThan,
// capped at limit rows, oldest first. The bulk sync mode does not use it;
// it works from the national ASN list.
func (s *Store) StaleASNs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT asn FROM asn_cache
		WHERE last_synced_at < $1
		ORDER BY last_synced_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stale ASNs: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var asn int64
		if err := rows.Scan(&asn); err != nil {
			return nil, fmt.Errorf("scanning stale ASN row: %w", err)
		}
		out = append(out, asn)
	}
	return out, rows.Err()
}
