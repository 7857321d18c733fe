package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sentrynode/sentrynode/internal/model"
)

// SyncMetadataFor returns the bookkeeping row for an entity class (e.g.
// "users", "nodes", "asn"). A class with no row yet reads as status ok.
// The sync worker only writes these rows (RecordSync); its schedule does
// not consult them.
func (s *Store) SyncMetadataFor(ctx context.Context, key string) (model.SyncMetadata, error) {
	var m model.SyncMetadata
	err := s.db.QueryRow(ctx, `
		SELECT key, last_sync_at, sync_status, records_synced, error_message
		FROM sync_metadata WHERE key = $1
	`, key).Scan(&m.Key, &m.LastSyncAt, &m.SyncStatus, &m.RecordsSynced, &m.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncMetadata{Key: key, SyncStatus: model.SyncStatusOK}, nil
		}
		return model.SyncMetadata{}, fmt.Errorf("fetching sync metadata for %q: %w", key, err)
	}
	return m, nil
}

// RecordSync writes the outcome of a sync run for an entity class.
func (s *Store) RecordSync(ctx context.Context, m model.SyncMetadata) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_metadata (key, last_sync_at, sync_status, records_synced, error_message)
		VALUES ($1, now(), $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			last_sync_at = now(),
			sync_status = EXCLUDED.sync_status,
			records_synced = EXCLUDED.records_synced,
			error_message = EXCLUDED.error_message
	`, m.Key, m.SyncStatus, m.RecordsSynced, m.ErrorMessage)
	if err != nil {
		return fmt.Errorf("recording sync outcome for %q: %w", m.Key, err)
	}
	return nil
}
