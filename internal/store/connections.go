package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sentrynode/sentrynode/internal/model"
)

// InsertConnection appends a new ledger row and returns its ID. device_info
// is stored as opaque JSON; callers that don't have device data pass nil.
func (s *Store) InsertConnection(ctx context.Context, userUUID uuid.UUID, ip string, nodeUUID uuid.UUID, connectedAt time.Time, deviceInfo []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO user_connections (user_uuid, ip_address, node_uuid, connected_at, device_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userUUID, ip, nodeUUID, connectedAt, deviceInfo).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting connection: %w", err)
	}
	return id, nil
}

// CloseConnection marks a connection disconnected at the given time. It is
// idempotent: closing an already-closed row is a no-op, not an error.
func (s *Store) CloseConnection(ctx context.Context, id int64, disconnectedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_connections
		SET disconnected_at = $2
		WHERE id = $1 AND disconnected_at IS NULL
	`, id, disconnectedAt)
	if err != nil {
		return fmt.Errorf("closing connection %d: %w", id, err)
	}
	return nil
}

// staleScanLimit bounds the stale-closure sweep's row scan per user per
// invocation.
const staleScanLimit = 1000

// staleAge is the age beyond which an open row with no matching IP in the
// current batch is considered stale.
const staleAge = 5 * time.Minute

// CloseConnectionsByIPs closes open rows older than staleAge for a user
// whose IP is not present in stillReportedIPs, used by the stale-closure
// sweep.
func (s *Store) CloseConnectionsByIPs(ctx context.Context, userUUID uuid.UUID, stillReportedIPs []string, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE user_connections
		SET disconnected_at = $4
		WHERE id IN (
			SELECT id FROM user_connections
			WHERE user_uuid = $1
			  AND disconnected_at IS NULL
			  AND connected_at <= $3
			  AND NOT (ip_address = ANY($2))
			ORDER BY connected_at ASC
			LIMIT `+fmt.Sprint(staleScanLimit)+`
		)
	`, userUUID, stillReportedIPs, now.Add(-staleAge), now)
	if err != nil {
		return 0, fmt.Errorf("closing stale connections for %s: %w", userUUID, err)
	}
	return tag.RowsAffected(), nil
}

// ActiveConnections returns open rows for a user whose connected_at falls
// within maxAge of now (the "active set").
func (s *Store) ActiveConnections(ctx context.Context, userUUID uuid.UUID, now time.Time, maxAge time.Duration) ([]model.Connection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_uuid, ip_address, node_uuid, connected_at, disconnected_at, device_info
		FROM user_connections
		WHERE user_uuid = $1
		  AND disconnected_at IS NULL
		  AND connected_at > $2
		ORDER BY connected_at DESC
	`, userUUID, now.Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("querying active connections for %s: %w", userUUID, err)
	}
	defer rows.Close()
	return scanConnections(rows)
}

// HistoryConnections returns every row (open or closed) for a user whose
// connected_at falls within window of now, used by the temporal and geo
// analyzers.
func (s *Store) HistoryConnections(ctx context.Context, userUUID uuid.UUID, now time.Time, window time.Duration) ([]model.Connection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_uuid, ip_address, node_uuid, connected_at, disconnected_at, device_info
		FROM user_connections
		WHERE user_uuid = $1
		  AND connected_at > $2
		ORDER BY connected_at DESC
	`, userUUID, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("querying connection history for %s: %w", userUUID, err)
	}
	defer rows.Close()
	return scanConnections(rows)
}

// UniqueIPCount returns the number of distinct IPs a user connected from in
// the trailing window, used by the monitor's per-user stats.
func (s *Store) UniqueIPCount(ctx context.Context, userUUID uuid.UUID, now time.Time, window time.Duration) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT ip_address)
		FROM user_connections
		WHERE user_uuid = $1 AND connected_at > $2
	`, userUUID, now.Add(-window)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unique IPs for %s: %w", userUUID, err)
	}
	return n, nil
}

func scanConnections(rows pgx.Rows) ([]model.Connection, error) {
	var out []model.Connection
	for rows.Next() {
		var c model.Connection
		// node_uuid is NULL after a node deletion (ON DELETE SET NULL).
		var nodeUUID *uuid.UUID
		if err := rows.Scan(&c.ID, &c.UserUUID, &c.IPAddress, &nodeUUID, &c.ConnectedAt, &c.DisconnectedAt, &c.DeviceInfo); err != nil {
			return nil, fmt.Errorf("scanning connection row: %w", err)
		}
		if nodeUUID != nil {
			c.NodeUUID = *nodeUUID
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connection rows: %w", err)
	}
	return out, nil
}
