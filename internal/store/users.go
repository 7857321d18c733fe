package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sentrynode/sentrynode/internal/model"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("store: not found")

// UpsertUser writes the control-plane mirror row for a user, used by the
// sync worker after pulling the authoritative record.
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (uuid, short_uuid, username, subscription_uuid, telegram_id, email, status, expire_at, traffic_limit_bytes, used_traffic_bytes, hwid_device_limit, raw_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (uuid) DO UPDATE SET
			short_uuid = EXCLUDED.short_uuid,
			username = EXCLUDED.username,
			subscription_uuid = EXCLUDED.subscription_uuid,
			telegram_id = EXCLUDED.telegram_id,
			email = EXCLUDED.email,
			status = EXCLUDED.status,
			expire_at = EXCLUDED.expire_at,
			traffic_limit_bytes = EXCLUDED.traffic_limit_bytes,
			used_traffic_bytes = EXCLUDED.used_traffic_bytes,
			hwid_device_limit = EXCLUDED.hwid_device_limit,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`, u.UUID, u.ShortUUID, u.Username, u.SubscriptionUUID, u.TelegramID, u.Email, u.Status, u.ExpireAt, u.TrafficLimitBytes, u.UsedTrafficBytes, u.HwidDeviceLimit, u.RawData)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.UUID, err)
	}
	return nil
}

// UserByEmail resolves a mirrored user by their login email, the
// identity-resolution strategy tried after short_uuid for inbound
// connection reports.
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT uuid, short_uuid, username, subscription_uuid, telegram_id, email, status, expire_at, traffic_limit_bytes, used_traffic_bytes, hwid_device_limit, raw_data, created_at, updated_at
		FROM users WHERE email = $1
	`, email))
}

// UserByUsername resolves a mirrored user by their username. Username
// lookups are case-insensitive.
func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT uuid, short_uuid, username, subscription_uuid, telegram_id, email, status, expire_at, traffic_limit_bytes, used_traffic_bytes, hwid_device_limit, raw_data, created_at, updated_at
		FROM users WHERE lower(username) = lower($1)
	`, username))
}

// UserByShortUUID resolves a mirrored user by their short_uuid, the first
// identity-resolution strategy tried for a "user_<id>" identifier.
func (s *Store) UserByShortUUID(ctx context.Context, shortUUID string) (model.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT uuid, short_uuid, username, subscription_uuid, telegram_id, email, status, expire_at, traffic_limit_bytes, used_traffic_bytes, hwid_device_limit, raw_data, created_at, updated_at
		FROM users WHERE short_uuid = $1
	`, shortUUID))
}

// UserByUUID resolves a mirrored user by their primary key, used when a
// notification needs the full user record for a uuid already in hand.
func (s *Store) UserByUUID(ctx context.Context, userUUID uuid.UUID) (model.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT uuid, short_uuid, username, subscription_uuid, telegram_id, email, status, expire_at, traffic_limit_bytes, used_traffic_bytes, hwid_device_limit, raw_data, created_at, updated_at
		FROM users WHERE uuid = $1
	`, userUUID))
}

// UserByRawDataID resolves a mirrored user by the numeric id embedded in
// their control-plane raw_data payload, the last-resort identity-resolution
// strategy for a "user_<id>" identifier that matched neither short_uuid nor
// email.
func (s *Store) UserByRawDataID(ctx context.Context, id string) (model.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT uuid, short_uuid, username, subscription_uuid, telegram_id, email, status, expire_at, traffic_limit_bytes, used_traffic_bytes, hwid_device_limit, raw_data, created_at, updated_at
		FROM users WHERE raw_data->>'id' = $1
	`, id))
}

// DeleteUser removes a mirrored user row, used by the sync worker when the
// control plane reports a `user.deleted` event.
func (s *Store) DeleteUser(ctx context.Context, userUUID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM users WHERE uuid = $1`, userUUID)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", userUUID, err)
	}
	return nil
}

func (s *Store) scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.UUID, &u.ShortUUID, &u.Username, &u.SubscriptionUUID, &u.TelegramID, &u.Email, &u.Status, &u.ExpireAt, &u.TrafficLimitBytes, &u.UsedTrafficBytes, &u.HwidDeviceLimit, &u.RawData, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scanning user: %w", err)
	}
	return u, nil
}

// UpsertNode writes the control-plane mirror row for a node.
func (s *Store) UpsertNode(ctx context.Context, n model.Node) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO nodes (uuid, name, address, port, is_disabled, is_connected, traffic_limit_bytes, traffic_used_bytes, raw_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (uuid) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			port = EXCLUDED.port,
			is_disabled = EXCLUDED.is_disabled,
			is_connected = EXCLUDED.is_connected,
			traffic_limit_bytes = EXCLUDED.traffic_limit_bytes,
			traffic_used_bytes = EXCLUDED.traffic_used_bytes,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`, n.UUID, n.Name, n.Address, n.Port, n.IsDisabled, n.IsConnected, n.TrafficLimitBytes, n.TrafficUsedBytes, n.RawData)
	if err != nil {
		return fmt.Errorf("upserting node %s: %w", n.UUID, err)
	}
	return nil
}

// DeleteNode removes a mirrored node row, used by the sync worker when the
// control plane reports a `node.deleted` event.
func (s *Store) DeleteNode(ctx context.Context, nodeUUID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM nodes WHERE uuid = $1`, nodeUUID)
	if err != nil {
		return fmt.Errorf("deleting node %s: %w", nodeUUID, err)
	}
	return nil
}

// NodeAgentToken returns the rotated agent token bound to a node. The
// collector authenticates batch reports through NodeUUIDByAgentToken, not
// through this method.
func (s *Store) NodeAgentToken(ctx context.Context, nodeUUID uuid.UUID) (string, error) {
	var token *string
	err := s.db.QueryRow(ctx, `SELECT agent_token FROM nodes WHERE uuid = $1`, nodeUUID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("fetching agent token for node %s: %w", nodeUUID, err)
	}
	if token == nil {
		return "", ErrNotFound
	}
	return *token, nil
}

// NodeUUIDByAgentToken resolves the node bound to an agent token, used by the
// collector to authenticate inbound batch reports.
func (s *Store) NodeUUIDByAgentToken(ctx context.Context, token string) (uuid.UUID, error) {
	var nodeUUID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT uuid FROM nodes WHERE agent_token = $1`, token).Scan(&nodeUUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("resolving node by agent token: %w", err)
	}
	return nodeUUID, nil
}

// SetNodeAgentToken stores a freshly rotated token for a node.
func (s *Store) SetNodeAgentToken(ctx context.Context, nodeUUID uuid.UUID, token string) error {
	tag, err := s.db.Exec(ctx, `UPDATE nodes SET agent_token = $2 WHERE uuid = $1`, nodeUUID, token)
	if err != nil {
		return fmt.Errorf("rotating agent token for node %s: %w", nodeUUID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
