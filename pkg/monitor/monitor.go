// Package monitor derives connection statistics from the connection store:
// active counts, unique-IP windows, and simultaneity. It holds no
// state of its own; the store remains the sole source of truth.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/store"
)

const activeMaxAge = 5 * time.Minute

// Monitor computes connection statistics for a single user on demand.
type Monitor struct {
	store *store.Store
}

// New creates a Monitor backed by the given connection store.
func New(s *store.Store) *Monitor {
	return &Monitor{store: s}
}

// Stats bundles the three derived quantities the violation detector and
// operator-facing views both need.
type Stats struct {
	ActiveConnectionsCount  int
	UniqueIPsInWindow       int
	SimultaneousConnections int
}

// UserStats computes active count, unique-IP count over windowMinutes, and
// the simultaneity count over the active set.
func (m *Monitor) UserStats(ctx context.Context, userUUID uuid.UUID, windowMinutes int) (Stats, error) {
	now := time.Now()

	active, err := m.store.ActiveConnections(ctx, userUUID, now, activeMaxAge)
	if err != nil {
		return Stats{}, fmt.Errorf("loading active connections for %s: %w", userUUID, err)
	}

	uniqueIPs, err := m.store.UniqueIPCount(ctx, userUUID, now, time.Duration(windowMinutes)*time.Minute)
	if err != nil {
		return Stats{}, fmt.Errorf("counting unique IPs for %s: %w", userUUID, err)
	}

	return Stats{
		ActiveConnectionsCount:  len(active),
		UniqueIPsInWindow:       uniqueIPs,
		SimultaneousConnections: SimultaneousCount(active, now),
	}, nil
}
