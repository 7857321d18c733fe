// Package node implements the one write path telemetry has onto the node
// mirror table: administrative agent-token rotation.
package node

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/store"
)

// tokenBytes is the entropy size of a rotated agent token.
const tokenBytes = 32

// TokenRotator rotates the bearer secret a node agent uses to authenticate
// against the collector.
type TokenRotator struct {
	store *store.Store
}

// NewTokenRotator creates a TokenRotator backed by the given store.
func NewTokenRotator(s *store.Store) *TokenRotator {
	return &TokenRotator{store: s}
}

// Rotate generates a fresh high-entropy token, persists it as the node's
// agent_token, and returns it. The caller delivers it out-of-band to the
// node agent's configuration. The token is stored as-is: the collector
// compares the bearer header against the column directly.
func (r *TokenRotator) Rotate(ctx context.Context, nodeUUID uuid.UUID) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("node: generating agent token: %w", err)
	}

	if err := r.store.SetNodeAgentToken(ctx, nodeUUID, token); err != nil {
		return "", fmt.Errorf("node: rotating agent token for %s: %w", nodeUUID, err)
	}

	return token, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
