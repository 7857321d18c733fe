package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
)

// RawEntity is an entity class the sync worker counts and bookkeeps but
// has no dedicated mirror table for (hosts, config profiles). Only User
// and Node are mirrored locally; everything else is observed for
// sync_metadata purposes.
type RawEntity struct {
	ID      string
	Payload json.RawMessage
}

// ControlPlaneClient is the upstream control-plane REST contract the sync
// worker depends on. HTTPClient is the default implementation; tests
// substitute their own.
type ControlPlaneClient interface {
	ListUsers(ctx context.Context, page, pageSize int) (users []model.User, hasMore bool, err error)
	ListNodes(ctx context.Context) ([]model.Node, error)
	ListHosts(ctx context.Context) ([]RawEntity, error)
	ListConfigProfiles(ctx context.Context) ([]RawEntity, error)
}

// HTTPClient implements ControlPlaneClient against a REST control plane,
// following the enricher's http.Client pattern
// (pkg/enrich.Enricher.lookupUpstream) plus a bearer token header.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds an HTTPClient for baseURL, authenticating with token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type paginatedUsers struct {
	Items   []model.User `json:"items"`
	HasMore bool         `json:"has_more"`
}

func (c *HTTPClient) ListUsers(ctx context.Context, page, pageSize int) ([]model.User, bool, error) {
	var out paginatedUsers
	url := fmt.Sprintf("%s/users?page=%d&size=%d", c.baseURL, page, pageSize)
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, false, err
	}
	return out.Items, out.HasMore, nil
}

func (c *HTTPClient) ListNodes(ctx context.Context) ([]model.Node, error) {
	var out []model.Node
	if err := c.getJSON(ctx, c.baseURL+"/nodes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListHosts(ctx context.Context) ([]RawEntity, error) {
	return c.listRaw(ctx, c.baseURL+"/hosts")
}

func (c *HTTPClient) ListConfigProfiles(ctx context.Context) ([]RawEntity, error) {
	return c.listRaw(ctx, c.baseURL+"/config-profiles")
}

func (c *HTTPClient) listRaw(ctx context.Context, url string) ([]RawEntity, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	out := make([]RawEntity, 0, len(raw))
	for _, r := range raw {
		var idHolder struct {
			UUID string `json:"uuid"`
			ID   string `json:"id"`
		}
		_ = json.Unmarshal(r, &idHolder)
		id := idHolder.UUID
		if id == "" {
			id = idHolder.ID
		}
		out = append(out, RawEntity{ID: id, Payload: r})
	}
	return out, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("sync: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync: calling control plane: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sync: control plane responded %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sync: decoding control plane response: %w", err)
	}
	return nil
}
