package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_ListUsersPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		if page == "1" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items":    []map[string]any{{"uuid": "11111111-1111-1111-1111-111111111111"}},
				"has_more": true,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":    []map[string]any{{"uuid": "22222222-2222-2222-2222-222222222222"}},
			"has_more": false,
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tok")

	page1, hasMore, err := client.ListUsers(t.Context(), 1, 1)
	if err != nil {
		t.Fatalf("ListUsers page 1: %v", err)
	}
	if len(page1) != 1 || !hasMore {
		t.Fatalf("page 1 = %v, hasMore=%v", page1, hasMore)
	}

	page2, hasMore, err := client.ListUsers(t.Context(), 2, 1)
	if err != nil {
		t.Fatalf("ListUsers page 2: %v", err)
	}
	if len(page2) != 1 || hasMore {
		t.Fatalf("page 2 = %v, hasMore=%v", page2, hasMore)
	}
}

func TestHTTPClient_ListHostsExtractsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"uuid":"h-1","name":"host one"},{"id":"h-2"}]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tok")
	hosts, err := client.ListHosts(t.Context())
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("hosts = %d, want 2", len(hosts))
	}
	if hosts[0].ID != "h-1" || hosts[1].ID != "h-2" {
		t.Fatalf("host ids = %q, %q", hosts[0].ID, hosts[1].ID)
	}
}
