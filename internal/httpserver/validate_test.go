package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/model"
)

func validReport() model.ConnectionReport {
	return model.ConnectionReport{
		UserEmail:   "user_154",
		IPAddress:   "188.170.87.33",
		NodeUUID:    uuid.New(),
		ConnectedAt: time.Now(),
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid JSON",
			body:    `{"user_email":"user_154","ip_address":"188.170.87.33"}`,
			wantErr: false,
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
			errMsg:  "request body is empty",
		},
		{
			name:    "invalid JSON",
			body:    `{invalid}`,
			wantErr: true,
			errMsg:  "invalid JSON",
		},
		{
			name:    "unknown field",
			body:    `{"user_email":"user_154","unknown":"field"}`,
			wantErr: true,
			errMsg:  "invalid JSON",
		},
		{
			name:    "trailing data",
			body:    `{"user_email":"user_154"}{"extra":true}`,
			wantErr: true,
			errMsg:  "request body must contain a single JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p model.ConnectionReport
			err := Decode(r, &p)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && tt.errMsg != "" {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want to contain %q", err.Error(), tt.errMsg)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		payload   func() model.ConnectionReport
		wantCount int
	}{
		{
			name:      "valid report",
			payload:   validReport,
			wantCount: 0,
		},
		{
			name:      "missing everything",
			payload:   func() model.ConnectionReport { return model.ConnectionReport{} },
			wantCount: 4, // user_email, ip_address, node_uuid, connected_at
		},
		{
			name: "hostname instead of IPv4",
			payload: func() model.ConnectionReport {
				r := validReport()
				r.IPAddress = "vpn.example.com"
				return r
			},
			wantCount: 1,
		},
		{
			name: "IPv6 address rejected",
			payload: func() model.ConnectionReport {
				r := validReport()
				r.IPAddress = "2001:db8::1"
				return r
			},
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.payload())
			if len(errs) != tt.wantCount {
				t.Errorf("Validate() returned %d errors, want %d: %+v", len(errs), tt.wantCount, errs)
			}
		})
	}
}

func TestValidate_DivesIntoBatchConnections(t *testing.T) {
	batch := model.BatchReport{
		NodeUUID:  uuid.New(),
		Timestamp: time.Now(),
		Connections: []model.ConnectionReport{
			validReport(),
			{UserEmail: "user_2", IPAddress: "not-an-ip", NodeUUID: uuid.New(), ConnectedAt: time.Now()},
		},
	}

	errs := Validate(batch)
	if len(errs) != 1 {
		t.Fatalf("Validate() returned %d errors, want 1 (nested ip_address): %+v", len(errs), errs)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	nodeUUID := uuid.New().String()

	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
	}{
		{
			name: "valid batch",
			body: `{"node_uuid":"` + nodeUUID + `","timestamp":"2026-01-28T11:23:18Z","connections":[` +
				`{"user_email":"user_154","ip_address":"188.170.87.33","node_uuid":"` + nodeUUID + `",` +
				`"connected_at":"2026-01-28T11:23:18.306521Z","disconnected_at":null,"bytes_sent":0,"bytes_received":0}]}`,
			wantOK: true,
		},
		{
			name:       "invalid JSON",
			body:       `{bad}`,
			wantOK:     false,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing node_uuid and timestamp",
			body:       `{"connections":[]}`,
			wantOK:     false,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var p model.BatchReport
			ok := DecodeAndValidate(w, r, &p)
			if ok != tt.wantOK {
				t.Errorf("DecodeAndValidate() = %v, want %v", ok, tt.wantOK)
			}
			if !ok && w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"UserEmail", "user_email"},
		{"ConnectedAt", "connected_at"},
		{"Timestamp", "timestamp"},
		{"lowercase", "lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := toSnakeCase(tt.in)
			if got != tt.want {
				t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
