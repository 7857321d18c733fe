// Package model holds the domain entities shared by every sentrynode
// component.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a mirrored subscriber.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusDisabled UserStatus = "DISABLED"
	UserStatusLimited  UserStatus = "LIMITED"
	UserStatusExpired  UserStatus = "EXPIRED"
)

// User mirrors a control-plane subscriber. It is never mutated from
// telemetry, only by the Sync Worker.
type User struct {
	UUID              uuid.UUID       `json:"uuid"`
	ShortUUID         string          `json:"short_uuid"`
	Username          string          `json:"username"`
	SubscriptionUUID  string          `json:"subscription_uuid"`
	TelegramID        int64           `json:"telegram_id"`
	Email             string          `json:"email"`
	Status            UserStatus      `json:"status"`
	ExpireAt          *time.Time      `json:"expire_at"`
	TrafficLimitBytes int64           `json:"traffic_limit_bytes"`
	UsedTrafficBytes  int64           `json:"used_traffic_bytes"`
	HwidDeviceLimit   int             `json:"hwid_device_limit"`
	RawData           json.RawMessage `json:"raw_data"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Node mirrors a control-plane edge node. agent_token is the only
// field the collector itself ever writes, and only via an administrative
// rotation operation.
type Node struct {
	UUID              uuid.UUID       `json:"uuid"`
	Name              string          `json:"name"`
	Address           string          `json:"address"`
	Port              int             `json:"port"`
	IsDisabled        bool            `json:"is_disabled"`
	IsConnected       bool            `json:"is_connected"`
	TrafficLimitBytes int64           `json:"traffic_limit_bytes"`
	TrafficUsedBytes  int64           `json:"traffic_used_bytes"`
	AgentToken        *string         `json:"-"`
	RawData           json.RawMessage `json:"raw_data"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Connection is a single append-only ledger row.
type Connection struct {
	ID             int64           `json:"id"`
	UserUUID       uuid.UUID       `json:"user_uuid"`
	IPAddress      string          `json:"ip_address"`
	NodeUUID       uuid.UUID       `json:"node_uuid"`
	ConnectedAt    time.Time       `json:"connected_at"`
	DisconnectedAt *time.Time      `json:"disconnected_at"`
	DeviceInfo     json.RawMessage `json:"device_info"`
}

// IsActive reports whether the row is open and within the active-set window
// relative to now (disconnected_at unset and connected_at younger than maxAge).
func (c Connection) IsActive(now time.Time, maxAge time.Duration) bool {
	return c.DisconnectedAt == nil && c.ConnectedAt.After(now.Add(-maxAge))
}

// IsOpen reports whether the row has not yet been closed, regardless of age.
func (c Connection) IsOpen() bool {
	return c.DisconnectedAt == nil
}

// ProviderType classifies an ASN's operator.
type ProviderType string

const (
	ProviderISP         ProviderType = "isp"
	ProviderRegionalISP ProviderType = "regional_isp"
	ProviderFixed       ProviderType = "fixed"
	ProviderMobileISP   ProviderType = "mobile_isp"
	ProviderHosting     ProviderType = "hosting"
	ProviderBusiness    ProviderType = "business"
	ProviderMobile      ProviderType = "mobile"
	ProviderInfra       ProviderType = "infrastructure"
	ProviderVPN         ProviderType = "vpn"
)

// ASNRecord is a locally cached ASN classification.
type ASNRecord struct {
	ASN          int64        `json:"asn"`
	OrgName      string       `json:"org_name"`
	ProviderType ProviderType `json:"provider_type"`
	Region       string       `json:"region"`
	City         string       `json:"city"`
	CountryCode  string       `json:"country_code"`
	IsActive     bool         `json:"is_active"`
	LastSyncedAt time.Time    `json:"last_synced_at"`
}

// IPMetadata is the derived enrichment result for a single IP.
type IPMetadata struct {
	IP          string
	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
	ASN         int64
	OrgName     string
	Provider    ProviderType
	IsMobile    bool
	IsHosting   bool
	IsVPN       bool
	IsProxy     bool
	Private     bool // IP was a private/loopback sentinel, never resolved upstream
}

// RecommendedAction is the graded enforcement recommendation of the
// violation detector. Values are ordered least to most severe.
type RecommendedAction string

const (
	ActionNone      RecommendedAction = "no_action"
	ActionMonitor   RecommendedAction = "monitor"
	ActionWarn      RecommendedAction = "warn"
	ActionSoftBlock RecommendedAction = "soft_block"
	ActionTempBlock RecommendedAction = "temp_block"
	ActionHardBlock RecommendedAction = "hard_block"
)

// ScoreBreakdown holds the five weighted sub-analyzer scores.
type ScoreBreakdown struct {
	Temporal float64 `json:"temporal"`
	Geo      float64 `json:"geo"`
	ASN      float64 `json:"asn"`
	Profile  float64 `json:"profile"`
	Device   float64 `json:"device"`
}

// ViolationScore is the transient output of the violation detector.
type ViolationScore struct {
	UserUUID          uuid.UUID         `json:"user_uuid"`
	Total             float64           `json:"total"`
	Breakdown         ScoreBreakdown    `json:"breakdown"`
	Reasons           []string          `json:"reasons"`
	Confidence        float64           `json:"confidence"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	ManualReview      bool              `json:"manual_review"`
}

// SyncStatus is the outcome of the most recent sync attempt for an entity
// class.
type SyncStatus string

const (
	SyncStatusOK      SyncStatus = "ok"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusRunning SyncStatus = "running"
)

// SyncMetadata is a per-entity-class sync bookkeeping row.
type SyncMetadata struct {
	Key           string     `json:"key"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	SyncStatus    SyncStatus `json:"sync_status"`
	RecordsSynced int        `json:"records_synced"`
	ErrorMessage  string     `json:"error_message"`
}

// ConnectionReport is one observed connection, produced by the node agent's
// tailer and shipped to the collector inside a BatchReport.
type ConnectionReport struct {
	UserEmail      string     `json:"user_email" validate:"required"`
	IPAddress      string     `json:"ip_address" validate:"required,ipv4"`
	NodeUUID       uuid.UUID  `json:"node_uuid" validate:"required"`
	ConnectedAt    time.Time  `json:"connected_at" validate:"required"`
	DisconnectedAt *time.Time `json:"disconnected_at"`
	BytesSent      int64      `json:"bytes_sent"`
	BytesReceived  int64      `json:"bytes_received"`
}

// BatchReport is the HTTP body the node agent posts to the collector's
// batch endpoint.
type BatchReport struct {
	NodeUUID    uuid.UUID          `json:"node_uuid" validate:"required"`
	Timestamp   time.Time          `json:"timestamp" validate:"required"`
	Connections []ConnectionReport `json:"connections" validate:"dive"`
}
