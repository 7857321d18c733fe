package tailer

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseLines_BasicAccept(t *testing.T) {
	node := uuid.New()
	now := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)

	lines := []string{
		`2026/01/28 11:23:18.306521 from 188.170.87.33:20129 accepted tcp:accounts.google.com:443 [Sweden1 >> DIRECT] email: 154`,
	}

	got := parseLines(lines, node, now)
	if len(got) != 1 {
		t.Fatalf("parseLines() returned %d connections, want 1", len(got))
	}

	c := got[0]
	if c.UserEmail != "user_154" {
		t.Errorf("UserEmail = %q, want user_154", c.UserEmail)
	}
	if c.IPAddress != "188.170.87.33" {
		t.Errorf("IPAddress = %q, want 188.170.87.33", c.IPAddress)
	}
	if c.NodeUUID != node {
		t.Errorf("NodeUUID = %v, want %v", c.NodeUUID, node)
	}
	want := time.Date(2026, 1, 28, 11, 23, 18, 306521000, time.UTC)
	if !c.ConnectedAt.Equal(want) {
		t.Errorf("ConnectedAt = %v, want %v", c.ConnectedAt, want)
	}
}

func TestParseLines_IgnoresNonAcceptedLines(t *testing.T) {
	node := uuid.New()
	lines := []string{
		"2026/01/28 11:23:18 some unrelated log line",
		"",
		"   ",
	}
	got := parseLines(lines, node, time.Now())
	if len(got) != 0 {
		t.Errorf("parseLines() = %v, want empty", got)
	}
}

func TestParseLines_KeepsLatestPerUserIPPair(t *testing.T) {
	node := uuid.New()
	now := time.Now()

	lines := []string{
		`2026/01/28 11:00:00 from 10.0.0.5:1111 accepted tcp:x:443 email: 1`,
		`2026/01/28 11:05:00 from 10.0.0.5:2222 accepted tcp:x:443 email: 1`,
	}

	got := parseLines(lines, node, now)
	if len(got) != 1 {
		t.Fatalf("parseLines() returned %d connections, want 1 (same user+ip pair)", len(got))
	}
	want := time.Date(2026, 1, 28, 11, 5, 0, 0, time.UTC)
	if !got[0].ConnectedAt.Equal(want) {
		t.Errorf("ConnectedAt = %v, want latest timestamp %v", got[0].ConnectedAt, want)
	}
}

func TestParseLines_DistinctIPsProduceDistinctConnections(t *testing.T) {
	node := uuid.New()
	now := time.Now()

	lines := []string{
		`2026/01/28 11:00:00 from 10.0.0.5:1 accepted tcp:x:443 email: 1`,
		`2026/01/28 11:00:00 from 10.0.0.6:1 accepted tcp:x:443 email: 1`,
	}

	got := parseLines(lines, node, now)
	if len(got) != 2 {
		t.Errorf("parseLines() returned %d connections, want 2", len(got))
	}
}

func TestParseTimestamp_FallsBackToNowOnMalformed(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	got := parseTimestamp("not-a-timestamp", now)
	if !got.Equal(now) {
		t.Errorf("parseTimestamp() = %v, want fallback %v", got, now)
	}
}

func TestParseTimestamp_PreservesMicroseconds(t *testing.T) {
	now := time.Now()
	got := parseTimestamp("2026/01/28 11:23:18.306521", now)
	want := time.Date(2026, 1, 28, 11, 23, 18, 306521000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseTimestamp() = %v, want %v", got, want)
	}
}

func TestParseTimestamp_WithoutFractionalSeconds(t *testing.T) {
	now := time.Now()
	got := parseTimestamp("2026/01/28 11:23:18", now)
	want := time.Date(2026, 1, 28, 11, 23, 18, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseTimestamp() = %v, want %v", got, want)
	}
}
