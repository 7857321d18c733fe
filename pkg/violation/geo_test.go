package violation

import (
	"context"
	"testing"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/pkg/enrich"
)

// With no local database and no upstream configured, every lookup yields
// no metadata; absence of data must never score as a violation.
func TestAnalyzeGeo_NoMetadataScoresZero(t *testing.T) {
	e, err := enrich.New(enrich.Config{})
	if err != nil {
		t.Fatalf("enrich.New: %v", err)
	}
	defer e.Close()

	d := New(nil, e)
	now := time.Now()

	active := []model.Connection{
		mkconn("8.8.8.8", now.Add(-1*time.Minute)),
		mkconn("1.1.1.1", now.Add(-30*time.Second)),
	}

	got := d.analyzeGeo(context.Background(), active, active)
	if got.Score != 0 {
		t.Errorf("Score = %v, want 0 (no enrichment data)", got.Score)
	}
	if got.ImpossibleTravel {
		t.Error("ImpossibleTravel = true, want false with no metadata")
	}
}

// Private IPs resolve to the PRIVATE sentinel and must be excluded from geo
// scoring entirely.
func TestAnalyzeGeo_PrivateIPsAreIgnored(t *testing.T) {
	e, err := enrich.New(enrich.Config{})
	if err != nil {
		t.Fatalf("enrich.New: %v", err)
	}
	defer e.Close()

	d := New(nil, e)
	now := time.Now()

	active := []model.Connection{
		mkconn("10.0.0.5", now.Add(-1*time.Minute)),
		mkconn("192.168.1.20", now.Add(-30*time.Second)),
	}

	got := d.analyzeGeo(context.Background(), active, nil)
	if got.Score != 0 || got.ImpossibleTravel {
		t.Errorf("got score=%v travel=%v, want 0/false for private-only IPs", got.Score, got.ImpossibleTravel)
	}
}
