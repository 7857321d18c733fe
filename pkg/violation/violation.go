// Package violation implements the multi-factor weighted scoring engine:
// temporal, geo, ASN, profile, and device sub-analyzers combined into a
// single graded enforcement recommendation.
package violation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/store"
	"github.com/sentrynode/sentrynode/pkg/enrich"
)

const activeMaxAge = 5 * time.Minute

// Sub-analyzer weights. They sum to 1.0.
const (
	weightTemporal = 0.25
	weightGeo      = 0.25
	weightASN      = 0.15
	weightProfile  = 0.20
	weightDevice   = 0.15
)

// Action thresholds (strict less-than).
const (
	thresholdMonitor   = 30
	thresholdWarn      = 50
	thresholdSoftBlock = 65
	thresholdTempBlock = 80
	thresholdHardBlock = 90
	thresholdManual    = 95
)

// Detector runs every sub-analyzer and combines their sub-scores.
type Detector struct {
	store    *store.Store
	enricher *enrich.Enricher
}

// New creates a Detector backed by the connection store and enricher.
func New(s *store.Store, e *enrich.Enricher) *Detector {
	return &Detector{store: s, enricher: e}
}

// CheckUser scores a user's recent activity and returns the violation
// verdict. windowMinutes bounds the history pulled for the temporal and geo
// analyzers.
func (d *Detector) CheckUser(ctx context.Context, userUUID uuid.UUID, deviceCount int, windowMinutes int) (model.ViolationScore, error) {
	now := time.Now()

	active, err := d.store.ActiveConnections(ctx, userUUID, now, activeMaxAge)
	if err != nil {
		return model.ViolationScore{}, fmt.Errorf("loading active connections for %s: %w", userUUID, err)
	}

	history, err := d.store.HistoryConnections(ctx, userUUID, now, time.Duration(windowMinutes)*time.Minute)
	if err != nil {
		return model.ViolationScore{}, fmt.Errorf("loading connection history for %s: %w", userUUID, err)
	}

	temporal := AnalyzeTemporal(active, history, deviceCount, now)
	geo := d.analyzeGeo(ctx, active, history)
	asn := d.analyzeASN(ctx, active, history)
	profile := AnalyzeProfile()
	device := AnalyzeDevice(active)

	raw := temporal.Score*weightTemporal +
		geo.Score*weightGeo +
		asn.Score*weightASN +
		profile.Score*weightProfile +
		device.Score*weightDevice

	if asn.IsMobileCarrier {
		raw *= 0.7
	}
	if temporal.Score > 0 && temporal.SimultaneousCount > 1 {
		raw = max64(raw, 85)
	}

	total := min64(raw, 100)

	var reasons []string
	reasons = append(reasons, temporal.Reasons...)
	reasons = append(reasons, geo.Reasons...)
	reasons = append(reasons, asn.Reasons...)
	reasons = append(reasons, profile.Reasons...)
	reasons = append(reasons, device.Reasons...)

	return model.ViolationScore{
		UserUUID: userUUID,
		Total:    total,
		Breakdown: model.ScoreBreakdown{
			Temporal: temporal.Score,
			Geo:      geo.Score,
			ASN:      asn.Score,
			Profile:  profile.Score,
			Device:   device.Score,
		},
		Reasons:           reasons,
		Confidence:        min64(1, total/100),
		RecommendedAction: recommendedAction(total),
		ManualReview:      total >= thresholdManual,
	}, nil
}

// recommendedAction maps a total score to the graded action ladder.
func recommendedAction(total float64) model.RecommendedAction {
	switch {
	case total < thresholdMonitor:
		return model.ActionNone
	case total < thresholdWarn:
		return model.ActionMonitor
	case total < thresholdSoftBlock:
		return model.ActionWarn
	case total < thresholdTempBlock:
		return model.ActionSoftBlock
	case total < thresholdHardBlock:
		return model.ActionTempBlock
	default:
		return model.ActionHardBlock
	}
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
