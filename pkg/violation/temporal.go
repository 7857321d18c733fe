package violation

import (
	"sort"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/pkg/monitor"
)

const (
	rapidSwitchMinGap = 100 * time.Millisecond
	rapidSwitchMaxGap = 30 * time.Second
	rapidFastGap      = 10 * time.Second
	liveWindow        = 5 * time.Minute
)

// TemporalResult is the temporal sub-analyzer's verdict.
type TemporalResult struct {
	Score             float64
	Reasons           []string
	SimultaneousCount int
	RapidSwitches     int
}

// AnalyzeTemporal scores simultaneity and rapid IP switching for a user's
// active and historical connections.
func AnalyzeTemporal(active, history []model.Connection, deviceCount int, now time.Time) TemporalResult {
	if deviceCount < 1 {
		deviceCount = 1
	}

	simultaneousCount := monitor.SimultaneousCount(active, now)

	var score float64
	var reasons []string

	maxAllowed := deviceCount + 1
	if simultaneousCount > maxAllowed {
		if simultaneousCount > 3 {
			score = 100
			reasons = append(reasons, "simultaneous connections with distinct IPs (>3)")
		} else {
			score = 80
			reasons = append(reasons, "simultaneous connections exceeding device allowance")
		}
	}

	rapidSwitches, penalty, penaltyReasons := rapidSwitchPenalty(history, active, simultaneousCount, now)
	score += penalty
	reasons = append(reasons, penaltyReasons...)

	if score > 100 {
		score = 100
	}

	return TemporalResult{
		Score:             score,
		Reasons:           reasons,
		SimultaneousCount: simultaneousCount,
		RapidSwitches:     rapidSwitches,
	}
}

// rapidSwitchPenalty walks consecutive history pairs and scores IP switches
// that occurred while the old session was still plausibly live.
func rapidSwitchPenalty(history, active []model.Connection, simultaneousCount int, now time.Time) (int, float64, []string) {
	if len(history) < 2 || simultaneousCount <= 1 {
		return 0, 0, nil
	}

	sorted := append([]model.Connection(nil), history...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ConnectedAt.Before(sorted[j].ConnectedAt) })

	rapidSwitches := 0
	var penalty float64
	var reasons []string
	singleFastAdded := false

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		if prev.IPAddress == curr.IPAddress {
			continue
		}

		gap := curr.ConnectedAt.Sub(prev.ConnectedAt)
		if gap < rapidSwitchMinGap || gap >= rapidSwitchMaxGap {
			continue
		}

		normalSwitch := prev.DisconnectedAt != nil && !prev.DisconnectedAt.After(curr.ConnectedAt)
		if normalSwitch {
			continue
		}

		if !oldIPStillLive(active, prev.IPAddress, now) {
			continue
		}

		rapidSwitches++
		if rapidSwitches == 3 {
			penalty = 10
			reasons = append(reasons, "multiple rapid IP switches while a prior session was still live")
		} else if rapidSwitches == 1 && gap < rapidFastGap && !singleFastAdded {
			penalty += 3
			singleFastAdded = true
			reasons = append(reasons, "rapid IP switch while a prior session was still live")
		}
	}

	return rapidSwitches, penalty, reasons
}

// oldIPStillLive reports whether ip appears among the active rows within
// the live window relative to now.
func oldIPStillLive(active []model.Connection, ip string, now time.Time) bool {
	for _, c := range active {
		if c.IPAddress == ip && now.Sub(c.ConnectedAt) <= liveWindow {
			return true
		}
	}
	return false
}
