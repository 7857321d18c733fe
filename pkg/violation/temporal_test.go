package violation

import (
	"testing"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
)

func mkconn(ip string, at time.Time) model.Connection {
	return model.Connection{IPAddress: ip, ConnectedAt: at}
}

func TestAnalyzeTemporal_TrueSimultaneityScoresHundred(t *testing.T) {
	now := time.Now()
	t0 := now.Add(-1 * time.Minute)

	var active []model.Connection
	for i := 0; i < 5; i++ {
		ip := "10.0.0." + string(rune('1'+i))
		active = append(active, mkconn(ip, t0.Add(time.Duration(i)*10*time.Second)))
	}

	result := AnalyzeTemporal(active, nil, 1, now)
	if result.Score != 100 {
		t.Errorf("Score = %v, want 100", result.Score)
	}
	if result.SimultaneousCount != 5 {
		t.Errorf("SimultaneousCount = %d, want 5", result.SimultaneousCount)
	}
}

func TestAnalyzeTemporal_NormalHandoffScoresZero(t *testing.T) {
	now := time.Now()
	t0 := now.Add(-4 * time.Minute)

	active := []model.Connection{mkconn("10.0.0.2", t0)}
	history := []model.Connection{
		mkconn("10.0.0.1", t0.Add(-10*time.Minute)),
		mkconn("10.0.0.2", t0),
	}

	result := AnalyzeTemporal(active, history, 1, now)
	if result.Score != 0 {
		t.Errorf("Score = %v, want 0", result.Score)
	}
}

func TestRecommendedAction_Thresholds(t *testing.T) {
	tests := []struct {
		total float64
		want  model.RecommendedAction
	}{
		{0, model.ActionNone},
		{29.9, model.ActionNone},
		{30, model.ActionMonitor},
		{49.9, model.ActionMonitor},
		{50, model.ActionWarn},
		{64.9, model.ActionWarn},
		{65, model.ActionSoftBlock},
		{79.9, model.ActionSoftBlock},
		{80, model.ActionTempBlock},
		{89.9, model.ActionTempBlock},
		{90, model.ActionHardBlock},
		{100, model.ActionHardBlock},
	}

	for _, tt := range tests {
		if got := recommendedAction(tt.total); got != tt.want {
			t.Errorf("recommendedAction(%v) = %v, want %v", tt.total, got, tt.want)
		}
	}
}

func TestRecommendedAction_IsMonotone(t *testing.T) {
	order := []model.RecommendedAction{
		model.ActionNone, model.ActionMonitor, model.ActionWarn,
		model.ActionSoftBlock, model.ActionTempBlock, model.ActionHardBlock,
	}
	rank := make(map[model.RecommendedAction]int, len(order))
	for i, a := range order {
		rank[a] = i
	}

	prevRank := -1
	for total := 0.0; total <= 100; total += 1 {
		a := recommendedAction(total)
		if rank[a] < prevRank {
			t.Fatalf("action rank decreased at total=%v: %v", total, a)
		}
		prevRank = rank[a]
	}
}
