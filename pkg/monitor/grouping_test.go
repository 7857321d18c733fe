package monitor

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/model"
)

func conn(ip string, at time.Time) model.Connection {
	return model.Connection{UserUUID: uuid.New(), IPAddress: ip, ConnectedAt: at}
}

func TestSimultaneousCount_SingleConnection(t *testing.T) {
	now := time.Now()
	got := SimultaneousCount([]model.Connection{conn("10.0.0.1", now)}, now)
	if got != 1 {
		t.Errorf("SimultaneousCount() = %d, want 1", got)
	}
}

func TestSimultaneousCount_NoConnections(t *testing.T) {
	got := SimultaneousCount(nil, time.Now())
	if got != 0 {
		t.Errorf("SimultaneousCount() = %d, want 0", got)
	}
}

// Five distinct IPs 10s apart count as five simultaneous connections.
func TestSimultaneousCount_TrueSimultaneity(t *testing.T) {
	now := time.Now()
	t0 := now.Add(-1 * time.Minute)

	var conns []model.Connection
	for i := 0; i < 5; i++ {
		ip := "10.0.0." + string(rune('1'+i))
		conns = append(conns, conn(ip, t0.Add(time.Duration(i)*10*time.Second)))
	}

	got := SimultaneousCount(conns, now)
	if got != 5 {
		t.Errorf("SimultaneousCount() = %d, want 5", got)
	}
}

// Connections that all differ by 5+ minutes pairwise carry no simultaneity
// evidence.
func TestSimultaneousCount_SequentialHandoffsAreNotSimultaneous(t *testing.T) {
	now := time.Now()
	t0 := now.Add(-30 * time.Minute)

	conns := []model.Connection{
		conn("10.0.0.1", t0),
		conn("10.0.0.2", t0.Add(6*time.Minute)),
		conn("10.0.0.3", t0.Add(12*time.Minute)),
	}

	got := SimultaneousCount(conns, now)
	if got != 1 {
		t.Errorf("SimultaneousCount() = %d, want 1", got)
	}
}

func TestSimultaneousCount_DiscardsConnectionsOlderThan24h(t *testing.T) {
	now := time.Now()
	conns := []model.Connection{
		conn("10.0.0.1", now.Add(-25*time.Hour)),
	}
	got := SimultaneousCount(conns, now)
	if got != 0 {
		t.Errorf("SimultaneousCount() = %d, want 0 (stale row discarded)", got)
	}
}

func TestSimultaneousCount_SameIPWithinWindowIsNotSimultaneous(t *testing.T) {
	now := time.Now()
	t0 := now.Add(-1 * time.Minute)
	conns := []model.Connection{
		conn("10.0.0.1", t0),
		conn("10.0.0.1", t0.Add(30*time.Second)),
	}
	got := SimultaneousCount(conns, now)
	if got != 1 {
		t.Errorf("SimultaneousCount() = %d, want 1 (single distinct IP)", got)
	}
}

func TestSimultaneousCount_AliasedSubSecondGapCollapsesToZero(t *testing.T) {
	now := time.Now()
	t0 := now.Add(-1 * time.Minute)
	conns := []model.Connection{
		conn("10.0.0.1", t0),
		conn("10.0.0.2", t0.Add(50*time.Millisecond)),
	}
	got := SimultaneousCount(conns, now)
	if got != 2 {
		t.Errorf("SimultaneousCount() = %d, want 2 (aliased gap still groups together)", got)
	}
}
