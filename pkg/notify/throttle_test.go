package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestThrottle_SuppressesWithinCooldown(t *testing.T) {
	th := newThrottle()
	user := uuid.New()
	t0 := time.Now()

	if !th.allow(user, t0, false) {
		t.Fatal("first notification should be allowed")
	}
	if th.allow(user, t0.Add(5*time.Minute), false) {
		t.Fatal("notification within 15 minutes should be throttled")
	}
	if !th.allow(user, t0.Add(16*time.Minute), false) {
		t.Fatal("notification after cooldown should be allowed")
	}
}

func TestThrottle_ForceBypassesCooldown(t *testing.T) {
	th := newThrottle()
	user := uuid.New()
	t0 := time.Now()

	th.allow(user, t0, false)
	if !th.allow(user, t0.Add(time.Minute), true) {
		t.Fatal("force=true should bypass the cooldown")
	}
}

func TestThrottle_IndependentPerUser(t *testing.T) {
	th := newThrottle()
	a, b := uuid.New(), uuid.New()
	t0 := time.Now()

	th.allow(a, t0, false)
	if !th.allow(b, t0, false) {
		t.Fatal("a different user's cooldown must not affect another user")
	}
}

func TestThrottle_EvictStale(t *testing.T) {
	th := newThrottle()
	user := uuid.New()
	t0 := time.Now()

	th.allow(user, t0, false)
	th.evictStale(t0.Add(30 * time.Minute))
	if _, ok := th.lastSent.Load(user); !ok {
		t.Fatal("entry younger than evictionAge must survive the sweep")
	}

	th.evictStale(t0.Add(2 * time.Hour))
	if _, ok := th.lastSent.Load(user); ok {
		t.Fatal("entry older than evictionAge should have been evicted")
	}
}
