package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// violationCooldown suppresses repeat violation notifications for the same
// user unless the caller passes force=true.
const violationCooldown = 15 * time.Minute

// evictionAge is how stale a throttle entry must be before the background
// sweep drops it.
const evictionAge = 1 * time.Hour

// throttle is the process-local violation-notification cooldown map. When
// the collector runs as more than one replica the cooldown holds per
// replica, which is acceptable. It is a lock-free concurrent map since
// collector requests score users concurrently.
type throttle struct {
	lastSent *xsync.Map[uuid.UUID, time.Time]
}

func newThrottle() *throttle {
	return &throttle{lastSent: xsync.NewMap[uuid.UUID, time.Time]()}
}

// allow reports whether a violation notification for userUUID may be sent
// at now, and if so records now as the last-sent time. force bypasses the
// cooldown unconditionally.
func (t *throttle) allow(userUUID uuid.UUID, now time.Time, force bool) bool {
	if force {
		t.lastSent.Store(userUUID, now)
		return true
	}

	allowed := false
	t.lastSent.Compute(userUUID, func(last time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
		if loaded && now.Sub(last) < violationCooldown {
			allowed = false
			return last, xsync.CancelOp
		}
		allowed = true
		return now, xsync.UpdateOp
	})
	return allowed
}

// evictStale removes entries older than evictionAge relative to now.
func (t *throttle) evictStale(now time.Time) {
	t.lastSent.Range(func(userUUID uuid.UUID, last time.Time) bool {
		if now.Sub(last) > evictionAge {
			t.lastSent.Compute(userUUID, func(current time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
				if !loaded || now.Sub(current) <= evictionAge {
					return current, xsync.CancelOp
				}
				return current, xsync.DeleteOp
			})
		}
		return true
	})
}
