package store

import (
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
)

// StaleIDs returns the IDs of open connections whose IP no longer appears in
// reportedIPs, the IP-matching part of CloseConnectionsByIPs. It does not
// apply that query's minimum-age cutoff or row limit. It is pure so it can
// be unit tested without a database.
func StaleIDs(open []model.Connection, reportedIPs []string) []int64 {
	reported := make(map[string]struct{}, len(reportedIPs))
	for _, ip := range reportedIPs {
		reported[ip] = struct{}{}
	}

	var stale []int64
	for _, c := range open {
		if !c.IsOpen() {
			continue
		}
		if _, ok := reported[c.IPAddress]; !ok {
			stale = append(stale, c.ID)
		}
	}
	return stale
}

// ActiveWindow reports whether t falls within maxAge of now, the predicate
// behind the active-connections query.
func ActiveWindow(t, now time.Time, maxAge time.Duration) bool {
	return t.After(now.Add(-maxAge))
}
