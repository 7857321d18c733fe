package monitor

import (
	"sort"
	"time"

	"github.com/sentrynode/sentrynode/internal/model"
)

const (
	simultaneityWindow = 2 * time.Minute
	reconnectThreshold = 5 * time.Minute
	maxConnectionAge   = 24 * time.Hour
	aliasingGap        = 100 * time.Millisecond
)

// SimultaneousCount returns the maximum number of distinct IPs found in any
// simultaneity group across the given connections. It
// discards rows older than 24h and is pure so it can be unit tested without
// a database.
func SimultaneousCount(conns []model.Connection, now time.Time) int {
	type timedIP struct {
		t  time.Time
		ip string
	}

	var valid []timedIP
	for _, c := range conns {
		if now.Sub(c.ConnectedAt) > maxConnectionAge {
			continue
		}
		valid = append(valid, timedIP{t: c.ConnectedAt, ip: c.IPAddress})
	}

	switch len(valid) {
	case 0:
		return 0
	case 1:
		return 1
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].t.Before(valid[j].t) })

	maxGroup := 0
	groupStart := 0 // index of the earliest member of the current group

	// considerGroup updates maxGroup only for groups of 2+ members; a
	// singleton group carries no simultaneity evidence.
	considerGroup := func(start, end int) {
		if end-start < 2 {
			return
		}
		ips := make(map[string]struct{})
		for i := start; i < end; i++ {
			ips[valid[i].ip] = struct{}{}
		}
		if len(ips) > maxGroup {
			maxGroup = len(ips)
		}
	}

	for i := 1; i < len(valid); i++ {
		gap := valid[i].t.Sub(valid[i-1].t)
		if gap < aliasingGap {
			gap = 0
		}
		fromEarliest := valid[i].t.Sub(valid[groupStart].t)

		if gap >= reconnectThreshold || fromEarliest > simultaneityWindow {
			considerGroup(groupStart, i)
			groupStart = i
		}
	}
	considerGroup(groupStart, len(valid))

	if maxGroup > 1 {
		return maxGroup
	}

	// No group reached 2+ distinct IPs: every connection is either solitary
	// or reconnecting from the same IP, so there is no simultaneity evidence
	// regardless of how many distinct IPs appear across the whole window.
	return 1
}
