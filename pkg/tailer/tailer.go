// Package tailer reads a node's Xray access log and extracts accepted
// connections. It supports a one-shot snapshot read of the log tail and
// an incremental real-time mode that tracks file offset and inode across
// rotations.
package tailer

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/model"
)

// logPattern matches an Xray access.log "accepted" line:
//
//	2026/01/28 11:23:18.306521 from 188.170.87.33:20129 accepted tcp:accounts.google.com:443 [Sweden1 >> DIRECT] email: 154
var logPattern = regexp.MustCompile(
	`(\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2}(?:\.\d+)?)\s+from\s+(\d+\.\d+\.\d+\.\d+):(\d+)\s+accepted.*?email:\s*(\S+)`,
)

const timestampLayout = "2006/01/02 15:04:05.999999"

// parseTimestamp parses an Xray log timestamp, preserving the fractional
// seconds: two events within the same second must not collapse to one
// simultaneity group. It falls back to now on malformed input rather than
// dropping a connection over an unparsable clock.
func parseTimestamp(s string, now time.Time) time.Time {
	t, err := time.Parse(timestampLayout, strings.TrimSpace(s))
	if err != nil {
		return now
	}
	return t
}

// connKey groups log lines by the (user, ip) pair they describe so only the
// latest-timestamped line for each pair survives a read.
type connKey struct {
	userIdentifier string
	ip             string
}

// parseLines scans raw log lines for "accepted" entries and collapses
// duplicates within the batch to the most recent connection per (user, ip).
func parseLines(lines []string, nodeUUID uuid.UUID, now time.Time) []model.ConnectionReport {
	latest := make(map[connKey]model.ConnectionReport)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(strings.ToLower(line), "accepted") {
			continue
		}
		m := logPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		ip := m[2]
		userIdentifier := "user_" + m[4]
		key := connKey{userIdentifier: userIdentifier, ip: ip}
		connectedAt := parseTimestamp(m[1], now)

		if existing, ok := latest[key]; !ok || connectedAt.After(existing.ConnectedAt) {
			latest[key] = model.ConnectionReport{
				UserEmail:   userIdentifier,
				IPAddress:   ip,
				NodeUUID:    nodeUUID,
				ConnectedAt: connectedAt,
			}
		}
	}

	out := make([]model.ConnectionReport, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	return out
}

// Snapshot reads the last bufferSize bytes of the log at path and returns
// every distinct (user, ip) connection found, keeping the latest timestamp
// per pair. It is the one-shot mode used when a realtime tail isn't
// warranted.
func Snapshot(path string, bufferSize int64, nodeUUID uuid.UUID) ([]model.ConnectionReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening log %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("statting log %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	start := info.Size() - bufferSize
	if start < 0 {
		start = 0
	}
	if _, err := f.Seek(start, 0); err != nil {
		return nil, fmt.Errorf("seeking log %s: %w", path, err)
	}

	lines, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading log %s: %w", path, err)
	}

	return parseLines(lines, nodeUUID, time.Now()), nil
}

func readLines(r *os.File) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
