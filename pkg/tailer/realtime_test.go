package tailer

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("appending log: %v", err)
	}
}

func TestRealtimeTailer_ReadsOnlyAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	node := uuid.New()

	writeLog(t, path, "2026/01/28 11:00:00 from 10.0.0.1:1 accepted tcp:x:443 email: 1\n")

	tl := NewRealtimeTailer(path, 0, node, testLogger())

	// First poll seeds the offset at end-of-file (bufferSize 0): no replay.
	got, err := tl.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("first poll = %d reports, want 0 (offset seeded at tail)", len(got))
	}

	appendLog(t, path, "2026/01/28 11:01:00 from 10.0.0.2:2 accepted tcp:x:443 email: 2\n")

	got, err = tl.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("second poll = %d reports, want 1", len(got))
	}
	if got[0].IPAddress != "10.0.0.2" {
		t.Errorf("ip = %q, want 10.0.0.2", got[0].IPAddress)
	}
}

// Rotation: the file is replaced with a shorter one on a new inode. The next
// poll must reset to offset 0 and emit only lines present in the new file.
func TestRealtimeTailer_DetectsRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	node := uuid.New()

	writeLog(t, path, "2026/01/28 11:00:00 from 10.0.0.1:1 accepted tcp:x:443 email: 1\n")

	tl := NewRealtimeTailer(path, 0, node, testLogger())
	if _, err := tl.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// Replace the file: rename away, write fresh content at the same path.
	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatalf("rotating log: %v", err)
	}
	writeLog(t, path, "2026/01/28 11:02:00 from 10.0.0.9:9 accepted tcp:x:443 email: 9\n")

	got, err := tl.Poll()
	if err != nil {
		t.Fatalf("Poll after rotation: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("poll after rotation = %d reports, want 1", len(got))
	}
	if got[0].IPAddress != "10.0.0.9" {
		t.Errorf("ip = %q, want 10.0.0.9 (only the new file's lines)", got[0].IPAddress)
	}
	if got[0].UserEmail != "user_9" {
		t.Errorf("user = %q, want user_9", got[0].UserEmail)
	}
}

func TestRealtimeTailer_MissingFileYieldsEmptyBatch(t *testing.T) {
	dir := t.TempDir()
	tl := NewRealtimeTailer(filepath.Join(dir, "absent.log"), 0, uuid.New(), testLogger())

	got, err := tl.Poll()
	if err != nil {
		t.Fatalf("Poll on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d reports from a missing file, want 0", len(got))
	}
}
