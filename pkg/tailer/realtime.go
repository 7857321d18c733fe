package tailer

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/model"
)

// RealtimeTailer tracks a file offset and inode across calls, reading only
// newly appended lines on each poll, the agent-side equivalent of `tail -f`.
// It detects rotation (inode change or the file shrinking) and resets to the
// start of the new file.
type RealtimeTailer struct {
	path       string
	bufferSize int64
	nodeUUID   uuid.UUID
	logger     *slog.Logger

	mu          sync.Mutex
	position    int64
	inode       uint64
	initialized bool
}

// NewRealtimeTailer creates a tailer for path. bufferSize bounds how far back
// the first Poll call reads when the file already has content.
func NewRealtimeTailer(path string, bufferSize int64, nodeUUID uuid.UUID, logger *slog.Logger) *RealtimeTailer {
	return &RealtimeTailer{path: path, bufferSize: bufferSize, nodeUUID: nodeUUID, logger: logger}
}

// Poll returns connections parsed from any log lines appended since the last
// call. The first call seeds position at end-of-file minus bufferSize rather
// than replaying the whole file.
func (t *RealtimeTailer) Poll() ([]model.ConnectionReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		if err := t.initPosition(); err != nil {
			return nil, err
		}
		t.initialized = true
	}

	lines, err := t.readNewLines()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	return parseLines(lines, t.nodeUUID, time.Now()), nil
}

func (t *RealtimeTailer) initPosition() error {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.position, t.inode = 0, 0
			return nil
		}
		return fmt.Errorf("statting log %s: %w", t.path, err)
	}

	t.inode = inodeOf(info)

	if info.Size() == 0 {
		t.position = 0
		return nil
	}

	start := info.Size() - t.bufferSize
	if start < 0 {
		start = 0
	}
	t.position = start
	if t.logger != nil {
		t.logger.Info("tailer initialized", "path", t.path, "start_position", start, "inode", t.inode)
	}
	return nil
}

// checkRotation resets position to 0 when the file's inode changed or it
// shrank below the tracked position, returning whether a rotation occurred.
func (t *RealtimeTailer) checkRotation(info os.FileInfo) bool {
	currentInode := inodeOf(info)
	currentSize := info.Size()

	if t.inode != 0 && currentInode != t.inode {
		if t.logger != nil {
			t.logger.Info("log rotated (inode changed)", "path", t.path, "old_inode", t.inode, "new_inode", currentInode)
		}
		t.position = 0
		t.inode = currentInode
		return true
	}

	if currentSize < t.position {
		if t.logger != nil {
			t.logger.Info("log rotated (size decreased)", "path", t.path, "old_position", t.position, "new_size", currentSize)
		}
		t.position = 0
		t.inode = currentInode
		return true
	}

	if t.inode == 0 {
		t.inode = currentInode
	}
	return false
}

func (t *RealtimeTailer) readNewLines() ([]string, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.position, t.inode = 0, 0
			return nil, nil
		}
		return nil, fmt.Errorf("statting log %s: %w", t.path, err)
	}
	t.checkRotation(info)

	if t.position >= info.Size() {
		return nil, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("opening log %s: %w", t.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(t.position, 0); err != nil {
		return nil, fmt.Errorf("seeking log %s: %w", t.path, err)
	}

	lines, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading log %s: %w", t.path, err)
	}

	end, err := f.Seek(0, 2)
	if err != nil {
		return nil, fmt.Errorf("seeking end of %s: %w", t.path, err)
	}
	t.position = end

	return lines, nil
}

// inodeOf extracts the inode from a FileInfo on platforms that expose it via
// syscall.Stat_t. It returns 0 where unavailable, which disables rotation
// detection by inode and falls back to the size-shrink check.
func inodeOf(info os.FileInfo) uint64 {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return sys.Ino
}
