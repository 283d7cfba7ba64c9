package logwatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const batchFilePrefix = "logwatch-batch-file-"

// sectionBanner announces the agent section on the output stream.
const sectionBanner = "<<<logwatch>>>\n"

// NewBatchID builds a batch id from the run's start time plus a random
// component, collision-resistant across concurrent invocations.
func NewBatchID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString())
}

// BatchStore keeps one batch file per run in a per-remote directory so
// unacknowledged output can be resent on later runs.
type BatchStore struct {
	dir string
}

// NewBatchStore returns the store for one source host. The remote name is
// made path-safe (IPv6 colons become underscores).
func NewBatchStore(varDir, remote string) *BatchStore {
	return &BatchStore{
		dir: filepath.Join(varDir, "logwatch-batches", strings.ReplaceAll(remote, ":", "_")),
	}
}

func (b *BatchStore) batchPath(id string) string {
	return filepath.Join(b.dir, batchFilePrefix+id)
}

func (b *BatchStore) outdated(path string, retention time.Duration, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return now.Sub(info.ModTime()) > retention
}

// Emit writes the current batch to the store, then writes the section
// banner, the current batch, and every still-valid previous batch to out.
// Expired batches are deleted without being resent. resent reports how many
// previous batches were re-emitted.
func (b *BatchStore) Emit(out io.Writer, lines []string, batchID string, retention time.Duration, now time.Time) (resent int, err error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, err
	}
	previous := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), batchFilePrefix) {
			previous = append(previous, filepath.Join(b.dir, e.Name()))
		}
	}
	sort.Strings(previous)

	if err := os.WriteFile(b.batchPath(batchID), []byte(strings.Join(lines, "")), 0o644); err != nil {
		return 0, err
	}

	if _, err := io.WriteString(out, sectionBanner); err != nil {
		return 0, err
	}
	for _, line := range lines {
		if _, err := io.WriteString(out, line); err != nil {
			return 0, err
		}
	}

	for _, path := range previous {
		if b.outdated(path, retention, now) {
			_ = os.Remove(path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			continue // best effort: a vanished batch is simply not resent
		}
		if _, err := out.Write(content); err != nil {
			return resent, err
		}
		resent++
	}
	return resent, nil
}

// Flush deletes every retained batch immediately, the just-written one
// included.
func (b *BatchStore) Flush() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), batchFilePrefix) {
			if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
