package logwatch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phuslu/log"
)

// FileState is the persisted per-logfile scan state. A nil Offset means the
// file has never been scanned.
type FileState struct {
	File   string `json:"file"`
	Offset *int64 `json:"offset"`
	Inode  int64  `json:"inode"`
}

// State persists one FileState per watched file across invocations. Records
// are one self-describing JSON object per line; the legacy pipe-delimited
// form "path|offset|inode" is still readable.
type State struct {
	filename string
	data     map[string]*FileState
	logger   log.Logger
}

func NewState(filename string, logger log.Logger) *State {
	return &State{
		filename: filename,
		data:     make(map[string]*FileState),
		logger:   logger,
	}
}

func parseStateLine(line string) (*FileState, error) {
	var fs FileState
	if err := json.Unmarshal([]byte(line), &fs); err == nil {
		if fs.File == "" {
			return nil, fmt.Errorf("state record without file: %q", line)
		}
		return &fs, nil
	}

	// Legacy form used prior to the structured records:
	// /var/log/messages|7767698|32455445
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return nil, fmt.Errorf("unparsable state record: %q", line)
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unparsable state offset: %q", line)
	}
	inode := int64(-1)
	if len(parts) >= 3 {
		inode, err = strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unparsable state inode: %q", line)
		}
	}
	return &FileState{File: parts[0], Offset: &offset, Inode: inode}, nil
}

// Read loads the state file. A missing file yields an empty state. A record
// that cannot be parsed is skipped so one corrupted line cannot discard the
// offsets of every other file.
func (s *State) Read() error {
	f, err := os.Open(s.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fs, err := parseStateLine(line)
		if err != nil {
			s.logger.Warn().Err(err).Str("state_file", s.filename).Msg("skipping corrupt state record")
			continue
		}
		s.data[fs.File] = fs
	}
	return scanner.Err()
}

// Write persists all records, creating parent directories as needed. The
// write goes through a temp file and rename so a crash cannot leave a
// half-written state file behind.
func (s *State) Write() error {
	if dir := filepath.Dir(s.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var buf strings.Builder
	for _, fs := range s.data {
		b, err := json.Marshal(fs)
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	tmp := s.filename + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filename)
}

// Get returns the state for path, creating a never-scanned entry on first
// sighting.
func (s *State) Get(path string) *FileState {
	if fs, ok := s.data[path]; ok {
		return fs
	}
	fs := &FileState{File: path, Inode: -1}
	s.data[path] = fs
	return fs
}
