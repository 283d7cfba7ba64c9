package logwatch

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phuslu/log"
)

func testLogger() log.Logger {
	return log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

func testRunContext(out io.Writer) *RunContext {
	return &RunContext{
		Out:    out,
		Now:    time.Now,
		Logger: testLogger(),
	}
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func appendFile(t *testing.T, path string, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func tempLogfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	writeFile(t, path, content)
	return path
}

func newSection(path string, patterns ...RawPattern) *Section {
	return &Section{Path: path, Patterns: patterns}
}

func scan(t *testing.T, section *Section, fstate *FileState) []string {
	t.Helper()
	_, lines, err := processLogfile(section, fstate, testRunContext(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	return lines
}
