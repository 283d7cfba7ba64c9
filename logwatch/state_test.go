package logwatch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestState_RoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logwatch.state.local")

	st := NewState(file, testLogger())
	fs := st.Get("/var/log/messages")
	offset := int64(7767698)
	fs.Offset = &offset
	fs.Inode = 32455445
	st.Get("/var/log/untouched")
	if err := st.Write(); err != nil {
		t.Fatal(err)
	}

	loaded := NewState(file, testLogger())
	if err := loaded.Read(); err != nil {
		t.Fatal(err)
	}
	got := loaded.Get("/var/log/messages")
	if got.Offset == nil || *got.Offset != offset || got.Inode != 32455445 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if other := loaded.Get("/var/log/untouched"); other.Offset != nil {
		t.Fatalf("never-scanned entry should keep nil offset, got %+v", other)
	}
}

func TestState_ReadMissingFile(t *testing.T) {
	st := NewState(filepath.Join(t.TempDir(), "absent"), testLogger())
	if err := st.Read(); err != nil {
		t.Fatalf("missing state file must not be an error: %v", err)
	}
	if fs := st.Get("/var/log/syslog"); fs.Offset != nil || fs.Inode != -1 {
		t.Fatalf("fresh entry expected, got %+v", fs)
	}
}

func TestState_LegacyPipeRecords(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state")
	content := "/var/log/messages|7767698|32455445\n/var/log/kern.log|120\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewState(file, testLogger())
	if err := st.Read(); err != nil {
		t.Fatal(err)
	}
	fs := st.Get("/var/log/messages")
	if fs.Offset == nil || *fs.Offset != 7767698 || fs.Inode != 32455445 {
		t.Fatalf("legacy record misparsed: %+v", fs)
	}
	fs = st.Get("/var/log/kern.log")
	if fs.Offset == nil || *fs.Offset != 120 || fs.Inode != -1 {
		t.Fatalf("legacy record without inode misparsed: %+v", fs)
	}
}

func TestState_CorruptRecordSkipped(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state")
	content := "garbage without structure\n" +
		`{"file":"/var/log/messages","offset":10,"inode":5}` + "\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewState(file, testLogger())
	if err := st.Read(); err != nil {
		t.Fatalf("corrupt record must not abort the read: %v", err)
	}
	fs := st.Get("/var/log/messages")
	if fs.Offset == nil || *fs.Offset != 10 || fs.Inode != 5 {
		t.Fatalf("valid record after corrupt one lost: %+v", fs)
	}
}

func TestParseStateLine_Errors(t *testing.T) {
	for _, line := range []string{
		"no separators at all",
		"/var/log/messages|notanumber",
		"/var/log/messages|10|notanumber",
		`{"offset":10,"inode":5}`,
	} {
		if _, err := parseStateLine(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestState_WriteCreatesParentDirs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "deeper", "state")
	st := NewState(file, testLogger())
	st.Get("/var/log/messages")
	if err := st.Write(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("state file not written: %v", err)
	}
}
