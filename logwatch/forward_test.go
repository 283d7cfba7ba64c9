package logwatch

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type mockSyslogSender struct {
	messages []string
	failures int // fail this many calls before succeeding
	calls    int
}

func (m *mockSyslogSender) Send(appName, structuredData, message string, timeout time.Duration) error {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("connection refused")
	}
	m.messages = append(m.messages, message)
	return nil
}

func newTestForwarder(t *testing.T, mock *mockSyslogSender) *Forwarder {
	t.Helper()
	db, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	fw := &Forwarder{db: db, syslog: mock, remote: "local", logger: testLogger()}
	t.Cleanup(func() { fw.Close() })
	return fw
}

func TestCollectForwardable(t *testing.T) {
	lines := []string{
		"[[[/var/log/messages]]]\n",
		"BATCH: 1-abc\n",
		"C kernel panic\n",
		". just context\n",
		"W disk almost full\n",
		"[[[/var/log/gone:missing]]]\n",
		"C must not be attributed\n",
		"[[[/var/log/auth.log]]]\n",
		"BATCH: 1-abc\n",
		"C failed login\x01from 10.0.0.1\n",
	}
	msgs := collectForwardable("1-abc", lines)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 forwardable messages, got %+v", msgs)
	}
	if msgs[0].Section != "/var/log/messages" || msgs[0].Level != "C" || msgs[0].Text != "kernel panic" {
		t.Fatalf("first message misparsed: %+v", msgs[0])
	}
	if msgs[1].Level != "W" || msgs[1].Text != "disk almost full" {
		t.Fatalf("second message misparsed: %+v", msgs[1])
	}
	if msgs[2].Section != "/var/log/auth.log" || msgs[2].Text != "failed login from 10.0.0.1" {
		t.Fatalf("continuation marker not flattened: %+v", msgs[2])
	}
	for i, m := range msgs {
		if m.Seq != i {
			t.Fatalf("sequence numbers not dense: %+v", msgs)
		}
	}
}

func TestCollectForwardable_StripsANSIColors(t *testing.T) {
	lines := []string{
		"[[[/var/log/messages]]]\n",
		"\x1b[1;31mC\x1b[0m colored error\n",
	}
	msgs := collectForwardable("1-abc", lines)
	if len(msgs) != 1 || msgs[0].Text != "colored error" {
		t.Fatalf("color escapes not stripped: %+v", msgs)
	}
}

func TestForwardBatch_SendsAndJournals(t *testing.T) {
	mock := &mockSyslogSender{}
	fw := newTestForwarder(t, mock)

	lines := []string{"[[[/var/log/messages]]]\n", "C boom\n", "W odd\n"}
	if err := fw.ForwardBatch("1-abc", lines, time.Second); err != nil {
		t.Fatal(err)
	}
	if len(mock.messages) != 2 {
		t.Fatalf("expected 2 sends, got %q", mock.messages)
	}

	var batch ForwardedBatch
	if err := fw.db.Where("batch_id = ?", "1-abc").First(&batch).Error; err != nil {
		t.Fatal(err)
	}
	if !batch.AllSent || batch.LineCount != 2 {
		t.Fatalf("batch not finalized: %+v", batch)
	}
}

func TestForwardBatch_FailedSendStaysPending(t *testing.T) {
	mock := &mockSyslogSender{failures: 1}
	fw := newTestForwarder(t, mock)

	lines := []string{"[[[/var/log/messages]]]\n", "C boom\n", "W odd\n"}
	if err := fw.ForwardBatch("1-abc", lines, time.Second); err != nil {
		t.Fatal(err)
	}
	if len(mock.messages) != 1 {
		t.Fatalf("expected 1 delivered message, got %q", mock.messages)
	}

	var batch ForwardedBatch
	if err := fw.db.Where("batch_id = ?", "1-abc").First(&batch).Error; err != nil {
		t.Fatal(err)
	}
	if batch.AllSent {
		t.Fatal("batch must not be finalized with a pending message")
	}

	// The next run delivers the leftover and finalizes the batch.
	if err := fw.ResendPending(time.Second); err != nil {
		t.Fatal(err)
	}
	if len(mock.messages) != 2 {
		t.Fatalf("pending message not resent: %q", mock.messages)
	}
	if err := fw.db.Where("batch_id = ?", "1-abc").First(&batch).Error; err != nil {
		t.Fatal(err)
	}
	if !batch.AllSent {
		t.Fatal("batch not finalized after resend")
	}
}

func TestResendPending_NothingToDo(t *testing.T) {
	mock := &mockSyslogSender{}
	fw := newTestForwarder(t, mock)
	if err := fw.ResendPending(time.Second); err != nil {
		t.Fatal(err)
	}
	if mock.calls != 0 {
		t.Fatalf("no sends expected, got %d", mock.calls)
	}
}

func TestBuildStructuredData(t *testing.T) {
	got := buildStructuredData("logwatch", []string{"remote", "level"}, map[string]string{
		"remote": "host]1",
		"level":  "C",
	})
	want := `[logwatch remote="host\]1" level="C"]`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
