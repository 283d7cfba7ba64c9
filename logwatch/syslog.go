package logwatch

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// SyslogSender delivers one RFC5424 record to the event console.
type SyslogSender interface {
	Send(appName string, structuredData string, message string, timeout time.Duration) error
}

// SyslogClient sends RFC5424 messages over TCP.
type SyslogClient struct {
	addr string
}

func NewSyslogClient(addr string) *SyslogClient {
	return &SyslogClient{addr: addr}
}

const syslogPriority = 134 // local0.info

func (c *SyslogClient) Send(appName string, structuredData string, message string, timeout time.Duration) error {
	var conn net.Conn
	var err error
	if timeout > 0 {
		conn, err = net.DialTimeout("tcp", c.addr, timeout)
	} else {
		conn, err = net.Dial("tcp", c.addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "-"
	}
	if appName == "" {
		appName = "mk-logwatch"
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)

	line := fmt.Sprintf("<%d>1 %s %s %s - - %s %s\n",
		syslogPriority, ts, sanitizeSyslogToken(host), sanitizeSyslogToken(appName),
		structuredData, strings.TrimSpace(message))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.Flush()
}

func sanitizeSyslogToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, " ", "_")
}

// buildStructuredData renders one RFC5424 structured-data element with a
// stable parameter order. Empty values are omitted.
func buildStructuredData(sdID string, keys []string, kv map[string]string) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(sdID)
	for _, k := range keys {
		v := kv[k]
		if strings.TrimSpace(v) == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=\"")
		b.WriteString(escapeSDParam(v))
		b.WriteString("\"")
	}
	b.WriteString("]")
	return b.String()
}

func escapeSDParam(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "]", "\\]")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}
