package logwatch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const readBlockSize = 8192

// boms maps a byte-order-mark prefix to the encoding it announces.
var boms = []struct {
	bom  []byte
	name string
}{
	{[]byte{0xFF, 0xFE}, "utf_16"},
	{[]byte{0xFE, 0xFF}, "utf_16_be"},
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
	case "", "utf_8", "utf8", "ascii", "us_ascii":
		return nil, nil // plain UTF-8, no transform needed
	case "utf_16", "utf_16_le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "utf_16_be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "latin_1", "latin1", "iso_8859_1", "iso8859_1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows_1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unknown encoding: %q", name)
	}
}

// LineReader streams complete decoded lines from a log file starting at a
// byte offset. Bad byte sequences decode to the Unicode replacement
// character, never to an error. One consumed line can be pushed back for
// continuation-pattern lookahead.
type LineReader struct {
	f          *os.File
	enc        encoding.Encoding // nil means plain UTF-8
	newline    []byte            // "\n" in the file's encoding
	lines      []string          // decoded complete lines, trailing "\n" kept
	buf        []byte            // raw bytes of the unfinished trailing line
	reachedEnd bool
	err        error
}

// NewLineReader opens path and detects its encoding. An empty encodingName
// enables BOM sniffing with a UTF-8 fallback.
func NewLineReader(path string, encodingName string) (*LineReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &LineReader{f: f}

	if encodingName != "" {
		enc, err := lookupEncoding(encodingName)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.enc = enc
	} else if err := r.detectEncoding(); err != nil {
		f.Close()
		return nil, err
	}
	r.newline = r.encode("\n")
	return r, nil
}

func (r *LineReader) detectEncoding() error {
	head := make([]byte, 2)
	n, err := io.ReadFull(r.f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	r.buf = head[:n]
	for _, candidate := range boms {
		if bytes.HasPrefix(r.buf, candidate.bom) {
			r.buf = r.buf[len(candidate.bom):]
			enc, _ := lookupEncoding(candidate.name)
			r.enc = enc
			return nil
		}
	}
	// No BOM: UTF-8. The replacement-rune decode policy keeps this safe for
	// legacy single-byte content as well.
	return nil
}

func (r *LineReader) Close() error {
	return r.f.Close()
}

// Err reports the first read error encountered after a successful open.
func (r *LineReader) Err() error {
	return r.err
}

func (r *LineReader) decode(b []byte) string {
	if r.enc == nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	s, _ := r.enc.NewDecoder().String(string(b))
	return s
}

func (r *LineReader) encode(s string) []byte {
	if r.enc == nil {
		return []byte(s)
	}
	b, err := r.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}

// fill reads blocks until the buffer holds at least one newline or the file
// is exhausted, then moves complete decoded lines into the line queue.
func (r *LineReader) fill() {
	for !bytes.Contains(r.buf, r.newline) {
		chunk := make([]byte, readBlockSize)
		n, err := r.f.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF && r.err == nil {
				r.err = err
			}
			break
		}
		if n == 0 {
			break
		}
	}

	decoded := r.decode(r.buf)
	parts := strings.Split(decoded, "\n")
	r.buf = r.encode(parts[len(parts)-1]) // unfinished line stays buffered
	for _, line := range parts[:len(parts)-1] {
		r.lines = append(r.lines, line+"\n")
	}
}

// NextLine returns the next complete line including its trailing newline.
// ok is false at end of stream.
func (r *LineReader) NextLine() (line string, ok bool) {
	if r.reachedEnd {
		return "", false
	}
	if len(r.lines) == 0 {
		r.fill()
	}
	if len(r.lines) > 0 {
		line = r.lines[0]
		r.lines = r.lines[1:]
		return line, true
	}
	r.reachedEnd = true
	return "", false
}

// PushBack returns one line to the front of the queue. Used when a
// continuation pattern did not match its lookahead line.
func (r *LineReader) PushBack(line string) {
	r.lines = append([]string{line}, r.lines...)
	r.reachedEnd = false
}

// SetPosition seeks to offset. A nil offset means a brand-new file: the
// reader stays at the start and the caller decides whether history is
// suppressed.
func (r *LineReader) SetPosition(offset *int64) error {
	if offset == nil {
		return nil
	}
	r.buf = nil
	r.lines = nil
	_, err := r.f.Seek(*offset, io.SeekStart)
	return err
}

// Position returns the byte offset to resume from on the next run. Buffered
// but unconsumed data is subtracted so no bytes are counted twice.
func (r *LineReader) Position() (int64, error) {
	pos, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	unused := int64(len(r.buf))
	for _, line := range r.lines {
		unused += int64(len(r.encode(line)))
	}
	return pos - unused, nil
}

// SkipRemaining discards everything up to end-of-file so the next run
// resumes from the current end rather than reprocessing the skipped tail.
func (r *LineReader) SkipRemaining() error {
	_, err := r.f.Seek(0, io.SeekEnd)
	r.buf = nil
	r.lines = nil
	return err
}
