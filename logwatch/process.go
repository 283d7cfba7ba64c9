package logwatch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// RunContext carries the per-run collaborators every component needs: the
// output sink, the clock, tty-ness of the sink, and the debug switch. No
// component reaches for ambient process state.
type RunContext struct {
	Out    io.Writer
	Now    func() time.Time
	TTY    bool
	Debug  bool
	Logger log.Logger
}

const truncationMarker = "[TRUNCATED]\n"

const timeCheckInterval = 100 // governor checks the clock every Nth line

// processLogfile scans one section from its persisted offset, classifies
// every new line and enforces the per-file resource bounds. It returns the
// section header and the classified body lines; the body is empty when
// nothing above context level was seen. fstate is updated in place to the
// position the next run resumes from.
func processLogfile(section *Section, fstate *FileState, rc *RunContext) (string, []string, error) {
	header := fmt.Sprintf("[[[%s]]]\n", section.Path)

	patterns, err := section.CompiledPatterns()
	if err != nil {
		return header, nil, err
	}

	info, err := os.Stat(section.Path)
	if err != nil {
		return fmt.Sprintf("[[[%s:cannotopen]]]\n", section.Path), nil, cannotOpen(err, rc)
	}

	reader, err := NewLineReader(section.Path, section.Options.Encoding)
	if err != nil {
		return fmt.Sprintf("[[[%s:cannotopen]]]\n", section.Path), nil, cannotOpen(err, rc)
	}
	defer reader.Close()

	identity := fileIdentity(info)
	size := info.Size()

	prevIdentity := fstate.Inode
	fstate.Inode = identity

	offset := fstate.Offset
	fstate.Offset = &size

	// A file we have never seen before yields no historical lines unless
	// configured otherwise.
	if offset == nil && !section.Options.fromStart() && !rc.Debug {
		return header, nil, nil
	}

	// Identity change between runs means the file was rotated: what is
	// there now is all new, read it from the start.
	if prevIdentity >= 0 && identity != prevIdentity {
		offset = nil
	}

	// Offset at current end: nothing new.
	if offset != nil && *offset == size {
		return header, nil, nil
	}

	// Offset beyond current end: the file was truncated in place. Restart
	// from the beginning.
	if offset != nil && *offset > size {
		offset = nil
	}

	if err := reader.SetPosition(offset); err != nil {
		return header, nil, fmt.Errorf("seek %s: %w", section.Path, err)
	}

	worst := -1
	var out []string
	linesParsed := 0
	start := rc.Now()

	for {
		line, ok := reader.NextLine()
		if !ok {
			break
		}

		if max := section.Options.MaxLinesize; max != nil {
			if runes := []rune(line); len(runes) > *max {
				line = string(runes[:*max]) + truncationMarker
			}
		}

		linesParsed++
		if max := section.Options.MaxLines; max != nil && linesParsed > *max {
			out = append(out, fmt.Sprintf("%s Maximum number (%d) of new log messages exceeded.\n",
				section.Options.overflowLevel(), *max))
			worst = maxInt(worst, section.Options.overflowWeight())
			if err := reader.SkipRemaining(); err != nil {
				return header, nil, err
			}
			break
		}

		// Clock check only every Nth line to bound syscall overhead.
		if max := section.Options.MaxTime; max != nil && linesParsed%timeCheckInterval == 10 &&
			rc.Now().Sub(start).Seconds() > *max {
			out = append(out, fmt.Sprintf("%s Maximum parsing time (%.1f sec) of this log file exceeded.\n",
				section.Options.overflowLevel(), *max))
			worst = maxInt(worst, section.Options.overflowWeight())
			if err := reader.SkipRemaining(); err != nil {
				return header, nil, err
			}
			break
		}

		level := LevelContext
		for _, p := range patterns {
			groups := p.re.FindStringSubmatch(stripNewline(line))
			if groups == nil {
				continue
			}
			level = p.Level
			worst = maxInt(worst, levelWeight(level))
			line = consumeContinuations(line, p.continuations, reader)
			if len(p.rewrites) > 0 {
				line = rewriteLine(line, p.rewrites, groups[1:])
			}
			break // first matching pattern wins
		}

		if level == LevelInfo {
			level = LevelContext
		}
		if !shouldLogLineWithLevel(level, section.Options.noContext()) {
			continue
		}

		out = append(out, formatLine(stripNewline(line), level, rc.TTY)+"\n")
	}

	if err := reader.Err(); err != nil {
		rc.Logger.Debug().Err(err).Str("logfile", section.Path).Msg("read error while scanning")
		if rc.Debug {
			return header, nil, err
		}
	}

	newOffset, err := reader.Position()
	if err != nil {
		return header, nil, fmt.Errorf("position %s: %w", section.Path, err)
	}
	fstate.Offset = &newOffset

	// maxfilesize is informational only: warn each time the offset crosses
	// another multiple of the threshold.
	if section.Options.MaxFilesize != nil && *section.Options.MaxFilesize > 0 {
		threshold := *section.Options.MaxFilesize
		var prev int64
		if offset != nil {
			prev = *offset
		}
		wrap := newOffset / threshold
		if prev/threshold < wrap {
			out = append(out, formatLine(
				fmt.Sprintf("Maximum allowed logfile size (%d bytes) exceeded for the %dth time.", threshold, wrap),
				LevelWarning, rc.TTY)+"\n")
		}
	}

	if worst > contextWeight {
		return header, out, nil
	}
	return header, nil, nil
}

// consumeContinuations pulls follow-up lines into the logical message,
// joined by the continuation marker. A fixed-count rule consumes
// unconditionally; a regex rule consumes while matching and pushes the first
// non-matching line back for independent classification.
func consumeContinuations(line string, rules []continuationRule, reader *LineReader) string {
	for _, rule := range rules {
		if rule.re == nil {
			for i := 0; i < rule.count; i++ {
				cont, ok := reader.NextLine()
				if !ok {
					break
				}
				line = stripNewline(line) + continuationMarker + cont
			}
			continue
		}
		for {
			cont, ok := reader.NextLine()
			if !ok {
				break
			}
			if rule.re.MatchString(stripNewline(cont)) {
				line = stripNewline(line) + continuationMarker + cont
				continue
			}
			reader.PushBack(cont)
			break
		}
	}
	return line
}

func cannotOpen(err error, rc *RunContext) error {
	if rc.Debug {
		return err
	}
	rc.Logger.Debug().Err(err).Msg("cannot open logfile")
	return nil
}

func stripNewline(line string) string {
	return strings.TrimSuffix(line, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
