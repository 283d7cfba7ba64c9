package logwatch

import (
	"fmt"
	"strings"
)

const duplicateLineMessageFmt = "[the above message was repeated %d times]"

// FilterOutput applies the output filter stages in their fixed order:
// context window, total size cap, consecutive duplicate collapsing.
func FilterOutput(lines []string, opts *Options, tty bool) []string {
	if opts.MaxContextLines != nil {
		lines = filterMaxContextLines(lines, opts.MaxContextLines.Before, opts.MaxContextLines.After)
	}
	lines = filterMaxOutputSize(lines, opts.maxOutputSize())
	if opts.skipDuplicates() {
		lines = filterConsecutiveDuplicates(lines, opts.noContext(), tty)
	}
	return lines
}

// filterMaxContextLines keeps only lines within before/after lines of an
// interesting (critical or warning) line, grep -B/-A style. Overlapping
// windows merge without duplicating lines.
func filterMaxContextLines(lines []string, before, after int) []string {
	n := len(lines)
	out := make([]string, 0, n)
	contextEnd := -1
	for idx := -before; idx < n; idx++ {
		ahead := idx + before
		if ahead < n && contextEnd < n {
			if strings.HasPrefix(lines[ahead], LevelCritical) || strings.HasPrefix(lines[ahead], LevelWarning) {
				contextEnd = ahead + after
			}
		}
		if idx >= 0 && idx <= contextEnd {
			out = append(out, lines[idx])
		}
	}
	return out
}

// filterMaxOutputSize stops right before the accumulated UTF-8 byte count
// would exceed the cap; the boundary line is dropped, never split.
func filterMaxOutputSize(lines []string, maxBytes int) []string {
	byteCount := 0
	for i, line := range lines {
		byteCount += len(line)
		if byteCount > maxBytes {
			return lines[:i]
		}
	}
	return lines
}

// filterConsecutiveDuplicates collapses runs of identical lines to the first
// occurrence plus a summary line saying how many were removed. The summary
// is a context-level line, so nocontext suppresses it.
func filterConsecutiveDuplicates(lines []string, nocontext bool, tty bool) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		out = append(out, lines[i])
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		if removed := j - i - 1; removed > 0 && shouldLogLineWithLevel(LevelContext, nocontext) {
			msg := fmt.Sprintf(duplicateLineMessageFmt, removed)
			out = append(out, formatLine(msg, LevelContext, tty)+"\n")
		}
		i = j
	}
	return out
}
