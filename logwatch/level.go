package logwatch

import "strings"

// Level is the one-character severity classification of a log line.
// "C" critical, "W" warning, "O" ok/notice, "I" info, "." context.
type Level = string

const (
	LevelCritical Level = "C"
	LevelWarning  Level = "W"
	LevelOK       Level = "O"
	LevelInfo     Level = "I"
	LevelContext  Level = "."
)

// levelWeight orders levels for worst-level tracking. Anything above
// contextWeight forces the section body to be emitted.
func levelWeight(level Level) int {
	switch level {
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	case LevelOK:
		return 0
	default:
		return -1
	}
}

const contextWeight = -1

var ttyColors = map[Level]string{
	LevelCritical: "\033[1;31m", // red
	LevelWarning:  "\033[1;33m", // yellow
	LevelOK:       "\033[1;32m", // green
	LevelInfo:     "\033[1;34m", // blue
	LevelContext:  "",
}

const ttyColorReset = "\033[0m"

// continuationMarker joins continuation lines into one logical message.
const continuationMarker = "\x01"

// formatLine renders one classified line as "<LEVEL> <text>". On a tty the
// line is colored and continuation markers become visible line breaks.
func formatLine(text string, level Level, tty bool) string {
	formatted := level + " " + text
	if tty {
		formatted = ttyColors[level] + strings.ReplaceAll(formatted, continuationMarker, "\nCONT:") + ttyColorReset
	}
	return formatted
}

func shouldLogLineWithLevel(level Level, nocontext bool) bool {
	return !(nocontext && level == LevelContext)
}
