package logwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ConfigErrorPrefix marks configuration failures in the output stream. The
// server-side check plugin detects it verbatim.
const ConfigErrorPrefix = "CANNOT READ CONFIG FILE: "

const defaultRetentionPeriod = 60 // seconds

// GlobalOptions come from an optional "GLOBAL OPTIONS" block.
type GlobalOptions struct {
	RetentionPeriod int // batch retention, seconds
}

// RuleBlock is one logfile definition: the glob/option tokens of its header
// line plus the indented pattern lines that follow.
type RuleBlock struct {
	Tokens   []string
	Patterns []RawPattern
}

// RuleFilePaths returns the rule files to read: an explicit override, or
// logwatch.cfg plus every logwatch.d/*.cfg under confDir.
func RuleFilePaths(confDir string, override string) []string {
	if override != "" {
		return []string{override}
	}
	paths := []string{filepath.Join(confDir, "logwatch.cfg")}
	extra, _ := filepath.Glob(filepath.Join(confDir, "logwatch.d", "*.cfg"))
	sort.Strings(extra)
	return append(paths, extra...)
}

// ReadRuleLines reads the raw lines of every rule file. Unreadable files are
// skipped; files that are not valid UTF-8 are reported through report and
// skipped.
func ReadRuleLines(paths []string, report func(string)) []string {
	var lines []string
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !utf8.Valid(b) {
			report(fmt.Sprintf("%sfile %q is not UTF-8 encoded\n", ConfigErrorPrefix, path))
			continue
		}
		for _, line := range strings.Split(string(b), "\n") {
			lines = append(lines, strings.TrimRight(line, " \t\r"))
		}
	}
	return lines
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "#")
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ")
}

// cutLevel splits an indented pattern line into its level token and the
// pattern text. Whitespace between the two is dropped, internal whitespace
// of the pattern is preserved.
func cutLevel(line string) (string, string) {
	trimmed := strings.TrimLeft(line, " \t")
	idx := strings.IndexAny(trimmed, " \t")
	if idx < 0 {
		return trimmed, ""
	}
	return trimmed[:idx], strings.TrimLeft(trimmed[idx:], " \t")
}

// splitTokens splits a logfile definition line into glob and option tokens,
// honoring single and double quotes around paths with spaces.
func splitTokens(line string) []string {
	var tokens []string
	var cur strings.Builder
	var quote byte
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

func consumeGlobalOptions(lines []string, opts *GlobalOptions) ([]string, error) {
	lines = lines[1:]
	for len(lines) > 0 && isIndented(lines[0]) {
		attr, value := cutLevel(lines[0])
		lines = lines[1:]
		switch attr {
		case "retention_period":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return lines, fmt.Errorf("invalid retention_period: %q", value)
			}
			opts.RetentionPeriod = n
		default:
			return lines, fmt.Errorf("invalid global option: %q", attr)
		}
	}
	return lines, nil
}

func consumeLogfileDefinition(lines []string) ([]string, RuleBlock, error) {
	block := RuleBlock{Tokens: splitTokens(lines[0])}
	lines = lines[1:]

	for len(lines) > 0 && isIndented(lines[0]) {
		line := lines[0]
		lines = lines[1:]
		level, rest := cutLevel(line)

		switch level {
		case "A":
			if len(block.Patterns) == 0 {
				continue // continuation line before any classification line
			}
			last := &block.Patterns[len(block.Patterns)-1]
			last.Continuations = append(last.Continuations, rest)
		case "R":
			if len(block.Patterns) == 0 {
				continue
			}
			last := &block.Patterns[len(block.Patterns)-1]
			last.Rewrites = append(last.Rewrites, rest)
		case LevelCritical, LevelWarning, LevelInfo, LevelOK:
			block.Patterns = append(block.Patterns, RawPattern{Level: level, Expr: rest})
		default:
			return lines, block, fmt.Errorf("invalid level in pattern line %q", line)
		}
	}
	return lines, block, nil
}

// ParseRules parses the content of all rule files into global options and
// logfile definition blocks. Cluster mapping blocks are accepted and
// skipped.
func ParseRules(rawLines []string) (GlobalOptions, []RuleBlock, error) {
	opts := GlobalOptions{RetentionPeriod: defaultRetentionPeriod}

	lines := make([]string, 0, len(rawLines))
	for _, l := range rawLines {
		if isComment(l) || strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}

	var blocks []RuleBlock
	for len(lines) > 0 {
		first := lines[0]
		if isIndented(first) {
			return opts, blocks, fmt.Errorf("missing block definition for line %q", first)
		}

		switch {
		case strings.HasPrefix(first, "GLOBAL OPTIONS"):
			var err error
			lines, err = consumeGlobalOptions(lines, &opts)
			if err != nil {
				return opts, blocks, err
			}
		case strings.HasPrefix(first, "CLUSTER "):
			lines = lines[1:]
			for len(lines) > 0 && isIndented(lines[0]) {
				lines = lines[1:]
			}
		default:
			var block RuleBlock
			var err error
			lines, block, err = consumeLogfileDefinition(lines)
			if err != nil {
				return opts, blocks, err
			}
			blocks = append(blocks, block)
		}
	}
	return opts, blocks, nil
}
