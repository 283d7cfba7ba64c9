package logwatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RawPattern is one classification rule as read from a rule file: a level,
// a regex, and the continuation ("A") and rewrite ("R") lines that follow it.
type RawPattern struct {
	Level         Level
	Expr          string
	Continuations []string
	Rewrites      []string
}

// continuationRule consumes follow-up lines into the logical message.
// When re is nil, exactly Count lines are consumed unconditionally;
// otherwise lines are consumed while they match.
type continuationRule struct {
	count int
	re    *regexp.Regexp
}

// Pattern is a compiled classification rule. Matching uses search (substring)
// semantics; the pattern list is ordered and the first match wins.
type Pattern struct {
	Level         Level
	re            *regexp.Regexp
	continuations []continuationRule
	rewrites      []string
}

// stripSearchAnchors removes a leading and trailing ".*" from a pattern used
// with search semantics. They are redundant there and invite catastrophic
// backtracking on long lines.
func stripSearchAnchors(expr string) string {
	stripped := strings.TrimPrefix(expr, ".*")
	stripped = strings.TrimSuffix(stripped, ".*")
	if stripped == "" {
		return expr
	}
	return stripped
}

func compileContinuation(raw string) (continuationRule, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return continuationRule{count: n}, nil
	}
	re, err := regexp.Compile(stripSearchAnchors(raw))
	if err != nil {
		return continuationRule{}, fmt.Errorf("invalid continuation pattern %q: %v", raw, err)
	}
	return continuationRule{re: re}, nil
}

// CompilePatterns compiles an ordered rule list once per section. Patterns
// without rewrites are anchor-stripped since their capture groups are never
// referenced.
func CompilePatterns(raw []RawPattern) ([]Pattern, error) {
	compiled := make([]Pattern, 0, len(raw))
	for _, rp := range raw {
		expr := rp.Expr
		if len(rp.Rewrites) == 0 {
			expr = stripSearchAnchors(expr)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %v", rp.Expr, err)
		}
		conts := make([]continuationRule, 0, len(rp.Continuations))
		for _, c := range rp.Continuations {
			cr, err := compileContinuation(c)
			if err != nil {
				return nil, err
			}
			conts = append(conts, cr)
		}
		compiled = append(compiled, Pattern{
			Level:         rp.Level,
			re:            re,
			continuations: conts,
			rewrites:      rp.Rewrites,
		})
	}
	return compiled, nil
}

// rewriteLine applies the rewrite templates in order. "\0" is the matched
// line without trailing whitespace, "\1".."\9" are capture groups; groups
// that did not participate in the match substitute as empty strings.
func rewriteLine(line string, rewrites []string, groups []string) string {
	for _, tpl := range rewrites {
		line = strings.ReplaceAll(tpl, `\0`, strings.TrimRight(line, " \t\r\n")) + "\n"
		for i, group := range groups {
			line = strings.ReplaceAll(line, `\`+strconv.Itoa(i+1), group)
		}
	}
	return line
}
