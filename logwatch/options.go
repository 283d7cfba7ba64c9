package logwatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const defaultMaxOutputSize = 500000

// ContextLimit is the maxcontextlines=before,after window.
type ContextLimit struct {
	Before int
	After  int
}

// Options holds the per-section inline options from a rule file, e.g.
// "maxlines=100". Unset options are nil so that a later block for the same
// file only overrides what it explicitly sets.
type Options struct {
	Encoding        string
	MaxFilesize     *int64
	MaxLines        *int
	MaxTime         *float64
	MaxLinesize     *int
	Regex           *regexp.Regexp
	Overflow        Level
	NoContext       *bool
	MaxContextLines *ContextLimit
	MaxOutputSize   *int
	FromStart       *bool
	SkipDuplicates  *bool
}

func (o *Options) overflowLevel() Level {
	if o.Overflow == "" {
		return LevelCritical
	}
	return o.Overflow
}

func (o *Options) overflowWeight() int {
	w := levelWeight(o.overflowLevel())
	if w < 0 {
		// "I" counts as 0 for overflow purposes: an overflow message must
		// always force the body out.
		return 0
	}
	return w
}

func (o *Options) maxOutputSize() int {
	if o.MaxOutputSize == nil {
		return defaultMaxOutputSize
	}
	return *o.MaxOutputSize
}

func (o *Options) noContext() bool {
	return o.NoContext != nil && *o.NoContext
}

func (o *Options) fromStart() bool {
	return o.FromStart != nil && *o.FromStart
}

func (o *Options) skipDuplicates() bool {
	return o.SkipDuplicates != nil && *o.SkipDuplicates
}

// Update overlays the explicitly set options of other onto o.
func (o *Options) Update(other *Options) {
	if other.Encoding != "" {
		o.Encoding = other.Encoding
	}
	if other.MaxFilesize != nil {
		o.MaxFilesize = other.MaxFilesize
	}
	if other.MaxLines != nil {
		o.MaxLines = other.MaxLines
	}
	if other.MaxTime != nil {
		o.MaxTime = other.MaxTime
	}
	if other.MaxLinesize != nil {
		o.MaxLinesize = other.MaxLinesize
	}
	if other.Regex != nil {
		o.Regex = other.Regex
	}
	if other.Overflow != "" {
		o.Overflow = other.Overflow
	}
	if other.NoContext != nil {
		o.NoContext = other.NoContext
	}
	if other.MaxContextLines != nil {
		o.MaxContextLines = other.MaxContextLines
	}
	if other.MaxOutputSize != nil {
		o.MaxOutputSize = other.MaxOutputSize
	}
	if other.FromStart != nil {
		o.FromStart = other.FromStart
	}
	if other.SkipDuplicates != nil {
		o.SkipDuplicates = other.SkipDuplicates
	}
}

var boolValues = map[string]bool{
	"true": true, "false": false,
	"1": true, "0": false,
	"yes": true, "no": false,
}

// Set parses one "key=value" option token from a logfile definition line.
func (o *Options) Set(opt string) error {
	key, value, found := strings.Cut(opt, "=")
	if !found {
		return fmt.Errorf("invalid option: %q", opt)
	}
	switch key {
	case "encoding":
		if _, err := lookupEncoding(value); err != nil {
			return err
		}
		o.Encoding = value
	case "maxlines":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid maxlines: %q", value)
		}
		o.MaxLines = &n
	case "maxlinesize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid maxlinesize: %q", value)
		}
		o.MaxLinesize = &n
	case "maxfilesize":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid maxfilesize: %q", value)
		}
		o.MaxFilesize = &n
	case "maxoutputsize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid maxoutputsize: %q", value)
		}
		o.MaxOutputSize = &n
	case "maxtime":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid maxtime: %q", value)
		}
		o.MaxTime = &f
	case "overflow":
		switch value {
		case LevelCritical, LevelWarning, LevelInfo, LevelOK:
			o.Overflow = value
		default:
			return fmt.Errorf("invalid overflow: %q (choose from C, W, I, O)", value)
		}
	case "regex", "iregex":
		expr := value
		if key == "iregex" {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		o.Regex = re
	case "nocontext", "fromstart", "skipconsecutiveduplicated":
		b, ok := boolValues[strings.ToLower(value)]
		if !ok {
			return fmt.Errorf("invalid %s: %q (choose from true, false, 1, 0, yes, no)", key, value)
		}
		switch key {
		case "nocontext":
			o.NoContext = &b
		case "fromstart":
			o.FromStart = &b
		default:
			o.SkipDuplicates = &b
		}
	case "maxcontextlines":
		before, after, found := strings.Cut(value, ",")
		if !found {
			return fmt.Errorf("invalid maxcontextlines: %q (want before,after)", value)
		}
		b, err1 := strconv.Atoi(strings.TrimSpace(before))
		a, err2 := strconv.Atoi(strings.TrimSpace(after))
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid maxcontextlines: %q (want before,after)", value)
		}
		o.MaxContextLines = &ContextLimit{Before: b, After: a}
	default:
		return fmt.Errorf("invalid option: %q", opt)
	}
	return nil
}
