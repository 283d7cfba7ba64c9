package logwatch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Section is one physical logfile to be scanned, built fresh each run from
// the rule blocks whose globs matched it.
type Section struct {
	Path     string // filesystem path, also the display name
	Options  Options
	Patterns []RawPattern

	compiled []Pattern
}

// CompiledPatterns compiles the section's pattern list once and reuses it.
func (s *Section) CompiledPatterns() ([]Pattern, error) {
	if s.compiled != nil {
		return s.compiled, nil
	}
	compiled, err := CompilePatterns(s.Patterns)
	if err != nil {
		return nil, err
	}
	s.compiled = compiled
	return s.compiled, nil
}

// findMatchingLogfiles expands one glob pattern to plain files, directories
// excluded. doublestar gives us ** support that plain filepath.Glob lacks.
func findMatchingLogfiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad glob pattern %q: %v", pattern, err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

// ParseSections turns rule blocks into per-file sections. The same file
// matched by several blocks gets their pattern lists concatenated and their
// options overlaid in block order. Returns the sections in stable path
// order, the globs that matched nothing, and inline-reportable
// configuration errors.
func ParseSections(blocks []RuleBlock) (sections []*Section, missing []string, configErrors []string) {
	found := make(map[string]*Section)

	for _, block := range blocks {
		var opts Options
		bad := false
		for _, token := range block.Tokens {
			if !strings.Contains(token, "=") {
				continue
			}
			if err := opts.Set(token); err != nil {
				configErrors = append(configErrors, fmt.Sprintf("INVALID CONFIGURATION: %v\n", err))
				bad = true
				break
			}
		}
		if bad {
			continue
		}

		for _, token := range block.Tokens {
			if strings.Contains(token, "=") {
				continue
			}
			matches, err := findMatchingLogfiles(token)
			if err != nil {
				configErrors = append(configErrors, fmt.Sprintf("INVALID CONFIGURATION: %v\n", err))
				continue
			}
			if opts.Regex != nil {
				filtered := matches[:0]
				for _, m := range matches {
					if opts.Regex.MatchString(m) {
						filtered = append(filtered, m)
					}
				}
				matches = filtered
			}
			if len(matches) == 0 {
				missing = append(missing, token)
				continue
			}
			for _, path := range matches {
				section, ok := found[path]
				if !ok {
					section = &Section{Path: path}
					found[path] = section
				}
				section.Patterns = append(section.Patterns, block.Patterns...)
				section.Options.Update(&opts)
			}
		}
	}

	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		sections = append(sections, found[p])
	}
	return sections, missing, configErrors
}
