package logwatch

import "testing"

func TestStripSearchAnchors(t *testing.T) {
	cases := map[string]string{
		".*ERROR.*":     "ERROR",
		".*ERROR":       "ERROR",
		"ERROR.*":       "ERROR",
		"ERROR":         "ERROR",
		".*":            ".*", // stripping everything keeps the original
		".*.*":          ".*.*",
		"lvl=(crit|wa)": "lvl=(crit|wa)",
	}
	for expr, want := range cases {
		if got := stripSearchAnchors(expr); got != want {
			t.Errorf("stripSearchAnchors(%q) = %q, want %q", expr, got, want)
		}
	}
}

func TestCompilePatterns_AnchorStripSkippedWithRewrites(t *testing.T) {
	patterns, err := CompilePatterns([]RawPattern{
		{Level: LevelCritical, Expr: `.*code=(\d+).*`, Rewrites: []string{`got \1`}},
		{Level: LevelWarning, Expr: ".*WARN.*"},
	})
	if err != nil {
		t.Fatal(err)
	}
	// With a rewrite the capture groups must be preserved exactly as written.
	if patterns[0].re.String() != `.*code=(\d+).*` {
		t.Errorf("rewrite pattern altered: %q", patterns[0].re.String())
	}
	if patterns[1].re.String() != "WARN" {
		t.Errorf("plain pattern not stripped: %q", patterns[1].re.String())
	}
}

func TestCompilePatterns_InvalidRegex(t *testing.T) {
	if _, err := CompilePatterns([]RawPattern{{Level: LevelCritical, Expr: "("}}); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := CompilePatterns([]RawPattern{
		{Level: LevelCritical, Expr: "ERROR", Continuations: []string{"("}},
	}); err == nil {
		t.Fatal("expected continuation compile error")
	}
}

func TestCompileContinuation(t *testing.T) {
	cr, err := compileContinuation("3")
	if err != nil || cr.re != nil || cr.count != 3 {
		t.Fatalf("numeric continuation misparsed: %+v, %v", cr, err)
	}
	cr, err = compileContinuation(".*stacktrace.*")
	if err != nil || cr.re == nil {
		t.Fatalf("regex continuation misparsed: %+v, %v", cr, err)
	}
	if !cr.re.MatchString("  stacktrace line") {
		t.Fatal("continuation regex does not match")
	}
}

func TestRewriteLine(t *testing.T) {
	got := rewriteLine("ERROR code=42 in db  \n", []string{`error \1 in: \0`}, []string{"42"})
	if got != "error 42 in: ERROR code=42 in db\n" {
		t.Fatalf("rewrite mismatch: %q", got)
	}
}

func TestRewriteLine_UnmatchedGroupEmpty(t *testing.T) {
	got := rewriteLine("ERROR boom\n", []string{`detail=[\1]`}, []string{""})
	if got != "detail=[]\n" {
		t.Fatalf("unmatched group must substitute empty, got %q", got)
	}
}

func TestRewriteLine_ChainsTemplates(t *testing.T) {
	got := rewriteLine("raw\n", []string{`first \0`, `second \0`}, nil)
	if got != "second first raw\n" {
		t.Fatalf("chained rewrite mismatch: %q", got)
	}
}
