package logwatch

import (
	"strings"
	"testing"
)

func TestFormatLine(t *testing.T) {
	if got := formatLine("disk full", LevelCritical, false); got != "C disk full" {
		t.Fatalf("got %q", got)
	}
	if got := formatLine("all good", LevelContext, false); got != ". all good" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatLine_TTY(t *testing.T) {
	got := formatLine("boom\x01stack", LevelCritical, true)
	if !strings.HasPrefix(got, "\033[1;31m") || !strings.HasSuffix(got, "\033[0m") {
		t.Fatalf("color codes missing: %q", got)
	}
	if !strings.Contains(got, "\nCONT:stack") {
		t.Fatalf("continuation marker not made visible: %q", got)
	}
	if strings.Contains(got, continuationMarker) {
		t.Fatalf("raw marker leaked: %q", got)
	}
}

func TestLevelWeight(t *testing.T) {
	if levelWeight(LevelCritical) <= levelWeight(LevelWarning) {
		t.Fatal("critical must outrank warning")
	}
	if levelWeight(LevelWarning) <= levelWeight(LevelOK) {
		t.Fatal("warning must outrank ok")
	}
	if levelWeight(LevelInfo) != contextWeight || levelWeight(LevelContext) != contextWeight {
		t.Fatal("info and context must not force body emission")
	}
}

func TestShouldLogLineWithLevel(t *testing.T) {
	if shouldLogLineWithLevel(LevelContext, true) {
		t.Fatal("nocontext must drop context lines")
	}
	if !shouldLogLineWithLevel(LevelCritical, true) {
		t.Fatal("nocontext must keep classified lines")
	}
	if !shouldLogLineWithLevel(LevelContext, false) {
		t.Fatal("context lines pass without nocontext")
	}
}
