package textutil

import (
	"reflect"
	"testing"
)

func TestSplitLinesMixedEndings(t *testing.T) {
	got := SplitLines("a\r\nb\nc\r\n")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitLines got %q want %q", got, want)
	}
	if SplitLines("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestNonBlankLinesTrims(t *testing.T) {
	got := NonBlankLines("  x.Y  \n\n\t\nz.W\n")
	want := []string{"x.Y", "z.W"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NonBlankLines got %q want %q", got, want)
	}
}

func TestNormalizeAndTrailing(t *testing.T) {
	if got := NormalizeLF("a\r\nb\rc"); got != "a\nb\nc" {
		t.Fatalf("NormalizeLF got %q", got)
	}
	if got := EnsureTrailingLF("x"); got != "x\n" {
		t.Fatalf("EnsureTrailingLF got %q", got)
	}
	if got := EnsureTrailingLF("x\n"); got != "x\n" {
		t.Fatalf("EnsureTrailingLF should not double, got %q", got)
	}
}

func TestLineOf(t *testing.T) {
	s := "a\nb\nc"
	if LineOf(s, 0) != 1 || LineOf(s, 2) != 2 || LineOf(s, 4) != 3 {
		t.Fatalf("LineOf mismatch")
	}
	if LineOf(s, 99) != 3 {
		t.Fatalf("LineOf should clamp past end")
	}
}
