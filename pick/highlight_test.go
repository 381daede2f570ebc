package main

import (
	"testing"

	"github.com/winnow-sh/winnow"
)

func maskedIndexes(mask []bool) []int {
	var out []int
	for i, hit := range mask {
		if hit {
			out = append(out, i)
		}
	}
	return out
}

func TestMatchMaskSubstring(t *testing.T) {
	mask := matchMask("beta", []string{"et"}, winnow.MatchSubstring)
	got := maskedIndexes(mask)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("unexpected mask %v", got)
	}
}

func TestMatchMaskSubstringAllOccurrences(t *testing.T) {
	mask := matchMask("aXaXa", []string{"a"}, winnow.MatchSubstring)
	got := maskedIndexes(mask)
	if len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Errorf("expected every occurrence marked, got %v", got)
	}
}

func TestMatchMaskSubstringSmartCase(t *testing.T) {
	// lowercase term matches case-insensitively
	if got := maskedIndexes(matchMask("Beta", []string{"b"}, winnow.MatchSubstring)); len(got) != 1 || got[0] != 0 {
		t.Errorf("lowercase term must match insensitively, got %v", got)
	}
	// a term with an uppercase rune matches exactly
	if mask := matchMask("beta", []string{"B"}, winnow.MatchSubstring); mask != nil {
		t.Errorf("uppercase term must not match lowercase text, got %v", maskedIndexes(mask))
	}
}

func TestMatchMaskFuzzy(t *testing.T) {
	mask := matchMask("main.go", []string{"mn"}, winnow.MatchFuzzy)
	got := maskedIndexes(mask)
	if len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("expected the subsequence positions, got %v", got)
	}
}

func TestMatchMaskRegex(t *testing.T) {
	mask := matchMask("main.go", []string{`\.go$`}, winnow.MatchRegex)
	got := maskedIndexes(mask)
	if len(got) != 3 || got[0] != 4 || got[2] != 6 {
		t.Errorf("unexpected mask %v", got)
	}
}

func TestMatchMaskRegexSkipsInvalid(t *testing.T) {
	if mask := matchMask("main.go", []string{"("}, winnow.MatchRegex); mask != nil {
		t.Errorf("invalid patterns must be skipped, got %v", maskedIndexes(mask))
	}
}

func TestMatchMaskApprox(t *testing.T) {
	if mask := matchMask("kubernetes.yaml", []string{"kuber"}, winnow.MatchApprox); mask != nil {
		t.Error("approx matches carry no positions")
	}
}

func TestMatchMaskNoTerms(t *testing.T) {
	if mask := matchMask("anything", nil, winnow.MatchFuzzy); mask != nil {
		t.Error("no terms, no mask")
	}
}

func TestMatchMaskUnknownModeFallsBackToFuzzy(t *testing.T) {
	mask := matchMask("abc", []string{"ac"}, "psychic")
	got := maskedIndexes(mask)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("unknown mode must highlight like fuzzy, got %v", got)
	}
}

func TestHighlightLineWithoutMatchIsIdentity(t *testing.T) {
	if got := highlightLine("abc", []string{"z"}, winnow.MatchFuzzy); got != "abc" {
		t.Errorf("unexpected rendering %q", got)
	}
}

func TestHighlightLineKeepsText(t *testing.T) {
	got := highlightLine("cmd/main.go", []string{"main"}, winnow.MatchSubstring)
	// styling may add escape codes, never remove text
	plain := []byte(got)
	want := "cmd/main.go"
	j := 0
	for i := 0; i < len(plain) && j < len(want); i++ {
		if plain[i] == want[j] {
			j++
		}
	}
	if j != len(want) {
		t.Errorf("rendered line lost characters: %q", got)
	}
}
