package filter

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"

	"github.com/winnow-sh/winnow"
)

// Matcher selects the candidate lines of a snapshot that match a set of
// query terms.
type Matcher interface {
	// Match returns indices into snap.Lines, best candidate first.
	Match(snap Snapshot, terms []string) []int
}

// NewMatcher returns the matcher for mode. Unknown modes fall back to fuzzy.
func NewMatcher(mode string) Matcher {
	switch mode {
	case winnow.MatchSubstring:
		return substringMatcher{}
	case winnow.MatchRegex:
		return regexMatcher{}
	case winnow.MatchApprox:
		return newApproxMatcher()
	}
	if mode != winnow.MatchFuzzy && mode != "" {
		slog.Debug("unknown matcher mode, using fuzzy", "mode", mode)
	}
	return fuzzyMatcher{}
}

// substringMatcher requires every term to appear in the line. A term with no
// uppercase letters matches case-insensitively; a term with uppercase
// matches exactly (smart case).
type substringMatcher struct{}

func (substringMatcher) Match(snap Snapshot, terms []string) []int {
	var idxs []int
	for i, line := range snap.Lines {
		if containsAll(line, terms) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

func containsAll(line string, terms []string) bool {
	lower := strings.ToLower(line)
	for _, term := range terms {
		if hasUpper(term) {
			if !strings.Contains(line, term) {
				return false
			}
		} else if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// fuzzyMatcher requires every term to match as a subsequence. Candidates
// are ordered by the summed match score across terms.
type fuzzyMatcher struct{}

func (fuzzyMatcher) Match(snap Snapshot, terms []string) []int {
	var total map[int]int
	for ti, term := range terms {
		matches := fuzzy.Find(term, snap.Lines)
		if ti == 0 {
			total = make(map[int]int, len(matches))
			for _, m := range matches {
				total[m.Index] = m.Score
			}
			continue
		}
		next := make(map[int]int, len(matches))
		for _, m := range matches {
			if prev, ok := total[m.Index]; ok {
				next[m.Index] = prev + m.Score
			}
		}
		total = next
		if len(total) == 0 {
			return nil
		}
	}

	idxs := make([]int, 0, len(total))
	for i := range total {
		idxs = append(idxs, i)
	}
	sort.Slice(idxs, func(a, b int) bool {
		if total[idxs[a]] != total[idxs[b]] {
			return total[idxs[a]] > total[idxs[b]]
		}
		return idxs[a] < idxs[b]
	})
	return idxs
}

// regexMatcher requires every term, compiled as a regular expression, to
// match the line. Terms that fail to compile are skipped.
type regexMatcher struct{}

func (regexMatcher) Match(snap Snapshot, terms []string) []int {
	res := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		re, err := regexp.Compile(term)
		if err != nil {
			continue
		}
		res = append(res, re)
	}

	var idxs []int
	for i, line := range snap.Lines {
		ok := true
		for _, re := range res {
			if !re.MatchString(line) {
				ok = false
				break
			}
		}
		if ok {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
