package main

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/winnow-sh/winnow"
)

// highlightLine styles the portions of line the given terms matched.
func highlightLine(line string, terms []string, mode string) string {
	mask := matchMask(line, terms, mode)
	if mask == nil {
		return line
	}

	var b strings.Builder
	for i := 0; i < len(line); {
		j := i
		for j < len(line) && mask[j] == mask[i] {
			j++
		}
		if mask[i] {
			b.WriteString(matchStyle.Render(line[i:j]))
		} else {
			b.WriteString(line[i:j])
		}
		i = j
	}
	return b.String()
}

// matchMask marks the bytes of line that terms matched, mirroring the
// worker's matcher semantics. A nil mask means nothing to highlight.
func matchMask(line string, terms []string, mode string) []bool {
	if len(terms) == 0 || line == "" {
		return nil
	}

	var mask []bool
	mark := func(from, to int) {
		if mask == nil {
			mask = make([]bool, len(line))
		}
		for j := from; j < to && j < len(line); j++ {
			mask[j] = true
		}
	}

	switch mode {
	case winnow.MatchSubstring:
		for _, term := range terms {
			if term == "" {
				continue
			}
			// lowercase terms match case-insensitively
			hay, needle := line, term
			if !hasUpper(term) {
				hay, needle = strings.ToLower(line), strings.ToLower(term)
			}
			for from := 0; ; {
				i := strings.Index(hay[from:], needle)
				if i < 0 {
					break
				}
				start := from + i
				mark(start, start+len(needle))
				from = start + len(needle)
			}
		}

	case winnow.MatchRegex:
		for _, term := range terms {
			re, err := regexp.Compile(term)
			if err != nil {
				continue
			}
			for _, loc := range re.FindAllStringIndex(line, -1) {
				mark(loc[0], loc[1])
			}
		}

	case winnow.MatchApprox:
		// nearest-neighbor matches carry no positions
		return nil

	default:
		// fuzzy, and anything unknown falls back to fuzzy like the worker
		for _, term := range terms {
			matches := fuzzy.Find(term, []string{line})
			if len(matches) == 0 {
				continue
			}
			for _, idx := range matches[0].MatchedIndexes {
				if idx < 0 || idx >= len(line) {
					continue
				}
				_, size := utf8.DecodeRuneInString(line[idx:])
				mark(idx, idx+size)
			}
		}
	}

	return mask
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
