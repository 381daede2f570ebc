// Package filter implements the worker side of winnow: it runs the backing
// source command, holds the resulting candidate snapshot, and answers filter
// queries with pluggable matchers.
package filter

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/winnow-sh/winnow"
)

// Transform splits pattern text into query terms. Quoting is honored the way
// a shell would (`"foo bar" baz` is two terms); text that does not parse as
// shell words, such as an unterminated quote mid-typing, falls back to plain
// whitespace splitting.
func Transform(pattern string) []string {
	fields, err := shell.Fields(pattern, nil)
	if err != nil {
		return strings.Fields(pattern)
	}
	return fields
}

// ValidTerms drops terms the matcher cannot use: empty terms always, and in
// regex mode terms that do not compile. Dropped terms are not reported; the
// remaining terms still form a usable query.
func ValidTerms(terms []string, matcher string) []string {
	var out []string
	for _, term := range terms {
		if term == "" {
			continue
		}
		if matcher == winnow.MatchRegex {
			if _, err := regexp.Compile(term); err != nil {
				continue
			}
		}
		out = append(out, term)
	}
	return out
}
