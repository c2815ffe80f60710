package match

import (
	"fmt"
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule is one pattern->ticker entry of the rule set.
type Rule struct {
	Pattern string
	Ticker  string
}

type compiledRule struct {
	pattern string
	re      *regexp.Regexp
	ticker  string
}

// RuleSet is an ordered, immutable set of compiled rules. Rules are
// evaluated in declaration order and the first match wins.
type RuleSet struct {
	rules []compiledRule
}

// Compile builds a RuleSet from ordered rules. Patterns are compiled
// case-insensitive and matched as substring searches. An invalid pattern
// is a configuration error.
func Compile(rules []Rule) (*RuleSet, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid rule pattern %q: %w", r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{pattern: r.Pattern, re: re, ticker: r.Ticker})
	}
	return &RuleSet{rules: compiled}, nil
}

// Match folds text to ASCII and returns the ticker and pattern of the first
// rule found in it. ok is false when no rule matches.
func (rs *RuleSet) Match(text string) (ticker, pattern string, ok bool) {
	folded := FoldASCII(text)
	for _, r := range rs.rules {
		if r.re.MatchString(folded) {
			return r.ticker, r.pattern, true
		}
	}
	return "", "", false
}

// Patterns returns the patterns in declaration order.
func (rs *RuleSet) Patterns() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.pattern
	}
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// asciiFolder decomposes to NFKD, strips combining marks, and maps any
// remaining non-ASCII rune to a space so diacritics and stylized Unicode
// letters cannot evade substring matching.
var asciiFolder = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return ' '
		}
		return r
	}),
)

// FoldASCII returns the closest ASCII transliteration of s.
func FoldASCII(s string) string {
	folded, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return folded
}
