package scoring

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var sentenceSplit = regexp.MustCompile(`[.!?;\n]+`)

// shortTermLen is the rune length at or under which a term must match on word
// boundaries, so "ban" does not match "banque".
const shortTermLen = 3

// wholeWordTerms are longer terms that are also prefixes of common unrelated
// words ("import" in "important").
var wholeWordTerms = map[string]bool{
	"import":  true,
	"imports": true,
}

// ContainsTerm reports whether the lower-cased text contains term.
func ContainsTerm(text, term string) bool {
	return indexTerm(text, term, 0) >= 0
}

// CountTerm counts non-overlapping occurrences of term in the lower-cased text.
func CountTerm(text, term string) int {
	if term == "" {
		return 0
	}
	n := 0
	for from := 0; ; {
		i := indexTerm(text, term, from)
		if i < 0 {
			return n
		}
		n++
		from = i + len(term)
	}
}

// ContainsAny reports whether text contains any of the terms.
func ContainsAny(text string, terms []string) bool {
	for _, t := range terms {
		if ContainsTerm(text, t) {
			return true
		}
	}
	return false
}

func indexTerm(text, term string, from int) int {
	if term == "" || from >= len(text) {
		return -1
	}
	bounded := utf8.RuneCountInString(term) <= shortTermLen || wholeWordTerms[term]
	for from < len(text) {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return -1
		}
		i += from
		if !bounded || (boundaryBefore(text, i) && boundaryAfter(text, i+len(term))) {
			return i
		}
		from = i + 1
	}
	return -1
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// sentences splits lower-cased text into trimmed, non-empty sentences.
func sentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// leadingWords returns the first n words of a sentence joined by spaces.
func leadingWords(sentence string, n int) string {
	words := strings.Fields(sentence)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// wordSet returns the set of words of text, trimmed of punctuation.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r) && r != '-' && r != '\''
	}) {
		set[w] = struct{}{}
	}
	return set
}
