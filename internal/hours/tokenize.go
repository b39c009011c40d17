package hours

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenTime tokenKind = iota
	tokenSeparator
)

type token struct {
	kind tokenKind
	text string
}

// separatorWords are the words accepted between the two times of a period.
var separatorWords = map[string]bool{
	"с":    true,
	"со":   true,
	"до":   true,
	"по":   true,
	"from": true,
	"to":   true,
}

var mentionRe = regexp.MustCompile(`\d{1,2}:\d{2}|\d{1,2}`)

func isDash(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '−':
		return true
	}
	return false
}

// tokenize splits an expression into runs of digits and colons and
// separators. Anything else is dropped.
func tokenize(expr string) []token {
	var (
		tokens []token
		run    strings.Builder
		word   strings.Builder
	)
	flushRun := func() {
		if run.Len() > 0 {
			tokens = append(tokens, token{kind: tokenTime, text: run.String()})
			run.Reset()
		}
	}
	flushWord := func() {
		if word.Len() > 0 {
			if w := strings.ToLower(word.String()); separatorWords[w] {
				tokens = append(tokens, token{kind: tokenSeparator, text: w})
			}
			word.Reset()
		}
	}

	for _, r := range expr {
		switch {
		case unicode.IsDigit(r) || r == ':':
			flushWord()
			run.WriteRune(r)
		case unicode.IsLetter(r):
			flushRun()
			word.WriteRune(r)
		case isDash(r):
			flushRun()
			flushWord()
			tokens = append(tokens, token{kind: tokenSeparator, text: "-"})
		default:
			flushRun()
			flushWord()
		}
	}
	flushRun()
	flushWord()
	return tokens
}

// timeMentions extracts H, HH, H:MM and HH:MM mentions in order.
func timeMentions(tokens []token) []string {
	var out []string
	for _, t := range tokens {
		if t.kind != tokenTime {
			continue
		}
		out = append(out, mentionRe.FindAllString(t.text, -1)...)
	}
	return out
}

// parseClock converts a mention into a Clock, defaulting minutes to zero.
// Hours above 23 or minutes above 59 are rejected.
func parseClock(mention string) (Clock, error) {
	h, m, found := strings.Cut(mention, ":")
	hour, err := strconv.Atoi(h)
	if err != nil {
		return Clock{}, fmt.Errorf("parsing hour %q: %w", h, err)
	}
	minute := 0
	if found {
		if minute, err = strconv.Atoi(m); err != nil {
			return Clock{}, fmt.Errorf("parsing minute %q: %w", m, err)
		}
	}
	if hour > 23 || minute > 59 {
		return Clock{}, fmt.Errorf("time %q out of range", mention)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}
