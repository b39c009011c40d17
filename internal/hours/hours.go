// Package hours turns free-text work ranges such as "9:00-14:00, 15:00-18:00"
// or "с 10 до 19" into a worked-hours figure net of lunch.
//
// The grammar is small: a period list is split on commas, each period is
// tokenized into time mentions and separators, and the first two mentions of
// a period are its start and end. Evaluation never fails from the caller's
// point of view: malformed input yields zero hours together with warnings
// that describe what was ignored.
package hours

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultLunch is the lunch break in hours subtracted once per day.
const DefaultLunch = 0.5

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// Period is one start/end pair. An end before the start crosses midnight.
type Period struct {
	Start Clock
	End   Clock
}

// Duration returns the length of the period, rolling the end forward by a
// day when it is earlier than the start.
func (p Period) Duration() time.Duration {
	start, end := p.Start.minutes(), p.End.minutes()
	if end < start {
		end += 24 * 60
	}
	return time.Duration(end-start) * time.Minute
}

// WarningKind classifies why part of the input did not count as expected.
type WarningKind int

const (
	// Skipped: the expression had fewer than two time mentions.
	Skipped WarningKind = iota + 1
	// Truncated: the expression had more than two mentions; extras were ignored.
	Truncated
	// Invalid: the whole text could not be evaluated and counts as zero.
	Invalid
)

func (k WarningKind) String() string {
	switch k {
	case Skipped:
		return "skipped"
	case Truncated:
		return "truncated"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Warning describes one expression that was skipped, truncated or rejected.
type Warning struct {
	Kind     WarningKind
	Expr     string
	Mentions int
	Reason   string
}

func (w Warning) String() string {
	if w.Reason != "" {
		return fmt.Sprintf("%s %q: %s", w.Kind, w.Expr, w.Reason)
	}
	return fmt.Sprintf("%s %q (%d time mentions)", w.Kind, w.Expr, w.Mentions)
}

// Result is the outcome of evaluating a time-range text. Hours is always the
// value to store; Warnings tell the caller whether to double-check with the
// user.
type Result struct {
	Hours    float64
	Raw      time.Duration
	Periods  []Period
	Warnings []Warning
}

// OK reports whether every expression was understood without loss.
func (r Result) OK() bool {
	return len(r.Warnings) == 0
}

// Invalid reports whether the text as a whole was rejected.
func (r Result) Invalid() bool {
	for _, w := range r.Warnings {
		if w.Kind == Invalid {
			return true
		}
	}
	return false
}

// Calculator evaluates time-range texts with a configurable lunch break.
type Calculator struct {
	Lunch float64
}

// New returns a Calculator subtracting lunch hours when the user had lunch.
// A non-positive lunch falls back to DefaultLunch.
func New(lunch float64) Calculator {
	if lunch <= 0 {
		lunch = DefaultLunch
	}
	return Calculator{Lunch: lunch}
}

// Calculate returns the worked hours for text using the default lunch break.
// Malformed input yields 0.
func Calculate(text string, hadLunch bool) float64 {
	return New(DefaultLunch).Parse(text, hadLunch).Hours
}

// Parse evaluates text using the default lunch break.
func Parse(text string, hadLunch bool) Result {
	return New(DefaultLunch).Parse(text, hadLunch)
}

// Parse evaluates text and returns hours together with any warnings.
func (c Calculator) Parse(text string, hadLunch bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = invalid(text, fmt.Sprint(r))
		}
	}()

	var total time.Duration
	for _, expr := range splitExpressions(text) {
		mentions := timeMentions(tokenize(expr))
		if len(mentions) < 2 {
			res.Warnings = append(res.Warnings, Warning{Kind: Skipped, Expr: expr, Mentions: len(mentions)})
			continue
		}
		if len(mentions) > 2 {
			res.Warnings = append(res.Warnings, Warning{Kind: Truncated, Expr: expr, Mentions: len(mentions)})
		}

		start, err := parseClock(mentions[0])
		if err != nil {
			return invalid(expr, err.Error())
		}
		end, err := parseClock(mentions[1])
		if err != nil {
			return invalid(expr, err.Error())
		}

		p := Period{Start: start, End: end}
		res.Periods = append(res.Periods, p)
		total += p.Duration()
	}

	res.Raw = total
	worked := total.Hours()
	if hadLunch {
		worked -= c.Lunch
	}
	res.Hours = round2(math.Max(worked, 0))
	return res
}

func invalid(expr, reason string) Result {
	return Result{Warnings: []Warning{{Kind: Invalid, Expr: strings.TrimSpace(expr), Reason: reason}}}
}

func splitExpressions(text string) []string {
	var exprs []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			exprs = append(exprs, part)
		}
	}
	return exprs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
