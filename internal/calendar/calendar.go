package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// Event represents a parsed calendar event.
type Event struct {
	Summary   string
	StartTime time.Time
	EndTime   time.Time
}

// Fetch retrieves and parses iCalendar events from a URL or file path,
// returning events that overlap with the given time window. Recurring
// events are expanded into their occurrences inside the window. Floating
// times are read in loc.
func Fetch(ctx context.Context, source string, windowStart, windowEnd time.Time, loc *time.Location) ([]Event, error) {
	if loc == nil {
		loc = time.Local
	}

	r, err := open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dec := ical.NewDecoder(r)
	var events []Event

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			summary, _ := event.Props.Text(ical.PropSummary)
			if summary == "" {
				continue
			}
			start, err := event.DateTimeStart(loc)
			if err != nil {
				continue // skip malformed events
			}
			end, err := event.DateTimeEnd(loc)
			if err != nil {
				continue
			}

			set, err := event.RecurrenceSet(loc)
			if err != nil {
				continue
			}
			if set == nil {
				if start.Before(windowEnd) && end.After(windowStart) {
					events = append(events, Event{Summary: summary, StartTime: start, EndTime: end})
				}
				continue
			}

			for _, occ := range occurrences(set, end.Sub(start), windowStart, windowEnd) {
				events = append(events, Event{Summary: summary, StartTime: occ, EndTime: occ.Add(end.Sub(start))})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

// occurrences returns the starts of recurrences that overlap the window.
func occurrences(set *rrule.Set, dur time.Duration, windowStart, windowEnd time.Time) []time.Time {
	var out []time.Time
	for _, occ := range set.Between(windowStart.Add(-dur), windowEnd, true) {
		if occ.Before(windowEnd) && occ.Add(dur).After(windowStart) {
			out = append(out, occ)
		}
	}
	return out
}

func open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("opening calendar file: %w", err)
	}
	return f, nil
}

// FormatHints renders events as "HH:MM-HH:MM Summary" lines.
func FormatHints(events []Event, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	hints := make([]string, 0, len(events))
	for _, e := range events {
		hints = append(hints, fmt.Sprintf("%s-%s %s",
			e.StartTime.In(loc).Format("15:04"), e.EndTime.In(loc).Format("15:04"), e.Summary))
	}
	return hints
}

// Hints suggests report descriptions from a calendar's events of the day.
type Hints struct {
	Source   string
	Location *time.Location
	Logger   *slog.Logger
}

func (h Hints) Hints(ctx context.Context, day time.Time) ([]string, error) {
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	day = day.In(loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	events, err := Fetch(ctx, h.Source, start, start.AddDate(0, 0, 1), loc)
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Debug("calendar hints", "day", start.Format("2006-01-02"), "events", len(events))
	}
	return FormatHints(events, loc), nil
}
