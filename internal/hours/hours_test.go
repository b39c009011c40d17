package hours_test

import (
	"testing"
	"time"

	"github.com/christopherklint97/worktracker/internal/hours"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		lunch bool
		want  float64
	}{
		{"same day", "9:00-18:00", false, 9},
		{"same day with lunch", "9:00-18:00", true, 8.5},
		{"words", "с 10 до 19", false, 9},
		{"words with lunch", "с 10 до 19", true, 8.5},
		{"english words", "from 8 to 12", false, 4},
		{"en dash", "14:00–22:30", false, 8.5},
		{"em dash", "8:30—17:45", false, 9.25},
		{"minus sign", "8:30−9:00", false, 0.5},
		{"midnight crossover", "23:00-1:00", false, 2},
		{"multi period", "9:00-12:00, 13:00-17:00", false, 7},
		{"multi period with lunch", "9:00-12:00, 13:00-17:00", true, 6.5},
		{"lunch floors at zero", "9:00-9:15", true, 0},
		{"zero length", "9:00-9:00", false, 0},
		{"rounding", "9:00-9:10", false, 0.17},
		{"degenerate", "hello", false, 0},
		{"degenerate with lunch", "hello", true, 0},
		{"empty", "", false, 0},
		{"blank expressions dropped", " , 9-10 , ", false, 1},
		{"single mention skipped", "9:00, 10:00-11:00", false, 1},
		{"hour out of range", "9:00-25:00", false, 0},
		{"minute out of range", "9:00-10:75", false, 0},
		{"missing minutes", "9-17:30", false, 8.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hours.Calculate(tt.text, tt.lunch)
			if got != tt.want {
				t.Errorf("Calculate(%q, %v) = %v, want %v", tt.text, tt.lunch, got, tt.want)
			}
		})
	}
}

func TestCalculateSameDayProperty(t *testing.T) {
	for start := 0; start < 24; start++ {
		for end := start; end < 24; end++ {
			text := hours.Clock{Hour: start}.String() + "-" + hours.Clock{Hour: end, Minute: 30}.String()
			want := float64(end-start) + 0.5
			if got := hours.Calculate(text, false); got != want {
				t.Fatalf("Calculate(%q, false) = %v, want %v", text, got, want)
			}
			withLunch := want - 0.5
			if withLunch < 0 {
				withLunch = 0
			}
			if got := hours.Calculate(text, true); got != withLunch {
				t.Fatalf("Calculate(%q, true) = %v, want %v", text, got, withLunch)
			}
		}
	}
}

func TestParseWarnings(t *testing.T) {
	tests := []struct {
		text string
		want []hours.WarningKind
	}{
		{"9:00-18:00", nil},
		{"hello", []hours.WarningKind{hours.Skipped}},
		{"9:00-12:00-15:00", []hours.WarningKind{hours.Truncated}},
		{"9, 10-11", []hours.WarningKind{hours.Skipped}},
		{"9:00-24:00", []hours.WarningKind{hours.Invalid}},
	}
	for _, tt := range tests {
		res := hours.Parse(tt.text, false)
		if len(res.Warnings) != len(tt.want) {
			t.Errorf("Parse(%q) warnings = %v, want kinds %v", tt.text, res.Warnings, tt.want)
			continue
		}
		for i, w := range res.Warnings {
			if w.Kind != tt.want[i] {
				t.Errorf("Parse(%q) warning[%d] = %v, want %v", tt.text, i, w.Kind, tt.want[i])
			}
		}
		if res.OK() != (len(tt.want) == 0) {
			t.Errorf("Parse(%q).OK() = %v", tt.text, res.OK())
		}
	}
}

func TestParseTruncatesToFirstTwoMentions(t *testing.T) {
	res := hours.Parse("9:00-12:00-15:00", false)
	if res.Hours != 3 {
		t.Errorf("Hours = %v, want 3", res.Hours)
	}
	if len(res.Periods) != 1 {
		t.Fatalf("Periods = %d, want 1", len(res.Periods))
	}
	p := res.Periods[0]
	if p.Start != (hours.Clock{Hour: 9}) || p.End != (hours.Clock{Hour: 12}) {
		t.Errorf("Period = %v-%v, want 09:00-12:00", p.Start, p.End)
	}
}

func TestParseInvalidZeroesWholeText(t *testing.T) {
	res := hours.Parse("9:00-12:00, 13:00-99:00", false)
	if res.Hours != 0 {
		t.Errorf("Hours = %v, want 0", res.Hours)
	}
	if !res.Invalid() {
		t.Error("expected Invalid() to be true")
	}
}

func TestPeriodDuration(t *testing.T) {
	tests := []struct {
		p    hours.Period
		want time.Duration
	}{
		{hours.Period{Start: hours.Clock{Hour: 9}, End: hours.Clock{Hour: 17}}, 8 * time.Hour},
		{hours.Period{Start: hours.Clock{Hour: 22}, End: hours.Clock{Hour: 2, Minute: 30}}, 4*time.Hour + 30*time.Minute},
		{hours.Period{Start: hours.Clock{Hour: 9}, End: hours.Clock{Hour: 9}}, 0},
	}
	for _, tt := range tests {
		if got := tt.p.Duration(); got != tt.want {
			t.Errorf("%v-%v Duration() = %v, want %v", tt.p.Start, tt.p.End, got, tt.want)
		}
	}
}

func TestCalculatorCustomLunch(t *testing.T) {
	c := hours.New(1)
	if got := c.Parse("9-18", true).Hours; got != 8 {
		t.Errorf("Parse with 1h lunch = %v, want 8", got)
	}
	if got := hours.New(0).Lunch; got != hours.DefaultLunch {
		t.Errorf("New(0).Lunch = %v, want %v", got, hours.DefaultLunch)
	}
}
