package forecast

import (
	"math"
	"testing"
	"time"
)

func TestSeasonalProfileFactor(t *testing.T) {
	profile := DefaultSeasonalProfile()

	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{
			name: "january is the post-holiday trough",
			date: date(2025, time.January, 15),
			want: 0.85,
		},
		{
			name: "april is neutral",
			date: date(2025, time.April, 3),
			want: 1.00,
		},
		{
			name: "november carries the 11.11 lift",
			date: date(2025, time.November, 2),
			want: 1.15,
		},
		{
			name: "december is the yearly peak",
			date: date(2025, time.December, 28),
			want: 1.35,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := profile.Factor(tt.date)
			if got != tt.want {
				t.Errorf("Factor(%v) = %v, want %v", tt.date, got, tt.want)
			}
			// Same date, same factor. The profile must behave as a pure table.
			if again := profile.Factor(tt.date); again != got {
				t.Errorf("Factor(%v) second call = %v, first was %v", tt.date, again, got)
			}
		})
	}
}

func TestNewSeasonalProfileRejectsNonPositive(t *testing.T) {
	profile := NewSeasonalProfile([12]float64{0, -1, 0.5, 1.2})

	tests := []struct {
		name  string
		month time.Month
		want  float64
	}{
		{name: "zero falls back to neutral", month: time.January, want: 1.0},
		{name: "negative falls back to neutral", month: time.February, want: 1.0},
		{name: "positive below one is kept", month: time.March, want: 0.5},
		{name: "positive above one is kept", month: time.April, want: 1.2},
		{name: "unset trailing month is neutral", month: time.September, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := profile.Factor(date(2025, tt.month, 10))
			if got != tt.want {
				t.Errorf("Factor(%v) = %v, want %v", tt.month, got, tt.want)
			}
		})
	}
}

func TestHolidayWindowContains(t *testing.T) {
	window := HolidayWindow{
		Name:         "Independence Day Promo",
		Start:        date(2025, time.August, 17),
		DurationDays: 3,
		Impact:       1.2,
	}

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{name: "day before start", date: date(2025, time.August, 16), want: false},
		{name: "start day", date: date(2025, time.August, 17), want: true},
		{name: "last covered day", date: date(2025, time.August, 19), want: true},
		{name: "day after window", date: date(2025, time.August, 20), want: false},
		{name: "time of day is ignored", date: time.Date(2025, time.August, 17, 23, 59, 0, 0, time.UTC), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.Contains(tt.date); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestHolidayCalendarFactor(t *testing.T) {
	calendar := NewHolidayCalendar([]HolidayWindow{
		{Name: "Flash Sale", Start: date(2025, time.March, 10), DurationDays: 3, Impact: 1.5},
		{Name: "Clearance", Start: date(2025, time.March, 11), DurationDays: 5, Impact: 1.2},
	})

	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{name: "no window applies", date: date(2025, time.March, 1), want: 1.0},
		{name: "single window", date: date(2025, time.March, 10), want: 1.5},
		{name: "overlap multiplies", date: date(2025, time.March, 12), want: 1.8},
		{name: "only the longer window remains", date: date(2025, time.March, 14), want: 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.Factor(tt.date)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Factor(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestNewHolidayCalendarDropsInvalidWindows(t *testing.T) {
	calendar := NewHolidayCalendar([]HolidayWindow{
		{Name: "kept", Start: date(2025, time.May, 1), DurationDays: 2, Impact: 1.1},
		{Name: "zero impact", Start: date(2025, time.May, 1), DurationDays: 2, Impact: 0},
		{Name: "zero duration", Start: date(2025, time.May, 1), DurationDays: 0, Impact: 1.3},
	})

	if got := len(calendar.Windows()); got != 1 {
		t.Errorf("Windows() kept %d windows, want 1", got)
	}
}

func TestDefaultHolidayCalendarCoversConfiguredYears(t *testing.T) {
	calendar := DefaultHolidayCalendar(2024, 2025)

	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{name: "11.11 in the first year", date: date(2024, time.November, 11), want: 1.5},
		{name: "11.11 in the second year", date: date(2025, time.November, 12), want: 1.5},
		{name: "christmas window", date: date(2025, time.December, 25), want: 1.35},
		{name: "12.12 outside christmas window", date: date(2025, time.December, 12), want: 1.4},
		{name: "ordinary day", date: date(2025, time.April, 2), want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.Factor(tt.date)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Factor(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}
