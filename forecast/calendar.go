package forecast

import "time"

// SeasonalProfile maps month-of-year to a positive demand multiplier. The
// table is fixed at construction and never mutated, so lookups are safe for
// concurrent use.
type SeasonalProfile struct {
	factors [12]float64
}

// NewSeasonalProfile builds a profile from a 12-entry table indexed January
// through December. Non-positive entries fall back to 1.0.
func NewSeasonalProfile(factors [12]float64) *SeasonalProfile {
	p := &SeasonalProfile{factors: factors}
	for i, f := range p.factors {
		if f <= 0 {
			p.factors[i] = 1.0
		}
	}
	return p
}

// DefaultSeasonalProfile returns the stock retail demand curve: quiet first
// quarter, mid-year sale bump, 11.11 and year-end peaks.
func DefaultSeasonalProfile() *SeasonalProfile {
	return NewSeasonalProfile([12]float64{
		0.85, // Jan
		0.90, // Feb
		0.95, // Mar
		1.00, // Apr
		1.05, // May
		1.10, // Jun
		1.00, // Jul
		0.95, // Aug
		0.95, // Sep
		1.00, // Oct
		1.15, // Nov
		1.35, // Dec
	})
}

// Factor returns the multiplier for the date's month. Pure: same date always
// yields the same factor.
func (p *SeasonalProfile) Factor(date time.Time) float64 {
	return p.factors[int(date.Month())-1]
}

// HolidayWindow is a named date range with a multiplicative demand effect.
// A date falls inside the window if Start <= date < Start + DurationDays.
type HolidayWindow struct {
	Name         string    `json:"name"`
	Start        time.Time `json:"start"`
	DurationDays int       `json:"duration_days"`
	Impact       float64   `json:"impact"`
	Category     string    `json:"category"`
}

// Contains reports whether the calendar date of t falls inside the window.
func (w HolidayWindow) Contains(t time.Time) bool {
	day := dayOf(t)
	start := dayOf(w.Start)
	end := start.AddDate(0, 0, w.DurationDays)
	return !day.Before(start) && day.Before(end)
}

// HolidayCalendar is a fixed list of holiday windows. Overlapping windows
// combine multiplicatively.
type HolidayCalendar struct {
	windows []HolidayWindow
}

// NewHolidayCalendar builds a calendar from explicit windows. Windows with a
// non-positive impact or duration are dropped.
func NewHolidayCalendar(windows []HolidayWindow) *HolidayCalendar {
	kept := make([]HolidayWindow, 0, len(windows))
	for _, w := range windows {
		if w.Impact > 0 && w.DurationDays > 0 {
			kept = append(kept, w)
		}
	}
	return &HolidayCalendar{windows: kept}
}

// DefaultHolidayCalendar returns the standing promo calendar for the given
// years: fixed-date sale events observed across the store network.
func DefaultHolidayCalendar(years ...int) *HolidayCalendar {
	var windows []HolidayWindow
	for _, year := range years {
		windows = append(windows,
			HolidayWindow{Name: "New Year Sale", Start: date(year, time.January, 1), DurationDays: 7, Impact: 1.25, Category: "seasonal-sale"},
			HolidayWindow{Name: "Mid-Year Mega Sale", Start: date(year, time.June, 20), DurationDays: 10, Impact: 1.30, Category: "seasonal-sale"},
			HolidayWindow{Name: "Independence Day Promo", Start: date(year, time.August, 17), DurationDays: 3, Impact: 1.20, Category: "national-holiday"},
			HolidayWindow{Name: "11.11 Flash Sale", Start: date(year, time.November, 11), DurationDays: 3, Impact: 1.50, Category: "flash-sale"},
			HolidayWindow{Name: "12.12 Flash Sale", Start: date(year, time.December, 12), DurationDays: 3, Impact: 1.40, Category: "flash-sale"},
			HolidayWindow{Name: "Christmas & Year-End", Start: date(year, time.December, 20), DurationDays: 12, Impact: 1.35, Category: "holiday"},
		)
	}
	return NewHolidayCalendar(windows)
}

// Factor returns the product of the impact multipliers of every window
// containing the date, or 1.0 when none apply. Pure and side-effect free.
func (c *HolidayCalendar) Factor(t time.Time) float64 {
	factor := 1.0
	for _, w := range c.windows {
		if w.Contains(t) {
			factor *= w.Impact
		}
	}
	return factor
}

// Windows returns a copy of the configured holiday windows.
func (c *HolidayCalendar) Windows() []HolidayWindow {
	out := make([]HolidayWindow, len(c.windows))
	copy(out, c.windows)
	return out
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
