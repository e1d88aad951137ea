package market

import (
	"fmt"
	"time"

	"stock_price_updater/models"
)

// TimeOfDay is a wall-clock time within one day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) seconds() int { return t.Hour*3600 + t.Minute*60 }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// SessionWindow is a trading window. Start > End means the session crosses
// midnight and "open" covers now >= Start or now <= End.
type SessionWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// CrossesMidnight reports whether the window wraps past midnight.
func (w SessionWindow) CrossesMidnight() bool { return w.Start.seconds() > w.End.seconds() }

// Contains reports whether the time of day of now falls inside the window.
// Both bounds are inclusive.
func (w SessionWindow) Contains(now time.Time) bool {
	tod := now.Hour()*3600 + now.Minute()*60 + now.Second()
	if w.CrossesMidnight() {
		return tod >= w.Start.seconds() || tod <= w.End.seconds()
	}
	return tod >= w.Start.seconds() && tod <= w.End.seconds()
}

// Session windows in Taipei wall-clock time. The US windows shift by an hour
// with daylight saving because New York moves relative to Taipei.
var (
	taiwanWindow   = SessionWindow{Start: TimeOfDay{9, 0}, End: TimeOfDay{13, 35}}
	usSummerWindow = SessionWindow{Start: TimeOfDay{21, 30}, End: TimeOfDay{4, 0}}
	usWinterWindow = SessionWindow{Start: TimeOfDay{22, 30}, End: TimeOfDay{5, 0}}
)

// usOpenAnchor is the regular NYSE open in New York local time; before it the
// previous calendar day is still the current trading date.
var usOpenAnchor = TimeOfDay{9, 30}

// Calendar answers market open/closed and trading-date questions. It holds
// only preloaded timezone data, so it is safe for any number of concurrent
// callers; every method takes the current instant explicitly.
type Calendar struct {
	taipei  *time.Location
	newYork *time.Location
}

// NewCalendar loads the timezone data the calendar depends on. Failure here
// is a deployment problem (missing tzdata) and must abort startup.
func NewCalendar() (*Calendar, error) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return nil, fmt.Errorf("load Asia/Taipei: %w", err)
	}
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load America/New_York: %w", err)
	}
	return &Calendar{taipei: taipei, newYork: newYork}, nil
}

// Location returns the reference timezone (Taipei) used for scheduling.
func (c *Calendar) Location() *time.Location { return c.taipei }

// Now returns the current instant in Taipei time.
func (c *Calendar) Now() time.Time { return time.Now().In(c.taipei) }

// IsDaylightSaving reports whether US daylight saving applies at now. The
// period is [second Sunday of March, first Sunday of November) with
// boundaries at midnight in now's own location: start inclusive, end
// exclusive.
func (c *Calendar) IsDaylightSaving(now time.Time) bool {
	loc := now.Location()
	dstStart := nthSunday(now.Year(), time.March, 2, loc)
	dstEnd := nthSunday(now.Year(), time.November, 1, loc)
	return !now.Before(dstStart) && now.Before(dstEnd)
}

// nthSunday returns midnight of the nth Sunday of the given month.
func nthSunday(year int, month time.Month, n int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (7 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// IsOpen reports whether the market's session window contains now.
func (c *Calendar) IsOpen(m models.Market, now time.Time) bool {
	return c.CurrentSessionWindow(m, now).Contains(now.In(c.taipei))
}

// CurrentSessionWindow returns the window in force at now: the fixed Taiwan
// window, or the summer/winter US window selected by IsDaylightSaving.
func (c *Calendar) CurrentSessionWindow(m models.Market, now time.Time) SessionWindow {
	if m == models.MarketTW {
		return taiwanWindow
	}
	if c.IsDaylightSaving(now.In(c.taipei)) {
		return usSummerWindow
	}
	return usWinterWindow
}

// ResolveTradingDate returns the calendar date whose session data is
// authoritative at now. For the US market the instant is converted to New
// York time, stepped back one day while still before the 09:30 open, then
// walked back over weekends to the most recent weekday. Taiwan uses the
// Taipei calendar date as is; callers gate on IsOpen separately.
func (c *Calendar) ResolveTradingDate(m models.Market, now time.Time) time.Time {
	if m == models.MarketTW {
		local := now.In(c.taipei)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.taipei)
	}

	ny := now.In(c.newYork)
	date := time.Date(ny.Year(), ny.Month(), ny.Day(), 0, 0, 0, 0, c.newYork)
	if ny.Hour()*3600+ny.Minute()*60 < usOpenAnchor.seconds() {
		date = date.AddDate(0, 0, -1)
	}
	for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		date = date.AddDate(0, 0, -1)
	}
	return date
}
