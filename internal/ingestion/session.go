package ingestion

import "time"

// sessionRolloverHour is the hour (exchange time) at which CME Globex opens
// the next trading day.
const sessionRolloverHour = 17

// exchangeLocation is the timezone CME sessions are defined in.
var exchangeLocation = mustLoadLocation("America/Chicago")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// tzdata missing; a fixed CST offset keeps bucketing stable.
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}

// SessionDay returns the CME trading day a fill at t belongs to.
//
// Fills at or after 17:00 Chicago time belong to the next day's session, and
// a session that would open on a weekend or a full exchange holiday rolls
// forward to the next open day.
func SessionDay(t time.Time) time.Time {
	ct := t.In(exchangeLocation)
	d := truncateToDate(ct)
	if ct.Hour() >= sessionRolloverHour {
		d = d.AddDate(0, 0, 1)
	}
	for !isTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// isTradingDay returns true if CME equity futures have a session on date d.
func isTradingDay(d time.Time) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !isExchangeHoliday(d)
}

// isExchangeHoliday reports full-day Globex closures: New Year's Day,
// Christmas and Good Friday. A holiday on a Sunday is observed the following
// Monday. Christmas on a Saturday is observed the Friday before; New Year's Day
// on a Saturday is not observed, so the prior December 31 stays open.
func isExchangeHoliday(d time.Time) bool {
	y := d.Year()
	for _, h := range []struct {
		date            time.Time
		observeSaturday bool
	}{
		{time.Date(y, time.January, 1, 0, 0, 0, 0, d.Location()), false},
		{time.Date(y, time.December, 25, 0, 0, 0, 0, d.Location()), true},
	} {
		observed := h.date
		switch h.date.Weekday() {
		case time.Sunday:
			observed = h.date.AddDate(0, 0, 1)
		case time.Saturday:
			if h.observeSaturday {
				observed = h.date.AddDate(0, 0, -1)
			}
		}
		if sameDate(observed, d) {
			return true
		}
	}

	goodFriday := easterSunday(y).AddDate(0, 0, -2)
	return sameDate(goodFriday, d)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// easterSunday returns the date of Easter Sunday for a given year
// (Meeus/Jones/Butcher algorithm).
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
