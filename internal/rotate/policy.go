package rotate

import "time"

// Policy decides when the live file rolls over and how backups are named.
type Policy interface {
	// Next returns the first rollover boundary strictly after t.
	Next(t time.Time) time.Time
	// Layout is the time layout of the backup suffix.
	Layout() string
}

// Midnight rolls over at local midnight and names backups by day, e.g. app.log.20240310.
var Midnight Policy = midnight{}

type midnight struct{}

func (midnight) Next(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, t.Location())
}

func (midnight) Layout() string {
	return "20060102"
}

// Every rolls over on fixed multiples of d since the zero time.
func Every(d time.Duration) Policy {
	if d <= 0 {
		return Midnight
	}
	return interval{d: d}
}

type interval struct {
	d time.Duration
}

func (i interval) Next(t time.Time) time.Time {
	return t.Truncate(i.d).Add(i.d)
}

func (interval) Layout() string {
	return "20060102-150405"
}
