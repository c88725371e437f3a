package cronq

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Job schedules are five-field cron expressions, optionally with a leading
// seconds field ("0 0 11,23 * * *" fires at 11:00 and 23:00 every day).
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// nextFire returns the first fire instant of expr at or after now.
// Schedule.Next is strictly-after, so stepping back one second makes an
// instant equal to now count as this cycle's fire rather than the next one.
func nextFire(expr string, now time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(now.Add(-time.Second)), nil
}

// dueWithin reports whether expr fires inside [now, now+window) and returns
// that fire instant. The window is half-open: a fire at exactly now+window
// belongs to the next cycle, so consecutive cycles never claim the same
// instant twice.
func dueWithin(expr string, now time.Time, window time.Duration) (time.Time, bool, error) {
	fire, err := nextFire(expr, now)
	if err != nil {
		return time.Time{}, false, err
	}
	if fire.IsZero() || !fire.Before(now.Add(window)) {
		return time.Time{}, false, nil
	}
	return fire, true, nil
}
