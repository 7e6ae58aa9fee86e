package schedule

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunSource returns sunrise and sunset for a calendar date at a location.
// ok is false when either is undefined.
type SunSource interface {
	SunriseSunset(lat, lon float64, date time.Time) (rise, set time.Time, ok bool)
}

// SunriseSource computes sunrise and sunset with the NOAA algorithm.
type SunriseSource struct{}

// SunriseSunset implements SunSource. Returned times are in UTC.
func (SunriseSource) SunriseSunset(lat, lon float64, date time.Time) (time.Time, time.Time, bool) {
	rise, set := sunrise.SunriseSunset(lat, lon, date.Year(), date.Month(), date.Day())
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return rise, set, true
}
