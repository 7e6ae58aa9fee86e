// Package schedule computes the daily open/close window from sunrise and
// sunset, and caches one window per calendar date.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cloudeng.io/datetime"
)

// ErrScheduleUnavailable is returned when sunrise or sunset is undefined for
// the date and location (polar day or night).
var ErrScheduleUnavailable = errors.New("schedule unavailable")

// OpenCloseTime is the open/close window for one calendar date.
type OpenCloseTime struct {
	Open  TimeOfDay
	Close TimeOfDay
}

func (o OpenCloseTime) String() string {
	return fmt.Sprintf("open=%s close=%s", o.Open, o.Close)
}

// OpenWindowActive reports whether now is within window after the open time.
func (o OpenCloseTime) OpenWindowActive(now time.Time, window time.Duration) bool {
	return inWindow(o.Open, now, window)
}

// CloseWindowActive reports whether now is within window after the close time.
func (o OpenCloseTime) CloseWindowActive(now time.Time, window time.Duration) bool {
	return inWindow(o.Close, now, window)
}

func inWindow(at TimeOfDay, now time.Time, window time.Duration) bool {
	tod := TimeOfDayOf(now)
	return tod >= at && time.Duration(tod) < time.Duration(at)+window
}

// Config holds the fixed scheduler parameters.
type Config struct {
	Latitude  float64
	Longitude float64
	// Offset is added to both sunrise and sunset.
	Offset time.Duration
	// MinOpenTime is the earliest allowed open time.
	MinOpenTime TimeOfDay
	// Location is the zone the times of day are expressed in. Nil means Local.
	Location *time.Location
}

// Scheduler produces cached open/close windows. It is safe for concurrent use.
type Scheduler struct {
	cfg Config
	sun SunSource

	mu    sync.RWMutex
	cache map[datetime.CalendarDate]OpenCloseTime
}

// New creates a Scheduler with an empty cache.
func New(cfg Config, sun SunSource) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:   cfg,
		sun:   sun,
		cache: make(map[datetime.CalendarDate]OpenCloseTime),
	}
}

// GetOpenCloseTime returns the window for date's calendar day. The time of
// day of date is ignored. Failures are not cached so the next call retries.
func (s *Scheduler) GetOpenCloseTime(date time.Time) (OpenCloseTime, error) {
	local := date.In(s.cfg.Location)
	key := calendarDate(local)

	s.mu.RLock()
	oct, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return oct, nil
	}

	oct, err := s.compute(local)
	if err != nil {
		return OpenCloseTime{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent caller may have inserted first; its value wins.
	if existing, ok := s.cache[key]; ok {
		return existing, nil
	}
	s.cache[key] = oct
	return oct, nil
}

// Len returns the number of cached dates.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *Scheduler) compute(local time.Time) (OpenCloseTime, error) {
	rise, set, ok := s.sun.SunriseSunset(s.cfg.Latitude, s.cfg.Longitude, local)
	if !ok {
		return OpenCloseTime{}, fmt.Errorf("%w: no sunrise/sunset at %.4f,%.4f on %s",
			ErrScheduleUnavailable, s.cfg.Latitude, s.cfg.Longitude, local.Format("2006-01-02"))
	}

	open := TimeOfDayOf(rise.In(s.cfg.Location)).Add(s.cfg.Offset)
	if open < s.cfg.MinOpenTime {
		open = s.cfg.MinOpenTime
	}
	closeAt := TimeOfDayOf(set.In(s.cfg.Location)).Add(s.cfg.Offset)

	return OpenCloseTime{Open: open, Close: closeAt}, nil
}

func calendarDate(t time.Time) datetime.CalendarDate {
	return datetime.NewCalendarDate(t.Year(), datetime.Month(t.Month()), t.Day())
}
