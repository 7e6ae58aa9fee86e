package schedule

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// TimeOfDay is a wall-clock offset from local midnight.
type TimeOfDay time.Duration

// TimeOfDayOf returns the wall-clock time of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
}

// Add returns tod shifted by d, wrapped into a single day.
func (tod TimeOfDay) Add(d time.Duration) TimeOfDay {
	v := (time.Duration(tod) + d) % day
	if v < 0 {
		v += day
	}
	return TimeOfDay(v)
}

// On returns the instant tod falls on for t's calendar day.
func (tod TimeOfDay) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Add(time.Duration(tod))
}

func (tod TimeOfDay) String() string {
	d := time.Duration(tod)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// UnmarshalYAML accepts "HH:MM" strings.
func (tod *TimeOfDay) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*tod = v
	return nil
}

// MarshalYAML writes the HH:MM form.
func (tod TimeOfDay) MarshalYAML() (interface{}, error) {
	return tod.String(), nil
}
