package timeslot

import (
	"fmt"
	"strings"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start Clock
	End   Clock
}

func NewInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseEnd(end)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: s, End: e}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// ParseEnd reads the end of a range. Midnight closes the day there, so
// "24:00", "12 AM" and "00:00" all mean the end of the date.
func ParseEnd(s string) (Clock, error) {
	if t := strings.TrimSpace(s); t == "24" || t == "24:00" {
		return day, nil
	}
	c, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	if c == 0 {
		return day, nil
	}
	return c, nil
}

func (iv Interval) Validate() error {
	if iv.Start < 0 || iv.End > day {
		return fmt.Errorf("interval %s outside the day", iv)
	}
	if iv.Start >= iv.End {
		return fmt.Errorf("start %s must be before end %s", iv.Start, iv.End)
	}
	return nil
}

func (iv Interval) Duration() Clock { return iv.End - iv.Start }

// Overlaps is true iff s1 < e2 && e1 > s2. Touching boundaries do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && iv.End > o.Start
}

// Decompose splits iv into consecutive pieces of at most step, clipping
// the last piece to iv.End.
func (iv Interval) Decompose(step Clock) []Interval {
	if step <= 0 || iv.Start >= iv.End {
		return nil
	}
	var out []Interval
	for cur := iv.Start; cur < iv.End; cur += step {
		end := cur + step
		if end > iv.End {
			end = iv.End
		}
		out = append(out, Interval{Start: cur, End: end})
	}
	return out
}

// Hourly decomposes into canonical one-hour slots.
func (iv Interval) Hourly() []Interval {
	return iv.Decompose(Hour)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Canonical(), iv.End.Canonical())
}
