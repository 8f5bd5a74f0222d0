package market

import (
	"fmt"
	"time"
)

// HourWindow is a UTC hour range, start inclusive and end exclusive. A
// window with Start > End wraps midnight.
type HourWindow struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (w HourWindow) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	if w.Start <= w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}

func (w HourWindow) Validate() error {
	if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 24 || w.Start == w.End {
		return fmt.Errorf("invalid hour window %d-%d", w.Start, w.End)
	}
	return nil
}

func (w HourWindow) String() string {
	return fmt.Sprintf("%02d-%02d", w.Start, w.End)
}

// Session is a named trading session in UTC hours.
type Session struct {
	Name string
	HourWindow
}

var (
	Asian   = Session{Name: "asian", HourWindow: HourWindow{Start: 0, End: 8}}
	London  = Session{Name: "london", HourWindow: HourWindow{Start: 7, End: 16}}
	NewYork = Session{Name: "ny", HourWindow: HourWindow{Start: 12, End: 21}}
)

// Sessions lists the tracked sessions in chronological order within a day.
var Sessions = []Session{Asian, London, NewYork}

// InAny reports whether t falls inside any of the windows. An empty list
// allows everything.
func InAny(windows []HourWindow, t time.Time) bool {
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
