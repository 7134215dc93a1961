package course

import "time"

type Capacity struct {
	Current int
	Max     int
}

// Full reports whether no seat is left.
func (c Capacity) Full() bool { return c.Current >= c.Max }

// Window is the [Open, Close) range during which a selection attempt is meaningful.
type Window struct {
	Open  time.Time
	Close time.Time
}

type Offering struct {
	ID       int64
	Name     string
	Position string
	Teacher  string
	Campus   string

	Capacity Capacity
	// Selection window, in the server's time frame.
	Window Window

	// When the course itself takes place.
	Starts time.Time
	Ends   time.Time
}

// IsSelectable reports whether a seat is left and the window has not closed at now.
func (o Offering) IsSelectable(now time.Time) bool {
	return !o.Capacity.Full() && now.Before(o.Window.Close)
}

// Selectable returns the offerings that can still be selected at now, in
// input order. With includeAll the input is returned unchanged.
func Selectable(offerings []Offering, now time.Time, includeAll bool) []Offering {
	if includeAll {
		return offerings
	}
	out := make([]Offering, 0, len(offerings))
	for _, o := range offerings {
		if o.IsSelectable(now) {
			out = append(out, o)
		}
	}
	return out
}

func Find(offerings []Offering, id int64) (Offering, bool) {
	for _, o := range offerings {
		if o.ID == id {
			return o, true
		}
	}
	return Offering{}, false
}
