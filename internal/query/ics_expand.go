package query

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "querycal/internal/log"
)

const defaultMaxOccurrences = 5000

// window bounds recurrence expansion.
type window struct {
	Start, End time.Time
	// Location is the zone occurrences are converted to.
	Location *time.Location
	// MaxPerEvent caps the occurrences of a single recurring event.
	MaxPerEvent int
}

// occurrence is one concrete instance of an event inside a window.
type occurrence struct {
	Event      vevent
	Start, End time.Time
}

// expand turns parsed events into occurrences within w. Single events are
// kept when they overlap w, RRULEs are expanded with EXDATEs removed, and
// instances with a matching RECURRENCE-ID override are replaced by the
// override. Output order follows the input event order.
func expand(events []vevent, w window) []occurrence {
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxOccurrences
	}

	overrides := make(map[string][]vevent)
	for _, ev := range events {
		if ev.isOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	out := make([]occurrence, 0, len(events))
	for _, ev := range events {
		if ev.isOverride() {
			continue
		}
		if ev.RRule == "" {
			out = append(out, expandSingle(ev, overrides[ev.UID], w)...)
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], w)...)
	}
	return out
}

func expandSingle(ev vevent, ovs []vevent, w window) []occurrence {
	start, end := ev.Start, ev.End
	if o, ok := overrideAt(ovs, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	if !overlaps(start, end, w.Start, w.End) {
		return nil
	}
	return []occurrence{newOccurrence(ev, start, end, w.Location)}
}

func expandRecurring(ev vevent, ovs []vevent, w window) []occurrence {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	duration := ev.End.Sub(ev.Start)
	// Include instances that started before the window but are still running.
	starts := set.Between(w.Start.In(loc).Add(-duration), w.End.In(loc), true)
	if len(starts) > w.MaxPerEvent {
		appLog.Warn("ics occurrences truncated", "uid", ev.UID, "cap", w.MaxPerEvent, "found", len(starts))
		starts = starts[:w.MaxPerEvent]
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(duration)
		base := ev
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, max(1, int(duration.Hours()/24)))
		}
		if o, ok := overrideAt(ovs, s); ok {
			base, s, e = o, o.Start, o.End
		}
		out = append(out, newOccurrence(base, s, e, w.Location))
	}
	return out
}

// overrideAt finds the override whose RECURRENCE-ID equals start.
func overrideAt(ovs []vevent, start time.Time) (vevent, bool) {
	for _, o := range ovs {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

func newOccurrence(ev vevent, start, end time.Time, loc *time.Location) occurrence {
	return occurrence{Event: ev, Start: start.In(loc), End: end.In(loc)}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
