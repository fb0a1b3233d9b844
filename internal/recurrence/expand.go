// Package recurrence materializes occurrence intervals from a master
// event interval and a recurrence rule. Rule enumeration is delegated to
// the rrule library; this package only anchors the rule at the master
// start time and carries the master duration onto every instant.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

const defaultMaxOccurrences = 1000

// Expander implements domain.RecurrenceExpander on top of rrule-go.
type Expander struct {
	// MaxOccurrences is a safety cap on a single expansion. An Until far
	// in the future can otherwise enumerate an enormous sequence into the
	// store. If zero, defaultMaxOccurrences is used.
	MaxOccurrences int
}

// New returns an Expander with the default occurrence cap.
func New() *Expander {
	return &Expander{MaxOccurrences: defaultMaxOccurrences}
}

var frequencies = map[domain.Frequency]rrule.Frequency{
	domain.FreqUnspecified: rrule.DAILY,
	domain.Yearly:          rrule.YEARLY,
	domain.Monthly:         rrule.MONTHLY,
	domain.Weekly:          rrule.WEEKLY,
	domain.Daily:           rrule.DAILY,
}

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Expand returns the concrete occurrence intervals for a master interval
// and rule.
//
// A rule without Count and Until yields exactly one interval with the
// literal start and end: unbounded rules are rejected implicitly by
// producing a single occurrence instead of an infinite sequence. A bounded
// rule without an explicit frequency recurs daily. Otherwise
// every instant t enumerated by the rule, anchored at start, yields
// [t, t+(end-start)]. A zero duration (start == end) is legal and yields
// point intervals.
func (x *Expander) Expand(start, end time.Time, rule domain.Rule) ([]domain.Interval, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end time before start time", domain.ErrInvalidInput)
	}

	if !rule.Bounded() {
		return []domain.Interval{{Start: start, End: end}}, nil
	}

	opt := rrule.ROption{
		Freq:    frequencies[rule.Freq],
		Dtstart: start,
	}
	if rule.Interval > 0 {
		opt.Interval = rule.Interval
	}
	if rule.Count != nil {
		opt.Count = *rule.Count
	}
	if rule.Until != nil {
		opt.Until = *rule.Until
	}
	for _, wd := range rule.ByWeekday {
		opt.Byweekday = append(opt.Byweekday, weekdays[wd])
	}
	opt.Bymonth = append(opt.Bymonth, rule.ByMonth...)
	opt.Bymonthday = append(opt.Bymonthday, rule.ByMonthDay...)

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: recurrence rule: %v", domain.ErrInvalidInput, err)
	}

	limit := x.MaxOccurrences
	if limit <= 0 {
		limit = defaultMaxOccurrences
	}

	duration := end.Sub(start)
	var intervals []domain.Interval
	next := r.Iterator()
	for {
		t, ok := next()
		if !ok {
			break
		}
		if len(intervals) >= limit {
			return nil, fmt.Errorf("%w: recurrence rule expands beyond %d occurrences",
				domain.ErrInvalidInput, limit)
		}
		intervals = append(intervals, domain.Interval{Start: t, End: t.Add(duration)})
	}
	return intervals, nil
}
