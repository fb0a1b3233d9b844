package domain

import "time"

// Frequency is the recurrence frequency, following iCalendar RRULE
// semantics. The zero value leaves the frequency unspecified; a bounded
// rule without one recurs daily.
type Frequency int

const (
	FreqUnspecified Frequency = iota
	Yearly
	Monthly
	Weekly
	Daily
)

// Rule describes how a master (start, end) interval recurs. Count and
// Until bound the expansion; a rule with neither is deliberately expanded
// to a single literal occurrence rather than an unbounded sequence.
type Rule struct {
	Freq       Frequency
	Interval   int
	Count      *int
	Until      *time.Time
	ByWeekday  []time.Weekday
	ByMonth    []int
	ByMonthDay []int
}

// Bounded reports whether the rule carries a Count or Until limit.
func (r Rule) Bounded() bool {
	return r.Count != nil || r.Until != nil
}

// Interval is one concrete occurrence time span produced by recurrence
// expansion. Start == End is a legal point interval.
type Interval struct {
	Start time.Time
	End   time.Time
}

// RecurrenceExpander turns a master interval plus a rule into the finite,
// ordered sequence of concrete occurrence intervals. Implementations must
// be deterministic for identical inputs.
type RecurrenceExpander interface {
	Expand(start, end time.Time, rule Rule) ([]Interval, error)
}
