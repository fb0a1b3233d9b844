package domain

import (
	"context"
	"fmt"
	"time"
)

// Occurrence is one concrete (start, end) instance of a master Event.
// Title, Status, PublishDate and ExpiryDate are denormalized copies of the
// owning event's fields, written on every event save; they are snapshots,
// not live joins.
type Occurrence struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"event_id"`
	SiteID      int64      `json:"site_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Title       string     `json:"title"`
	Status      Status     `json:"status"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// Validate checks the start/end ordering invariant. A zero-length
// occurrence (start == end) is legal.
func (o *Occurrence) Validate() error {
	if o.EndTime.Before(o.StartTime) {
		return fmt.Errorf("%w: occurrence end time before start time", ErrInvalidInput)
	}
	return nil
}

// SyncFromEvent projects the denormalized event fields onto the
// occurrence. The title is recomposed from the event title and the
// occurrence's own description, if any. Callers persisting the occurrence
// as part of an event save must do so in the same transaction as the
// event update.
func (o *Occurrence) SyncFromEvent(e *Event) {
	o.Title = DisplayTitle(e.Title, o.Description)
	o.Status = e.Status
	o.PublishDate = e.PublishDate
	o.ExpiryDate = e.ExpiryDate
}

// DisplayTitle composes an occurrence title from its event's title and the
// occurrence description used to disambiguate it.
func DisplayTitle(eventTitle, description string) string {
	if description != "" {
		return eventTitle + " (" + description + ")"
	}
	return eventTitle
}

// VisibleAt reports whether the occurrence is published and inside its
// publish window at the given instant.
func (o *Occurrence) VisibleAt(now time.Time) bool {
	if o.Status != StatusPublished {
		return false
	}
	if o.PublishDate != nil && o.PublishDate.After(now) {
		return false
	}
	if o.ExpiryDate != nil && !o.ExpiryDate.After(now) {
		return false
	}
	return true
}

// InPast reports whether the occurrence has fully ended at the given
// instant.
func (o *Occurrence) InPast(now time.Time) bool {
	return o.EndTime.Before(now)
}

// Viewer is the externally supplied viewer context. Privileged viewers
// (admin or preview) also see draft and out-of-window occurrences.
// Multitenancy resolution happens outside this module; SiteID is whatever
// the surrounding framework says the current site is.
type Viewer struct {
	SiteID     int64
	Privileged bool
}

// SiteScope restricts a query to occurrences whose owning event belongs to
// one site. The zero value applies no site filter, for a privileged
// aggregating context such as a main site viewing all subsites.
type SiteScope struct {
	SiteID int64
}

// Restricted reports whether a site filter applies.
func (s SiteScope) Restricted() bool { return s.SiteID != 0 }

// UpcomingQuery selects visible occurrences with start_time >= Start and,
// when End is set, start_time <= End. EventID optionally restricts to one
// event.
type UpcomingQuery struct {
	Start   time.Time
	End     *time.Time
	EventID *int64
	Now     time.Time
	Viewer  Viewer
	Scope   SiteScope
	Limit   int
}

// DayQuery selects visible occurrences with any overlap with the day
// [DayStart, DayEnd]. DayEnd is 23:59:59 of the day, not midnight of the
// next day; see DayWindow. EventID optionally restricts to one event.
type DayQuery struct {
	DayStart time.Time
	DayEnd   time.Time
	EventID  *int64
	Now      time.Time
	Viewer   Viewer
	Scope    SiteScope
}

// RangeQuery selects visible occurrences overlapping [Start, End]
// inclusive: end_time >= Start AND start_time <= End.
type RangeQuery struct {
	Start  time.Time
	End    time.Time
	Now    time.Time
	Viewer Viewer
	Scope  SiteScope
}

// DayWindow returns the [start, end] query window for the calendar day
// containing dt. The window closes at 23:59:59, leaving a one-second gap
// before midnight; an occurrence ending exactly at the next midnight only
// matches through the spill-over clause of the day overlap test. Kept as
// documented behavior of the calendar this replaces.
func DayWindow(dt time.Time) (time.Time, time.Time) {
	start := time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, dt.Location())
	end := start.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return start, end
}

// OccurrenceRepository defines the interface for occurrence storage and
// the calendar query primitives. All query results are ordered by
// (start_time, end_time) ascending.
type OccurrenceRepository interface {
	// BulkCreate inserts all occurrences in a single statement and fills
	// in their IDs.
	BulkCreate(ctx context.Context, occs []*Occurrence) error
	GetByID(ctx context.Context, id int64) (*Occurrence, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*Occurrence, error)
	Save(ctx context.Context, o *Occurrence) error
	Delete(ctx context.Context, id int64) error
	Upcoming(ctx context.Context, q UpcomingQuery) ([]*Occurrence, error)
	OverlappingDay(ctx context.Context, q DayQuery) ([]*Occurrence, error)
	OverlappingRange(ctx context.Context, q RangeQuery) ([]*Occurrence, error)
}
