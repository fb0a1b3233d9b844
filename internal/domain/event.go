package domain

import (
	"context"
	"time"
)

// Status is the publication status of an event and, denormalized, of its
// occurrences. The numeric values match the content statuses of the CMS
// this module plugs into.
type Status int

const (
	StatusDraft     Status = 1
	StatusPublished Status = 2
)

// Event is the container for general metadata and the master schedule of
// its Occurrence entries. An event with zero occurrences is valid but has
// no calendar presence.
type Event struct {
	ID          int64      `json:"id"`
	SiteID      int64      `json:"site_id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content,omitempty"`
	Status      Status     `json:"status"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewEvent returns a published Event with the given fields. ID is set by
// the repository on create.
func NewEvent(siteID int64, title, slug, content string) *Event {
	return &Event{
		SiteID:  siteID,
		Title:   title,
		Slug:    slug,
		Content: content,
		Status:  StatusPublished,
	}
}

// EventRepository defines the interface for event storage. Save persists
// the event fields and resyncs the denormalized fields of every owned
// occurrence inside a single transaction, so a concurrent reader never
// observes a half-synced state.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	GetBySlug(ctx context.Context, siteID int64, slug string) (*Event, error)
	List(ctx context.Context, siteID int64) ([]*Event, error)
	Save(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id int64) error
}

// CreateEventInput carries the parameters of the convenience event
// constructor. Category may be given by name (get-or-create, scoped to the
// site) or by id. StartTime defaults to the current hour, EndTime to
// StartTime plus the configured default occurrence duration.
type CreateEventInput struct {
	SiteID       int64
	Title        string
	Slug         string
	Content      string
	CategoryName string
	CategoryID   *int64
	Location     string
	StartTime    *time.Time
	EndTime      *time.Time
	Rule         Rule
}

// EventService is the event aggregate: event creation and editing, the
// event-to-occurrence field synchronization, and the per-event occurrence
// queries.
type EventService interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
	GetEventBySlug(ctx context.Context, siteID int64, slug string) (*Event, error)
	SaveEvent(ctx context.Context, e *Event) error
	DeleteEvent(ctx context.Context, id int64) error
	AddOccurrences(ctx context.Context, e *Event, start, end time.Time, rule Rule) ([]*Occurrence, error)
	UpcomingOccurrences(ctx context.Context, e *Event, viewer Viewer) ([]*Occurrence, error)
	NextOccurrence(ctx context.Context, e *Event, viewer Viewer) (*Occurrence, error)
	DailyOccurrences(ctx context.Context, e *Event, day time.Time, viewer Viewer) ([]*Occurrence, error)
	GetOccurrence(ctx context.Context, eventID, id int64) (*Occurrence, error)
	SaveOccurrence(ctx context.Context, o *Occurrence) error
	DeleteOccurrence(ctx context.Context, eventID, id int64) error
}
