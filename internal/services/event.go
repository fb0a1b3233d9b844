package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	occurrenceRepo domain.OccurrenceRepository
	categoryRepo   domain.EventCategoryRepository
	expander       domain.RecurrenceExpander
	clock          clock.Clock
	// occurrenceDuration is the default length of a single occurrence
	// when an event is created without an end time.
	occurrenceDuration time.Duration
	contextTimeout     time.Duration
}

func NewEventService(eventRepo domain.EventRepository,
	occurrenceRepo domain.OccurrenceRepository,
	categoryRepo domain.EventCategoryRepository,
	expander domain.RecurrenceExpander,
	c clock.Clock,
	occurrenceDuration time.Duration,
	timeout time.Duration,
) domain.EventService {
	if occurrenceDuration <= 0 {
		occurrenceDuration = time.Hour
	}
	return &eventService{
		eventRepo:          eventRepo,
		occurrenceRepo:     occurrenceRepo,
		categoryRepo:       categoryRepo,
		expander:           expander,
		clock:              c,
		occurrenceDuration: occurrenceDuration,
		contextTimeout:     timeout,
	}
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// CreateEvent creates an event together with its occurrences. A category
// given by name is resolved get-or-create within the event's site. A
// missing start time defaults to the current time rounded down to the
// hour; a missing end time to start plus the default occurrence duration.
func (s *eventService) CreateEvent(ctx context.Context, in domain.CreateEventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if in.Title == "" {
		return nil, fmt.Errorf("%w: event title is required", domain.ErrInvalidInput)
	}

	categoryID := in.CategoryID
	if categoryID == nil && in.CategoryName != "" {
		cat, err := s.categoryRepo.GetOrCreateByName(ctx, in.SiteID, in.CategoryName)
		if err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
		categoryID = &cat.ID
	}

	slug := in.Slug
	if slug == "" {
		slug = slugify(in.Title)
	}

	now := s.clock.Now()
	event := domain.NewEvent(in.SiteID, in.Title, slug, in.Content)
	event.CategoryID = categoryID
	event.CreatedAt = now
	event.UpdatedAt = now
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	// Default start is the current time rounded down to the hour, in the
	// clock's own location.
	start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	if in.StartTime != nil {
		start = *in.StartTime
	}
	end := start.Add(s.occurrenceDuration)
	if in.EndTime != nil {
		end = *in.EndTime
	}

	if _, err := s.addOccurrences(ctx, event, start, end, in.Rule, in.Location); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.eventRepo.GetByID(ctx, id)
}

func (s *eventService) GetEventBySlug(ctx context.Context, siteID int64, slug string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.eventRepo.GetBySlug(ctx, siteID, slug)
}

// SaveEvent persists the event and pushes its status, publish window and
// title onto every owned occurrence. The repository runs both writes in
// one transaction.
func (s *eventService) SaveEvent(ctx context.Context, e *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if e.Title == "" {
		return fmt.Errorf("%w: event title is required", domain.ErrInvalidInput)
	}
	e.UpdatedAt = s.clock.Now()
	if err := s.eventRepo.Save(ctx, e); err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// DeleteEvent removes the event and, through the store's cascade, all of
// its occurrences.
func (s *eventService) DeleteEvent(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.eventRepo.Delete(ctx, id)
}

// AddOccurrences materializes the recurrence expansion of [start, end]
// under rule into stored occurrences owned by the event.
func (s *eventService) AddOccurrences(ctx context.Context, e *domain.Event, start, end time.Time, rule domain.Rule) ([]*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.addOccurrences(ctx, e, start, end, rule, "")
}

func (s *eventService) addOccurrences(ctx context.Context, e *domain.Event, start, end time.Time, rule domain.Rule, location string) ([]*domain.Occurrence, error) {
	intervals, err := s.expander.Expand(start, end, rule)
	if err != nil {
		return nil, fmt.Errorf("expand occurrences: %w", err)
	}

	occs := make([]*domain.Occurrence, 0, len(intervals))
	for _, iv := range intervals {
		o := &domain.Occurrence{
			EventID:   e.ID,
			SiteID:    e.SiteID,
			StartTime: iv.Start,
			EndTime:   iv.End,
			Location:  location,
		}
		o.SyncFromEvent(e)
		if err := o.Validate(); err != nil {
			return nil, err
		}
		occs = append(occs, o)
	}
	if err := s.occurrenceRepo.BulkCreate(ctx, occs); err != nil {
		return nil, fmt.Errorf("create occurrences: %w", err)
	}
	return occs, nil
}

// UpcomingOccurrences returns the event's occurrences starting at or
// after the current time, restricted by the viewer's visibility.
func (s *eventService) UpcomingOccurrences(ctx context.Context, e *domain.Event, viewer domain.Viewer) ([]*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.clock.Now()
	return s.occurrenceRepo.Upcoming(ctx, domain.UpcomingQuery{
		Start:   now,
		Now:     now,
		EventID: &e.ID,
		Viewer:  viewer,
	})
}

// NextOccurrence returns the event's first upcoming occurrence, or nil
// when there is none.
func (s *eventService) NextOccurrence(ctx context.Context, e *domain.Event, viewer domain.Viewer) (*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.clock.Now()
	occs, err := s.occurrenceRepo.Upcoming(ctx, domain.UpcomingQuery{
		Start:   now,
		Now:     now,
		EventID: &e.ID,
		Viewer:  viewer,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(occs) == 0 {
		return nil, nil
	}
	return occs[0], nil
}

// DailyOccurrences returns the event's occurrences overlapping the
// calendar day containing day.
func (s *eventService) DailyOccurrences(ctx context.Context, e *domain.Event, day time.Time, viewer domain.Viewer) ([]*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	dayStart, dayEnd := domain.DayWindow(day)
	return s.occurrenceRepo.OverlappingDay(ctx, domain.DayQuery{
		DayStart: dayStart,
		DayEnd:   dayEnd,
		EventID:  &e.ID,
		Now:      s.clock.Now(),
		Viewer:   viewer,
	})
}

func (s *eventService) GetOccurrence(ctx context.Context, eventID, id int64) (*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	o, err := s.occurrenceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.EventID != eventID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// SaveOccurrence persists changes to a single occurrence. The
// denormalized event fields are re-applied first so a stale copy can
// never be written back.
func (s *eventService) SaveOccurrence(ctx context.Context, o *domain.Occurrence) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := o.Validate(); err != nil {
		return err
	}
	event, err := s.eventRepo.GetByID(ctx, o.EventID)
	if err != nil {
		return fmt.Errorf("get owning event: %w", err)
	}
	o.SyncFromEvent(event)
	if err := s.occurrenceRepo.Save(ctx, o); err != nil {
		return fmt.Errorf("save occurrence: %w", err)
	}
	return nil
}

func (s *eventService) DeleteOccurrence(ctx context.Context, eventID, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.GetOccurrence(ctx, eventID, id); err != nil {
		return err
	}
	return s.occurrenceRepo.Delete(ctx, id)
}
