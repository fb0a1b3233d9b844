package services

import (
	"context"
	"fmt"
	"time"

	"github.com/WatchBeam/clock"
	ics "github.com/arran4/golang-ical"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

// feedTimeLayout is ISO-8601 with an explicit colon-separated UTC offset,
// the timestamp form the calendar widget expects.
const feedTimeLayout = "2006-01-02T15:04:05-07:00"

// icalTrailingWindow is how far back the iCal export reaches; everything
// from this long ago and forward is exported.
const icalTrailingWindow = 30 * 24 * time.Hour

type feedService struct {
	calendar       domain.CalendarService
	occurrenceRepo domain.OccurrenceRepository
	eventRepo      domain.EventRepository
	categoryRepo   domain.EventCategoryRepository
	clock          clock.Clock
	mainSiteID     int64
	siteColors     map[int64]domain.ColorSet
	baseURL        string
	contextTimeout time.Duration
}

// NewFeedService returns the feed assembler. siteColors maps a site id to
// its raw color tuple as configured; see domain.ParseColorSet.
func NewFeedService(calendar domain.CalendarService,
	occurrenceRepo domain.OccurrenceRepository,
	eventRepo domain.EventRepository,
	categoryRepo domain.EventCategoryRepository,
	c clock.Clock,
	mainSiteID int64,
	siteColors map[int64]string,
	baseURL string,
	timeout time.Duration,
) domain.FeedService {
	parsed := make(map[int64]domain.ColorSet, len(siteColors))
	for id, raw := range siteColors {
		if cs := domain.ParseColorSet(raw); !cs.IsZero() {
			parsed[id] = cs
		}
	}
	return &feedService{
		calendar:       calendar,
		occurrenceRepo: occurrenceRepo,
		eventRepo:      eventRepo,
		categoryRepo:   categoryRepo,
		clock:          c,
		mainSiteID:     mainSiteID,
		siteColors:     parsed,
		baseURL:        baseURL,
		contextTimeout: timeout,
	}
}

// CalendarJSON returns the feed items for all visible occurrences
// overlapping the requested range. Color fields are set only when the
// occurrence's category or site has a color configured; a category color
// wins over the site color.
func (s *feedService) CalendarJSON(ctx context.Context, startStr, endStr string, viewer domain.Viewer) ([]domain.FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	result, err := s.calendar.OccurrencesInRange(ctx, startStr, endStr, viewer)
	if err != nil {
		return nil, err
	}

	events := make(map[int64]*domain.Event)
	categories := make(map[int64]*domain.EventCategory)
	items := make([]domain.FeedItem, 0, len(result.Occurrences))
	for _, o := range result.Occurrences {
		event, ok := events[o.EventID]
		if !ok {
			event, err = s.eventRepo.GetByID(ctx, o.EventID)
			if err != nil {
				return nil, fmt.Errorf("get event %d: %w", o.EventID, err)
			}
			events[o.EventID] = event
		}

		item := domain.FeedItem{
			ID:    o.EventID,
			Title: o.Title,
			Start: o.StartTime.Format(feedTimeLayout),
			End:   o.EndTime.Format(feedTimeLayout),
			URL:   s.occurrenceURL(event.Slug, o.ID),
		}
		applyColors(&item, s.resolveColors(ctx, event, categories, o.SiteID))
		items = append(items, item)
	}
	return items, nil
}

func (s *feedService) occurrenceURL(eventSlug string, occurrenceID int64) string {
	return fmt.Sprintf("%s/event/%s/%d/", s.baseURL, eventSlug, occurrenceID)
}

// resolveColors picks the category color when the event has a category
// with one, falling back to the per-site color.
func (s *feedService) resolveColors(ctx context.Context, event *domain.Event, cache map[int64]*domain.EventCategory, siteID int64) domain.ColorSet {
	if event.CategoryID != nil {
		cat, ok := cache[*event.CategoryID]
		if !ok {
			var err error
			cat, err = s.categoryRepo.GetByID(ctx, *event.CategoryID)
			if err != nil {
				cat = nil
			}
			cache[*event.CategoryID] = cat
		}
		if cat != nil && cat.Color != "" {
			return domain.ParseColorSet(cat.Color)
		}
	}
	return s.siteColors[siteID]
}

// applyColors fills the feed item color fields. A single configured color
// goes into the plain color field; a tuple is split into background, text
// and border.
func applyColors(item *domain.FeedItem, cs domain.ColorSet) {
	if cs.IsZero() {
		return
	}
	if cs.Text == "" && cs.Border == "" {
		item.Color = cs.Background
		return
	}
	item.BackgroundColor = cs.Background
	item.TextColor = cs.Text
	item.BorderColor = cs.Border
}

// ICal serializes one VEVENT per visible occurrence inside the trailing
// 30-day-and-forward window.
func (s *feedService) ICal(ctx context.Context, viewer domain.Viewer) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.clock.Now()
	occs, err := s.occurrenceRepo.Upcoming(ctx, domain.UpcomingQuery{
		Start:  now.Add(-icalTrailingWindow),
		Now:    now,
		Viewer: viewer,
		Scope:  scopeFor(viewer, s.mainSiteID),
	})
	if err != nil {
		return "", fmt.Errorf("ical window query: %w", err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//fullcalendar//calendar feed//EN")
	for _, o := range occs {
		ev := cal.AddEvent(fmt.Sprintf("occurrence-%d@fullcalendar", o.ID))
		ev.SetDtStampTime(now)
		ev.SetSummary(o.Title)
		ev.SetStartAt(o.StartTime)
		ev.SetEndAt(o.EndTime)
		if o.Location != "" {
			ev.SetLocation(o.Location)
		}
	}
	return cal.Serialize(), nil
}
