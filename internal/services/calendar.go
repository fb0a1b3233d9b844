package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type calendarService struct {
	occurrenceRepo domain.OccurrenceRepository
	rangeCfg       domain.RangeConfig
	clock          clock.Clock
	mainSiteID     int64
	contextTimeout time.Duration
}

// NewCalendarService returns the date-range query service. The range
// config supplies the boundary date formats; an incomplete config panics
// here, at wiring time.
func NewCalendarService(occurrenceRepo domain.OccurrenceRepository,
	rangeCfg domain.RangeConfig,
	c clock.Clock,
	mainSiteID int64,
	timeout time.Duration,
) domain.CalendarService {
	return &calendarService{
		occurrenceRepo: occurrenceRepo,
		rangeCfg:       rangeCfg.MustValidate(),
		clock:          c,
		mainSiteID:     mainSiteID,
		contextTimeout: timeout,
	}
}

// scopeFor maps a viewer to a site scope: viewers on the main site see
// every site's occurrences, everyone else only their own site's.
func scopeFor(viewer domain.Viewer, mainSiteID int64) domain.SiteScope {
	if viewer.SiteID == 0 || viewer.SiteID == mainSiteID {
		return domain.SiteScope{}
	}
	return domain.SiteScope{SiteID: viewer.SiteID}
}

// OccurrencesInRange parses the boundary strings with the configured
// formats and returns all visible occurrences overlapping the range,
// plus the distinct days present in the result. A missing or malformed
// boundary is a client error reported as not found, never a fault.
func (s *calendarService) OccurrencesInRange(ctx context.Context, startStr, endStr string, viewer domain.Viewer) (*domain.RangeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if startStr == "" {
		return nil, fmt.Errorf("%w: no start date specified", domain.ErrNotFound)
	}
	if endStr == "" {
		return nil, fmt.Errorf("%w: no end date specified", domain.ErrNotFound)
	}
	start, err := time.Parse(s.rangeCfg.StartFormat, startStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date string %q for format %q", domain.ErrNotFound, startStr, s.rangeCfg.StartFormat)
	}
	end, err := time.Parse(s.rangeCfg.EndFormat, endStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date string %q for format %q", domain.ErrNotFound, endStr, s.rangeCfg.EndFormat)
	}

	return s.rangeResult(ctx, start, end, viewer)
}

// MonthOccurrences returns the range result for one calendar month.
func (s *calendarService) MonthOccurrences(ctx context.Context, year int, month time.Month, viewer domain.Viewer) (*domain.RangeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Second)
	return s.rangeResult(ctx, monthStart, monthEnd, viewer)
}

func (s *calendarService) rangeResult(ctx context.Context, start, end time.Time, viewer domain.Viewer) (*domain.RangeResult, error) {
	occs, err := s.occurrenceRepo.OverlappingRange(ctx, domain.RangeQuery{
		Start:  start,
		End:    end,
		Now:    s.clock.Now(),
		Viewer: viewer,
		Scope:  scopeFor(viewer, s.mainSiteID),
	})
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	return &domain.RangeResult{
		Occurrences: occs,
		Dates:       distinctDates(occs),
	}, nil
}

// distinctDates returns the ordered distinct start days of the
// occurrences. The input is already ordered by start time.
func distinctDates(occs []*domain.Occurrence) []time.Time {
	dates := make([]time.Time, 0)
	for _, o := range occs {
		day := time.Date(o.StartTime.Year(), o.StartTime.Month(), o.StartTime.Day(), 0, 0, 0, 0, o.StartTime.Location())
		if len(dates) == 0 || !dates[len(dates)-1].Equal(day) {
			dates = append(dates, day)
		}
	}
	return dates
}

// DailyOccurrences returns visible occurrences with any overlap with the
// calendar day containing day.
func (s *calendarService) DailyOccurrences(ctx context.Context, day time.Time, viewer domain.Viewer) ([]*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	dayStart, dayEnd := domain.DayWindow(day)
	return s.occurrenceRepo.OverlappingDay(ctx, domain.DayQuery{
		DayStart: dayStart,
		DayEnd:   dayEnd,
		Now:      s.clock.Now(),
		Viewer:   viewer,
		Scope:    scopeFor(viewer, s.mainSiteID),
	})
}

// Upcoming returns visible occurrences starting at or after now,
// restricted to the viewer's site unless the viewer is on the main site.
func (s *calendarService) Upcoming(ctx context.Context, viewer domain.Viewer, limit int) ([]*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.clock.Now()
	return s.occurrenceRepo.Upcoming(ctx, domain.UpcomingQuery{
		Start:  now,
		Now:    now,
		Viewer: viewer,
		Scope:  scopeFor(viewer, s.mainSiteID),
		Limit:  limit,
	})
}

// CombinedUpcoming returns the union of the viewer's own site's upcoming
// occurrences and the main site's, deduplicated and re-sorted into the
// (start_time, end_time) total order.
func (s *calendarService) CombinedUpcoming(ctx context.Context, viewer domain.Viewer, limit int) ([]*domain.Occurrence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.clock.Now()
	own, err := s.occurrenceRepo.Upcoming(ctx, domain.UpcomingQuery{
		Start:  now,
		Now:    now,
		Viewer: viewer,
		Scope:  domain.SiteScope{SiteID: viewer.SiteID},
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("own site upcoming: %w", err)
	}
	if viewer.SiteID == 0 || viewer.SiteID == s.mainSiteID {
		return own, nil
	}
	main, err := s.occurrenceRepo.Upcoming(ctx, domain.UpcomingQuery{
		Start:  now,
		Now:    now,
		Viewer: viewer,
		Scope:  domain.SiteScope{SiteID: s.mainSiteID},
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("main site upcoming: %w", err)
	}

	seen := make(map[int64]struct{}, len(own)+len(main))
	union := make([]*domain.Occurrence, 0, len(own)+len(main))
	for _, o := range append(own, main...) {
		if _, ok := seen[o.ID]; ok {
			continue
		}
		seen[o.ID] = struct{}{}
		union = append(union, o)
	}
	sort.Slice(union, func(i, j int) bool {
		if !union[i].StartTime.Equal(union[j].StartTime) {
			return union[i].StartTime.Before(union[j].StartTime)
		}
		return union[i].EndTime.Before(union[j].EndTime)
	})
	if limit > 0 && len(union) > limit {
		union = union[:limit]
	}
	return union, nil
}
