package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type EventController struct {
	Logger        *slog.Logger
	Service       domain.EventService
	Clock         clock.Clock
	DefaultSiteID int64
}

func NewEventController(logger *slog.Logger, svc domain.EventService, c clock.Clock, defaultSiteID int64) *EventController {
	return &EventController{
		Logger:        logger,
		Service:       svc,
		Clock:         c,
		DefaultSiteID: defaultSiteID,
	}
}

// RuleRequest is the recurrence rule in the create-event request body.
type RuleRequest struct {
	Freq       string     `json:"freq"`
	Interval   int        `json:"interval"`
	Count      *int       `json:"count"`
	Until      *time.Time `json:"until"`
	ByWeekday  []int      `json:"by_weekday"`
	ByMonth    []int      `json:"by_month"`
	ByMonthDay []int      `json:"by_month_day"`
}

var ruleFrequencies = map[string]domain.Frequency{
	"yearly":  domain.Yearly,
	"monthly": domain.Monthly,
	"weekly":  domain.Weekly,
	"daily":   domain.Daily,
}

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Title     string       `json:"title"`
	Slug      string       `json:"slug"`
	Content   string       `json:"content"`
	Category  string       `json:"category"`
	Location  string       `json:"location"`
	StartTime *time.Time   `json:"start_time"`
	EndTime   *time.Time   `json:"end_time"`
	Rule      *RuleRequest `json:"rule"`
}

// Validate implements Validator.
func (c CreateEventRequest) Validate() []string {
	var errs []string
	if c.Title == "" {
		errs = append(errs, "title is required")
	}
	if c.Rule != nil {
		if c.Rule.Freq != "" {
			if _, ok := ruleFrequencies[c.Rule.Freq]; !ok {
				errs = append(errs, fmt.Sprintf("unknown freq %q", c.Rule.Freq))
			}
		}
		for _, d := range c.Rule.ByWeekday {
			if d < 0 || d > 6 {
				errs = append(errs, fmt.Sprintf("by_weekday value %d out of range", d))
			}
		}
	}
	return errs
}

func (c CreateEventRequest) rule() domain.Rule {
	if c.Rule == nil {
		return domain.Rule{}
	}
	r := domain.Rule{
		Freq:       ruleFrequencies[c.Rule.Freq],
		Interval:   c.Rule.Interval,
		Count:      c.Rule.Count,
		Until:      c.Rule.Until,
		ByMonth:    c.Rule.ByMonth,
		ByMonthDay: c.Rule.ByMonthDay,
	}
	for _, d := range c.Rule.ByWeekday {
		r.ByWeekday = append(r.ByWeekday, time.Weekday(d))
	}
	return r
}

// CreateEvent godoc
// @Summary Create an event with its occurrences
// @Description Creates an event on the viewer's site and materializes its occurrences from the optional recurrence rule. A missing start time defaults to the current hour; a missing end time to the configured default duration.
// @Tags events
// @Accept json
// @Produce json
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} APIResponse "data contains the created event"
// @Failure 400 {object} APIResponse "error.code: bad_request"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	event, err := c.Service.CreateEvent(r.Context(), domain.CreateEventInput{
		SiteID:       viewer.SiteID,
		Title:        req.Title,
		Slug:         req.Slug,
		Content:      req.Content,
		CategoryName: req.Category,
		Location:     req.Location,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Rule:         req.rule(),
	})
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	WriteJSONSuccess(w, http.StatusCreated, event)
}

// EventDetailResponse is the payload for GET /events/{slug}: the event,
// its upcoming occurrences for the viewer, and its canonical URL path.
// The canonical path points at the first upcoming occurrence when one
// exists and at the calendar root otherwise.
type EventDetailResponse struct {
	Event         *domain.Event        `json:"event"`
	Upcoming      []*domain.Occurrence `json:"upcoming"`
	CanonicalPath string               `json:"canonical_path"`
}

// GetEvent godoc
// @Summary Event detail
// @Description Returns the event with its upcoming occurrences, resolved by slug on the viewer's site.
// @Tags events
// @Produce json
// @Param slug path string true "Event slug"
// @Success 200 {object} APIResponse "data contains EventDetailResponse"
// @Failure 404 {object} APIResponse "error.code: not_found"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /events/{slug} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	event, err := c.Service.GetEventBySlug(r.Context(), viewer.SiteID, r.PathValue("slug"))
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	upcoming, err := c.Service.UpcomingOccurrences(r.Context(), event, viewer)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	canonical := "/calendar"
	if len(upcoming) > 0 {
		canonical = fmt.Sprintf("/events/%s/%d", event.Slug, upcoming[0].ID)
	}
	WriteJSONSuccess(w, http.StatusOK, EventDetailResponse{
		Event:         event,
		Upcoming:      upcoming,
		CanonicalPath: canonical,
	})
}

// OccurrenceDetailResponse is the payload for GET /events/{slug}/{occurrenceID}.
type OccurrenceDetailResponse struct {
	Event      *domain.Event      `json:"event"`
	Occurrence *domain.Occurrence `json:"occurrence"`
	InPast     bool               `json:"in_past"`
}

// GetOccurrence godoc
// @Summary Occurrence detail
// @Description Returns one occurrence of the event resolved by slug on the viewer's site. Draft or out-of-window occurrences are only visible to preview viewers.
// @Tags events
// @Produce json
// @Param slug path string true "Event slug"
// @Param occurrenceID path int true "Occurrence ID"
// @Success 200 {object} APIResponse "data contains OccurrenceDetailResponse"
// @Failure 404 {object} APIResponse "error.code: not_found"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /events/{slug}/{occurrenceID} [get]
func (c *EventController) GetOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID, err := strconv.ParseInt(r.PathValue("occurrenceID"), 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid occurrence id")
		return
	}
	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	event, err := c.Service.GetEventBySlug(r.Context(), viewer.SiteID, r.PathValue("slug"))
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	occ, err := c.Service.GetOccurrence(r.Context(), event.ID, occurrenceID)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	now := c.Clock.Now()
	if !viewer.Privileged && !occ.VisibleAt(now) {
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "occurrence not found")
		return
	}
	WriteJSONSuccess(w, http.StatusOK, OccurrenceDetailResponse{
		Event:      event,
		Occurrence: occ,
		InPast:     occ.InPast(now),
	})
}
