package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type CalendarController struct {
	Logger        *slog.Logger
	Calendar      domain.CalendarService
	Feed          domain.FeedService
	Clock         clock.Clock
	DefaultSiteID int64
	FirstWeekday  time.Weekday
}

func NewCalendarController(logger *slog.Logger,
	calendar domain.CalendarService,
	feed domain.FeedService,
	c clock.Clock,
	defaultSiteID int64,
	firstWeekday time.Weekday,
) *CalendarController {
	return &CalendarController{
		Logger:        logger,
		Calendar:      calendar,
		Feed:          feed,
		Clock:         c,
		DefaultSiteID: defaultSiteID,
		FirstWeekday:  firstWeekday,
	}
}

// CalendarJSON godoc
// @Summary Calendar feed for the fullcalendar widget
// @Description Returns the occurrences overlapping [start, end] as a bare JSON array, the shape the widget consumes directly.
// @Tags calendar
// @Produce json
// @Param start query string true "Range start (YYYY-MM-DD)"
// @Param end query string true "Range end (YYYY-MM-DD)"
// @Success 200 {array} domain.FeedItem
// @Failure 404 {object} APIResponse "error.code: not_found"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /calendar.json [get]
func (c *CalendarController) CalendarJSON(w http.ResponseWriter, r *http.Request) {
	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	items, err := c.Feed.CalendarJSON(r.Context(), r.URL.Query().Get("start"), r.URL.Query().Get("end"), viewer)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	// The widget expects a bare array, not the response envelope.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

// MonthViewResponse is the month grid payload for GET /calendar and
// GET /calendar/{year}/{month}.
type MonthViewResponse struct {
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	Day          int                  `json:"day"`
	FirstWeekday int                  `json:"first_weekday"`
	Dates        []time.Time          `json:"dates"`
	Occurrences  []*domain.Occurrence `json:"occurrences"`
}

// MonthView godoc
// @Summary Month grid data
// @Description Returns the occurrences and distinct event days of one calendar month. Without path parameters the current month is used; the highlighted day is today inside the current month and the 1st otherwise.
// @Tags calendar
// @Produce json
// @Param year path int false "Year"
// @Param month path int false "Month (1-12)"
// @Success 200 {object} APIResponse "data contains MonthViewResponse"
// @Failure 400 {object} APIResponse "error.code: bad_request"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /calendar/{year}/{month} [get]
func (c *CalendarController) MonthView(w http.ResponseWriter, r *http.Request) {
	now := c.Clock.Now()
	year, month := now.Year(), int(now.Month())

	if s := r.PathValue("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid year")
			return
		}
		year = v
	}
	if s := r.PathValue("month"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 12 {
			WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid month")
			return
		}
		month = v
	}

	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	res, err := c.Calendar.MonthOccurrences(r.Context(), year, time.Month(month), viewer)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}

	day := 1
	if year == now.Year() && time.Month(month) == now.Month() {
		day = now.Day()
	}
	WriteJSONSuccess(w, http.StatusOK, MonthViewResponse{
		Year:         year,
		Month:        month,
		Day:          day,
		FirstWeekday: int(c.FirstWeekday),
		Dates:        res.Dates,
		Occurrences:  res.Occurrences,
	})
}

// AgendaResponse is the paginated upcoming-occurrence list payload.
type AgendaResponse struct {
	Occurrences []*domain.Occurrence `json:"occurrences"`
	Pagination  PaginationMeta       `json:"pagination"`
}

// Agenda godoc
// @Summary Upcoming occurrences
// @Description Returns the viewer's upcoming occurrences ordered by start time, paginated.
// @Tags calendar
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} APIResponse "data contains AgendaResponse"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /agenda [get]
func (c *CalendarController) Agenda(w http.ResponseWriter, r *http.Request) {
	c.agenda(w, r, c.Calendar.Upcoming)
}

// CombinedAgenda godoc
// @Summary Upcoming occurrences of the viewer's site and the main site
// @Description Returns the union of the viewer's own site's upcoming occurrences and the main site's, deduplicated, ordered by start time, paginated.
// @Tags calendar
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} APIResponse "data contains AgendaResponse"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /agenda/combined [get]
func (c *CalendarController) CombinedAgenda(w http.ResponseWriter, r *http.Request) {
	c.agenda(w, r, c.Calendar.CombinedUpcoming)
}

type upcomingFunc func(ctx context.Context, viewer domain.Viewer, limit int) ([]*domain.Occurrence, error)

func (c *CalendarController) agenda(w http.ResponseWriter, r *http.Request, fetch upcomingFunc) {
	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	page, pageSize := ParsePagination(r)

	// Fetch one row past the requested page to detect a next page.
	occs, err := fetch(r.Context(), viewer, page*pageSize+1)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	hasMore := len(occs) > page*pageSize
	offset := (page - 1) * pageSize
	if offset > len(occs) {
		offset = len(occs)
	}
	end := offset + pageSize
	if end > len(occs) {
		end = len(occs)
	}
	WriteJSONSuccess(w, http.StatusOK, AgendaResponse{
		Occurrences: occs[offset:end],
		Pagination:  PaginationMeta{Page: page, PageSize: pageSize, HasMore: hasMore},
	})
}

// ICal godoc
// @Summary iCalendar export
// @Description Serializes the viewer's visible occurrences from the last 30 days onward as an iCalendar document.
// @Tags calendar
// @Produce plain
// @Success 200 {string} string "text/calendar document"
// @Failure 500 {object} APIResponse "error.code: internal_error"
// @Router /ical [get]
func (c *CalendarController) ICal(w http.ResponseWriter, r *http.Request) {
	viewer := ViewerFromRequest(r, c.DefaultSiteID)
	out, err := c.Feed.ICal(r.Context(), viewer)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}
