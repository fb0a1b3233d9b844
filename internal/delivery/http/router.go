package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(calendarController *CalendarController, eventController *EventController) *http.ServeMux {
	mux := http.NewServeMux()

	// Feeds
	mux.HandleFunc("GET /calendar.json", calendarController.CalendarJSON)
	mux.HandleFunc("GET /ical", calendarController.ICal)

	// Calendar views
	mux.HandleFunc("GET /calendar", calendarController.MonthView)
	mux.HandleFunc("GET /calendar/{year}/{month}", calendarController.MonthView)
	mux.HandleFunc("GET /agenda", calendarController.Agenda)
	mux.HandleFunc("GET /agenda/combined", calendarController.CombinedAgenda)

	// Events
	mux.HandleFunc("POST /events", eventController.CreateEvent)
	mux.HandleFunc("GET /events/{slug}", eventController.GetEvent)
	mux.HandleFunc("GET /events/{slug}/{occurrenceID}", eventController.GetOccurrence)

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
