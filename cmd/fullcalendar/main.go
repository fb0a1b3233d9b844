package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WatchBeam/clock"
	_ "github.com/lib/pq"

	"github.com/jonge-democraten/mezzanine-fullcalendar/config"
	_ "github.com/jonge-democraten/mezzanine-fullcalendar/docs"
	delivery "github.com/jonge-democraten/mezzanine-fullcalendar/internal/delivery/http"
	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/delivery/http/middleware"
	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/recurrence"
	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/repository/postgres"
	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/services"
)

const serviceTimeout = 5 * time.Second

// @title fullcalendar API
// @version 1.0
// @description Multisite event calendar backend: events, recurring occurrences, range queries and feeds.
// @BasePath /
func main() {
	logger := config.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("ping database", "err", err)
		os.Exit(1)
	}

	rangeCfg := domain.DefaultRangeConfig()
	rangeCfg.StartFormat = cfg.DateFormat
	rangeCfg.EndFormat = cfg.DateFormat

	eventRepo := postgres.NewEventRepository(db)
	occurrenceRepo := postgres.NewOccurrenceRepository(db, rangeCfg)
	categoryRepo := postgres.NewEventCategoryRepository(db)

	eventService := services.NewEventService(eventRepo, occurrenceRepo, categoryRepo,
		recurrence.New(), clock.C, cfg.OccurrenceDuration, serviceTimeout)
	calendarService := services.NewCalendarService(occurrenceRepo, rangeCfg,
		clock.C, cfg.MainSiteID, serviceTimeout)
	feedService := services.NewFeedService(calendarService, occurrenceRepo, eventRepo,
		categoryRepo, clock.C, cfg.MainSiteID, cfg.SiteColors, cfg.BaseURL, serviceTimeout)

	calendarController := delivery.NewCalendarController(logger, calendarService,
		feedService, clock.C, cfg.MainSiteID, time.Weekday(cfg.FirstWeekday))
	eventController := delivery.NewEventController(logger, eventService, clock.C, cfg.MainSiteID)

	mux := delivery.NewRouter(calendarController, eventController)
	handler := middleware.LoggingMiddleware(logger,
		middleware.CORS(cfg.CORSAllowedOrigins, mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
