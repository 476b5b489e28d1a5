package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/stanstork/schedule-api/internal/authz"
	"github.com/stanstork/schedule-api/internal/config"
	"github.com/stanstork/schedule-api/internal/handlers"
	"github.com/stanstork/schedule-api/internal/middleware"
	"github.com/stanstork/schedule-api/internal/migration"
	"github.com/stanstork/schedule-api/internal/notification"
	"github.com/stanstork/schedule-api/internal/repository"
	"github.com/stanstork/schedule-api/internal/routes"
	"github.com/stanstork/schedule-api/internal/scheduler"
)

type application struct {
	config        *config.Config
	db            *sql.DB
	location      *time.Location
	logger        zerolog.Logger
	notifications notification.Service
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid timezone")
	}

	// Initialize database connection.
	db, err := openDatabase(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()

	// Run database migrations.
	if err := migration.Run(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventRepo := repository.NewEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := notification.NewService(eventRepo, notificationRepo, logger, loc, notification.NewLogNotifier(logger))

	app := &application{
		config:        cfg,
		db:            db,
		location:      loc,
		logger:        logger,
		notifications: notificationService,
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler.Spec, notificationService, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to configure notification scheduler")
		}
		sched.Start()
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(eventRepo)
	loggedRouter := middleware.LoggingMiddleware(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORS.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, sched)

	logger.Info().Msg("Application terminated.")
}

// openDatabase opens the pool and pings it with exponential backoff so the
// server can start alongside a database that is still booting.
func openDatabase(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backoff := retry.WithMaxRetries(cfg.Database.ConnectRetries, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn().Err(err).Msg("Database not ready, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(eventRepo repository.EventRepository) http.Handler {
	// Repositories
	userRepo := repository.NewUserRepository(app.db)
	categoryRepo := repository.NewCategoryRepository(app.db)

	tokens := authz.NewTokens(app.config.JWTSecret, app.config.TokenTTL)
	validator := handlers.NewValidator()

	// Handlers
	return routes.NewRouter(routes.Handlers{
		Auth:          handlers.NewAuthHandler(userRepo, categoryRepo, tokens, validator, app.logger),
		Users:         handlers.NewUserHandler(userRepo, validator, app.logger),
		Categories:    handlers.NewCategoryHandler(categoryRepo, eventRepo, validator, app.logger),
		Events:        handlers.NewEventHandler(eventRepo, categoryRepo, app.notifications, validator, app.location, app.logger),
		Notifications: handlers.NewNotificationHandler(app.notifications, validator, app.logger),
		Health:        handlers.HealthCheck(app.db),
	}, authz.Authenticate(tokens, app.logger))
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, sched *scheduler.Scheduler) {
	logger := app.logger
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Notification scheduler shutdown error")
		}
	}
}
