package app

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"time"

	"student-records/internal/auth"
	"student-records/internal/config"
	"student-records/internal/db"
	"student-records/internal/health"
	"student-records/internal/logger"
	"student-records/internal/messaging"
	"student-records/internal/metrics"
	"student-records/internal/middleware"
	"student-records/internal/student"
	"student-records/internal/telemetry"
	"student-records/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
)

type App struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	logger    *slog.Logger
	db        *bun.DB
	producer  messaging.Producer
	telemetry *telemetry.Telemetry
}

// handlers are the route owners mounted by newRouter.
type handlers struct {
	health *health.Handler
	auth   *auth.Handler
	guard  *auth.Service
	api    *student.APIHandler
	pages  *student.PageHandler
}

func New(ctx context.Context) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version, os.Getenv("ENV"))

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "git_commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	tel, err := telemetry.Init(ctx, cfg.Telemetry, ServiceName, Version, slogLogger)
	if err != nil {
		return nil, err
	}

	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := tel.Metrics.Database.RegisterDB(database.DB, tel.Meter); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	indexes := append(student.Indexes(), auth.Indexes()...)
	models := append(student.Models(), auth.Models()...)
	if err := db.RunMigrations(ctx, database, indexes, models...); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	producer, err := messaging.NewProducer(cfg.Messaging, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize event producer, events disabled", "driver", cfg.Messaging.Driver, "error", err)
		producer = messaging.NopProducer{}
	}
	producer = messaging.Instrument(producer, cfg.Messaging.Driver, tel.Metrics.Messaging)

	tmpl, err := web.Templates()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	authService := auth.NewService(auth.NewRepository(database, tel.Metrics), cfg.Auth, slogLogger, tel.Metrics)

	studentRepo := student.NewRepository(database, tel.Metrics)
	studentService := student.NewService(studentRepo, producer, slogLogger)

	h := handlers{
		health: health.NewHandler(database, slogLogger),
		auth:   auth.NewHandler(authService, slogLogger),
		guard:  authService,
		api:    student.NewAPIHandler(studentService, slogLogger, tel.Metrics),
		pages:  student.NewPageHandler(studentService, slogLogger, tel.Metrics),
	}

	app := &App{
		config:    cfg,
		router:    newRouter(cfg, slogLogger, tel.Metrics, tmpl, h),
		logger:    slogLogger,
		db:        database,
		producer:  producer,
		telemetry: tel,
	}

	slogLogger.Info("application initialized successfully")

	return app, nil
}

func newRouter(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, tmpl *template.Template, h handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger, m))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.SetHTMLTemplate(tmpl)

	// Health endpoints (no auth required)
	h.health.RegisterRoutes(router)

	csrf := web.CSRF(cfg.Auth.SecureCookies)

	h.auth.RegisterRoutes(router.Group("", csrf))

	api := router.Group("/api", auth.RequireAPI(h.guard))
	h.api.RegisterRoutes(api)

	pages := router.Group("/", auth.RequirePage(h.guard), csrf)
	h.pages.RegisterRoutes(pages)

	return router
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  seconds(a.config.Server.ReadTimeout),
		WriteTimeout: seconds(a.config.Server.WriteTimeout),
		IdleTimeout:  seconds(a.config.Server.IdleTimeout),
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then releases the producer, the
// database and the meter provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close: %w", err))
		}
	}
	db.Close(a.db)
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
