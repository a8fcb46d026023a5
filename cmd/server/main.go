package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/bootstrap"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/infrastructure/scheduler"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"github.com/returnflow/backend/internal/interfaces/http/handler"
	"github.com/returnflow/backend/internal/interfaces/http/middleware"
	"github.com/returnflow/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// @title           Return Engine API
// @version         1.0
// @description     Return record and NCR lifecycle engine.
// @BasePath        /api/v1
// @securityDefinitions.apikey AdminSecret
// @in header
// @name X-Admin-Secret
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting return engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("store", cfg.Store.Driver),
		zap.String("timezone", cfg.App.Timezone),
	)

	ctx := context.Background()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = tel.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.StartProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	meter := tel.Meter()
	engineMetrics, err := telemetry.NewEngineMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register engine metrics", zap.Error(err))
	}

	eng, err := bootstrap.Build(ctx, cfg, engineMetrics, log)
	if err != nil {
		log.Fatal("Failed to build engine", zap.Error(err))
	}

	maintenance, err := scheduler.NewMaintenanceScheduler(scheduler.Config{
		Enabled:       cfg.Maintenance.Enabled,
		DailySchedule: cfg.Maintenance.DailySchedule,
		SweepOrphans:  cfg.Maintenance.SweepOrphans,
		JobTimeout:    cfg.Maintenance.JobTimeout,
		Location:      cfg.App.Location(),
	}, eng.Reconcile, log)
	if err != nil {
		log.Fatal("Invalid maintenance schedule", zap.Error(err))
	}
	if err := maintenance.Start(ctx); err != nil {
		log.Fatal("Failed to start maintenance scheduler", zap.Error(err))
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tel.TracingEnabled(),
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.ProfileLabels(profiler.Enabled()))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if tel.MetricsEnabled() {
		httpMetrics, err := middleware.HTTPMetrics(meter)
		if err != nil {
			log.Fatal("Failed to register HTTP metrics", zap.Error(err))
		}
		engine.Use(httpMetrics)
	}

	var checker middleware.SecretChecker
	if eng.Verifier != nil {
		checker = eng.Verifier
	}
	routes := router.RegisterAPI(engine, router.Handlers{
		Records:     handler.NewReturnRecordHandler(eng.Records),
		Reports:     handler.NewNCRReportHandler(eng.Reports),
		Admin:       handler.NewAdminHandler(eng.Reconcile, eng.Allocator),
		Health:      handler.NewHealthHandler(eng.Backend, eng.Snapshot.Ready()),
		Maintenance: handler.NewMaintenanceHandler(maintenance),
	}, middleware.RequireAdminSecret(checker))
	router.MountDocs(engine, middleware.SwaggerAccess(middleware.SwaggerConfig{
		Enabled:  cfg.HTTP.SwaggerEnabled,
		AllowIPs: cfg.HTTP.SwaggerAllowIPs,
	}))
	for _, r := range routes {
		log.Debug("Route", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := maintenance.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop maintenance scheduler", zap.Error(err))
	}
	if err := eng.Close(shutdownCtx); err != nil {
		log.Error("Failed to close engine", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Failed to stop profiler", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
