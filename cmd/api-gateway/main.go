package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academy-api/api/swagger"
	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/cache"
	"github.com/noah-isme/academy-api/pkg/config"
	"github.com/noah-isme/academy-api/pkg/database"
	"github.com/noah-isme/academy-api/pkg/export"
	"github.com/noah-isme/academy-api/pkg/i18n"
	"github.com/noah-isme/academy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-api/pkg/middleware/requestid"
	"github.com/noah-isme/academy-api/pkg/response"
	"github.com/noah-isme/academy-api/pkg/storage"
)

// @title Academy API
// @version 1.0.0
// @description Course enrollment ledger, payment journal, attendance billing and certificates.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, revenue cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	catalog, err := i18n.New(cfg.Ledger.DefaultLocale)
	if err != nil {
		logr.Fatal("load message catalog", zap.Error(err))
	}
	validate := validator.New()
	if err := catalog.RegisterValidator(validate); err != nil {
		logr.Fatal("register validator translations", zap.Error(err))
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	documents, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Fatal("prepare certificate storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, redisClient != nil)
	revenueSvc := service.NewRevenueService(paymentRepo, cacheSvc, service.RevenueOptions{
		CacheTTL: cfg.Reports.CacheTTL,
		Workers:  cfg.Reports.InvalidationWorkers,
	}, validate, logr)
	revenueSvc.Start(ctx)
	defer revenueSvc.Stop()

	provisioningSvc := service.NewProvisioningService(db, studentRepo, userRepo, auditRepo, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(db, courseRepo, studentRepo, registrationRepo, paymentRepo, certificateRepo, auditRepo, revenueSvc, metricsSvc, validate, logr)
	paymentSvc := service.NewPaymentService(db, registrationRepo, paymentRepo, auditRepo, revenueSvc, metricsSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(db, courseRepo, registrationRepo, paymentRepo, attendanceRepo, provisioningSvc, auditRepo,
		service.BillingPolicy{Method: cfg.Ledger.AutoBillMethod, Note: cfg.Ledger.AutoBillNote},
		revenueSvc, metricsSvc, validate, logr)
	certificateSvc := service.NewCertificateService(db, registrationRepo, courseRepo, studentRepo, certificateRepo, auditRepo,
		documents, export.NewPDFExporter(), signer, service.CertificateOptions{
			NumberPrefix:       cfg.Certificates.NumberPrefix,
			AcademyName:        cfg.Certificates.AcademyName,
			RequireFullPayment: cfg.Ledger.CertificateRequiresFullPayment,
		}, metricsSvc, logr)

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	studentHandler := handler.NewStudentHandler(provisioningSvc)
	reportHandler := handler.NewReportHandler(revenueSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(response.Localizer(catalog))
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/certificates/download", certificateHandler.Download)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	finance := middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant)
	teaching := middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant, models.RoleInstructor)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(service.NewTokenVerifier(cfg.JWT)))
	{
		enrollments := api.Group("/enrollments")
		enrollments.GET("", teaching, enrollmentHandler.List)
		enrollments.GET("/:id", teaching, enrollmentHandler.Get)
		enrollments.GET("/:id/ledger", finance, enrollmentHandler.Ledger)
		enrollments.GET("/:id/attendance", teaching, attendanceHandler.History)
		enrollments.POST("", finance, enrollmentHandler.Create)
		enrollments.PUT("/:id/payment", finance, enrollmentHandler.AdjustPayment)
		enrollments.POST("/:id/cancel", finance, enrollmentHandler.Cancel)
		enrollments.DELETE("/:id", finance, enrollmentHandler.Delete)
		enrollments.POST("/:id/certificate", finance, certificateHandler.Issue)

		api.POST("/courses/:id/attendance-session", teaching, attendanceHandler.RecordSession)

		api.POST("/payments", finance, paymentHandler.Create)
		api.POST("/payments/:id/void", finance, paymentHandler.Void)
		api.POST("/expenses", finance, paymentHandler.CreateExpense)

		api.POST("/students/:id/account", finance, studentHandler.ProvisionAccount)

		if cfg.Reports.Enabled {
			api.GET("/reports/revenue", finance, reportHandler.Revenue)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
