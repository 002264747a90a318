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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/institute-api/api/swagger"
	"github.com/noah-isme/institute-api/internal/handler"
	internalmiddleware "github.com/noah-isme/institute-api/internal/middleware"
	"github.com/noah-isme/institute-api/internal/repository"
	"github.com/noah-isme/institute-api/internal/service"
	"github.com/noah-isme/institute-api/pkg/cache"
	"github.com/noah-isme/institute-api/pkg/config"
	"github.com/noah-isme/institute-api/pkg/database"
	"github.com/noah-isme/institute-api/pkg/export"
	"github.com/noah-isme/institute-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/institute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/institute-api/pkg/middleware/requestid"
	"github.com/noah-isme/institute-api/pkg/storage"
)

// @title Institute API
// @version 1.0.0
// @description Enrollment, billing and evaluation backend
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	cacheEnabled := false
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
	} else {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close()
		cacheRepo = repo
		cacheEnabled = true
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Billing.RateCacheTTL, logr, cacheEnabled)

	students := repository.NewStudentRepository(db)
	programs := repository.NewProgramRepository(db)
	priceRules := repository.NewPriceRuleRepository(db)
	enrollments := repository.NewEnrollmentRepository(db, cfg.Billing.CodeRetries)
	payments := repository.NewPaymentRepository(db, cfg.Billing.CodeRetries)
	rates := repository.NewExchangeRateRepository(db)
	evaluations := repository.NewEvaluationRepository(db)
	grades := repository.NewGradeRepository(db)
	users := repository.NewUserRepository(db)

	files, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare receipt storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
	receipts := service.NewReceiptService(payments, enrollments,
		export.NewReceiptRenderer("Instituto Académico"), files, signer,
		service.ReceiptServiceConfig{
			Enabled:     cfg.Receipts.Enabled,
			Concurrency: cfg.Receipts.WorkerConcurrency,
			MaxRetries:  cfg.Receipts.WorkerRetries,
		}, logr)

	pricingSvc := service.NewPricingService(priceRules, logr)
	rateSvc := service.NewRateService(rates, cacheSvc, cfg.Billing.RateCacheTTL, nil, logr)
	studentSvc := service.NewStudentService(students, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollments, students, programs, pricingSvc, metrics, nil, logr)
	paymentSvc := service.NewPaymentService(payments, enrollments, programs, students, rateSvc, pricingSvc, receipts, metrics, nil, logr)
	evaluationSvc := service.NewEvaluationService(evaluations, grades, enrollments, enrollments, payments, students, programs, nil, logr)
	exportSvc := service.NewExportService(payments, export.NewCSVExporter(), logr)
	authSvc := service.NewAuthService(users, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	receipts.Start(ctx)
	defer receipts.Stop()

	router := buildRouter(cfg, logr, metrics, db, authSvc,
		handler.NewAuthHandler(authSvc),
		handler.NewStudentHandler(studentSvc),
		handler.NewPricingHandler(pricingSvc, studentSvc),
		handler.NewRateHandler(rateSvc),
		handler.NewEnrollmentHandler(enrollmentSvc),
		handler.NewPaymentHandler(paymentSvc, exportSvc),
		handler.NewReceiptHandler(receipts),
		handler.NewEvaluationHandler(evaluationSvc),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func buildRouter(
	cfg *config.Config,
	logr *zap.Logger,
	metrics *service.MetricsService,
	db *sqlx.DB,
	authSvc *service.AuthService,
	auth *handler.AuthHandler,
	students *handler.StudentHandler,
	pricing *handler.PricingHandler,
	rates *handler.RateHandler,
	enrollments *handler.EnrollmentHandler,
	payments *handler.PaymentHandler,
	receipts *handler.ReceiptHandler,
	evaluations *handler.EvaluationHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", auth.Login)
	api.POST("/auth/refresh", auth.Refresh)

	// Receipt downloads authenticate through the signed token itself.
	api.GET("/receipts/download", receipts.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	secured.GET("/students", students.List)
	secured.GET("/students/:id", students.Get)
	secured.PUT("/students/:id", students.Update)

	secured.GET("/pricing/resolve", pricing.Resolve)
	secured.GET("/pricing/rules", pricing.Rules)

	secured.GET("/rates/current", rates.Current)
	secured.GET("/rates/history", rates.History)
	secured.POST("/rates", internalmiddleware.RequireRoles("admin"), rates.Set)

	secured.GET("/enrollments", enrollments.List)
	secured.POST("/enrollments", enrollments.Create)
	secured.GET("/enrollments/:id", enrollments.Get)
	secured.POST("/enrollments/:id/void", internalmiddleware.RequireRoles("admin"), enrollments.Void)

	secured.POST("/enrollments/:id/payments/registration", payments.PayRegistration)
	secured.POST("/enrollments/:id/payments/recurring", payments.PayRecurring)
	secured.GET("/payments", payments.List)
	secured.GET("/payments/export", payments.ExportLedger)
	secured.GET("/payments/:id", payments.Get)
	secured.POST("/payments/:id/void", internalmiddleware.RequireRoles("admin"), payments.Void)
	secured.GET("/payments/:id/receipt", receipts.SignedURL)

	secured.POST("/enrollments/:id/grades", evaluations.SubmitGrade)
	secured.GET("/enrollments/:id/final-grade", evaluations.FinalGrade)
	secured.POST("/enrollments/:id/final-grade", evaluations.FinalizeGrade)
	secured.GET("/evaluation-types/:id/weights-check", evaluations.WeightsCheck)

	return r
}
