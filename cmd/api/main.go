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

	_ "github.com/campuslink/student-portal-api/api/swagger"
	"github.com/campuslink/student-portal-api/internal/gateway"
	"github.com/campuslink/student-portal-api/internal/handler"
	"github.com/campuslink/student-portal-api/internal/middleware"
	"github.com/campuslink/student-portal-api/internal/models"
	"github.com/campuslink/student-portal-api/internal/repository"
	"github.com/campuslink/student-portal-api/internal/service"
	"github.com/campuslink/student-portal-api/pkg/cache"
	"github.com/campuslink/student-portal-api/pkg/config"
	"github.com/campuslink/student-portal-api/pkg/database"
	"github.com/campuslink/student-portal-api/pkg/jobs"
	"github.com/campuslink/student-portal-api/pkg/logger"
	corsmiddleware "github.com/campuslink/student-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuslink/student-portal-api/pkg/middleware/requestid"
)

// @title CampusLink Student Portal API
// @version 1.0.0
// @description Student management portal with semester progression, payments and results
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, notifications disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	notifier := service.NewRedisNotifier(redisClient, cfg.Notify.Channel, logr)

	authService := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "student-portal-api",
	})
	studentService := service.NewStudentService(studentRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, studentRepo, validate, logr)
	academicService := service.NewAcademicService(gradeRepo, studentRepo, logr)
	progressionService := service.NewProgressionService(appRepo, studentRepo, paymentRepo, notifier, validate, logr)
	paymentService := service.NewPaymentService(paymentRepo, gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.DefaultCurrency), notifier, validate, logr)
	timetableService := service.NewTimetableService(timetableRepo, validate, logr)
	metricsService := service.NewMetricsService()
	progressionService.AttachMetrics(metricsService)
	paymentService.AttachMetrics(metricsService)

	reconcileQueue := jobs.NewQueue("payment-reconciler", paymentService.HandleReconciliation, jobs.QueueConfig{
		Workers:     cfg.Reconciler.Workers,
		MaxRetries:  cfg.Reconciler.MaxRetries,
		RetryDelay:  cfg.Reconciler.RetryDelay,
		Logger:      logr,
		OnExhausted: paymentService.HandleReconciliationFailure,
	})
	paymentService.AttachQueue(reconcileQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconcileQueue.Start(ctx)
	defer reconcileQueue.Stop()

	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	if err := authService.EnsureAdmin(seedCtx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		logr.Sugar().Fatalw("failed to seed admin", "error", err)
	}
	cancelSeed()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	resultHandler := handler.NewResultHandler(academicService)
	applicationHandler := handler.NewApplicationHandler(progressionService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	timetableHandler := handler.NewTimetableHandler(timetableService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	students := authed.Group("/students")
	{
		students.GET("", adminOnly, studentHandler.List)
		students.POST("", adminOnly, studentHandler.Create)
		students.GET("/:id", adminOnly, studentHandler.Get)
		students.PUT("/:id", adminOnly, studentHandler.Update)
		students.DELETE("/:id", adminOnly, studentHandler.Delete)
	}

	applications := authed.Group("/applications")
	{
		applications.POST("", studentOnly, applicationHandler.Submit)
		applications.GET("/mine", studentOnly, applicationHandler.ListMine)
		applications.GET("/enrollment-status", studentOnly, applicationHandler.EnrollmentStatus)
		applications.GET("", adminOnly, applicationHandler.List)
		applications.PUT("/:id/decision", adminOnly, applicationHandler.Decide)
		applications.DELETE("/:id", adminOnly, applicationHandler.Delete)
	}

	grades := authed.Group("/grades")
	{
		grades.GET("", gradeHandler.List)
		grades.POST("", adminOnly, gradeHandler.Create)
		grades.GET("/mine", studentOnly, gradeHandler.Mine)
		grades.GET("/semesters", gradeHandler.Semesters)
		grades.GET("/students/:id", gradeHandler.ByStudent)
		grades.PUT("/:id", adminOnly, gradeHandler.Update)
		grades.DELETE("/:id", adminOnly, gradeHandler.Delete)
	}

	results := authed.Group("/results")
	{
		results.GET("", adminOnly, resultHandler.Semester)
		results.GET("/mine", studentOnly, resultHandler.Mine)
		results.GET("/students/:id", adminOnly, resultHandler.Student)
	}

	payments := authed.Group("/payments")
	{
		payments.POST("/intent", studentOnly, paymentHandler.CreateIntent)
		payments.POST("", studentOnly, paymentHandler.Record)
		payments.GET("/mine", studentOnly, paymentHandler.Mine)
		payments.GET("", adminOnly, paymentHandler.List)
		payments.GET("/export", adminOnly, paymentHandler.Export)
		payments.GET("/:id/receipt", paymentHandler.Receipt)
	}

	timetable := authed.Group("/timetable")
	{
		timetable.GET("", timetableHandler.List)
		timetable.POST("", adminOnly, timetableHandler.Create)
		timetable.PUT("/:id", adminOnly, timetableHandler.Update)
		timetable.DELETE("/:id", adminOnly, timetableHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped", zap.String("addr", addr))
}
