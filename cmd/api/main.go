package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/emsd/school-billing-api/api/swagger"
	"github.com/emsd/school-billing-api/internal/handler"
	"github.com/emsd/school-billing-api/internal/middleware"
	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/repository"
	"github.com/emsd/school-billing-api/internal/service"
	"github.com/emsd/school-billing-api/pkg/cache"
	"github.com/emsd/school-billing-api/pkg/config"
	"github.com/emsd/school-billing-api/pkg/database"
	"github.com/emsd/school-billing-api/pkg/logger"
	corsmiddleware "github.com/emsd/school-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/emsd/school-billing-api/pkg/middleware/requestid"
	"github.com/emsd/school-billing-api/pkg/storage"
)

// @title School Billing API
// @version 1.0.0
// @description Billing backend for students, charges, payments and assessments
// @BasePath /api
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Dashboard.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	chargeRepo := repository.NewChargeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	backPaymentRepo := repository.NewBackPaymentRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "school-billing-api",
	})
	studentSvc := service.NewStudentService(studentRepo, backPaymentRepo, validate, logr, cfg.School.MinGrade, cfg.School.MaxGrade)
	chargeSvc := service.NewChargeService(chargeRepo, summaryRepo, studentRepo, backPaymentRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, chargeRepo, validate, logr)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, validate, logr)
	exportSvc := service.NewExportService(paymentSvc, assessmentSvc, cfg.School.Name, cfg.School.Address, logr)

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardSvc = service.NewDashboardService(summaryRepo, cacheRepo, metricsSvc, logr, cfg.Dashboard.CacheTTL)
	}

	var archiveSvc *service.ArchiveService
	if cfg.Archive.Enabled {
		store, err := storage.NewLocalStorage(cfg.Archive.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init receipt archive", "error", err)
		}
		archiveSvc = service.NewArchiveService(exportSvc, store, service.ArchiveOptions{
			Workers:   cfg.Archive.Workers,
			LinkTTL:   cfg.Archive.LinkTTL,
			Retention: cfg.Archive.Retention,
			Secret:    cfg.JWT.Secret,
		}, logr)
		archiveSvc.Start(context.Background())
		defer archiveSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	chargeHandler := handler.NewChargeHandler(chargeSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, exportSvc, dashboardSvc, archiveSvc, metricsSvc)
	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authed := middleware.JWT(authSvc)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authed, authHandler.Logout)
		auth.POST("/register", authed, admin, authHandler.Register)
		auth.POST("/change-password", authed, authHandler.ChangePassword)
	}

	students := api.Group("/students", authed)
	{
		students.GET("", studentHandler.List)
		students.GET("/:id", studentHandler.Get)
		students.POST("", staff, studentHandler.Create)
		students.PUT("/:id", staff, studentHandler.Update)
		students.DELETE("/:id", admin, studentHandler.Delete)
		students.POST("/batch-upgrade", admin,
			middleware.Audit(userRepo, models.AuditActionGradeUpgrade, "students"),
			studentHandler.BatchUpgrade)
		students.POST("/:id/check-back-payments", staff, studentHandler.CheckBackPayments)
		students.POST("/:id/upgrade-with-back-payments", staff,
			middleware.Audit(userRepo, models.AuditActionGradeUpgrade, "students"),
			studentHandler.UpgradeWithBackPayments)
	}

	charges := api.Group("/charges", authed)
	{
		charges.GET("", chargeHandler.List)
		charges.GET("/grade/:grade", chargeHandler.ListByGrade)
		charges.GET("/students/summary", chargeHandler.StudentSummaries)
		charges.GET("/students/:studentId/breakdown", chargeHandler.StudentBreakdown)
		charges.GET("/:id", chargeHandler.Get)
		charges.POST("", staff, chargeHandler.Create)
		charges.PUT("/:id", staff, chargeHandler.Update)
		charges.DELETE("/:id", admin, chargeHandler.Delete)
	}

	payments := api.Group("/payments", authed)
	{
		payments.GET("", paymentHandler.List)
		payments.GET("/:id", paymentHandler.Get)
		payments.GET("/:id/receipt", paymentHandler.Receipt)
		payments.GET("/:id/receipt-link", paymentHandler.ReceiptLink)
		payments.GET("/student/:studentId", paymentHandler.StudentHistory)
		payments.POST("", staff,
			middleware.Audit(userRepo, models.AuditActionPaymentCreate, "payments"),
			paymentHandler.Create)
		payments.POST("/:id/revert", staff,
			middleware.Audit(userRepo, models.AuditActionPaymentRevert, "payments"),
			paymentHandler.Revert)
		payments.DELETE("/:id", admin,
			middleware.Audit(userRepo, models.AuditActionPaymentDelete, "payments"),
			paymentHandler.Delete)
	}

	assessments := api.Group("/assessments", authed)
	{
		assessments.GET("/batches", assessmentHandler.ListBatches)
		assessments.GET("/batch/:batchId", assessmentHandler.GetBatch)
		assessments.GET("/batch/:batchId/export", assessmentHandler.Export)
		assessments.POST("/batch", staff, assessmentHandler.CreateBatch)
		assessments.PUT("/:assessmentId", staff, assessmentHandler.UpdateAssessment)
		assessments.DELETE("/batch/:batchId", staff, assessmentHandler.DeleteBatch)
		assessments.DELETE("/clear-all", admin, assessmentHandler.ClearAll)
	}

	if dashboardSvc != nil {
		dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
		api.GET("/dashboard/stats", authed, dashboardHandler.Stats)
	}

	if archiveSvc != nil {
		fileHandler := handler.NewFileHandler(archiveSvc)
		r.GET("/files/:token", fileHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
