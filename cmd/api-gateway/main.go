package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/teaching-load-api/api/swagger"
	"github.com/noah-isme/teaching-load-api/internal/handler"
	"github.com/noah-isme/teaching-load-api/internal/middleware"
	"github.com/noah-isme/teaching-load-api/internal/models"
	"github.com/noah-isme/teaching-load-api/internal/repository"
	"github.com/noah-isme/teaching-load-api/internal/service"
	"github.com/noah-isme/teaching-load-api/pkg/cache"
	"github.com/noah-isme/teaching-load-api/pkg/config"
	"github.com/noah-isme/teaching-load-api/pkg/database"
	"github.com/noah-isme/teaching-load-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teaching-load-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teaching-load-api/pkg/middleware/requestid"
)

// @title Teaching Load API
// @version 1.0.0
// @description Teaching load allocation and audit ledger
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	assignmentRepo := repository.NewAssignmentRepository(db)
	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "teaching-load-api",
	})
	allocationService := service.NewAllocationService(
		db,
		assignmentRepo,
		classRepo,
		teacherRepo,
		counterRepo,
		auditRepo,
		cacheRepo,
		metricsService,
		validate,
		logr,
		service.AllocationConfig{
			TxTimeout:      cfg.Allocation.TxTimeout,
			MaxRetries:     cfg.Allocation.MaxRetries,
			HomeroomCredit: cfg.Allocation.HomeroomCredit,
		},
	)
	workloadService := service.NewWorkloadService(
		assignmentRepo,
		teacherRepo,
		cacheRepo,
		metricsService,
		logr,
		cfg.Workload.CacheTTL,
		cfg.Allocation.HomeroomCredit,
	)
	auditService := service.NewAuditService(auditRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	allocationHandler := handler.NewAllocationHandler(allocationService)
	workloadHandler := handler.NewWorkloadHandler(workloadService)
	auditHandler := handler.NewAuditHandler(auditService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	admin := protected.Group("")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		admin.POST("/allocations", allocationHandler.Allocate)
		admin.PUT("/allocations/:id", allocationHandler.Edit)
		admin.DELETE("/allocations/:id", allocationHandler.Delete)
		admin.POST("/allocations/batch-edit", allocationHandler.BatchEdit)
		admin.POST("/allocations/batch-delete", allocationHandler.BatchDelete)
		admin.PUT("/class-subjects/lesson-count", allocationHandler.UpdateLessonCount)
		admin.POST("/teachers/:id/homeroom-reduction", allocationHandler.GrantHomeroomReduction)
		admin.DELETE("/teachers/:id/homeroom-reduction", allocationHandler.RevokeHomeroomReduction)
		admin.GET("/audit/:entityType/:entityId", auditHandler.ListByEntity)
	}

	protected.GET("/allocations/capacity", allocationHandler.Capacity)
	protected.GET("/teachers/:id/workload", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), workloadHandler.Get)
	protected.GET("/teachers/:id/workload/export", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), workloadHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
