package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/handler"
	"github.com/noah-isme/ctp-enrollment-api/internal/middleware"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/pkg/config"
	"github.com/noah-isme/ctp-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
	"github.com/noah-isme/ctp-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ctp-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ctp-enrollment-api/pkg/middleware/requestid"
	"github.com/noah-isme/ctp-enrollment-api/pkg/response"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		PublicPrefixes: []string{cfg.APIPrefix + "/public", "/assets"},
		MaxAge:         cfg.CORS.MaxAge,
	}))
	r.Use(middleware.Metrics(app.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(app.metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := database.Ready(c.Request.Context(), app.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		if app.cacheRepo != nil {
			if err := app.cacheRepo.Ping(context.Background()); err != nil {
				logr.Warn("redis ping failed", zap.Error(err))
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if app.assetsDir != "" {
		r.Static("/assets", app.assetsDir)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(app.auth)
	userHandler := handler.NewUserHandler(app.userService)
	careerHandler := handler.NewCareerHandler(app.careers)
	enrollmentHandler := handler.NewEnrollmentHandler(app.enrollments)
	dashboardHandler := handler.NewDashboardHandler(app.dashboard)
	reportHandler := handler.NewReportHandler(app.reports)

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(app.users, logr, action, resource)
	}
	admin := middleware.RequireAdmin()

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", metricsHandler.Health)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	public := api.Group("/public")
	public.GET("/careers", careerHandler.ListPublic)
	public.POST("/enrollments", enrollmentHandler.Submit)

	secured := api.Group("")
	secured.Use(middleware.JWT(app.auth))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.PUT("/me", userHandler.UpdateProfile)

	secured.GET("/enrollments", enrollmentHandler.List)
	secured.POST("/enrollments", enrollmentHandler.Create)
	secured.GET("/enrollments/:id", enrollmentHandler.Get)
	secured.PUT("/enrollments/:id", audit(models.AuditActionEnrollmentUpdate, "enrollment"), enrollmentHandler.Update)
	secured.PATCH("/enrollments/:id/printed", enrollmentHandler.MarkPrinted)
	secured.GET("/enrollments/:id/pdf", reportHandler.EnrollmentSheet)
	secured.DELETE("/enrollments/:id", admin, audit(models.AuditActionEnrollmentDelete, "enrollment"), enrollmentHandler.Delete)

	secured.GET("/dashboard/stats", dashboardHandler.Stats)

	secured.GET("/careers", careerHandler.List)
	secured.POST("/careers", admin, audit(models.AuditActionCareerCreate, "career"), careerHandler.Create)
	secured.PUT("/careers/:id", admin, audit(models.AuditActionCareerUpdate, "career"), careerHandler.Update)
	secured.PATCH("/careers/:id/active", admin, audit(models.AuditActionCareerUpdate, "career"), careerHandler.SetActive)
	secured.DELETE("/careers/:id", admin, audit(models.AuditActionCareerDelete, "career"), careerHandler.Delete)

	secured.GET("/reports/enrollments", reportHandler.ExportEnrollments)
	secured.GET("/reports/download/:token", reportHandler.Download)
	secured.GET("/metrics/summary", admin, metricsHandler.Summary)

	users := secured.Group("/users", admin)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", userHandler.Create)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	return r
}
