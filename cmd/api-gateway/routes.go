package main

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/edupoint-api/internal/app"
	"github.com/noah-isme/edupoint-api/internal/handler"
	"github.com/noah-isme/edupoint-api/internal/middleware"
	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/service"
	"github.com/noah-isme/edupoint-api/pkg/config"
	"github.com/noah-isme/edupoint-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edupoint-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edupoint-api/pkg/middleware/requestid"
)

func newRouter(c *app.Container) *gin.Engine {
	cfg := c.Config
	svc := c.Services

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.Metrics))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.ReadinessCheck{"postgres": c.DB.PingContext}
	if cfg.Cache.Enabled {
		checks["redis"] = func(ctx context.Context) error {
			if c.Redis == nil {
				return errors.New("redis not connected")
			}
			return c.Repos.Cache.Ping(ctx)
		}
	}
	metricsHandler := handler.NewMetricsHandler(svc.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svc.Auth)
	studentHandler := handler.NewStudentHandler(svc.Students)
	activityHandler := handler.NewActivityHandler(svc.Activities)
	rewardHandler := handler.NewRewardHandler(svc.Rewards)
	redemptionHandler := handler.NewRedemptionHandler(svc.Redemptions)
	ledgerHandler := handler.NewLedgerHandler(svc.Balances)
	teacherHandler := handler.NewTeacherHandler(svc.Teachers)
	qrHandler := handler.NewQRHandler(svc.QR)
	dashboardHandler := handler.NewDashboardHandler(svc.Dashboard)

	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)
	student := string(models.RoleStudent)
	audit := c.Repos.Users

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", middleware.RateLimit(cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow), authHandler.Login)
	auth.POST("/signup", middleware.RateLimit(cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow), authHandler.Signup)

	qr := api.Group("/qr")
	qr.POST("/resolve", qrHandler.Resolve)
	qr.POST("/redeem", qrHandler.Redeem)

	secured := api.Group("")
	secured.Use(middleware.JWT(svc.Auth))

	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.GET("/dashboard", dashboardHandler.Get)

	users := secured.Group("/users", middleware.RBAC(admin))
	users.GET("", authHandler.ListUsers)
	users.POST("/:id/reset-password", authHandler.ResetPassword)

	students := secured.Group("/students")
	students.GET("", middleware.RBAC(teacher, admin), studentHandler.List)
	students.POST("", middleware.RequireCapability(service.CapManageStudents), studentHandler.Create)
	students.GET("/classes", middleware.RBAC(teacher, admin), studentHandler.Classes)
	students.GET("/:id", middleware.RBAC(teacher, admin, middleware.Self), studentHandler.Get)
	students.GET("/:id/balance", middleware.RBAC(teacher, admin, middleware.Self), studentHandler.Balance)
	students.GET("/:id/activities", middleware.RBAC(teacher, admin, middleware.Self), activityHandler.ListForStudent)
	students.GET("/:id/statement", middleware.RBAC(admin, middleware.Self),
		middleware.Audit(audit, models.AuditActionStatementExport, "student"), studentHandler.Statement)
	students.GET("/:id/qr", middleware.RequireCapability(service.CapGenerateQR),
		middleware.Audit(audit, models.AuditActionQRGenerate, "student"), qrHandler.Generate)

	secured.POST("/activities", middleware.RequireCapability(service.CapRecordActivity), activityHandler.Record)
	secured.POST("/qr/addpoints", middleware.RequireCapability(service.CapRecordActivity), qrHandler.AddPoints)

	rewards := secured.Group("/rewards")
	rewards.GET("", rewardHandler.List)
	rewards.GET("/:id", rewardHandler.Get)
	rewards.POST("", middleware.RBAC(admin), rewardHandler.Create)
	rewards.PUT("/:id", middleware.RBAC(admin), rewardHandler.Update)
	rewards.DELETE("/:id", middleware.RBAC(admin), rewardHandler.Delete)

	redemptions := secured.Group("/redemptions")
	redemptions.POST("", middleware.RBAC(student, admin), redemptionHandler.Request)
	redemptions.GET("", middleware.RBAC(admin), redemptionHandler.List)
	redemptions.POST("/bulk-decision", middleware.RBAC(admin), redemptionHandler.BulkDecide)
	redemptions.POST("/approve-pending", middleware.RBAC(admin), redemptionHandler.ApprovePending)
	redemptions.POST("/reject-insufficient", middleware.RBAC(admin), redemptionHandler.RejectInsufficient)
	redemptions.GET("/:id", redemptionHandler.Get)
	redemptions.POST("/:id/decision", middleware.RBAC(admin), redemptionHandler.Decide)

	ledger := secured.Group("/ledger", middleware.RBAC(admin))
	ledger.POST("/reconcile", ledgerHandler.ReconcileAll)
	ledger.POST("/reconcile/:studentId", ledgerHandler.ReconcileStudent)

	teachers := secured.Group("/teachers")
	teachers.GET("", middleware.RBAC(admin), teacherHandler.List)
	teachers.GET("/:id/classes", middleware.RBAC(teacher, admin), teacherHandler.Classes)
	teachers.POST("/:id/classes", middleware.RBAC(admin), teacherHandler.Assign)
	teachers.DELETE("/:id/classes/:class", middleware.RBAC(admin), teacherHandler.Unassign)

	return r
}
