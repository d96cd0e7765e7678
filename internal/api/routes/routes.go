package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/promptshield/promptshield/backend/internal/api/handlers"
	"github.com/promptshield/promptshield/backend/internal/api/middleware"
	"github.com/promptshield/promptshield/backend/internal/llm"
	"github.com/promptshield/promptshield/backend/internal/metrics"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/pipeline"
	"github.com/promptshield/promptshield/backend/internal/services"
)

// Deps carries the constructed core components into route registration.
type Deps struct {
	Pipeline      *pipeline.Pipeline
	Provider      llm.Provider
	Events        *services.EventService
	Governance    *services.GovernanceService
	Notifications *services.NotificationService
	Auth          *services.AuthService
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, deps Deps) error {
	if err := db.AutoMigrate(
		&models.AttackEvent{},
		&models.Notification{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	// Chat boundary stays open; the defenses are the pipeline, not a login.
	generateHandler := handlers.NewGenerateHandler(deps.Pipeline, deps.Provider)
	api.POST("/generate", generateHandler.Generate)

	authHandler := handlers.NewAuthHandler(deps.Auth)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(deps.Auth))
	{
		protected.GET("/auth/me", authHandler.Me)

		eventHandler := handlers.NewEventHandler(deps.Events)
		protected.GET("/events", eventHandler.List)

		ruleHandler := handlers.NewRuleHandler(deps.Governance)
		protected.GET("/rules", ruleHandler.ListActive)
		protected.GET("/rules/pending", ruleHandler.ListPending)
		protected.POST("/rules/approve", ruleHandler.Approve)
		protected.POST("/rules/reject", ruleHandler.Reject)

		notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return nil
}
