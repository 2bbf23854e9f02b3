package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"devfolio/internal/api/middleware"
	"devfolio/internal/auth"
	"devfolio/internal/collection"
	"devfolio/internal/ordering"
	"devfolio/internal/relation"
)

// 登录速率限制：每 IP+用户名 每小时次数上限。
const defaultLoginRateLimitPerHour = 10

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) {
	pins := ordering.NewService(db, logger)
	replacer := collection.NewReplacer(db, logger)
	syncer := relation.NewSyncer(db, logger)

	authHandler := NewAuthHandler(db, authService, redisClient, logger, defaultLoginRateLimitPerHour)
	profileHandler := NewProfileHandler(db, replacer, syncer)
	projectHandler := NewProjectHandler(db, pins, syncer)
	certHandler := NewCertificationHandler(db, pins)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		profileGroup := v1.Group("/profile")
		profileGroup.Use(authMiddleware)
		{
			profileGroup.GET("/education", profileHandler.ListEducation)
			profileGroup.PUT("/education", profileHandler.ReplaceEducation)
			profileGroup.GET("/experience", profileHandler.ListExperience)
			profileGroup.PUT("/experience", profileHandler.ReplaceExperience)
			profileGroup.GET("/skills", profileHandler.ListSkills)
			profileGroup.PUT("/skills", profileHandler.ReplaceSkills)

			profileGroup.GET("/stack", profileHandler.GetStack)
			profileGroup.PUT("/languages", profileHandler.SyncLanguages)
			profileGroup.PUT("/frameworks", profileHandler.SyncFrameworks)
			profileGroup.PUT("/databases", profileHandler.SyncDatabases)
			profileGroup.PUT("/tags", profileHandler.SyncTags)
		}

		projectGroup := v1.Group("/projects")
		projectGroup.Use(authMiddleware)
		{
			projectGroup.GET("", projectHandler.ListProjects)
			projectGroup.POST("", projectHandler.CreateProject)
			projectGroup.GET("/pin/next-order", projectHandler.NextPinOrder)
			projectGroup.GET("/:id", projectHandler.GetProject)
			projectGroup.PUT("/:id", projectHandler.UpdateProject)
			projectGroup.DELETE("/:id", projectHandler.DeleteProject)
			projectGroup.PATCH("/:id/pin", projectHandler.UpdatePin)
			projectGroup.PUT("/:id/technologies", projectHandler.SyncTechnologies)
		}

		certGroup := v1.Group("/certifications")
		certGroup.Use(authMiddleware)
		{
			certGroup.GET("", certHandler.ListCertifications)
			certGroup.POST("", certHandler.CreateCertification)
			certGroup.GET("/pin/next-order", certHandler.NextPinOrder)
			certGroup.PUT("/:id", certHandler.UpdateCertification)
			certGroup.DELETE("/:id", certHandler.DeleteCertification)
			certGroup.PATCH("/:id/pin", certHandler.UpdatePin)
		}
	}
}
