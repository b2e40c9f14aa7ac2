package main

import (
	"github.com/ShaharSGA/Project/internal/handlers"
	"github.com/ShaharSGA/Project/internal/middleware"
	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(middleware.RequestID(), logger.GinLogger("/health", "/metrics"), logger.GinRecovery())
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))

	r.GET("/health", svc.healthHandler.Health)
	r.GET("/metrics", handlers.Metrics(svc.registry))

	api := r.Group("/api")
	{
		api.POST("/auth/login", svc.authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.tokens), middleware.RequireRole("reviewer"))
		{
			feedback := protected.Group("/feedback")
			{
				feedback.POST("", svc.limiter.Middleware(), svc.feedbackHandler.Submit)
				feedback.GET("/recent", svc.feedbackHandler.Recent)
				feedback.GET("/patterns", svc.feedbackHandler.Patterns)
				feedback.GET("/stats", svc.feedbackHandler.Stats)
				feedback.GET("/:id", svc.feedbackHandler.Get)
			}

			lab := protected.Group("/lab")
			{
				lab.GET("/queue", svc.labHandler.Queue)
				lab.GET("/prompts/:category", svc.labHandler.Prompt)
				lab.POST("/age", svc.labHandler.Age)
				lab.POST("/:id/refine", svc.labHandler.Refine)
				lab.POST("/:id/skip", svc.labHandler.Skip)
				lab.POST("/:id/discard", svc.labHandler.Discard)
			}

			protected.POST("/learning/aggregate", svc.learningHandler.Aggregate)
		}
	}
}
