package server

import (
	"net/http"

	"github.com/dmi-project/dmi-gateway/internal/api"
	"github.com/dmi-project/dmi-gateway/internal/api/middleware"
	"github.com/dmi-project/dmi-gateway/internal/app"

	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	// Health check endpoint
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := s.ginEngine.Group("/public-api")
	public.POST("/deepfake-detection/", handlerWrapper(app, api.DeepfakeDetection))
	public.POST("/ai-text-detection/", handlerWrapper(app, api.AITextDetection))
	public.POST("/ai-media-detection/", handlerWrapper(app, api.AIMediaDetection))

	// Key management is only reachable when a token is configured
	if app.Config().Management == nil || app.Config().Management.Token == "" {
		return
	}

	keys := public.Group("/keys")
	keys.Use(handlerWrapper(app, middleware.ManagementAuthentication))

	keys.GET("", handlerWrapper(app, api.ListKeys))
	keys.POST("", handlerWrapper(app, api.CreateKey))
	keys.GET("/:id", handlerWrapper(app, api.GetKey))
	keys.PATCH("/:id", handlerWrapper(app, api.UpdateKey))
	keys.DELETE("/:id", handlerWrapper(app, api.RevokeKey))
	keys.GET("/:id/usage", handlerWrapper(app, api.KeyUsage))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
