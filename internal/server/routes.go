package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func HealthCheckRoutes(engine *gin.Engine, api *SessionApi, logger *zap.SugaredLogger) {
	logger.Debug("Health check routes added to engine.")
	apiv1 := engine.Group("")
	{
		apiv1.GET("/healthz", api.Healthz)
		apiv1.GET("/metrics", api.Metrics)
	}
}

func SessionRoutes(engine *gin.Engine, api *SessionApi, limiter *RateLimiter, logger *zap.SugaredLogger) {
	logger.Debug("Session routes added to engine.")
	engine.POST("/sessions", api.Create)

	apiv1 := engine.Group("/sessions/:id")
	apiv1.Use(rateLimit(limiter))
	{
		apiv1.GET("", api.Get)
		apiv1.DELETE("", api.Delete)
		apiv1.POST("/start", api.Start)
		apiv1.POST("/answer", api.Answer)
		apiv1.POST("/listen", api.Listen)
		apiv1.POST("/stop-listening", api.StopListening)
		apiv1.POST("/complete", api.Complete)
		apiv1.POST("/export", api.Export)
		apiv1.GET("/export", api.ExportRecord)
		apiv1.GET("/summary", api.Summary)
		apiv1.POST("/screenshots", api.Screenshot)
		apiv1.POST("/audio", api.Audio)
	}
	// the websocket stays open, keep it out of the limiter
	engine.GET("/sessions/:id/ws", api.Connect)
}

// rateLimit limits requests per session.
func rateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.IsAllowed("session:"+c.Param("id")) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

// requestLogger logs every request through the service logger.
func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
