// Package app wires HTTP routes for both local and Lambda execution.
package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the full HTTP router used by the long-running server.
func NewRouter(h *Handlers) *gin.Engine {
	router := newBaseRouter(h)

	sessions := router.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.DeleteSession)
	sessions.POST("/:id/moves", h.PlayMove)
	sessions.POST("/:id/engine-move", h.EngineMove)
	sessions.POST("/:id/undo", h.Undo)
	sessions.POST("/:id/reset", h.Reset)
	sessions.PUT("/:id/settings", h.UpdateSettings)
	sessions.GET("/:id/ws", h.SessionEvents)

	return router
}

// NewStatelessRouter serves only routes that hold no per-process state.
// Lambda containers don't share memory, so game sessions are left out.
func NewStatelessRouter(h *Handlers) *gin.Engine {
	return newBaseRouter(h)
}

func newBaseRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", h.Health)
	router.GET("/tiers", h.ListTiers)
	router.POST("/calibrations", h.CreateCalibration)
	router.GET("/calibrations/:id", h.GetCalibration)
	return router
}

func requestLogger(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.Log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
