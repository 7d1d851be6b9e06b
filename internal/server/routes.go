// Package server wires HTTP handlers into a gin engine with CORS and request
// logging.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes configures and returns the gin engine for hub.
func SetupRoutes(hub *Hub) *gin.Engine {
	policy := newOriginPolicy(hub.cfg.AllowedOrigins, hub.logger)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger(hub.logger), cors.New(corsConfig(policy)))

	h := newHandlers(hub, policy)
	r.GET("/", h.Health)
	r.GET("/ws", h.WebSocket)
	r.GET("/status", h.Status)
	return r
}

// corsConfig applies the same allow-list to browser requests as the
// WebSocket upgrader does.
func corsConfig(policy *originPolicy) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if policy.allowAll {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOriginFunc = policy.allows
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
