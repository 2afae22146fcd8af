// Package proxy provides the inbound HTTP surface: the translated
// messages endpoint, the static model list, liveness, CORS preflight,
// and the unmodified pass-through fallback.
package proxy

import (
	"net/http"

	"kimi-bridge/internal/config"
	"kimi-bridge/internal/upstream"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Server dispatches inbound requests. All of its state is read-only
// after construction; requests share nothing mutable.
type Server struct {
	cfg    *config.Config
	client *upstream.Client
}

// NewServer creates the front door over the given upstream client.
func NewServer(cfg *config.Config, client *upstream.Client) *Server {
	return &Server{cfg: cfg, client: client}
}

// Engine builds the router. Streaming routes stay outside the gzip
// middleware so event flushes reach the caller unbuffered.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", s.handleHealth)
	r.GET("/v1/models", gzip.Gzip(gzip.DefaultCompression), s.handleModelList)
	r.POST("/v1/messages", s.handleMessages)
	r.NoRoute(s.handlePassthrough)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// corsMiddleware answers preflight requests immediately with permissive
// headers and decorates every other response.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
