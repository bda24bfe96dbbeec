package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Routes mounts the websocket endpoint and the health check.
func (s *Server) Routes(r gin.IRoutes) {
	r.GET("/ws", s.HandleWS)
	r.GET("/healthz", s.HandleHealth)
}

func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": s.Stats()})
}
