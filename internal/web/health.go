package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, hc := range s.Checks {
		if err := hc.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[hc.Name] = err.Error()
			continue
		}
		body[hc.Name] = "ok"
	}
	c.JSON(status, body)
}
