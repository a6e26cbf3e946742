package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceName is reported by the health check.
const ServiceName = "recordpilot"

// HealthHandler answers liveness probes.
type HealthHandler struct {
	now func() time.Time
}

func NewHealthHandler() *HealthHandler { return &HealthHandler{now: time.Now} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{
		"status":    "OK",
		"timestamp": h.now().Format(time.RFC3339),
		"service":   ServiceName,
	})
}
