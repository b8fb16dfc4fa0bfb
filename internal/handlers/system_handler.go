package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Counter counts stored rows of one kind.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type SystemHandler struct {
	counters   map[string]Counter
	redisStats func() (map[string]string, error)
	facilities func() []string
}

// NewSystemHandler reports row counts for each named counter. redisStats
// may be nil.
func NewSystemHandler(counters map[string]Counter, redisStats func() (map[string]string, error), facilities func() []string) *SystemHandler {
	return &SystemHandler{counters: counters, redisStats: redisStats, facilities: facilities}
}

// HealthCheck godoc
// @Summary Liveness check
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *SystemHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SystemStats godoc
// @Summary Database counts, redis statistics and registered facilities
// @Tags System
// @Router /system/stats [get]
func (h *SystemHandler) SystemStats(c *gin.Context) {
	ctx := c.Request.Context()

	counts := gin.H{}
	for name, counter := range h.counters {
		n, err := counter.Count(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		counts[name] = n
	}

	var redisStats interface{}
	if h.redisStats != nil {
		if stats, err := h.redisStats(); err == nil {
			redisStats = stats
		} else {
			redisStats = gin.H{"error": err.Error()}
		}
	}

	var facilities []string
	if h.facilities != nil {
		facilities = h.facilities()
	}

	c.JSON(http.StatusOK, gin.H{
		"database":   counts,
		"redis":      redisStats,
		"facilities": facilities,
	})
}
