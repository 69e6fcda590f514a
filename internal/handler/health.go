package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/idan157001/TestShuffleFinal/internal/jobs"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// HealthStats reports a backing service's runtime counters.
type HealthStats func() any

type HealthHandler struct {
	checks   map[string]HealthCheck
	stats    map[string]HealthStats
	registry *jobs.Registry
}

func NewHealthHandler(registry *jobs.Registry, checks map[string]HealthCheck, stats map[string]HealthStats) *HealthHandler {
	return &HealthHandler{checks: checks, stats: stats, registry: registry}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{
		"status":       http.StatusText(status),
		"checks":       results,
		"watched_jobs": h.registry.Len(),
	}
	if len(h.stats) > 0 {
		stats := make(map[string]any, len(h.stats))
		for name, report := range h.stats {
			stats[name] = report()
		}
		body["stats"] = stats
	}
	c.JSON(status, body)
}
