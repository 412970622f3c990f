package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"payquest/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthProbeTimeout = 2 * time.Second

// HealthCheck handles GET /health. Dependencies are probed in parallel, each
// under its own timeout; a single failure turns the report into 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make([]ports.DependencyHealth, len(checkers))
		var wg sync.WaitGroup
		for i, hc := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = probe(c.Request.Context(), hc)
			}()
		}
		wg.Wait()

		code, status := http.StatusOK, "ok"
		report := make(map[string]ports.DependencyHealth, len(checkers))
		for i, hc := range checkers {
			report[hc.Name()] = results[i]
			if !results[i].Up {
				code, status = http.StatusServiceUnavailable, "degraded"
			}
		}

		c.JSON(code, gin.H{"status": status, "dependencies": report})
	}
}

func probe(ctx context.Context, hc ports.HealthChecker) ports.DependencyHealth {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err := hc.Ping(ctx)
	h := ports.DependencyHealth{Up: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
