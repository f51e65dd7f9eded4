package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

// HealthChecker is implemented by infrastructure clients that can report
// their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) common.ComponentHealth
}

// HealthHandler handles health check HTTP requests.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	startAt  time.Time
	timeout  time.Duration
}

func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		version:  version,
		startAt:  time.Now(),
		timeout:  5 * time.Second,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type ReadinessResponse struct {
	Status     string                   `json:"status"`
	Components []common.ComponentHealth `json:"components"`
}

// Liveness handles GET /healthz.  It never checks dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	respond(c, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness handles GET /readyz.  Any component that is down makes the
// service not ready; degraded components are reported but tolerated.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	components := h.checkAll(ctx)
	resp := ReadinessResponse{Status: "ready", Components: components}
	status := http.StatusOK
	for _, comp := range components {
		if comp.Status == common.HealthDown {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			break
		}
	}
	respond(c, status, resp)
}

// checkAll runs all health checkers concurrently.  Results keep checker
// order.
func (h *HealthHandler) checkAll(ctx context.Context) []common.ComponentHealth {
	results := make([]common.ComponentHealth, len(h.checkers))
	var wg sync.WaitGroup
	for i, checker := range h.checkers {
		wg.Add(1)
		go func(i int, hc HealthChecker) {
			defer wg.Done()
			results[i] = hc.HealthCheck(ctx)
		}(i, checker)
	}
	wg.Wait()
	return results
}
