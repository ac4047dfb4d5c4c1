// Package health reports worker readiness through the standard gRPC health service.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger checks database connectivity. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker pings the database and mirrors the result into a gRPC health server.
type Checker struct {
	pinger   Pinger
	server   *health.Server
	interval time.Duration
	logger   *zap.Logger
}

// NewChecker returns a Checker that updates server. A nil pinger always reports SERVING.
// interval <= 0 means 15s.
func NewChecker(pinger Pinger, server *health.Server, interval time.Duration, logger *zap.Logger) *Checker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{pinger: pinger, server: server, interval: interval, logger: logger}
}

// Check pings once and sets the overall serving status. Returns the status it set.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if c.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.pinger.PingContext(pingCtx); err != nil {
			c.logger.Warn("health: database ping failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	c.server.SetServingStatus("", status)
	return status
}

// Run checks immediately and then every interval until ctx is cancelled, after which the
// server is shut down so clients see NOT_SERVING.
func (c *Checker) Run(ctx context.Context) {
	c.Check(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
