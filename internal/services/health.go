package services

import (
	"context"
	"time"

	"github.com/localnerve/permit-review/internal/config"
	"github.com/localnerve/permit-review/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

// Pinger is an optional dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status     string            `json:"status"`
	Database   string            `json:"database"`
	Authorizer string            `json:"authorizer"`
	Events     string            `json:"events,omitempty"`
	Blobs      string            `json:"blobs,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Healthy reports whether every checked dependency is reachable
func (r HealthCheckResult) Healthy() bool {
	return r.Status == "healthy"
}

// HealthCheck pings the database and the Authorizer, plus the change event
// broker and blob store when they are configured (nil pingers are skipped).
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, broker, blobs Pinger, log *zap.Logger) HealthCheckResult {
	if log == nil {
		log = zap.NewNop()
	}
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}
	fail := func(component, reason string, err error) {
		result.Status = "unhealthy"
		result.Details[component+"_error"] = err.Error()
		log.Warn("health check failed", zap.String("component", component), zap.String("reason", reason), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if sqlDB, err := db.DB(); err != nil {
		result.Database = "error"
		fail("database", "connection", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		fail("database", "ping", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
		result.Authorizer = "unreachable"
		fail("authorizer", "ping", err)
	} else {
		result.Authorizer = "ok"
	}

	if broker != nil {
		if err := broker.Ping(ctx); err != nil {
			result.Events = "unreachable"
			fail("events", "ping", err)
		} else {
			result.Events = "ok"
		}
	}

	if blobs != nil {
		if err := blobs.Ping(ctx); err != nil {
			result.Blobs = "unreachable"
			fail("blobs", "ping", err)
		} else {
			result.Blobs = "ok"
			result.Details["blob_backend"] = cfg.BlobBackend
		}
	}

	if result.Healthy() {
		log.Debug("health check passed")
	}
	return result
}
