package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/config"
	"github.com/localnerve/permit-review/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthHandler reports dependency reachability
type HealthHandler struct {
	Config *config.Config
	DB     *gorm.DB
	Events services.Pinger
	Blobs  services.Pinger
	Log    *zap.Logger
}

// Check handles GET /healthz
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /healthz [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	result := services.HealthCheck(c.UserContext(), h.Config, h.DB, h.Events, h.Blobs, h.Log)
	status := fiber.StatusOK
	if !result.Healthy() {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
