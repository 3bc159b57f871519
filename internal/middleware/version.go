package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APIVersion is the version served by this build
const APIVersion = "1.0.0"

// VersionMiddleware stores the requested X-Api-Version and echoes the served one
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requested := strings.TrimSpace(c.Get("X-Api-Version", APIVersion))

		// Support version aliases
		switch requested {
		case "1", "1.0":
			requested = APIVersion
		}

		c.Locals("apiVersion", requested)
		c.Set("X-Api-Version", APIVersion)
		return c.Next()
	}
}
