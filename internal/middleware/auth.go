package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/config"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/types"
	"go.uber.org/zap"
)

// SessionCookie is the Authorizer session cookie name
const SessionCookie = "cookie_session"

const actorKey = "user"

// SessionValidator resolves a session cookie to the user it belongs to
type SessionValidator func(c *fiber.Ctx, cookie string) (services.Actor, error)

// AuthorizerSessions validates sessions against the Authorizer service. The
// client is created on the first request so the redirect URL matches the host
// the service is reached on.
func AuthorizerSessions(cfg *config.Config, log *zap.Logger) SessionValidator {
	return func(c *fiber.Ctx, cookie string) (services.Actor, error) {
		if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname(), log); err != nil {
			return services.Actor{}, err
		}
		return services.ValidateSession(cookie)
	}
}

// AuthUser requires a valid session
func AuthUser(validate SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, validate, false, "authorization.user")
	}
}

// AuthSpecialist requires a valid session with the specialist or admin role
func AuthSpecialist(validate SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, validate, true, "authorization.specialist")
	}
}

func authorize(c *fiber.Ctx, validate SessionValidator, specialist bool, errorType string) error {
	session := c.Cookies(SessionCookie)
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: fmt.Sprintf("Authorizer cookie %q not found", SessionCookie),
			Type:    errorType,
		}
	}

	actor, err := validate(c, session)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	if specialist && !actor.IsSpecialist() {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Specialist role required",
			Type:    errorType,
		}
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// CurrentActor returns the user stored by the auth middleware
func CurrentActor(c *fiber.Ctx) (services.Actor, bool) {
	actor, ok := c.Locals(actorKey).(services.Actor)
	return actor, ok
}

// SetActor stores actor for the rest of the request
func SetActor(c *fiber.Ctx, actor services.Actor) {
	c.Locals(actorKey, actor)
}
