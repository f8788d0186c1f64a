// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"invest-tournament-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const RoleAdmin = "admin"

// UserContextMiddleware extracts user identity and roles set by Gateway.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		logrus.WithFields(logrus.Fields{"user_id": userID, "roles": roles, "path": c.Path()}).Debug("👤 [USER_CTX]")
		return c.Next()
	}
}

// RequireUser rejects requests that reached the service without a user identity.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, _ := c.Locals("user_id").(string); id == "" {
			logrus.WithField("path", c.Path()).Warn("❌ [USER_CTX] X-User-ID required but missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		return c.Next()
	}
}

// RequireAdmin allows only callers carrying the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		if !slices.Contains(roles, RoleAdmin) {
			logrus.WithFields(logrus.Fields{"path": c.Path(), "roles": roles}).Warn("⛔ [USER_CTX] Admin role required")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": services.ErrAdminRequired.Message,
				"kind":  services.KindForbidden.String(),
			})
		}
		return c.Next()
	}
}
