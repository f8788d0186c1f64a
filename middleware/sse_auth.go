// middleware/sse_auth.go
package middleware

import (
	"context"
	"strings"
	"time"

	"invest-tournament-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TokenValidator checks an end-user access token for a device.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.ValidateResponse, error)
}

// SSEAuthMiddleware validates `token` and `device_id` from query params. EventSource
// clients cannot set headers, so the ranking stream authenticates this way.
//
// Usage:
//
//	app.Get("/tournaments/:id/rankings/stream", middleware.SSEAuthMiddleware(authClient), rankings.StreamRankingsSSE)
func SSEAuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			logrus.WithField("path", c.Path()).Warn("❌ [SSE_AUTH] Missing token or device_id")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token or device_id in query",
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resp, err := validator.ValidateToken(ctx, accessToken, deviceID)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"token_prefix": accessToken[:min(6, len(accessToken))],
				"device_id":    deviceID,
			}).Warn("❌ [SSE_AUTH] Validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("user_roles", resp.Roles)
		c.Locals("device_id", resp.DeviceID)

		logrus.WithFields(logrus.Fields{"user_id": resp.UserID, "device_id": resp.DeviceID}).Debug("✅ [SSE_AUTH] Authenticated")
		return c.Next()
	}
}
