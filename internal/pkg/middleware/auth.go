package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

// RequireAuth rejects requests without a logged-in session.
func RequireAuth(c *fiber.Ctx) error {
	loggedIn, _ := c.Locals(usercontext.KeyFromProtected).(bool)
	if !loggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAdmin rejects requests unless the session belongs to an admin.
func RequireAdmin(c *fiber.Ctx) error {
	loggedIn, _ := c.Locals(usercontext.KeyFromProtected).(bool)
	if !loggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if isAdmin, ok := c.Locals(usercontext.KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin access required",
		})
	}
	return c.Next()
}
