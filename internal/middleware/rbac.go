package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thanh913/MOOJ/internal/utils"
)

// RoleAdmin is the role required by operator endpoints.
const RoleAdmin = "admin"

// RequireRole ensures the authenticated caller holds one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		role, _ := c.Locals("user_role").(string)
		if _, ok := allowed[strings.ToLower(role)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
