package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func roleApp(userID, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(RequireRole(RoleAdmin))
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		userID string
		role   string
		status int
	}{
		{name: "admin", userID: "ops-1", role: "admin", status: fiber.StatusOK},
		{name: "mixed case role", userID: "ops-1", role: "Admin", status: fiber.StatusOK},
		{name: "student", userID: "s-1", role: "student", status: fiber.StatusForbidden},
		{name: "no role", userID: "s-1", status: fiber.StatusForbidden},
		{name: "anonymous", status: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			resp, err := roleApp(tc.userID, tc.role).Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
