// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"log"
	"strings"

	"revattest/internal/models"
	"revattest/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuth validates the bearer service token and stores its claims in
// the request context under "claims".
func ServiceAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := utils.ParseServiceToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Printf("Token validation error: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("claims", claims)
		c.Locals("subject", claims.Subject)
		return c.Next()
	}
}

// RequireScope rejects callers whose token lacks scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*models.ServiceClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid claims"})
		}
		if !claims.HasScope(scope) {
			log.Printf("Scope %s denied for %s", scope, claims.Subject)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient scope"})
		}
		return c.Next()
	}
}
