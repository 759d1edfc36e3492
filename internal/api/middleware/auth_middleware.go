package middleware

import (
	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postgroup/configs"
	"github.com/maheshrc27/postgroup/internal/service"
	"github.com/maheshrc27/postgroup/pkg/utils"
	"go.uber.org/zap"
)

type AuthMiddleware struct {
	s   service.ApiKeyService
	cfg config.Config
	log *zap.Logger
}

func NewAuthMiddleware(cfg config.Config, service service.ApiKeyService, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{s: service, cfg: cfg, log: log}
}

// AuthMiddleware accepts an api_key query parameter or a session cookie and
// stores the caller's id in the "user_id" local.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		apiKey := c.Query("api_key")

		if tokenString == "" && apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Keys or cookies",
			})
		}

		if apiKey != "" {
			userID, err := m.s.GetUserID(c.UserContext(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid API key",
				})
			}
			c.Locals("user_id", userID)
			return c.Next()
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			c.Cookie(&fiber.Cookie{
				Name:   m.cfg.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			m.log.Info("token validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}
