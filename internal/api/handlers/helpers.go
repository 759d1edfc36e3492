package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

func GetUserID(c *fiber.Ctx) int64 {
	return cast.ToInt64(c.Locals("user_id"))
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}
