package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postgroup/configs"
	"github.com/maheshrc27/postgroup/internal/api/handlers"
	"github.com/maheshrc27/postgroup/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type keys map[string]int64

func (k keys) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	if id, ok := k[apiKey]; ok {
		return id, nil
	}
	return 0, errors.New("key doesn't exist")
}

func newApp(t *testing.T) (*fiber.App, config.Config) {
	cfg := config.Config{SecretKey: "0123456789abcdef0123456789abcdef", CookieName: "session"}
	m := NewAuthMiddleware(cfg, keys{"k1": 11}, zaptest.NewLogger(t))

	app := fiber.New()
	app.Use(m.AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(strconv.FormatInt(handlers.GetUserID(c), 10))
	})
	return app, cfg
}

func body(t *testing.T, resp *http.Response) string {
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestAuthMiddleware(t *testing.T) {
	app, cfg := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/whoami?api_key=k1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "11", body(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/whoami?api_key=bad", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := utils.GenerateToken(cfg.SecretKey, "5", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", body(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: "garbage"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
