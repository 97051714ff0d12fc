package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier map[string]models.Principal

func (s stubVerifier) VerifyJWT(ctx context.Context, token string) (models.Principal, error) {
	p, ok := s[token]
	if !ok {
		return models.Principal{}, errors.New("invalid token")
	}
	return p, nil
}

func newAuthApp() *fiber.App {
	verifier := stubVerifier{
		"user-tok":   {ID: "u1", Role: models.RoleUser},
		"doctor-tok": {ID: "d1", Role: models.RoleDoctor},
		"admin-tok":  {ID: "admin@clinic.test", Role: models.RoleAdmin},
	}
	logger := zap.NewNop()
	whoami := func(c *fiber.Ctx) error {
		p, ok := Principal(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(p)
	}

	app := fiber.New()
	app.Get("/user", NewAuthMiddleware(logger, verifier, models.RoleUser).Handler(), whoami)
	app.Get("/admin", NewAuthMiddleware(logger, verifier, models.RoleAdmin).Handler(), whoami)
	app.Get("/chat", NewAuthMiddleware(logger, verifier, models.RoleUser, models.RoleDoctor).Handler(), whoami)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newAuthApp()

	tests := []struct {
		name   string
		path   string
		header string
		token  string
		status int
		wantID string
	}{
		{name: "user token", path: "/user", header: HeaderUserToken, token: "user-tok", status: 200, wantID: "u1"},
		{name: "missing token", path: "/user", status: 401},
		{name: "forged token", path: "/user", header: HeaderUserToken, token: "forged", status: 401},
		{name: "doctor token in user header", path: "/user", header: HeaderUserToken, token: "doctor-tok", status: 401},
		{name: "admin token", path: "/admin", header: HeaderAdminToken, token: "admin-tok", status: 200, wantID: "admin@clinic.test"},
		{name: "user token on admin route", path: "/admin", header: HeaderUserToken, token: "user-tok", status: 401},
		{name: "chat accepts doctors", path: "/chat", header: HeaderDoctorToken, token: "doctor-tok", status: 200, wantID: "d1"},
		{name: "chat accepts users", path: "/chat", header: HeaderUserToken, token: "user-tok", status: 200, wantID: "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			if tt.status == 401 {
				assert.JSONEq(t, `{"success":false,"message":"Not Authorized Login Again"}`, string(body))
				return
			}
			var p models.Principal
			require.NoError(t, json.Unmarshal(body, &p))
			assert.Equal(t, tt.wantID, p.ID)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(RecoveryMiddleware(zap.NewNop()))
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
