// middleware/auth.go
package middleware

import (
	"context"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PrincipalLocal is the fiber.Ctx locals key holding the authenticated caller.
const PrincipalLocal = "principal"

// Token headers, one per role.
const (
	HeaderUserToken   = "token"
	HeaderDoctorToken = "dtoken"
	HeaderAdminToken  = "atoken"
)

var roleHeaders = map[models.Role]string{
	models.RoleUser:   HeaderUserToken,
	models.RoleDoctor: HeaderDoctorToken,
	models.RoleAdmin:  HeaderAdminToken,
}

// TokenVerifier resolves a token to the caller it was issued for.
type TokenVerifier interface {
	VerifyJWT(ctx context.Context, token string) (models.Principal, error)
}

type AuthMiddleware struct {
	logger *zap.Logger
	tokens TokenVerifier
	roles  []models.Role
}

// NewAuthMiddleware accepts callers of any of roles. Each role presents its
// token in its own header and the token must have been issued for that role.
func NewAuthMiddleware(logger *zap.Logger, tokens TokenVerifier, roles ...models.Role) *AuthMiddleware {
	return &AuthMiddleware{
		logger: logger,
		tokens: tokens,
		roles:  roles,
	}
}

func notAuthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "Not Authorized Login Again",
	})
}

func (m *AuthMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, role := range m.roles {
			token := c.Get(roleHeaders[role])
			if token == "" {
				continue
			}

			principal, err := m.tokens.VerifyJWT(c.UserContext(), token)
			if err != nil {
				m.logger.Debug("invalid token",
					zap.String("path", c.Path()),
					zap.String("role", string(role)),
					zap.Error(err))
				return notAuthorized(c)
			}
			if principal.Role != role {
				m.logger.Debug("token presented for the wrong role",
					zap.String("path", c.Path()),
					zap.String("expected", string(role)),
					zap.String("actual", string(principal.Role)))
				return notAuthorized(c)
			}

			c.Locals(PrincipalLocal, principal)
			return c.Next()
		}

		m.logger.Debug("no authentication found", zap.String("path", c.Path()))
		return notAuthorized(c)
	}
}

// Principal returns the caller stored by the auth middleware.
func Principal(c *fiber.Ctx) (models.Principal, bool) {
	p, ok := c.Locals(PrincipalLocal).(models.Principal)
	return p, ok
}
