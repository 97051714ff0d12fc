package utils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, ttl time.Duration) (*JwtTokenGenerator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewJwtTokenGenerator(rdb, "test-secret", ttl), mr
}

func TestGenerateAndVerify(t *testing.T) {
	g, _ := newTestGenerator(t, time.Hour)
	ctx := context.Background()

	token, err := g.GenerateJWT(ctx, models.Principal{ID: "abc", Role: models.RoleDoctor})
	require.NoError(t, err)

	p, err := g.VerifyJWT(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, models.RoleDoctor, p.Role)
	assert.NotEmpty(t, p.SessionID)
}

func TestInvalidatedTokenIsRejected(t *testing.T) {
	g, _ := newTestGenerator(t, time.Hour)
	ctx := context.Background()

	token, err := g.GenerateJWT(ctx, models.Principal{ID: "abc", Role: models.RoleUser})
	require.NoError(t, err)
	p, err := g.VerifyJWT(ctx, token)
	require.NoError(t, err)

	require.NoError(t, g.InvalidateToken(ctx, p.SessionID))
	_, err = g.VerifyJWT(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionExpiry(t *testing.T) {
	g, mr := newTestGenerator(t, time.Hour)
	ctx := context.Background()

	token, err := g.GenerateJWT(ctx, models.Principal{ID: "abc", Role: models.RoleUser})
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, err = g.VerifyJWT(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForeignSignatureRejected(t *testing.T) {
	g, _ := newTestGenerator(t, time.Hour)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "abc", "role": "admin", "jti": "x", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = g.VerifyJWT(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.VerifyJWT(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestReceiptGenerator(t *testing.T) {
	g := NewReceiptGenerator("med_")
	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "med_"))
	assert.Len(t, a, len("med_")+8)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a[4:], "O")
}
