package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/VanitasCaesar1/clinic/cache"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidToken covers malformed, expired, forged and revoked tokens.
var ErrInvalidToken = errors.New("invalid token")

// ReceiptGenerator produces short human readable receipt ids for payment orders.
type ReceiptGenerator struct {
	prefix       string
	characterSet []rune
}

func NewReceiptGenerator(prefix string) *ReceiptGenerator {
	// Omitting easily confused characters: 0, O, 1, I
	return &ReceiptGenerator{
		prefix:       prefix,
		characterSet: []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789"),
	}
}

// Generate returns prefix followed by 8 random characters.
func (g *ReceiptGenerator) Generate() (string, error) {
	result := make([]rune, 8)
	charSetLength := big.NewInt(int64(len(g.characterSet)))
	for i := range result {
		idx, err := rand.Int(rand.Reader, charSetLength)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate receipt id")
		}
		result[i] = g.characterSet[idx.Int64()]
	}
	return g.prefix + string(result), nil
}

type session struct {
	Subject string      `json:"sub"`
	Role    models.Role `json:"role"`
}

// JwtTokenGenerator signs HS256 tokens and tracks live sessions in Redis by jti,
// so a token stops working as soon as its session is removed.
type JwtTokenGenerator struct {
	cache     *cache.Cache
	secretKey []byte
	ttl       time.Duration
}

func NewJwtTokenGenerator(redisClient *redis.Client, secretKey string, ttl time.Duration) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		cache:     cache.NewCache(redisClient, "jwt:"),
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// GenerateJWT issues a token for the principal and records its session.
func (g *JwtTokenGenerator) GenerateJWT(ctx context.Context, principal models.Principal) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":  principal.ID,
		"role": string(principal.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(g.ttl).Unix(),
		"jti":  jti,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	if err := g.cache.Set(ctx, jti, session{Subject: principal.ID, Role: principal.Role}, g.ttl); err != nil {
		return "", errors.Wrap(err, "failed to cache token")
	}

	return signedToken, nil
}

// VerifyJWT checks the signature, expiry and live session of a token.
func (g *JwtTokenGenerator) VerifyJWT(ctx context.Context, tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return g.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, "invalid token claims")
	}
	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if jti == "" || sub == "" || role == "" {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, "missing token claims")
	}

	var cached session
	if err := g.cache.Get(ctx, jti, &cached); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return models.Principal{}, errors.Wrap(ErrInvalidToken, "session revoked or expired")
		}
		return models.Principal{}, errors.Wrap(err, "failed to load session")
	}
	if cached.Subject != sub || string(cached.Role) != role {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, "session mismatch")
	}

	return models.Principal{ID: sub, Role: models.Role(role), SessionID: jti}, nil
}

// InvalidateToken ends the session behind a jti.
func (g *JwtTokenGenerator) InvalidateToken(ctx context.Context, jti string) error {
	return g.cache.Delete(ctx, jti)
}
