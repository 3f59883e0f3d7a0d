package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
)

// Claims is the access-token payload.
type Claims struct {
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"is_admin"`
	jwt.RegisteredClaims
}

// Tokens issues and checks HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  common.Clock
}

// NewTokens creates an HS256 issuer. Expiry is checked against clock.
func NewTokens(secret string, ttl time.Duration, clock common.Clock) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Issue signs a token for the user.
func (t *Tokens) Issue(userID int64, isAdmin bool) (string, time.Time, error) {
	now := t.clock.Now()
	exp := now.Add(t.ttl)
	claims := Claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates a token and returns its claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token has no user")
	}
	return &claims, nil
}

const (
	localUserID  = "user_id"
	localIsAdmin = "is_admin"
)

// AuthRequired accepts "Authorization: Bearer <token>".
func AuthRequired(t *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return WriteError(c, fiber.StatusUnauthorized, "missing bearer token", "unauthorized")
		}
		claims, err := t.Parse(token)
		if err != nil {
			return WriteError(c, fiber.StatusUnauthorized, "invalid or expired token", "unauthorized")
		}
		c.Locals(localUserID, claims.UserID)
		c.Locals(localIsAdmin, claims.IsAdmin)
		return c.Next()
	}
}

// AdminOnly must run after AuthRequired.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if admin, _ := c.Locals(localIsAdmin).(bool); !admin {
			return WriteError(c, fiber.StatusForbidden, "admin access required", "forbidden")
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or 0.
func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(localUserID).(int64)
	return id
}

// Context returns the request context carrying the client IP for activity rows.
func Context(c *fiber.Ctx) context.Context {
	return ledger.WithIP(c.UserContext(), c.IP())
}

// Guards bundles the route middlewares feature handlers attach.
type Guards struct {
	Auth  fiber.Handler
	Admin fiber.Handler
}
