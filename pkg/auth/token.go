package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"tallerpro.mx/shop/models"
)

// Claims are the custom payload of a session token.
type Claims struct {
	UserID      string   `json:"userId"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// ID returns the user id, or uuid.Nil when the claim is malformed.
func (c *Claims) ID() uuid.UUID {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenManager(secret string, ttl time.Duration, clk clock.Clock) *TokenManager {
	if clk == nil {
		clk = clock.WallClock
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clk}
}

// Issue creates a token for u carrying its current permissions.
func (m *TokenManager) Issue(u *models.User) (string, time.Time, error) {
	now := m.clock.Now()
	expires := now.Add(m.ttl)
	claims := Claims{
		UserID:      u.ID.String(),
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.RoleName(),
		Permissions: u.Permissions(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errors.Annotate(err, "sign token")
	}
	return signed, expires, nil
}

// Parse validates a token and returns its claims. Any failure is reported
// as errors.Unauthorized.
func (m *TokenManager) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, errors.Unauthorizedf("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ID() == uuid.Nil {
		return nil, errors.Unauthorizedf("invalid token claims")
	}
	return claims, nil
}
