//go:build unit || e2e

package authtest

import (
	"testing"
	"time"

	"barberbook/internal/pkg/config"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// JWTHelper mints tokens the way the external identity service would,
// so e2e requests pass the verifier.
type JWTHelper struct {
	cfg config.JWTConfig
}

func NewJWTHelper(cfg config.JWTConfig) *JWTHelper {
	return &JWTHelper{cfg: cfg}
}

func (h *JWTHelper) GenerateToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	return h.signToken(t, userID, role, time.Hour)
}

func (h *JWTHelper) CreateExpiredToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	return h.signToken(t, userID, role, -time.Hour)
}

func (h *JWTHelper) signToken(t *testing.T, userID uuid.UUID, role string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
		jwtlib.RegisteredClaims
	}{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Secret))
	require.NoError(t, err)
	return token
}
