package admin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumen-events/backend/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims holds admin JWT claims. The registered ID (jti) is persisted to
// auth_sessions so logout can revoke the token before expiry.
type Claims struct {
	UserID  uuid.UUID   `json:"user_id"`
	Email   string      `json:"email"`
	Role    models.Role `json:"role"`
	Markets []string    `json:"markets,omitempty"`
	jwt.RegisteredClaims
}

// TokenService handles admin bearer-token generation and validation.
type TokenService struct {
	secret      []byte
	expireHours int
}

// NewTokenService creates a token service.
func NewTokenService(secret string, expireHours int) *TokenService {
	return &TokenService{secret: []byte(secret), expireHours: expireHours}
}

// Generate creates a new JWT for the user, returning the token, its jti and
// expiry for session persistence.
func (s *TokenService) Generate(user *models.AdminUser) (token string, jti uuid.UUID, expiresAt time.Time, err error) {
	jti = uuid.New()
	expiresAt = time.Now().Add(time.Duration(s.expireHours) * time.Hour)
	claims := Claims{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Markets: user.Markets,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        jti.String(),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, jti, expiresAt, err
}

// Validate parses and validates a JWT, returning claims or error.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
