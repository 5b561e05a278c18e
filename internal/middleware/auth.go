package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumen-events/backend/pkg/response"
)

const (
	// ContextUserID is the key for the admin user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the admin role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for the admin email in gin context.
	ContextUserEmail = "user_email"
	// ContextUserMarkets is the key for the admin market list in gin context.
	ContextUserMarkets = "user_markets"
	// ContextJTI is the key for the bearer token's session ID in gin context.
	ContextJTI = "jti"
)

// AdminClaims is what the token validator yields for an admin bearer token.
type AdminClaims struct {
	UserID  uuid.UUID
	Email   string
	Role    string
	Markets []string
	JTI     uuid.UUID
}

// TokenValidator checks a bearer token signature and returns its claims.
type TokenValidator func(token string) (*AdminClaims, error)

// SessionChecker reports whether the token's session is still active. A
// logged-out token fails here even with a valid signature.
type SessionChecker func(ctx context.Context, jti uuid.UUID) (bool, error)

// AdminAuth returns a middleware that validates the admin bearer token and
// its server-side session, then sets user claims in context.
func AdminAuth(validate TokenValidator, sessionActive SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		claims, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		active, err := sessionActive(c.Request.Context(), claims.JTI)
		if err != nil || !active {
			response.Unauthorized(c, "session expired")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserMarkets, claims.Markets)
		c.Set(ContextJTI, claims.JTI.String())
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// BearerToken extracts the raw bearer token for handlers that accept
// non-admin credentials (attendee sessions).
func BearerToken(c *gin.Context) (string, bool) {
	return bearerToken(c)
}
