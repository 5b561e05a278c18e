package admin

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/internal/otp"
	"github.com/lumen-events/backend/pkg/response"
)

// OtpGenerateRequest is the body for POST /api/auth/otp/generate.
type OtpGenerateRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// OtpValidateRequest is the body for POST /api/auth/otp/validate.
type OtpValidateRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// Handler handles admin authentication and user listing.
type Handler struct {
	repo   *Repository
	otpSvc *otp.Service
	tokens *TokenService
	logger *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(repo *Repository, otpSvc *otp.Service, tokens *TokenService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, otpSvc: otpSvc, tokens: tokens, logger: logger}
}

// GenerateOtp handles POST /api/auth/otp/generate.
func (h *Handler) GenerateOtp(c *gin.Context) {
	var req OtpGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.otpSvc.GenerateForAdmin(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, otp.ErrNotAuthorizedAdmin) {
			response.Forbidden(c, "email not authorized")
			return
		}
		h.logger.Error("admin otp generate failed", zap.Error(err))
		response.BadRequest(c, "could not send verification code")
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

// ValidateOtp handles POST /api/auth/otp/validate. On success it issues a
// bearer token backed by an auth session row.
func (h *Handler) ValidateOtp(c *gin.Context) {
	var req OtpValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.otpSvc.Validate(c.Request.Context(), req.Email, "", req.Code, nil)
	if err != nil {
		response.Unauthorized(c, "verification failed")
		return
	}
	if result.Purpose != models.PurposeAdminLogin {
		response.Unauthorized(c, "verification failed")
		return
	}

	email := strings.ToLower(req.Email)
	user, err := h.repo.GetByEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("load admin user failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	if user == nil {
		// First login of a bootstrap admin provisions the row.
		user, err = h.repo.Create(c.Request.Context(), email, result.Profile.FirstName+" "+result.Profile.LastName, models.RoleAdmin, nil)
		if err != nil {
			h.logger.Error("create bootstrap admin failed", zap.Error(err))
			response.Internal(c, "login failed")
			return
		}
	}

	token, jti, expiresAt, err := h.tokens.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	if err := h.repo.CreateAuthSession(c.Request.Context(), jti, user.ID, expiresAt); err != nil {
		h.logger.Error("create auth session failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	response.OK(c, gin.H{"token": token, "user": user, "expires_at": expiresAt})
}

// Logout handles POST /api/auth/logout: revokes the current session.
func (h *Handler) Logout(c *gin.Context) {
	jtiStr := c.GetString(middleware.ContextJTI)
	jti, err := uuid.Parse(jtiStr)
	if err != nil {
		response.Unauthorized(c, "missing session")
		return
	}
	if err := h.repo.DeleteAuthSession(c.Request.Context(), jti); err != nil {
		h.logger.Error("delete auth session failed", zap.Error(err))
		response.Internal(c, "logout failed")
		return
	}
	response.NoContent(c)
}

// List handles GET /api/users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}
