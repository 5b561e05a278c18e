package otp

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

// GenerateRequest is the body for POST /register/otp/generate.
type GenerateRequest struct {
	Email   string `json:"email" binding:"required,email"`
	EventID string `json:"event_id"`
}

// GenerateByIDRequest is the body for POST /register/otp/generate-by-id.
type GenerateByIDRequest struct {
	DistributorID string `json:"distributor_id" binding:"required"`
	EventID       string `json:"event_id" binding:"required,uuid"`
}

// PortalGenerateRequest is the body for POST /register/otp/portal/generate.
type PortalGenerateRequest struct {
	Email   string `json:"email" binding:"required,email"`
	EventID string `json:"event_id" binding:"required,uuid"`
}

// ValidateRequest is the body for POST /register/otp/validate. Either email
// or session_token identifies the pending session.
type ValidateRequest struct {
	Email        string `json:"email"`
	SessionToken string `json:"session_token"`
	Code         string `json:"code" binding:"required"`
	EventID      string `json:"event_id"`
}

// ConsumeRequest is the body for POST /register/otp/session/consume.
type ConsumeRequest struct {
	Token string `json:"token" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// SessionIssuer mints an attendee-portal bearer token after a successful
// code check. Optional; when nil the response carries no attendee token.
type SessionIssuer func(ctx context.Context, email string, eventID *uuid.UUID) (*models.AttendeeSession, error)

// Handler exposes the public OTP endpoints.
type Handler struct {
	service  *Service
	sessions SessionIssuer
	logger   *zap.Logger
}

// NewHandler creates an OTP handler.
func NewHandler(service *Service, sessions SessionIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, sessions: sessions, logger: logger}
}

// Generate handles POST /register/otp/generate.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var eventID *uuid.UUID
	if req.EventID != "" {
		id, err := uuid.Parse(req.EventID)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		eventID = &id
	}
	if err := h.service.Generate(c.Request.Context(), req.Email, eventID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

// GenerateByID handles POST /register/otp/generate-by-id. The resolved email
// is never echoed back.
func (h *Handler) GenerateByID(c *gin.Context) {
	var req GenerateByIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, _ := uuid.Parse(req.EventID)
	token, err := h.service.GenerateByDistributorID(c.Request.Context(), req.DistributorID, eventID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"session_token": token})
}

// GeneratePortal handles POST /register/otp/portal/generate: starts the
// attendee-portal login flow for an email that already holds a registration.
func (h *Handler) GeneratePortal(c *gin.Context) {
	var req PortalGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, _ := uuid.Parse(req.EventID)
	if err := h.service.GenerateForAttendeePortal(c.Request.Context(), req.Email, eventID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

// Validate handles POST /register/otp/validate.
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Email == "" && req.SessionToken == "" {
		response.BadRequest(c, "email or session_token required")
		return
	}
	var eventID *uuid.UUID
	if req.EventID != "" {
		id, err := uuid.Parse(req.EventID)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		eventID = &id
	}
	result, err := h.service.Validate(c.Request.Context(), req.Email, req.SessionToken, req.Code, eventID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	body := gin.H{
		"verified":       true,
		"profile":        result.Profile,
		"is_qualified":   result.IsQualified,
		"redirect_token": result.RedirectToken,
	}
	if h.sessions != nil && result.Purpose != models.PurposeAdminLogin {
		if sess, err := h.sessions(c.Request.Context(), result.Email, result.EventID); err != nil {
			h.logger.Warn("attendee session issue failed", zap.Error(err))
		} else {
			body["attendee_token"] = sess.Token
			body["attendee_token_expires_at"] = sess.ExpiresAt
		}
	}
	response.OK(c, body)
}

// Consume handles POST /register/otp/session/consume.
func (h *Handler) Consume(c *gin.Context) {
	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	profile, err := h.service.ConsumeRedirectToken(c.Request.Context(), req.Token, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"profile": profile})
}

// writeError maps workflow errors onto the response-code taxonomy.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotQualified):
		response.ForbiddenCode(c, "not qualified for this event", response.CodeNotQualified)
	case errors.Is(err, ErrNoPendingVerification):
		response.BadRequestCode(c, "no pending verification", response.CodeNoPendingVerification)
	case errors.Is(err, ErrAlreadyVerified):
		response.BadRequestCode(c, "verification already used", response.CodeAlreadyVerified)
	case errors.Is(err, ErrInvalidCode):
		response.BadRequest(c, "invalid verification code")
	case errors.Is(err, ErrRedirectTokenUnknown):
		response.BadRequestCode(c, "invalid token", response.CodeTokenUsed)
	case errors.Is(err, ErrRedirectTokenUsed):
		response.BadRequestCode(c, "token already used", response.CodeTokenUsed)
	case errors.Is(err, ErrRedirectTokenExpired):
		response.BadRequestCode(c, "token expired", response.CodeTokenExpired)
	case errors.Is(err, ErrEmailMismatch):
		response.BadRequest(c, "token does not match email")
	case errors.Is(err, ErrDistributorUnknown):
		response.ForbiddenCode(c, "not qualified for this event", response.CodeNotQualified)
	case errors.Is(err, ErrCustomerNotFound):
		response.BadRequestCode(c, "no account for this email", response.CodeProviderError)
	case errors.Is(err, ErrProvider):
		h.logger.Error("identity provider failure", zap.Error(err))
		response.BadRequestCode(c, "verification service error", response.CodeProviderError)
	default:
		h.logger.Error("otp workflow error", zap.Error(err))
		response.Internal(c, "verification failed")
	}
}
