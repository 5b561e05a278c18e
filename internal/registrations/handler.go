package registrations

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

// EventResolver resolves the :id path segment to an event.
type EventResolver interface {
	Resolve(c *gin.Context, idOrSlug string) (*models.Event, bool)
}

// SessionLookup resolves attendee portal bearer tokens.
type SessionLookup interface {
	GetAttendeeSession(ctx context.Context, token string) (*models.AttendeeSession, error)
}

// BatchRequest is the body for anonymous orders: all attendees in one submit.
type BatchRequest struct {
	Attendees []*SubmitRequest `json:"attendees" binding:"required"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc      *Service
	repo     *Repository
	events   EventResolver
	sessions SessionLookup
	verifier Verifier
	logger   *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, repo *Repository, events EventResolver, sessions SessionLookup, verifier Verifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, repo: repo, events: events, sessions: sessions, verifier: verifier, logger: logger}
}

// Register handles POST /api/events/:id/register. Anonymous-mode events take
// a batch body; verified modes take a single attendee. A replacement submit
// returns 200 with was_update, a first submit 201.
func (h *Handler) Register(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}

	if e.RegistrationMode == models.ModeOpenAnonymous {
		h.registerBatch(c, e)
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Email == "" {
		response.BadRequest(c, "email is required")
		return
	}
	reg, wasUpdate, err := h.svc.Register(c.Request.Context(), e, &req, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	body := gin.H{"registration": reg, "was_update": wasUpdate}
	if wasUpdate {
		response.OK(c, body)
		return
	}
	response.Created(c, body)
}

func (h *Handler) registerBatch(c *gin.Context, e *models.Event) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	regs, orderID, err := h.svc.RegisterAnonymousBatch(c.Request.Context(), e, req.Attendees, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{"order_id": orderID, "registrations": regs})
}

// Update handles PUT /api/registrations/:id. The caller proves ownership with
// an attendee-portal bearer token or a live verified session for the
// registration's email.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	if !h.ownsRegistration(c, reg) {
		response.UnauthorizedCode(c, "verify your email to edit this registration", response.CodeVerificationRequired)
		return
	}
	e, ok := h.events.Resolve(c, reg.EventID.String())
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.Update(c.Request.Context(), e, reg, &req, c.ClientIP()); err != nil {
		h.logger.Error("update registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to update registration")
		return
	}
	response.OK(c, reg)
}

func (h *Handler) ownsRegistration(c *gin.Context, reg *models.Registration) bool {
	ctx := c.Request.Context()
	if token, ok := middleware.BearerToken(c); ok {
		sess, err := h.sessions.GetAttendeeSession(ctx, token)
		if err == nil && sess != nil && sess.EventID != nil &&
			*sess.EventID == reg.EventID && strings.EqualFold(sess.Email, reg.Email) {
			return true
		}
	}
	ok, err := h.verifier.HasVerifiedSession(ctx, reg.Email, reg.EventID)
	if err != nil {
		h.logger.Warn("verified session lookup failed", zap.Error(err))
		return false
	}
	return ok
}

// List handles GET /api/events/:id/registrations (admin).
func (h *Handler) List(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/registrations/:id (admin).
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	response.OK(c, reg)
}

// Delete handles DELETE /api/registrations/:id (admin). Swag assignments keep
// their rows with the back-reference nulled; everything else cascades.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to delete registration")
		return
	}
	response.NoContent(c)
}

// Lookup handles GET /api/events/:id/registrations/lookup?email= for check-in
// staff searching by address.
func (h *Handler) Lookup(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	email := c.Query("email")
	if email == "" {
		response.BadRequest(c, "email query parameter is required")
		return
	}
	reg, err := h.repo.GetByEventAndEmail(c.Request.Context(), e.ID, email)
	if err != nil {
		response.Internal(c, "failed to look up registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "no registration for that email")
		return
	}
	response.OK(c, reg)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotOpen):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrVerificationRequired):
		response.ForbiddenCode(c, err.Error(), response.CodeVerificationRequired)
	case errors.Is(err, ErrNotQualified):
		response.ForbiddenCode(c, err.Error(), response.CodeNotQualified)
	case errors.Is(err, ErrEmptyBatch):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("registration failed", zap.Error(err))
		response.Internal(c, "registration failed")
	}
}
