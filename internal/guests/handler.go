package guests

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

// RegistrationGetter loads the parent registration.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// EventGetter loads the registration's event for the guest policy.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// AllowanceLookup finds a per-person guest allowance on the qualification
// list. A set allowance overrides the event default.
type AllowanceLookup interface {
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.QualifiedRegistrant, error)
}

// GuestRequest is the body for guest create and update.
type GuestRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Dietary   string `json:"dietary"`
}

// Handler handles guest HTTP endpoints.
type Handler struct {
	repo       *Repository
	regs       RegistrationGetter
	events     EventGetter
	allowances AllowanceLookup
	logger     *zap.Logger
}

// NewHandler creates a guests handler.
func NewHandler(repo *Repository, regs RegistrationGetter, events EventGetter, allowances AllowanceLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, regs: regs, events: events, allowances: allowances, logger: logger}
}

func (h *Handler) loadRegistration(c *gin.Context) (*models.Registration, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return nil, false
	}
	reg, err := h.regs.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return nil, false
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return nil, false
	}
	return reg, true
}

// allowance resolves how many guests this registration may bring.
func (h *Handler) allowance(ctx context.Context, event *models.Event, reg *models.Registration) int {
	limit := event.MaxGuests
	if reg.Email == "" {
		return limit
	}
	q, err := h.allowances.GetByEventAndEmail(ctx, event.ID, reg.Email)
	if err == nil && q != nil && q.GuestAllowance != nil {
		limit = *q.GuestAllowance
	}
	return limit
}

// Create handles POST /api/registrations/:id/guests.
func (h *Handler) Create(c *gin.Context) {
	reg, ok := h.loadRegistration(c)
	if !ok {
		return
	}
	event, err := h.events.GetByID(c.Request.Context(), reg.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return
	}
	if !event.AllowGuests {
		response.Forbidden(c, "event does not allow guests")
		return
	}
	count, err := h.repo.CountByRegistration(c.Request.Context(), reg.ID)
	if err != nil {
		response.Internal(c, "failed to count guests")
		return
	}
	if limit := h.allowance(c.Request.Context(), event, reg); count >= limit {
		response.Conflict(c, "guest allowance reached")
		return
	}

	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g := &models.Guest{
		RegistrationID: reg.ID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Dietary:        req.Dietary,
	}
	if err := h.repo.Create(c.Request.Context(), g); err != nil {
		h.logger.Error("create guest failed", zap.Error(err))
		response.Internal(c, "failed to create guest")
		return
	}
	response.Created(c, g)
}

// List handles GET /api/registrations/:id/guests.
func (h *Handler) List(c *gin.Context) {
	reg, ok := h.loadRegistration(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByRegistration(c.Request.Context(), reg.ID)
	if err != nil {
		response.Internal(c, "failed to list guests")
		return
	}
	response.OK(c, list)
}

// Update handles PUT /api/guests/:guestId.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("guestId"))
	if err != nil {
		response.BadRequest(c, "invalid guest id")
		return
	}
	g, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load guest")
		return
	}
	if g == nil {
		response.NotFound(c, "guest not found")
		return
	}
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g.FirstName = req.FirstName
	g.LastName = req.LastName
	g.Dietary = req.Dietary
	if err := h.repo.Update(c.Request.Context(), g); err != nil {
		h.logger.Error("update guest failed", zap.Error(err))
		response.Internal(c, "failed to update guest")
		return
	}
	response.OK(c, g)
}

// Delete handles DELETE /api/guests/:guestId.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("guestId"))
	if err != nil {
		response.BadRequest(c, "invalid guest id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete guest failed", zap.Error(err))
		response.Internal(c, "failed to delete guest")
		return
	}
	response.NoContent(c)
}
