package travel

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

var reimbursementStatuses = map[string]struct{}{
	"submitted": {}, "approved": {}, "rejected": {}, "paid": {},
}

// RegistrationGetter loads the parent registration.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// FlightRequest is the body for flight create and update.
type FlightRequest struct {
	Direction    string     `json:"direction" binding:"required,oneof=arrival departure"`
	Carrier      string     `json:"carrier"`
	FlightNumber string     `json:"flight_number" binding:"required"`
	Airport      string     `json:"airport"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

// ReimbursementRequest is the body for filing a claim.
type ReimbursementRequest struct {
	AmountCents int    `json:"amount_cents" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Description string `json:"description"`
}

// Handler handles travel HTTP endpoints.
type Handler struct {
	repo   *Repository
	regs   RegistrationGetter
	logger *zap.Logger
}

// NewHandler creates a travel handler.
func NewHandler(repo *Repository, regs RegistrationGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, regs: regs, logger: logger}
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

// CreateFlight handles POST /api/registrations/:id/flights.
func (h *Handler) CreateFlight(c *gin.Context) {
	reg, ok := h.loadRegistration(c)
	if !ok {
		return
	}
	var req FlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f := &models.Flight{
		RegistrationID: reg.ID,
		Direction:      req.Direction,
		Carrier:        req.Carrier,
		FlightNumber:   req.FlightNumber,
		Airport:        req.Airport,
		ScheduledAt:    req.ScheduledAt,
	}
	if err := h.repo.CreateFlight(c.Request.Context(), f); err != nil {
		h.logger.Error("create flight failed", zap.Error(err))
		response.Internal(c, "failed to create flight")
		return
	}
	response.Created(c, f)
}

// ListFlights handles GET /api/registrations/:id/flights.
func (h *Handler) ListFlights(c *gin.Context) {
	reg, ok := h.loadRegistration(c)
	if !ok {
		return
	}
	list, err := h.repo.ListFlights(c.Request.Context(), reg.ID)
	if err != nil {
		response.Internal(c, "failed to list flights")
		return
	}
	response.OK(c, list)
}

// UpdateFlight handles PUT /api/flights/:flightId.
func (h *Handler) UpdateFlight(c *gin.Context) {
	id, err := uuid.Parse(c.Param("flightId"))
	if err != nil {
		response.BadRequest(c, "invalid flight id")
		return
	}
	f, err := h.repo.GetFlight(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load flight")
		return
	}
	if f == nil {
		response.NotFound(c, "flight not found")
		return
	}
	var req FlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f.Direction = req.Direction
	f.Carrier = req.Carrier
	f.FlightNumber = req.FlightNumber
	f.Airport = req.Airport
	f.ScheduledAt = req.ScheduledAt
	if err := h.repo.UpdateFlight(c.Request.Context(), f); err != nil {
		h.logger.Error("update flight failed", zap.Error(err))
		response.Internal(c, "failed to update flight")
		return
	}
	response.OK(c, f)
}

// DeleteFlight handles DELETE /api/flights/:flightId.
func (h *Handler) DeleteFlight(c *gin.Context) {
	id, err := uuid.Parse(c.Param("flightId"))
	if err != nil {
		response.BadRequest(c, "invalid flight id")
		return
	}
	if err := h.repo.DeleteFlight(c.Request.Context(), id); err != nil {
		h.logger.Error("delete flight failed", zap.Error(err))
		response.Internal(c, "failed to delete flight")
		return
	}
	response.NoContent(c)
}

// CreateReimbursement handles POST /api/registrations/:id/reimbursements.
func (h *Handler) CreateReimbursement(c *gin.Context) {
	reg, ok := h.loadRegistration(c)
	if !ok {
		return
	}
	var req ReimbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m := &models.Reimbursement{
		RegistrationID: reg.ID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Description:    req.Description,
		Status:         "submitted",
	}
	if err := h.repo.CreateReimbursement(c.Request.Context(), m); err != nil {
		h.logger.Error("create reimbursement failed", zap.Error(err))
		response.Internal(c, "failed to create reimbursement")
		return
	}
	response.Created(c, m)
}

// ListReimbursements handles GET /api/registrations/:id/reimbursements.
func (h *Handler) ListReimbursements(c *gin.Context) {
	reg, ok := h.loadRegistration(c)
	if !ok {
		return
	}
	list, err := h.repo.ListReimbursements(c.Request.Context(), reg.ID)
	if err != nil {
		response.Internal(c, "failed to list reimbursements")
		return
	}
	response.OK(c, list)
}

// SetReimbursementStatus handles PATCH /api/reimbursements/:claimId/status.
func (h *Handler) SetReimbursementStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("claimId"))
	if err != nil {
		response.BadRequest(c, "invalid reimbursement id")
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if _, ok := reimbursementStatuses[req.Status]; !ok {
		response.BadRequest(c, "invalid status")
		return
	}
	m, err := h.repo.GetReimbursement(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load reimbursement")
		return
	}
	if m == nil {
		response.NotFound(c, "reimbursement not found")
		return
	}
	if err := h.repo.SetReimbursementStatus(c.Request.Context(), id, req.Status); err != nil {
		h.logger.Error("set reimbursement status failed", zap.Error(err))
		response.Internal(c, "failed to update reimbursement")
		return
	}
	m.Status = req.Status
	response.OK(c, m)
}
