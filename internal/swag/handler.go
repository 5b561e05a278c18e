package swag

import (
	"errors"

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

// ItemRequest is the body for stock-line create and update.
type ItemRequest struct {
	Name  string `json:"name" binding:"required"`
	Size  string `json:"size"`
	Stock int    `json:"stock" binding:"gte=0"`
}

// AssignRequest is the body for handing an item to a registration.
type AssignRequest struct {
	RegistrationID uuid.UUID `json:"registration_id" binding:"required"`
}

// Handler handles swag HTTP endpoints.
type Handler struct {
	repo   *Repository
	events EventResolver
	logger *zap.Logger
}

// NewHandler creates a swag handler.
func NewHandler(repo *Repository, events EventResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, events: events, logger: logger}
}

// CreateItem handles POST /api/events/:id/swag.
func (h *Handler) CreateItem(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item := &models.SwagItem{EventID: e.ID, Name: req.Name, Size: req.Size, Stock: req.Stock}
	if err := h.repo.CreateItem(c.Request.Context(), item); err != nil {
		h.logger.Error("create swag item failed", zap.Error(err))
		response.Internal(c, "failed to create swag item")
		return
	}
	response.Created(c, item)
}

// ListItems handles GET /api/events/:id/swag.
func (h *Handler) ListItems(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	list, err := h.repo.ListItems(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list swag items")
		return
	}
	response.OK(c, list)
}

// UpdateItem handles PUT /api/swag/items/:itemId.
func (h *Handler) UpdateItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "invalid swag item id")
		return
	}
	item, err := h.repo.GetItem(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load swag item")
		return
	}
	if item == nil {
		response.NotFound(c, "swag item not found")
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item.Name = req.Name
	item.Size = req.Size
	item.Stock = req.Stock
	if err := h.repo.UpdateItem(c.Request.Context(), item); err != nil {
		h.logger.Error("update swag item failed", zap.Error(err))
		response.Internal(c, "failed to update swag item")
		return
	}
	response.OK(c, item)
}

// DeleteItem handles DELETE /api/swag/items/:itemId.
func (h *Handler) DeleteItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "invalid swag item id")
		return
	}
	if err := h.repo.DeleteItem(c.Request.Context(), id); err != nil {
		h.logger.Error("delete swag item failed", zap.Error(err))
		response.Internal(c, "failed to delete swag item")
		return
	}
	response.NoContent(c)
}

// Assign handles POST /api/swag/items/:itemId/assign.
func (h *Handler) Assign(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "invalid swag item id")
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	operator, _ := c.Get(middleware.ContextUserEmail)
	operatorEmail, _ := operator.(string)

	a, err := h.repo.Assign(c.Request.Context(), itemID, req.RegistrationID, operatorEmail)
	if errors.Is(err, ErrOutOfStock) {
		response.Conflict(c, "swag item out of stock")
		return
	}
	if err != nil {
		h.logger.Error("assign swag failed", zap.Error(err))
		response.Internal(c, "failed to assign swag item")
		return
	}
	response.Created(c, a)
}

// ListAssignments handles GET /api/registrations/:id/swag.
func (h *Handler) ListAssignments(c *gin.Context) {
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	list, err := h.repo.ListAssignments(c.Request.Context(), regID)
	if err != nil {
		response.Internal(c, "failed to list swag assignments")
		return
	}
	response.OK(c, list)
}

// Unassign handles DELETE /api/swag/assignments/:assignmentId.
func (h *Handler) Unassign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("assignmentId"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	if err := h.repo.Unassign(c.Request.Context(), id); err != nil {
		h.logger.Error("unassign swag failed", zap.Error(err))
		response.Internal(c, "failed to unassign swag item")
		return
	}
	response.NoContent(c)
}
