package qualifiers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

// EventResolver resolves the :id path segment to an event.
type EventResolver interface {
	Resolve(c *gin.Context, idOrSlug string) (*models.Event, bool)
}

// CreateRequest is the body for POST /api/events/:id/qualifiers.
type CreateRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	UnicityID      *string `json:"unicity_id"`
	FirstName      string  `json:"first_name" binding:"required"`
	LastName       string  `json:"last_name" binding:"required"`
	Phone          string  `json:"phone"`
	Locale         string  `json:"locale"`
	GuestAllowance *int    `json:"guest_allowance"`
}

// Handler handles qualification-list HTTP endpoints.
type Handler struct {
	repo   *Repository
	events EventResolver
	logger *zap.Logger
}

// NewHandler creates a qualifiers handler.
func NewHandler(repo *Repository, events EventResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, events: events, logger: logger}
}

// Create handles POST /api/events/:id/qualifiers.
func (h *Handler) Create(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.UnicityID != nil && *req.UnicityID != "" {
		existing, err := h.repo.GetByEventAndUnicityID(c.Request.Context(), e.ID, *req.UnicityID)
		if err != nil {
			response.Internal(c, "failed to check unicity id")
			return
		}
		if existing != nil {
			response.Conflict(c, "unicity id already qualified for this event")
			return
		}
	}
	q := &models.QualifiedRegistrant{
		EventID:        e.ID,
		Email:          req.Email,
		UnicityID:      req.UnicityID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Locale:         req.Locale,
		GuestAllowance: req.GuestAllowance,
	}
	if err := h.repo.Create(c.Request.Context(), q); err != nil {
		h.logger.Error("create qualifier failed", zap.Error(err))
		response.Internal(c, "failed to create qualifier")
		return
	}
	response.Created(c, q)
}

// List handles GET /api/events/:id/qualifiers.
func (h *Handler) List(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list qualifiers")
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /api/events/:id/qualifiers/:qualifierId.
func (h *Handler) Delete(c *gin.Context) {
	if _, ok := h.events.Resolve(c, c.Param("id")); !ok {
		return
	}
	qid, err := uuid.Parse(c.Param("qualifierId"))
	if err != nil {
		response.BadRequest(c, "invalid qualifier id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), qid); err != nil {
		h.logger.Error("delete qualifier failed", zap.Error(err))
		response.Internal(c, "failed to delete qualifier")
		return
	}
	response.NoContent(c)
}

// Import handles POST /api/events/:id/qualifiers/import. The body is a CSV
// upload; skip_duplicates=true drops conflicting unicity IDs instead of
// rejecting the file. On conflict nothing is inserted.
func (h *Handler) Import(c *gin.Context) {
	e, ok := h.events.Resolve(c, c.Param("id"))
	if !ok {
		return
	}
	skip := c.Query("skip_duplicates") == "true"

	body := c.Request.Body
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		body = file
	}
	res, err := ParseCSV(body, skip)
	if err != nil {
		response.BadRequest(c, "invalid csv: "+err.Error())
		return
	}
	if len(res.RowErrors) > 0 {
		c.JSON(400, response.Body{Success: false, Error: "rows failed validation", Data: gin.H{"row_errors": res.RowErrors}})
		return
	}
	if len(res.Duplicates) > 0 {
		c.JSON(400, response.Body{Success: false, Error: "duplicate unicity ids with conflicting emails", Data: gin.H{"duplicates": res.Duplicates}})
		return
	}

	inserted, err := h.repo.BulkInsert(c.Request.Context(), e.ID, res.Rows)
	if err != nil {
		h.logger.Error("qualifier import failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to import qualifiers")
		return
	}
	h.logger.Info("qualifier import complete",
		zap.String("event_id", e.ID.String()),
		zap.Int("inserted", inserted),
		zap.Int("skipped", res.Skipped))
	response.OK(c, gin.H{"inserted": inserted, "skipped": res.Skipped})
}
