package events

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/internal/scoping"
	"github.com/lumen-events/backend/pkg/response"
)

// CreateRequest is the body for POST /api/events.
type CreateRequest struct {
	Slug                  *string         `json:"slug"`
	Name                  string          `json:"name" binding:"required"`
	NameEs                string          `json:"name_es"`
	StartsAt              string          `json:"starts_at" binding:"required"`
	EndsAt                string          `json:"ends_at" binding:"required"`
	Status                string          `json:"status"`
	RegistrationMode      string          `json:"registration_mode" binding:"required"`
	AllowGuests           bool            `json:"allow_guests"`
	MaxGuests             int             `json:"max_guests"`
	QualificationStartsAt *string         `json:"qualification_starts_at"`
	QualificationEndsAt   *string         `json:"qualification_ends_at"`
	FormFields            json.RawMessage `json:"form_fields"`
	MarketCode            *string         `json:"market_code"`
	PriceCents            int             `json:"price_cents"`
	Currency              string          `json:"currency"`
}

// UpdateRequest is the body for PATCH /api/events/:id. Only present keys are
// applied.
type UpdateRequest struct {
	Slug             *string `json:"slug"`
	Name             *string `json:"name"`
	NameEs           *string `json:"name_es"`
	StartsAt         *string `json:"starts_at"`
	EndsAt           *string `json:"ends_at"`
	Status           *string `json:"status"`
	RegistrationMode *string `json:"registration_mode"`
	AllowGuests      *bool   `json:"allow_guests"`
	MaxGuests        *int    `json:"max_guests"`
	MarketCode       *string `json:"market_code"`
	PriceCents       *int    `json:"price_cents"`
	Currency         *string `json:"currency"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo    *Repository
	checker *scoping.Checker
	logger  *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, checker *scoping.Checker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, checker: checker, logger: logger}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// statusChangeAllowed enforces that archival is terminal.
func statusChangeAllowed(from, to models.EventStatus) bool {
	return from != models.EventArchived || to == models.EventArchived
}

// scopedUser builds the market view of the caller from context claims.
func scopedUser(c *gin.Context) *models.AdminUser {
	markets, _ := c.Get(middleware.ContextUserMarkets)
	list, _ := markets.([]string)
	return &models.AdminUser{Markets: list}
}

// allowed applies the market-scope predicate for the event.
func (h *Handler) allowed(c *gin.Context, e *models.Event) bool {
	if h.checker.IsAllowed(scopedUser(c), e.MarketCode) {
		return true
	}
	response.ForbiddenCode(c, "event outside your markets", response.CodeMarketForbidden)
	return false
}

// Resolve loads an event by UUID or slug and applies market scoping, writing
// the error response itself. Other feature handlers mount under the event
// routes and share this.
func (h *Handler) Resolve(c *gin.Context, idOrSlug string) (*models.Event, bool) {
	e, err := h.repo.GetByIDOrSlug(c.Request.Context(), idOrSlug)
	if err != nil {
		response.Internal(c, "failed to load event")
		return nil, false
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return nil, false
	}
	if !h.allowed(c, e) {
		return nil, false
	}
	return e, true
}

// Create handles POST /api/events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	mode := models.RegistrationMode(req.RegistrationMode)
	if !mode.Valid() {
		response.BadRequest(c, "invalid registration_mode")
		return
	}
	startsAt, err := parseTime(req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}
	endsAt, err := parseTime(req.EndsAt)
	if err != nil {
		response.BadRequest(c, "invalid ends_at")
		return
	}
	if endsAt.Before(startsAt) {
		response.BadRequest(c, "ends_at must not precede starts_at")
		return
	}
	status := models.EventDraft
	if req.Status != "" {
		status = models.EventStatus(req.Status)
		if !status.Valid() {
			response.BadRequest(c, "invalid status")
			return
		}
	}

	e := &models.Event{
		Slug:             req.Slug,
		Name:             req.Name,
		NameEs:           req.NameEs,
		StartsAt:         startsAt,
		EndsAt:           endsAt,
		Status:           status,
		RegistrationMode: mode,
		AllowGuests:      req.AllowGuests,
		MaxGuests:        req.MaxGuests,
		FormFieldsRaw:    req.FormFields,
		MarketCode:       req.MarketCode,
		PriceCents:       req.PriceCents,
		Currency:         req.Currency,
		CreatedBy:        c.MustGet(middleware.ContextUserID).(uuid.UUID),
	}
	if e.PriceCents > 0 && e.Currency == "" {
		e.Currency = "USD"
	}
	if req.QualificationStartsAt != nil {
		t, err := parseTime(*req.QualificationStartsAt)
		if err != nil {
			response.BadRequest(c, "invalid qualification_starts_at")
			return
		}
		e.QualificationStartsAt = &t
	}
	if req.QualificationEndsAt != nil {
		t, err := parseTime(*req.QualificationEndsAt)
		if err != nil {
			response.BadRequest(c, "invalid qualification_ends_at")
			return
		}
		e.QualificationEndsAt = &t
	}
	if !h.allowed(c, e) {
		return
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /api/events, filtered to the caller's markets when
// scoping is active.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	user := scopedUser(c)
	visible := make([]models.Event, 0, len(list))
	for _, e := range list {
		if h.checker.IsAllowed(user, e.MarketCode) {
			visible = append(visible, e)
		}
	}
	response.OK(c, visible)
}

// Get handles GET /api/events/:id (UUID or slug).
func (h *Handler) Get(c *gin.Context) {
	e, err := h.repo.GetByIDOrSlug(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.allowed(c, e) {
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /api/events/:id. Omitted keys keep stored values.
func (h *Handler) Update(c *gin.Context) {
	e, err := h.repo.GetByIDOrSlug(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.allowed(c, e) {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Slug != nil {
		e.Slug = req.Slug
	}
	if req.Name != nil {
		e.Name = *req.Name
	}
	if req.NameEs != nil {
		e.NameEs = *req.NameEs
	}
	if req.StartsAt != nil {
		t, err := parseTime(*req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		e.StartsAt = t
	}
	if req.EndsAt != nil {
		t, err := parseTime(*req.EndsAt)
		if err != nil {
			response.BadRequest(c, "invalid ends_at")
			return
		}
		e.EndsAt = t
	}
	if e.EndsAt.Before(e.StartsAt) {
		response.BadRequest(c, "ends_at must not precede starts_at")
		return
	}
	if req.Status != nil {
		status := models.EventStatus(*req.Status)
		if !status.Valid() {
			response.BadRequest(c, "invalid status")
			return
		}
		if !statusChangeAllowed(e.Status, status) {
			response.Conflict(c, "archived events cannot be restored")
			return
		}
		e.Status = status
	}
	if req.RegistrationMode != nil {
		mode := models.RegistrationMode(*req.RegistrationMode)
		if !mode.Valid() {
			response.BadRequest(c, "invalid registration_mode")
			return
		}
		e.RegistrationMode = mode
	}
	if req.AllowGuests != nil {
		e.AllowGuests = *req.AllowGuests
	}
	if req.MaxGuests != nil {
		e.MaxGuests = *req.MaxGuests
	}
	if req.MarketCode != nil {
		e.MarketCode = req.MarketCode
	}
	if req.PriceCents != nil {
		e.PriceCents = *req.PriceCents
	}
	if req.Currency != nil {
		e.Currency = *req.Currency
	}
	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("update event failed", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// UpdateFormFields handles PUT /api/events/:id/form-fields.
func (h *Handler) UpdateFormFields(c *gin.Context) {
	e, err := h.repo.GetByIDOrSlug(c.Request.Context(), c.Param("id"))
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.allowed(c, e) {
		return
	}
	var fields []models.FormField
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.BadRequest(c, "invalid form fields: "+err.Error())
		return
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		response.BadRequest(c, "invalid form fields")
		return
	}
	if err := h.repo.UpdateFormFields(c.Request.Context(), e.ID, raw); err != nil {
		h.logger.Error("update form fields failed", zap.Error(err))
		response.Internal(c, "failed to update form fields")
		return
	}
	response.OK(c, gin.H{"event_id": e.ID, "form_fields": fields})
}

// Archive handles DELETE /api/events/:id. Archival is terminal.
func (h *Handler) Archive(c *gin.Context) {
	e, err := h.repo.GetByIDOrSlug(c.Request.Context(), c.Param("id"))
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.allowed(c, e) {
		return
	}
	if err := h.repo.Archive(c.Request.Context(), e.ID); err != nil {
		h.logger.Error("archive event failed", zap.Error(err))
		response.Internal(c, "failed to archive event")
		return
	}
	response.NoContent(c)
}

// Stats handles GET /api/events/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	e, err := h.repo.GetByIDOrSlug(c.Request.Context(), c.Param("id"))
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.allowed(c, e) {
		return
	}
	stats, err := h.repo.Stats(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, stats)
}
