package badges

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/checkin"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
	"github.com/lumen-events/backend/pkg/storage"
)

// Printer sends rendered ZPL to a physical printer.
type Printer interface {
	Print(ctx context.Context, printerAddress, zpl string) error
}

// RegistrationGetter loads the badge's registration.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// EventGetter loads the event for the badge title.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// TokenGetter loads the registration's check-in token for the QR code.
type TokenGetter interface {
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.CheckInToken, error)
}

// AssetStore uploads template artwork.
type AssetStore interface {
	Put(ctx context.Context, bucket, key, contentType string, body []byte) error
}

// TemplateRequest is the body for template create and update.
type TemplateRequest struct {
	EventID *uuid.UUID `json:"event_id"`
	Name    string     `json:"name" binding:"required"`
	ZPL     string     `json:"zpl" binding:"required"`
}

// PrinterRequest is the body for registering a printer.
type PrinterRequest struct {
	Name    string     `json:"name" binding:"required"`
	Address string     `json:"address" binding:"required"`
	EventID *uuid.UUID `json:"event_id"`
}

// PrintRequest is the body for a badge print.
type PrintRequest struct {
	PrinterID  uuid.UUID `json:"printer_id" binding:"required"`
	TemplateID uuid.UUID `json:"template_id" binding:"required"`
}

// Handler handles badge HTTP endpoints.
type Handler struct {
	repo         *Repository
	bridge       Printer
	regs         RegistrationGetter
	events       EventGetter
	tokens       TokenGetter
	assets       AssetStore
	assetsBucket string
	logger       *zap.Logger
}

// NewHandler creates a badges handler. A nil bridge means printing is not
// configured; a nil assets store disables artwork upload.
func NewHandler(repo *Repository, bridge Printer, regs RegistrationGetter, events EventGetter, tokens TokenGetter, assets AssetStore, assetsBucket string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:         repo,
		bridge:       bridge,
		regs:         regs,
		events:       events,
		tokens:       tokens,
		assets:       assets,
		assetsBucket: assetsBucket,
		logger:       logger,
	}
}

// CreateTemplate handles POST /api/badge-templates.
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t := &models.BadgeTemplate{EventID: req.EventID, Name: req.Name, ZPL: req.ZPL}
	if err := h.repo.CreateTemplate(c.Request.Context(), t); err != nil {
		h.logger.Error("create badge template failed", zap.Error(err))
		response.Internal(c, "failed to create badge template")
		return
	}
	response.Created(c, t)
}

// ListTemplates handles GET /api/events/:id/badge-templates.
func (h *Handler) ListTemplates(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListTemplates(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list badge templates")
		return
	}
	response.OK(c, list)
}

// UpdateTemplate handles PUT /api/badge-templates/:templateId.
func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	t, err := h.repo.GetTemplate(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load badge template")
		return
	}
	if t == nil {
		response.NotFound(c, "badge template not found")
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t.Name = req.Name
	t.ZPL = req.ZPL
	if err := h.repo.UpdateTemplate(c.Request.Context(), t); err != nil {
		h.logger.Error("update badge template failed", zap.Error(err))
		response.Internal(c, "failed to update badge template")
		return
	}
	response.OK(c, t)
}

// DeleteTemplate handles DELETE /api/badge-templates/:templateId.
func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	if err := h.repo.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.logger.Error("delete badge template failed", zap.Error(err))
		response.Internal(c, "failed to delete badge template")
		return
	}
	response.NoContent(c)
}

// UploadAsset handles POST /api/badge-templates/:templateId/asset. The body
// is the artwork file; the stored key lands on the template.
func (h *Handler) UploadAsset(c *gin.Context) {
	if h.assets == nil {
		response.ServiceUnavailable(c, "asset storage is not configured")
		return
	}
	id, err := uuid.Parse(c.Param("templateId"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	t, err := h.repo.GetTemplate(c.Request.Context(), id)
	if err != nil || t == nil {
		response.NotFound(c, "badge template not found")
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file upload is required")
		return
	}
	defer file.Close()
	body, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(c, "failed to read upload")
		return
	}

	key := storage.AssetKey(id.String(), header.Filename)
	contentType := header.Header.Get("Content-Type")
	if err := h.assets.Put(c.Request.Context(), h.assetsBucket, key, contentType, body); err != nil {
		h.logger.Error("asset upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to store asset")
		return
	}
	t.AssetKey = &key
	if err := h.repo.UpdateTemplate(c.Request.Context(), t); err != nil {
		response.Internal(c, "failed to record asset")
		return
	}
	response.OK(c, t)
}

// CreatePrinter handles POST /api/printers.
func (h *Handler) CreatePrinter(c *gin.Context) {
	var req PrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p := &models.Printer{Name: req.Name, Address: req.Address, EventID: req.EventID}
	if err := h.repo.CreatePrinter(c.Request.Context(), p); err != nil {
		h.logger.Error("create printer failed", zap.Error(err))
		response.Internal(c, "failed to create printer")
		return
	}
	response.Created(c, p)
}

// ListPrinters handles GET /api/printers.
func (h *Handler) ListPrinters(c *gin.Context) {
	list, err := h.repo.ListPrinters(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list printers")
		return
	}
	response.OK(c, list)
}

// DeletePrinter handles DELETE /api/printers/:printerId.
func (h *Handler) DeletePrinter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("printerId"))
	if err != nil {
		response.BadRequest(c, "invalid printer id")
		return
	}
	if err := h.repo.DeletePrinter(c.Request.Context(), id); err != nil {
		h.logger.Error("delete printer failed", zap.Error(err))
		response.Internal(c, "failed to delete printer")
		return
	}
	response.NoContent(c)
}

// PrintBadge handles POST /api/registrations/:id/print. The outcome is
// recorded in print_logs either way; a bridge failure reports 502 but leaves
// the registration and its check-in state untouched.
func (h *Handler) PrintBadge(c *gin.Context) {
	if h.bridge == nil {
		response.ServiceUnavailable(c, "badge printing is not configured")
		return
	}
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	reg, err := h.regs.GetByID(ctx, regID)
	if err != nil || reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	event, err := h.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return
	}
	printer, err := h.repo.GetPrinter(ctx, req.PrinterID)
	if err != nil || printer == nil {
		response.NotFound(c, "printer not found")
		return
	}
	tpl, err := h.repo.GetTemplate(ctx, req.TemplateID)
	if err != nil || tpl == nil {
		response.NotFound(c, "badge template not found")
		return
	}
	token, err := h.tokens.GetByRegistrationID(ctx, regID)
	if err != nil || token == nil {
		response.Internal(c, "registration has no check-in token")
		return
	}

	zpl := RenderZPL(tpl, RenderData{
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		EventName: event.Name,
		QRPayload: checkin.BuildQRPayload(event.ID, reg.ID, token.Token),
	})

	printErr := h.bridge.Print(ctx, printer.Address, zpl)
	log := &models.PrintLog{
		PrinterID:      printer.ID,
		RegistrationID: &reg.ID,
		TemplateID:     &tpl.ID,
		Status:         "sent",
	}
	if printErr != nil {
		log.Status = "failed"
		log.Error = printErr.Error()
	}
	if err := h.repo.LogPrint(ctx, log); err != nil {
		h.logger.Error("print log write failed", zap.Error(err))
	}
	if printErr != nil {
		h.logger.Warn("badge print failed",
			zap.Error(printErr), zap.String("printer", printer.Name))
		c.JSON(502, response.Body{Success: false, Error: "printer bridge failed", Data: log})
		return
	}
	response.OK(c, log)
}

// ListPrintLogs handles GET /api/printers/:printerId/logs.
func (h *Handler) ListPrintLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("printerId"))
	if err != nil {
		response.BadRequest(c, "invalid printer id")
		return
	}
	list, err := h.repo.ListPrintLogs(c.Request.Context(), id, 50)
	if err != nil {
		response.Internal(c, "failed to list print logs")
		return
	}
	response.OK(c, list)
}
