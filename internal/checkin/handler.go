package checkin

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/live"
	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

// RegistrationGetter resolves registrations for scanned badges.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// ScanRequest is the body for POST /api/events/:id/checkin.
type ScanRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// Handler processes badge scans.
type Handler struct {
	repo   *Repository
	regs   RegistrationGetter
	feed   *live.Feed
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(repo *Repository, regs RegistrationGetter, feed *live.Feed, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, regs: regs, feed: feed, logger: logger}
}

// Scan handles POST /api/events/:id/checkin. The body carries the raw QR
// payload from the scanner.
func (h *Handler) Scan(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	payload := ParseQRPayload(req.Payload)
	if payload == nil {
		response.BadRequest(c, "unrecognized badge payload")
		return
	}
	if payload.EventID != eventID {
		response.BadRequest(c, "badge belongs to a different event")
		return
	}

	token, err := h.repo.GetByRegistrationID(c.Request.Context(), payload.RegistrationID)
	if err != nil {
		h.logger.Error("load checkin token failed", zap.Error(err))
		response.Internal(c, "check-in failed")
		return
	}
	if token == nil || token.Token != payload.Token {
		response.NotFound(c, "unknown or invalid badge")
		return
	}

	reg, err := h.regs.GetByID(c.Request.Context(), payload.RegistrationID)
	if err != nil || reg == nil || reg.EventID != eventID {
		response.NotFound(c, "registration not found")
		return
	}

	operator := c.GetString(middleware.ContextUserEmail)
	stamped, err := h.repo.MarkCheckedIn(c.Request.Context(), reg.ID, operator)
	if err != nil {
		h.logger.Error("mark checked in failed", zap.Error(err))
		response.Internal(c, "check-in failed")
		return
	}
	if !stamped {
		response.Conflict(c, "already checked in")
		return
	}

	if h.feed != nil {
		h.feed.Publish(live.CheckInEvent{
			EventID:        eventID,
			RegistrationID: reg.ID,
			AttendeeName:   reg.FirstName + " " + reg.LastName,
			CheckedInBy:    operator,
			CheckedInAt:    time.Now(),
		})
	}

	response.OK(c, gin.H{
		"registration_id": reg.ID,
		"first_name":      reg.FirstName,
		"last_name":       reg.LastName,
		"checked_in_by":   operator,
	})
}
