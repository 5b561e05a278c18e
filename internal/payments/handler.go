package payments

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

// RegistrationGetter loads the registration to be paid for.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// EventGetter loads the event for the price.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// CheckoutRequest is the body for POST /api/registrations/:id/checkout.
type CheckoutRequest struct {
	SuccessURL string `json:"success_url" binding:"required,url"`
	CancelURL  string `json:"cancel_url" binding:"required,url"`
	Quantity   int64  `json:"quantity"`
}

// Handler handles payment HTTP endpoints.
type Handler struct {
	svc     *Service
	regs    RegistrationGetter
	events  EventGetter
	enabled bool
	logger  *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, regs RegistrationGetter, events EventGetter, enabled bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, regs: regs, events: events, enabled: enabled, logger: logger}
}

// CreateCheckout handles POST /api/registrations/:id/checkout.
func (h *Handler) CreateCheckout(c *gin.Context) {
	if !h.enabled {
		response.ServiceUnavailable(c, "payments are not configured")
		return
	}
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req CheckoutRequest
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
	if reg.PaymentStatus == models.PaymentPaid {
		response.Conflict(c, "registration is already paid")
		return
	}
	event, err := h.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return
	}

	sess, err := h.svc.CreateCheckoutSession(ctx, event, reg, req.Quantity, req.SuccessURL, req.CancelURL)
	if errors.Is(err, ErrFreeEvent) {
		response.BadRequest(c, "event does not require payment")
		return
	}
	if err != nil {
		h.logger.Error("checkout session failed", zap.Error(err))
		response.Internal(c, "failed to create checkout session")
		return
	}
	response.OK(c, gin.H{"session_id": sess.ID, "checkout_url": sess.URL})
}

// Webhook handles POST /api/payments/webhook from Stripe.
func (h *Handler) Webhook(c *gin.Context) {
	if !h.enabled {
		response.ServiceUnavailable(c, "payments are not configured")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.BadRequest(c, "failed to read payload")
		return
	}
	signature := c.GetHeader("Stripe-Signature")
	if err := h.svc.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		response.BadRequest(c, "webhook rejected")
		return
	}
	response.OK(c, gin.H{"received": true})
}
