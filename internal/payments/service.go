package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/models"
)

// ErrFreeEvent means checkout was requested for an event with no price.
var ErrFreeEvent = errors.New("event has no price")

// PaymentStore updates registration payment state.
type PaymentStore interface {
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error
	SetPaymentStatusByOrderID(ctx context.Context, orderID string, status models.PaymentStatus) error
}

// Service drives Stripe checkout for paid events and consumes the webhook
// that settles payment state.
type Service struct {
	store  PaymentStore
	cfg    config.StripeConfig
	logger *zap.Logger
}

// NewService creates the payments service and sets the global Stripe key.
func NewService(store PaymentStore, cfg config.StripeConfig, logger *zap.Logger) *Service {
	stripe.Key = cfg.SecretKey
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cfg: cfg, logger: logger}
}

// CreateCheckoutSession opens a Stripe Checkout session for one registration
// (or a whole anonymous order when orderID is set). The registration stays
// pending until the webhook confirms payment.
func (s *Service) CreateCheckoutSession(ctx context.Context, event *models.Event, reg *models.Registration, quantity int64, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	if !event.Paid() {
		return nil, ErrFreeEvent
	}
	if quantity < 1 {
		quantity = 1
	}
	metadata := map[string]string{
		"event_id":        event.ID.String(),
		"registration_id": reg.ID.String(),
	}
	if reg.OrderID != nil {
		metadata["order_id"] = *reg.OrderID
	}
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(event.Currency),
					UnitAmount: stripe.Int64(int64(event.PriceCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(event.Name),
					},
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		Metadata: metadata,
	}
	if reg.Email != "" {
		params.CustomerEmail = stripe.String(reg.Email)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if err := s.markPending(ctx, reg); err != nil {
		s.logger.Error("mark payment pending failed", zap.Error(err),
			zap.String("registration_id", reg.ID.String()))
	}
	s.logger.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("registration_id", reg.ID.String()))
	return sess, nil
}

func (s *Service) markPending(ctx context.Context, reg *models.Registration) error {
	if reg.OrderID != nil {
		return s.store.SetPaymentStatusByOrderID(ctx, *reg.OrderID, models.PaymentPending)
	}
	return s.store.SetPaymentStatus(ctx, reg.ID, models.PaymentPending)
}

// HandleWebhook verifies the Stripe signature and settles payment state. Only
// signature-verified events are trusted.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "checkout.session.expired":
		return s.handleCheckoutExpired(ctx, event)
	default:
		s.logger.Debug("unhandled webhook event", zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	sess, err := parseSession(event)
	if err != nil {
		return err
	}
	return s.settle(ctx, sess, models.PaymentPaid)
}

func (s *Service) handleCheckoutExpired(ctx context.Context, event stripe.Event) error {
	sess, err := parseSession(event)
	if err != nil {
		return err
	}
	return s.settle(ctx, sess, models.PaymentNone)
}

func parseSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("parse checkout session: %w", err)
	}
	return &sess, nil
}

func (s *Service) settle(ctx context.Context, sess *stripe.CheckoutSession, status models.PaymentStatus) error {
	if orderID := sess.Metadata["order_id"]; orderID != "" {
		return s.store.SetPaymentStatusByOrderID(ctx, orderID, status)
	}
	regID, err := uuid.Parse(sess.Metadata["registration_id"])
	if err != nil {
		return fmt.Errorf("invalid registration_id in metadata: %w", err)
	}
	return s.store.SetPaymentStatus(ctx, regID, status)
}
