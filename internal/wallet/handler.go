package wallet

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/checkin"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
	"github.com/lumen-events/backend/pkg/storage"
)

// PassSigner signs a pass definition into a .pkpass bundle.
type PassSigner interface {
	Sign(ctx context.Context, passJSON []byte) ([]byte, error)
}

// PassStore persists signed bundles and issues download URLs.
type PassStore interface {
	Put(ctx context.Context, bucket, key, contentType string, body []byte) error
	PresignDownload(ctx context.Context, bucket, key string) (string, error)
}

// RegistrationGetter loads the pass's registration.
type RegistrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// EventGetter loads the event for the pass face.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// TokenGetter loads the registration's check-in token for the QR code.
type TokenGetter interface {
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.CheckInToken, error)
}

// Handler handles wallet pass HTTP endpoints.
type Handler struct {
	signer       PassSigner
	store        PassStore
	passesBucket string
	regs         RegistrationGetter
	events       EventGetter
	tokens       TokenGetter
	cfg          config.WalletConfig
	logger       *zap.Logger
}

// NewHandler creates a wallet handler. A nil signer or store means the
// feature is not configured.
func NewHandler(signer PassSigner, store PassStore, passesBucket string, regs RegistrationGetter, events EventGetter, tokens TokenGetter, cfg config.WalletConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		signer:       signer,
		store:        store,
		passesBucket: passesBucket,
		regs:         regs,
		events:       events,
		tokens:       tokens,
		cfg:          cfg,
		logger:       logger,
	}
}

// GetPass handles GET /api/registrations/:id/wallet-pass: builds, signs and
// stores the pass, then redirects the caller to a pre-signed download URL.
func (h *Handler) GetPass(c *gin.Context) {
	if h.signer == nil || h.store == nil {
		response.ServiceUnavailable(c, "wallet passes are not configured")
		return
	}
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
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
	token, err := h.tokens.GetByRegistrationID(ctx, regID)
	if err != nil || token == nil {
		response.Internal(c, "registration has no check-in token")
		return
	}

	pass := BuildPass(event, reg,
		checkin.BuildQRPayload(event.ID, reg.ID, token.Token),
		h.cfg.PassTypeID, h.cfg.TeamID, h.cfg.OrganizationName)
	passJSON, err := pass.Encode()
	if err != nil {
		response.Internal(c, "failed to build pass")
		return
	}

	signed, err := h.signer.Sign(ctx, passJSON)
	if err != nil {
		h.logger.Error("pass signing failed", zap.Error(err), zap.String("registration_id", regID.String()))
		response.ServiceUnavailable(c, "pass signer unavailable")
		return
	}

	key := storage.PassKey(event.ID.String(), reg.ID.String())
	if err := h.store.Put(ctx, h.passesBucket, key, "application/vnd.apple.pkpass", signed); err != nil {
		h.logger.Error("pass store failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to store pass")
		return
	}
	url, err := h.store.PresignDownload(ctx, h.passesBucket, key)
	if err != nil {
		response.Internal(c, "failed to presign pass download")
		return
	}
	response.OK(c, gin.H{"download_url": url})
}
