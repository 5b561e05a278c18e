package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-events/backend/config"
)

// ErrMarketingUnavailable covers an unreachable marketing platform or a
// non-success reply.
var ErrMarketingUnavailable = errors.New("marketing platform unavailable")

// MarketingClient upserts contacts into the external marketing platform so
// event comms lists stay current without manual export.
type MarketingClient struct {
	cfg    config.MarketingConfig
	http   *http.Client
	logger *zap.Logger
}

// NewMarketingClient creates a marketing platform client.
func NewMarketingClient(cfg config.MarketingConfig, logger *zap.Logger) *MarketingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketingClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type upsertContactRequest struct {
	Email      string            `json:"email"`
	DataFields map[string]string `json:"dataFields,omitempty"`
}

// UpsertContact creates or updates the contact. Sync is best-effort; the
// caller retries through the job queue.
func (c *MarketingClient) UpsertContact(ctx context.Context, email string, attributes map[string]string) error {
	if !c.cfg.Enabled() {
		c.logger.Debug("marketing sync not configured, dropping contact", zap.String("email", email))
		return nil
	}
	raw, err := json.Marshal(upsertContactRequest{Email: email, DataFields: attributes})
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/users/update", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarketingUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrMarketingUnavailable, resp.StatusCode)
	}
	return nil
}
