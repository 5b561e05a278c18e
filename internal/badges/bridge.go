package badges

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrBridgeUnavailable covers an unreachable bridge or a non-success reply.
var ErrBridgeUnavailable = errors.New("printer bridge unavailable")

// Bridge relays rendered ZPL to badge printers on the venue network. Calls
// use a short timeout and at most one retry; printing is always best-effort.
type Bridge struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewBridge creates a printer bridge client for the given base URL.
func NewBridge(baseURL string, timeout time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type bridgePrintRequest struct {
	Address string `json:"address"`
	ZPL     string `json:"zpl"`
}

// Print sends one rendered badge to the printer at the given address.
func (b *Bridge) Print(ctx context.Context, printerAddress, zpl string) error {
	raw, err := json.Marshal(bridgePrintRequest{Address: printerAddress, ZPL: zpl})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/print", bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := b.http.Do(req)
		if err != nil {
			lastErr = err
			b.logger.Warn("bridge request failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
			return nil
		}
		return fmt.Errorf("%w: status %d", ErrBridgeUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("%w: %v", ErrBridgeUnavailable, lastErr)
}
