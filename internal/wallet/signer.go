package wallet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrSignerUnavailable covers an unreachable signer or a non-success reply.
var ErrSignerUnavailable = errors.New("pass signer unavailable")

// Signer turns a pass definition into a signed .pkpass bundle. Signing keys
// never leave the dedicated signer service.
type Signer struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewSigner creates a signer client for the given base URL.
func NewSigner(baseURL string, timeout time.Duration, logger *zap.Logger) *Signer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signer{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Sign submits the pass definition and returns the signed bundle bytes.
func (s *Signer) Sign(ctx context.Context, passJSON []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sign", bytes.NewReader(passJSON))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.http.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("signer request failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return body.Bytes(), nil
		}
		return nil, fmt.Errorf("%w: status %d", ErrSignerUnavailable, resp.StatusCode)
	}
	return nil, fmt.Errorf("%w: %v", ErrSignerUnavailable, lastErr)
}
