package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
)

// Provider errors surfaced to the verification workflow.
var (
	// ErrCustomerNotFound means the identity provider has no account for the
	// email. The workflow may still verify locally for open events.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrInvalidCode means the submitted code did not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrProvider covers unreachable provider or malformed responses.
	ErrProvider = errors.New("identity provider error")
)

// Provider issues and checks OTP challenges against the external identity
// provider.
type Provider interface {
	Generate(ctx context.Context, email string) (validationID string, err error)
	Validate(ctx context.Context, validationID, code string) (*models.OtpProfile, error)
}

// HydraClient talks to the Hydra OTP provider over HTTP. Calls use a short
// timeout and at most one retry.
type HydraClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHydraClient creates a provider client for the given base URL.
func NewHydraClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HydraClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HydraClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type hydraGenerateResponse struct {
	ValidationID string `json:"validationId"`
}

type hydraValidateResponse struct {
	Verified bool `json:"verified"`
	Customer struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		UnicityID string `json:"unicityId"`
		Locale    string `json:"locale"`
	} `json:"customer"`
}

// Generate asks the provider to send a code to the email.
func (c *HydraClient) Generate(ctx context.Context, email string) (string, error) {
	body, err := c.post(ctx, "/otp/generate", map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	var resp hydraGenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ValidationID == "" {
		return "", fmt.Errorf("%w: malformed generate response", ErrProvider)
	}
	return resp.ValidationID, nil
}

// Validate checks the code against the provider and returns the customer
// profile on success.
func (c *HydraClient) Validate(ctx context.Context, validationID, code string) (*models.OtpProfile, error) {
	body, err := c.post(ctx, "/otp/validate", map[string]string{
		"validationId": validationID,
		"code":         code,
	})
	if err != nil {
		return nil, err
	}
	var resp hydraValidateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed validate response", ErrProvider)
	}
	if !resp.Verified {
		return nil, ErrInvalidCode
	}
	return &models.OtpProfile{
		FirstName: resp.Customer.FirstName,
		LastName:  resp.Customer.LastName,
		Email:     resp.Customer.Email,
		Phone:     resp.Customer.Phone,
		UnicityID: resp.Customer.UnicityID,
		Locale:    resp.Customer.Locale,
	}, nil
}

// post issues one request with a single retry on transport failure.
func (c *HydraClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("hydra request failed", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(resp.Body)
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			return body.Bytes(), nil
		case http.StatusNotFound:
			return nil, ErrCustomerNotFound
		case http.StatusBadRequest, http.StatusUnauthorized:
			return nil, ErrInvalidCode
		default:
			return nil, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrProvider, lastErr)
}
