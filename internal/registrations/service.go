package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/queue"
	"github.com/lumen-events/backend/pkg/utils"
)

var (
	ErrEventNotOpen         = errors.New("event is not open for registration")
	ErrVerificationRequired = errors.New("identity verification required")
	ErrNotQualified         = errors.New("email is not on the qualification list")
	ErrEmptyBatch           = errors.New("order must contain at least one attendee")
)

// Store is the persistence surface the service needs.
type Store interface {
	Upsert(ctx context.Context, reg *models.Registration) (bool, error)
	InsertAnonymousBatch(ctx context.Context, regs []*models.Registration) error
	DeleteByOrderID(ctx context.Context, orderID string) error
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
}

// Verifier answers whether the email holds a live verified session for the
// event, and exposes the profile that session carries.
type Verifier interface {
	HasVerifiedSession(ctx context.Context, email string, eventID uuid.UUID) (bool, error)
	VerifiedProfile(ctx context.Context, email string, eventID uuid.UUID) (*models.OtpProfile, error)
}

// QualifierLookup checks pre-approval for qualified events.
type QualifierLookup interface {
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.QualifiedRegistrant, error)
	GetByEventAndUnicityID(ctx context.Context, eventID uuid.UUID, unicityID string) (*models.QualifiedRegistrant, error)
}

// TokenIssuer mints the per-registration check-in token.
type TokenIssuer interface {
	CreateToken(ctx context.Context, registrationID uuid.UUID) (*models.CheckInToken, error)
}

// Jobs enqueues background side effects.
type Jobs interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload any) error
}

// SubmitRequest carries one attendee's submitted form.
type SubmitRequest struct {
	Email           string         `json:"email"`
	FirstName       string         `json:"first_name" binding:"required"`
	LastName        string         `json:"last_name" binding:"required"`
	Phone           string         `json:"phone"`
	PassportNumber  string         `json:"passport_number"`
	PassportCountry string         `json:"passport_country"`
	Dietary         string         `json:"dietary"`
	Locale          string         `json:"locale"`
	FormData        map[string]any `json:"form_data"`
}

// UpdateRequest carries an attendee's partial edit. Only keys present in the
// body are applied; omitted keys preserve stored values.
type UpdateRequest struct {
	FirstName       *string        `json:"first_name"`
	LastName        *string        `json:"last_name"`
	Phone           *string        `json:"phone"`
	PassportNumber  *string        `json:"passport_number"`
	PassportCountry *string        `json:"passport_country"`
	Dietary         *string        `json:"dietary"`
	Locale          *string        `json:"locale"`
	FormData        map[string]any `json:"form_data"`
}

// Service implements the registration workflow: mode branching, identity
// checks, upsert semantics and side-effect dispatch.
type Service struct {
	store    Store
	verifier Verifier
	quals    QualifierLookup
	tokens   TokenIssuer
	jobs     Jobs
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a registration service.
func NewService(store Store, verifier Verifier, quals QualifierLookup, tokens TokenIssuer, jobs Jobs, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		verifier: verifier,
		quals:    quals,
		tokens:   tokens,
		jobs:     jobs,
		logger:   logger,
		now:      time.Now,
	}
}

func eventOpen(e *models.Event) bool {
	return e.Status == models.EventPublished || e.Status == models.EventPrivate
}

// Register handles verified-mode submission for one attendee. Re-submitting
// the same email replaces the earlier row; wasUpdate reports which happened.
func (s *Service) Register(ctx context.Context, event *models.Event, req *SubmitRequest, clientIP string) (*models.Registration, bool, error) {
	if !eventOpen(event) {
		return nil, false, ErrEventNotOpen
	}
	if event.RegistrationMode == models.ModeOpenAnonymous {
		return nil, false, fmt.Errorf("anonymous events take batch orders")
	}

	var verified bool
	if event.RegistrationMode.RequiresVerification() {
		ok, err := s.verifier.HasVerifiedSession(ctx, req.Email, event.ID)
		if err != nil {
			return nil, false, fmt.Errorf("check verified session: %w", err)
		}
		if !ok {
			return nil, false, ErrVerificationRequired
		}
		verified = true
	}

	reg := s.buildRegistration(event, req)
	reg.VerifiedByHydra = verified

	if event.RegistrationMode.RequiresQualification() {
		qual, err := s.lookupQualification(ctx, event.ID, req.Email)
		if err != nil {
			return nil, false, fmt.Errorf("check qualification: %w", err)
		}
		if qual == nil {
			return nil, false, ErrNotQualified
		}
		if qual.UnicityID != nil {
			reg.UnicityID = qual.UnicityID
		}
	}

	if err := s.attachAcknowledgments(ctx, event, reg, req.FormData, clientIP); err != nil {
		return nil, false, err
	}

	wasUpdate, err := s.store.Upsert(ctx, reg)
	if err != nil {
		return nil, false, fmt.Errorf("upsert registration: %w", err)
	}

	// A replacement submit already has its token and confirmation mail.
	if !wasUpdate {
		if _, err := s.tokens.CreateToken(ctx, reg.ID); err != nil {
			s.logger.Error("check-in token issue failed",
				zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
		s.dispatchSideEffects(ctx, event, reg)
	}
	return reg, wasUpdate, nil
}

// lookupQualification resolves the pre-approval record, by the unicity ID the
// verified session proved when there is one, then by email.
func (s *Service) lookupQualification(ctx context.Context, eventID uuid.UUID, email string) (*models.QualifiedRegistrant, error) {
	profile, err := s.verifier.VerifiedProfile(ctx, email, eventID)
	if err != nil {
		return nil, err
	}
	if profile != nil && profile.UnicityID != "" {
		qual, err := s.quals.GetByEventAndUnicityID(ctx, eventID, profile.UnicityID)
		if err != nil {
			return nil, err
		}
		if qual != nil {
			return qual, nil
		}
	}
	return s.quals.GetByEventAndEmail(ctx, eventID, email)
}

// RegisterAnonymousBatch creates one anonymous order: every attendee shares
// the order ID and gets a sequential seat index. If check-in tokens cannot be
// issued for the whole order, the order is rolled back.
func (s *Service) RegisterAnonymousBatch(ctx context.Context, event *models.Event, reqs []*SubmitRequest, clientIP string) ([]*models.Registration, string, error) {
	if !eventOpen(event) {
		return nil, "", ErrEventNotOpen
	}
	if len(reqs) == 0 {
		return nil, "", ErrEmptyBatch
	}

	orderID, err := utils.RandomToken(16)
	if err != nil {
		return nil, "", fmt.Errorf("order id: %w", err)
	}

	regs := make([]*models.Registration, 0, len(reqs))
	for i, req := range reqs {
		reg := s.buildRegistration(event, req)
		reg.OrderID = &orderID
		idx := i
		reg.AttendeeIndex = &idx
		if err := s.attachAcknowledgments(ctx, event, reg, req.FormData, clientIP); err != nil {
			return nil, "", err
		}
		regs = append(regs, reg)
	}

	if err := s.store.InsertAnonymousBatch(ctx, regs); err != nil {
		return nil, "", fmt.Errorf("insert order: %w", err)
	}

	for _, reg := range regs {
		if _, err := s.tokens.CreateToken(ctx, reg.ID); err != nil {
			s.logger.Error("order token issue failed, rolling back order",
				zap.Error(err), zap.String("order_id", orderID))
			if derr := s.store.DeleteByOrderID(ctx, orderID); derr != nil {
				s.logger.Error("order rollback failed", zap.Error(derr), zap.String("order_id", orderID))
			}
			return nil, "", fmt.Errorf("issue check-in tokens: %w", err)
		}
	}
	for _, reg := range regs {
		s.dispatchSideEffects(ctx, event, reg)
	}
	return regs, orderID, nil
}

// Update applies an attendee's edit to their own registration. Only keys
// present in the request change the row; acknowledgment history is preserved
// and only appended to.
func (s *Service) Update(ctx context.Context, event *models.Event, reg *models.Registration, req *UpdateRequest, clientIP string) error {
	if req.FirstName != nil {
		reg.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		reg.LastName = *req.LastName
	}
	if req.Phone != nil {
		reg.Phone = *req.Phone
	}
	if req.PassportNumber != nil {
		reg.PassportNumber = *req.PassportNumber
	}
	if req.PassportCountry != nil {
		reg.PassportCountry = *req.PassportCountry
	}
	if req.Dietary != nil {
		reg.Dietary = *req.Dietary
	}
	if req.Locale != nil {
		reg.Locale = *req.Locale
	}
	if req.FormData != nil {
		raw, err := json.Marshal(req.FormData)
		if err != nil {
			return fmt.Errorf("encode form data: %w", err)
		}
		reg.FormData = raw
		if req.Phone == nil {
			if phone := phoneFromForm(event, req.FormData); phone != "" {
				reg.Phone = phone
			}
		}
		if checked := acknowledgedFields(event, req.FormData); len(checked) > 0 {
			merged := appendAcknowledgments(reg.AcknowledgmentList(), checked, clientIP, s.now())
			raw, err := json.Marshal(merged)
			if err != nil {
				return fmt.Errorf("encode acknowledgments: %w", err)
			}
			reg.Acknowledgments = raw
		}
	}
	return s.store.Update(ctx, reg)
}

// buildRegistration maps a submission to a row, pulling the phone number out
// of the dynamic form when the fixed field is empty.
func (s *Service) buildRegistration(event *models.Event, req *SubmitRequest) *models.Registration {
	reg := &models.Registration{
		EventID:         event.ID,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           s.extractPhone(event, req),
		PassportNumber:  req.PassportNumber,
		PassportCountry: req.PassportCountry,
		Dietary:         req.Dietary,
		Locale:          req.Locale,
		PaymentStatus:   models.PaymentNone,
	}
	if req.FormData != nil {
		if raw, err := json.Marshal(req.FormData); err == nil {
			reg.FormData = raw
		}
	}
	return reg
}

// extractPhone prefers the fixed phone field, then any form field whose type
// is phone or tel regardless of its name.
func (s *Service) extractPhone(event *models.Event, req *SubmitRequest) string {
	if req.Phone != "" {
		return req.Phone
	}
	return phoneFromForm(event, req.FormData)
}

func phoneFromForm(event *models.Event, formData map[string]any) string {
	if formData == nil {
		return ""
	}
	if event != nil {
		for _, f := range event.FormFields() {
			if f.Type != "phone" && f.Type != "tel" {
				continue
			}
			if v, ok := formData[f.Name].(string); ok && v != "" {
				return v
			}
		}
	}
	if v, ok := formData["phone"].(string); ok {
		return v
	}
	return ""
}

// acknowledgedFields derives the consent entries for this submit from the
// form definition: every checkbox-type field whose submitted value is true.
// The client never names acknowledgment fields directly.
func acknowledgedFields(event *models.Event, formData map[string]any) []string {
	if formData == nil {
		return nil
	}
	var checked []string
	for _, f := range event.FormFields() {
		if f.Type != "checkbox" {
			continue
		}
		if v, ok := formData[f.Name].(bool); ok && v {
			checked = append(checked, f.Name)
		}
	}
	return checked
}

// attachAcknowledgments merges the prior consent log (if any row exists for
// this email) with the boxes checked on this submit.
func (s *Service) attachAcknowledgments(ctx context.Context, event *models.Event, reg *models.Registration, formData map[string]any, clientIP string) error {
	var prior []models.Acknowledgment
	if reg.OrderID == nil && reg.Email != "" {
		existing, err := s.store.GetByEventAndEmail(ctx, event.ID, reg.Email)
		if err != nil {
			return fmt.Errorf("load prior registration: %w", err)
		}
		if existing != nil {
			prior = existing.AcknowledgmentList()
		}
	}
	merged := appendAcknowledgments(prior, acknowledgedFields(event, formData), clientIP, s.now())
	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode acknowledgments: %w", err)
	}
	reg.Acknowledgments = raw
	return nil
}

func appendAcknowledgments(prior []models.Acknowledgment, fields []string, clientIP string, at time.Time) []models.Acknowledgment {
	merged := make([]models.Acknowledgment, 0, len(prior)+len(fields))
	merged = append(merged, prior...)
	for _, f := range fields {
		merged = append(merged, models.Acknowledgment{Field: f, IP: clientIP, At: at})
	}
	return merged
}

// dispatchSideEffects enqueues the confirmation email and the marketing
// contact sync. Failures are logged, never surfaced: the registration already
// stands.
func (s *Service) dispatchSideEffects(ctx context.Context, event *models.Event, reg *models.Registration) {
	if reg.Email == "" {
		return
	}
	err := s.jobs.Enqueue(ctx, queue.JobTypeConfirmationEmail, queue.EmailPayload{
		EventID:        event.ID,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		RecipientName:  reg.FirstName + " " + reg.LastName,
		Locale:         reg.Locale,
	})
	if err != nil {
		s.logger.Error("confirmation email enqueue failed",
			zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
	err = s.jobs.Enqueue(ctx, queue.JobTypeMarketingSync, queue.MarketingSyncPayload{
		EventID:        event.ID,
		RegistrationID: reg.ID,
		Email:          reg.Email,
		Attributes: map[string]string{
			"first_name": reg.FirstName,
			"last_name":  reg.LastName,
			"event":      event.Name,
		},
	})
	if err != nil {
		s.logger.Error("marketing sync enqueue failed",
			zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}
