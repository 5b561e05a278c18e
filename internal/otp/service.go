package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/utils"
)

// PendingSessionTTL is how long a generated code may be redeemed.
const PendingSessionTTL = 15 * time.Minute

// Workflow errors. Handlers map these to the response-code taxonomy.
var (
	ErrNotQualified          = errors.New("not qualified")
	ErrNoPendingVerification = errors.New("no pending verification")
	ErrAlreadyVerified       = errors.New("verification already used")
	ErrRedirectTokenUnknown  = errors.New("unknown redirect token")
	ErrRedirectTokenUsed     = errors.New("redirect token already used")
	ErrRedirectTokenExpired  = errors.New("redirect token expired")
	ErrEmailMismatch         = errors.New("email mismatch")
	ErrNotAuthorizedAdmin    = errors.New("email not authorized for admin login")
	ErrDistributorUnknown    = errors.New("distributor id not found")
)

// SessionStore is the persistence surface the service needs.
type SessionStore interface {
	Create(ctx context.Context, s *models.OtpSession) error
	LatestPendingByEmail(ctx context.Context, email string) (*models.OtpSession, error)
	GetBySessionToken(ctx context.Context, token string) (*models.OtpSession, error)
	MarkVerified(ctx context.Context, id uuid.UUID, profile json.RawMessage, redirectToken string, redirectExpires time.Time) (bool, error)
	GetByRedirectToken(ctx context.Context, token string) (*models.OtpSession, error)
	ConsumeRedirectToken(ctx context.Context, id uuid.UUID) (bool, error)
	LatestVerifiedForEvent(ctx context.Context, email string, eventID uuid.UUID) (*models.OtpSession, error)
}

// EventLookup resolves events for mode checks.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// QualifierLookup resolves pre-approval records.
type QualifierLookup interface {
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.QualifiedRegistrant, error)
	GetByEventAndUnicityID(ctx context.Context, eventID uuid.UUID, unicityID string) (*models.QualifiedRegistrant, error)
}

// RegistrationLookup resolves existing registrations (an already-registered
// email counts as qualified).
type RegistrationLookup interface {
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error)
	GetByEventAndUnicityID(ctx context.Context, eventID uuid.UUID, unicityID string) (*models.Registration, error)
}

// AdminLookup resolves back-office users for admin-login OTP.
type AdminLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
}

// ValidateResult is what a successful code check yields.
type ValidateResult struct {
	Profile       models.OtpProfile
	RedirectToken string
	IsQualified   bool
	Purpose       models.OtpPurpose
	EventID       *uuid.UUID
	Email         string
}

// Service mediates identity proof for admins and public registrants. Client
// supplied identity is never trusted on its own.
type Service struct {
	sessions SessionStore
	events   EventLookup
	quals    QualifierLookup
	regs     RegistrationLookup
	admins   AdminLookup
	provider Provider
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the OTP service.
func NewService(sessions SessionStore, events EventLookup, quals QualifierLookup, regs RegistrationLookup, admins AdminLookup, provider Provider, cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		events:   events,
		quals:    quals,
		regs:     regs,
		admins:   admins,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// devMode reports whether OTP generation is simulated with a fixed code. This
// is never true in production.
func (s *Service) devMode() bool { return !s.cfg.IsProduction() }

// Generate creates a pending registration session. For qualified_verified
// events the email must be pre-approved or already registered.
func (s *Service) Generate(ctx context.Context, email string, eventID *uuid.UUID) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if eventID != nil {
		event, err := s.events.GetByID(ctx, *eventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event == nil {
			return fmt.Errorf("event %s: %w", eventID, ErrNotQualified)
		}
		if event.RegistrationMode.RequiresQualification() {
			ok, err := s.emailQualified(ctx, *eventID, email)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotQualified
			}
		}
	}
	return s.createSession(ctx, email, models.PurposeRegistration, eventID, nil, nil)
}

// GenerateForAdmin creates a pending admin-login session. The email must
// belong to a back-office user, or appear on the bootstrap allowlist. The
// bootstrap path refuses "+"-aliased addresses so an alias of an allowed
// mailbox cannot self-provision.
func (s *Service) GenerateForAdmin(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load admin user: %w", err)
	}
	if user == nil {
		if strings.Contains(email, "+") || !s.onBootstrapList(email) {
			return ErrNotAuthorizedAdmin
		}
	}
	return s.createSession(ctx, email, models.PurposeAdminLogin, nil, nil, nil)
}

// GenerateForAttendeePortal creates a pending attendee-portal session. The
// email must hold at least one registration for the event.
func (s *Service) GenerateForAttendeePortal(ctx context.Context, email string, eventID uuid.UUID) error {
	email = strings.ToLower(strings.TrimSpace(email))
	reg, err := s.regs.GetByEventAndEmail(ctx, eventID, email)
	if err != nil {
		return fmt.Errorf("load registration: %w", err)
	}
	if reg == nil {
		return ErrNotQualified
	}
	return s.createSession(ctx, email, models.PurposeAttendeePortal, &eventID, nil, nil)
}

// GenerateByDistributorID resolves a distributor ID to an email and starts a
// session. The resolved email is never returned; the caller receives an
// opaque session token instead, which prevents email enumeration.
func (s *Service) GenerateByDistributorID(ctx context.Context, distributorID string, eventID uuid.UUID) (sessionToken string, err error) {
	distributorID = strings.TrimSpace(distributorID)
	email := ""
	if q, err := s.quals.GetByEventAndUnicityID(ctx, eventID, distributorID); err != nil {
		return "", fmt.Errorf("lookup qualifier: %w", err)
	} else if q != nil {
		email = q.Email
	}
	if email == "" {
		reg, err := s.regs.GetByEventAndUnicityID(ctx, eventID, distributorID)
		if err != nil {
			return "", fmt.Errorf("lookup registration: %w", err)
		}
		if reg != nil {
			email = reg.Email
		}
	}
	if email == "" {
		return "", ErrDistributorUnknown
	}

	token, err := utils.RandomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	if err := s.createSession(ctx, strings.ToLower(email), models.PurposeDistributorLookup, &eventID, &distributorID, &token); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) createSession(ctx context.Context, email string, purpose models.OtpPurpose, eventID *uuid.UUID, distributorID, sessionToken *string) error {
	validationID := "dev"
	if !s.devMode() {
		id, err := s.provider.Generate(ctx, email)
		if err != nil {
			return fmt.Errorf("provider generate: %w", err)
		}
		validationID = id
	}
	session := &models.OtpSession{
		Email:                 email,
		Purpose:               purpose,
		ValidationID:          validationID,
		RegistrationEventID:   eventID,
		VerifiedDistributorID: distributorID,
		SessionToken:          sessionToken,
		ExpiresAt:             s.now().Add(PendingSessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return fmt.Errorf("create otp session: %w", err)
	}
	s.logger.Info("otp session created",
		zap.String("purpose", string(purpose)),
		zap.Bool("dev_mode", s.devMode()))
	return nil
}

// Validate checks the code for the most recent unexpired pending session,
// found by email or, when the email is absent, by the opaque session token.
func (s *Service) Validate(ctx context.Context, email, sessionToken, code string, eventID *uuid.UUID) (*ValidateResult, error) {
	var session *models.OtpSession
	var err error
	if email != "" {
		session, err = s.sessions.LatestPendingByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	} else {
		session, err = s.sessions.GetBySessionToken(ctx, sessionToken)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrNoPendingVerification
	}
	if session.Verified {
		return nil, ErrAlreadyVerified
	}

	// The session's own event binding wins over anything the client resends.
	boundEvent := session.RegistrationEventID
	if boundEvent == nil {
		boundEvent = eventID
	}

	profile, qualified, err := s.checkCode(ctx, session, code, boundEvent)
	if err != nil {
		return nil, err
	}

	merged := s.mergeProfile(session, profile)
	rawProfile, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	redirectToken, err := utils.RandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate redirect token: %w", err)
	}
	updated, err := s.sessions.MarkVerified(ctx, session.ID, rawProfile, redirectToken, s.now().Add(models.RedirectTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if !updated {
		// Concurrent validate won the conditional update.
		return nil, ErrAlreadyVerified
	}

	return &ValidateResult{
		Profile:       merged,
		RedirectToken: redirectToken,
		IsQualified:   qualified,
		Purpose:       session.Purpose,
		EventID:       boundEvent,
		Email:         session.Email,
	}, nil
}

// checkCode verifies the code against the provider (or the fixed dev code)
// and resolves the profile. A provider "customer not found" still verifies
// when the event does not require qualification, or the email is on the
// qualification list; local data stands in for provider data.
func (s *Service) checkCode(ctx context.Context, session *models.OtpSession, code string, eventID *uuid.UUID) (models.OtpProfile, bool, error) {
	qualified := false
	if eventID != nil {
		ok, err := s.emailQualified(ctx, *eventID, session.Email)
		if err != nil {
			return models.OtpProfile{}, false, err
		}
		qualified = ok
	}

	if s.devMode() {
		if code != s.cfg.Hydra.DevCode {
			return models.OtpProfile{}, false, ErrInvalidCode
		}
		return s.localProfile(ctx, session, eventID), qualified, nil
	}

	profile, err := s.provider.Validate(ctx, session.ValidationID, code)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			requiresQualification := false
			if eventID != nil {
				event, evErr := s.events.GetByID(ctx, *eventID)
				if evErr != nil {
					return models.OtpProfile{}, false, fmt.Errorf("load event: %w", evErr)
				}
				requiresQualification = event != nil && event.RegistrationMode.RequiresQualification()
			}
			if !requiresQualification || qualified {
				return s.localProfile(ctx, session, eventID), qualified, nil
			}
		}
		return models.OtpProfile{}, false, err
	}
	return *profile, qualified, nil
}

// localProfile builds a profile from the qualification list when the provider
// has no account data.
func (s *Service) localProfile(ctx context.Context, session *models.OtpSession, eventID *uuid.UUID) models.OtpProfile {
	p := models.OtpProfile{Email: session.Email}
	if eventID == nil {
		return p
	}
	q, err := s.quals.GetByEventAndEmail(ctx, *eventID, session.Email)
	if err != nil || q == nil {
		return p
	}
	p.FirstName = q.FirstName
	p.LastName = q.LastName
	p.Phone = q.Phone
	p.Locale = q.Locale
	if q.UnicityID != nil {
		p.UnicityID = *q.UnicityID
	}
	return p
}

// mergeProfile overlays newly learned provider data on what the session
// already carried, keeping known values when the provider is silent.
func (s *Service) mergeProfile(session *models.OtpSession, fresh models.OtpProfile) models.OtpProfile {
	merged := session.ProfileData()
	if fresh.FirstName != "" {
		merged.FirstName = fresh.FirstName
	}
	if fresh.LastName != "" {
		merged.LastName = fresh.LastName
	}
	if fresh.Phone != "" {
		merged.Phone = fresh.Phone
	}
	if fresh.UnicityID != "" {
		merged.UnicityID = fresh.UnicityID
	}
	if fresh.Locale != "" {
		merged.Locale = fresh.Locale
	}
	merged.Email = session.Email
	if session.VerifiedDistributorID != nil && merged.UnicityID == "" {
		merged.UnicityID = *session.VerifiedDistributorID
	}
	return merged
}

// ConsumeRedirectToken redeems the single-use token, returning the verified
// profile. It fails for unknown, consumed, expired, or mismatched tokens.
func (s *Service) ConsumeRedirectToken(ctx context.Context, token, email string) (*models.OtpProfile, error) {
	session, err := s.sessions.GetByRedirectToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrRedirectTokenUnknown
	}
	if session.RedirectTokenConsumed {
		return nil, ErrRedirectTokenUsed
	}
	if session.RedirectTokenExpires == nil || s.now().After(*session.RedirectTokenExpires) {
		return nil, ErrRedirectTokenExpired
	}
	if !strings.EqualFold(session.Email, strings.TrimSpace(email)) {
		return nil, ErrEmailMismatch
	}
	consumed, err := s.sessions.ConsumeRedirectToken(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("consume redirect token: %w", err)
	}
	if !consumed {
		return nil, ErrRedirectTokenUsed
	}
	profile := session.ProfileData()
	return &profile, nil
}

// HasVerifiedSession reports whether the email holds a session verified
// within the last 30 minutes bound to the event. Registration writes must
// use this, never the bare verified flag.
func (s *Service) HasVerifiedSession(ctx context.Context, email string, eventID uuid.UUID) (bool, error) {
	session, err := s.sessions.LatestVerifiedForEvent(ctx, strings.ToLower(strings.TrimSpace(email)), eventID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return false, nil
	}
	return session.VerifiedWithin(models.VerifiedSessionWindow, s.now()), nil
}

// VerifiedProfile returns the profile carried by the email's live verified
// session for the event, or nil when no such session exists.
func (s *Service) VerifiedProfile(ctx context.Context, email string, eventID uuid.UUID) (*models.OtpProfile, error) {
	session, err := s.sessions.LatestVerifiedForEvent(ctx, strings.ToLower(strings.TrimSpace(email)), eventID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || !session.VerifiedWithin(models.VerifiedSessionWindow, s.now()) {
		return nil, nil
	}
	profile := session.ProfileData()
	return &profile, nil
}

// emailQualified reports whether the email is pre-approved for the event or
// already holds a registration.
func (s *Service) emailQualified(ctx context.Context, eventID uuid.UUID, email string) (bool, error) {
	q, err := s.quals.GetByEventAndEmail(ctx, eventID, email)
	if err != nil {
		return false, fmt.Errorf("lookup qualifier: %w", err)
	}
	if q != nil {
		return true, nil
	}
	reg, err := s.regs.GetByEventAndEmail(ctx, eventID, email)
	if err != nil {
		return false, fmt.Errorf("lookup registration: %w", err)
	}
	return reg != nil, nil
}

func (s *Service) onBootstrapList(email string) bool {
	for _, e := range s.cfg.Admin.BootstrapEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}
