package otp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/models"
)

type fakeSessions struct {
	sessions []*models.OtpSession
}

func (f *fakeSessions) Create(_ context.Context, s *models.OtpSession) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeSessions) LatestPendingByEmail(_ context.Context, email string) (*models.OtpSession, error) {
	for i := len(f.sessions) - 1; i >= 0; i-- {
		s := f.sessions[i]
		if s.Email == email && !s.Verified && time.Now().Before(s.ExpiresAt) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) GetBySessionToken(_ context.Context, token string) (*models.OtpSession, error) {
	for i := len(f.sessions) - 1; i >= 0; i-- {
		s := f.sessions[i]
		if s.SessionToken != nil && *s.SessionToken == token {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) MarkVerified(_ context.Context, id uuid.UUID, profile json.RawMessage, redirectToken string, redirectExpires time.Time) (bool, error) {
	for _, s := range f.sessions {
		if s.ID != id {
			continue
		}
		if s.Verified {
			return false, nil
		}
		now := time.Now()
		s.Verified = true
		s.VerifiedAt = &now
		s.Profile = profile
		s.RedirectToken = &redirectToken
		s.RedirectTokenExpires = &redirectExpires
		return true, nil
	}
	return false, nil
}

func (f *fakeSessions) GetByRedirectToken(_ context.Context, token string) (*models.OtpSession, error) {
	for _, s := range f.sessions {
		if s.RedirectToken != nil && *s.RedirectToken == token {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) ConsumeRedirectToken(_ context.Context, id uuid.UUID) (bool, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			if s.RedirectTokenConsumed {
				return false, nil
			}
			s.RedirectTokenConsumed = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessions) LatestVerifiedForEvent(_ context.Context, email string, eventID uuid.UUID) (*models.OtpSession, error) {
	for i := len(f.sessions) - 1; i >= 0; i-- {
		s := f.sessions[i]
		if s.Email == email && s.Verified &&
			s.RegistrationEventID != nil && *s.RegistrationEventID == eventID {
			return s, nil
		}
	}
	return nil, nil
}

type fakeEvents struct {
	byID map[uuid.UUID]*models.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return f.byID[id], nil
}

type fakeQualLookup struct {
	byEmail map[string]*models.QualifiedRegistrant
	byUID   map[string]*models.QualifiedRegistrant
}

func (f *fakeQualLookup) GetByEventAndEmail(_ context.Context, _ uuid.UUID, email string) (*models.QualifiedRegistrant, error) {
	return f.byEmail[email], nil
}

func (f *fakeQualLookup) GetByEventAndUnicityID(_ context.Context, _ uuid.UUID, unicityID string) (*models.QualifiedRegistrant, error) {
	return f.byUID[unicityID], nil
}

type fakeRegLookup struct {
	byEmail map[string]*models.Registration
	byUID   map[string]*models.Registration
}

func (f *fakeRegLookup) GetByEventAndEmail(_ context.Context, _ uuid.UUID, email string) (*models.Registration, error) {
	return f.byEmail[email], nil
}

func (f *fakeRegLookup) GetByEventAndUnicityID(_ context.Context, _ uuid.UUID, unicityID string) (*models.Registration, error) {
	return f.byUID[unicityID], nil
}

type fakeAdmins struct {
	byEmail map[string]*models.AdminUser
}

func (f *fakeAdmins) GetByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	return f.byEmail[email], nil
}

type otpFixture struct {
	svc      *Service
	sessions *fakeSessions
	events   *fakeEvents
	quals    *fakeQualLookup
	regs     *fakeRegLookup
	admins   *fakeAdmins
	cfg      *config.Config
}

func newOtpFixture() *otpFixture {
	f := &otpFixture{
		sessions: &fakeSessions{},
		events:   &fakeEvents{byID: make(map[uuid.UUID]*models.Event)},
		quals: &fakeQualLookup{
			byEmail: make(map[string]*models.QualifiedRegistrant),
			byUID:   make(map[string]*models.QualifiedRegistrant),
		},
		regs: &fakeRegLookup{
			byEmail: make(map[string]*models.Registration),
			byUID:   make(map[string]*models.Registration),
		},
		admins: &fakeAdmins{byEmail: make(map[string]*models.AdminUser)},
		cfg: &config.Config{
			AppEnv: config.EnvTest,
			Hydra:  config.HydraConfig{DevCode: "000000"},
			Admin:  config.AdminConfig{BootstrapEmails: []string{"boss@example.com"}},
		},
	}
	f.svc = NewService(f.sessions, f.events, f.quals, f.regs, f.admins, nil, f.cfg, nil)
	return f
}

func (f *otpFixture) addEvent(mode models.RegistrationMode) *models.Event {
	e := &models.Event{ID: uuid.New(), RegistrationMode: mode, Status: models.EventPublished}
	f.events.byID[e.ID] = e
	return e
}

func TestGenerateOpenEventAnyEmail(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)

	err := f.svc.Generate(context.Background(), "Anyone@Example.com", &e.ID)
	require.NoError(t, err)
	require.Len(t, f.sessions.sessions, 1)
	assert.Equal(t, "anyone@example.com", f.sessions.sessions[0].Email)
	assert.Equal(t, models.PurposeRegistration, f.sessions.sessions[0].Purpose)
}

func TestGenerateQualifiedEventRejectsUnlisted(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeQualifiedVerified)

	err := f.svc.Generate(context.Background(), "stranger@example.com", &e.ID)
	require.ErrorIs(t, err, ErrNotQualified)
	assert.Empty(t, f.sessions.sessions)
}

func TestGenerateQualifiedEventAcceptsExistingRegistrant(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeQualifiedVerified)
	f.regs.byEmail["ada@example.com"] = &models.Registration{Email: "ada@example.com"}

	err := f.svc.Generate(context.Background(), "ada@example.com", &e.ID)
	require.NoError(t, err)
}

func TestValidateDevCode(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))

	res, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RedirectToken)
	assert.Equal(t, "ada@example.com", res.Email)
	require.NotNil(t, res.EventID)
	assert.Equal(t, e.ID, *res.EventID)
}

func TestValidateWrongDevCode(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))

	_, err := f.svc.Validate(context.Background(), "ada@example.com", "", "999999", nil)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestValidateNoPendingSession(t *testing.T) {
	f := newOtpFixture()
	_, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.ErrorIs(t, err, ErrNoPendingVerification)
}

func TestValidateTwiceFails(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))

	_, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)

	_, err = f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.ErrorIs(t, err, ErrNoPendingVerification)
}

func TestValidateExpiredSession(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))
	f.sessions.sessions[0].ExpiresAt = time.Now().Add(-time.Minute)

	_, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.ErrorIs(t, err, ErrNoPendingVerification)
}

func TestValidateFillsProfileFromQualifier(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeQualifiedVerified)
	uid := "U-77"
	f.quals.byEmail["ada@example.com"] = &models.QualifiedRegistrant{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", UnicityID: &uid,
	}
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))

	res, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Profile.FirstName)
	assert.Equal(t, "U-77", res.Profile.UnicityID)
	assert.True(t, res.IsQualified)
}

func TestConsumeRedirectTokenSingleUse(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))
	res, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)

	profile, err := f.svc.ConsumeRedirectToken(context.Background(), res.RedirectToken, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email)

	_, err = f.svc.ConsumeRedirectToken(context.Background(), res.RedirectToken, "ada@example.com")
	require.ErrorIs(t, err, ErrRedirectTokenUsed)
}

func TestConsumeRedirectTokenEmailMismatch(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))
	res, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)

	_, err = f.svc.ConsumeRedirectToken(context.Background(), res.RedirectToken, "mallory@example.com")
	require.ErrorIs(t, err, ErrEmailMismatch)
}

func TestConsumeRedirectTokenExpired(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))
	res, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	f.sessions.sessions[0].RedirectTokenExpires = &past

	_, err = f.svc.ConsumeRedirectToken(context.Background(), res.RedirectToken, "ada@example.com")
	require.ErrorIs(t, err, ErrRedirectTokenExpired)
}

func TestConsumeRedirectTokenUnknown(t *testing.T) {
	f := newOtpFixture()
	_, err := f.svc.ConsumeRedirectToken(context.Background(), "no-such-token", "ada@example.com")
	require.ErrorIs(t, err, ErrRedirectTokenUnknown)
}

func TestHasVerifiedSessionWindow(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	require.NoError(t, f.svc.Generate(context.Background(), "ada@example.com", &e.ID))
	_, err := f.svc.Validate(context.Background(), "ada@example.com", "", "000000", nil)
	require.NoError(t, err)

	ok, err := f.svc.HasVerifiedSession(context.Background(), "ada@example.com", e.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	stale := time.Now().Add(-models.VerifiedSessionWindow - time.Minute)
	f.sessions.sessions[0].VerifiedAt = &stale

	ok, err = f.svc.HasVerifiedSession(context.Background(), "ada@example.com", e.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateForAdminUnknownEmail(t *testing.T) {
	f := newOtpFixture()
	err := f.svc.GenerateForAdmin(context.Background(), "stranger@example.com")
	require.ErrorIs(t, err, ErrNotAuthorizedAdmin)
}

func TestGenerateForAdminBootstrapAllowlist(t *testing.T) {
	f := newOtpFixture()
	err := f.svc.GenerateForAdmin(context.Background(), "boss@example.com")
	require.NoError(t, err)
	require.Len(t, f.sessions.sessions, 1)
	assert.Equal(t, models.PurposeAdminLogin, f.sessions.sessions[0].Purpose)
}

func TestGenerateForAdminRefusesAliasedBootstrap(t *testing.T) {
	f := newOtpFixture()
	err := f.svc.GenerateForAdmin(context.Background(), "boss+alias@example.com")
	require.ErrorIs(t, err, ErrNotAuthorizedAdmin)
}

func TestGenerateByDistributorIDHidesEmail(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeQualifiedVerified)
	uid := "U-42"
	f.quals.byUID[uid] = &models.QualifiedRegistrant{Email: "Secret@Example.com", UnicityID: &uid}

	token, err := f.svc.GenerateByDistributorID(context.Background(), uid, e.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotContains(t, token, "secret")

	res, err := f.svc.Validate(context.Background(), "", token, "000000", nil)
	require.NoError(t, err)
	assert.Equal(t, "secret@example.com", res.Email)
	assert.Equal(t, uid, res.Profile.UnicityID)
}

func TestGenerateByDistributorIDUnknown(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeQualifiedVerified)
	_, err := f.svc.GenerateByDistributorID(context.Background(), "U-404", e.ID)
	require.ErrorIs(t, err, ErrDistributorUnknown)
}
