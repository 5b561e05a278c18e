package registrations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/queue"
)

type fakeStore struct {
	rows        map[string]*models.Registration // key event|email
	batches     [][]*models.Registration
	deletedOrds []string
	updateErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*models.Registration)}
}

func key(eventID uuid.UUID, email string) string {
	return eventID.String() + "|" + strings.ToLower(email)
}

func (f *fakeStore) Upsert(_ context.Context, reg *models.Registration) (bool, error) {
	k := key(reg.EventID, reg.Email)
	if prev, ok := f.rows[k]; ok {
		reg.ID = prev.ID
		f.rows[k] = reg
		return true, nil
	}
	reg.ID = uuid.New()
	f.rows[k] = reg
	return false, nil
}

func (f *fakeStore) InsertAnonymousBatch(_ context.Context, regs []*models.Registration) error {
	for _, reg := range regs {
		reg.ID = uuid.New()
	}
	f.batches = append(f.batches, regs)
	return nil
}

func (f *fakeStore) DeleteByOrderID(_ context.Context, orderID string) error {
	f.deletedOrds = append(f.deletedOrds, orderID)
	return nil
}

func (f *fakeStore) GetByEventAndEmail(_ context.Context, eventID uuid.UUID, email string) (*models.Registration, error) {
	return f.rows[key(eventID, email)], nil
}

func (f *fakeStore) Update(_ context.Context, reg *models.Registration) error {
	return f.updateErr
}

type fakeVerifier struct {
	verified map[string]bool
	profiles map[string]*models.OtpProfile
}

func (f *fakeVerifier) HasVerifiedSession(_ context.Context, email string, _ uuid.UUID) (bool, error) {
	return f.verified[strings.ToLower(email)], nil
}

func (f *fakeVerifier) VerifiedProfile(_ context.Context, email string, _ uuid.UUID) (*models.OtpProfile, error) {
	return f.profiles[strings.ToLower(email)], nil
}

type fakeQuals struct {
	byEmail   map[string]*models.QualifiedRegistrant
	byUnicity map[string]*models.QualifiedRegistrant
}

func (f *fakeQuals) GetByEventAndEmail(_ context.Context, _ uuid.UUID, email string) (*models.QualifiedRegistrant, error) {
	return f.byEmail[strings.ToLower(email)], nil
}

func (f *fakeQuals) GetByEventAndUnicityID(_ context.Context, _ uuid.UUID, unicityID string) (*models.QualifiedRegistrant, error) {
	return f.byUnicity[unicityID], nil
}

type fakeTokens struct {
	issued []uuid.UUID
	failAt int // fail when issuing the nth token (1-based), 0 = never
}

func (f *fakeTokens) CreateToken(_ context.Context, registrationID uuid.UUID) (*models.CheckInToken, error) {
	if f.failAt > 0 && len(f.issued)+1 == f.failAt {
		return nil, errors.New("token store down")
	}
	f.issued = append(f.issued, registrationID)
	return &models.CheckInToken{ID: uuid.New(), RegistrationID: registrationID, Token: "tok"}, nil
}

type fakeJobs struct {
	enqueued []queue.JobType
	err      error
}

func (f *fakeJobs) Enqueue(_ context.Context, jobType queue.JobType, _ any) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, jobType)
	return nil
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	verifier *fakeVerifier
	quals    *fakeQuals
	tokens   *fakeTokens
	jobs     *fakeJobs
}

func newFixture() *fixture {
	f := &fixture{
		store: newFakeStore(),
		verifier: &fakeVerifier{
			verified: make(map[string]bool),
			profiles: make(map[string]*models.OtpProfile),
		},
		quals: &fakeQuals{
			byEmail:   make(map[string]*models.QualifiedRegistrant),
			byUnicity: make(map[string]*models.QualifiedRegistrant),
		},
		tokens: &fakeTokens{},
		jobs:   &fakeJobs{},
	}
	f.svc = NewService(f.store, f.verifier, f.quals, f.tokens, f.jobs, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return f
}

func testEvent(mode models.RegistrationMode) *models.Event {
	return &models.Event{
		ID:               uuid.New(),
		Name:             "Summit",
		Status:           models.EventPublished,
		RegistrationMode: mode,
	}
}

func TestRegisterOpenVerifiedCreates(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenVerified)
	f.verifier.verified["ada@example.com"] = true

	reg, wasUpdate, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, wasUpdate)
	assert.True(t, reg.VerifiedByHydra)
	assert.Len(t, f.tokens.issued, 1)
	assert.Equal(t, []queue.JobType{queue.JobTypeConfirmationEmail, queue.JobTypeMarketingSync}, f.jobs.enqueued)
}

func TestRegisterResubmitIsUpdate(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenVerified)
	f.verifier.verified["ada@example.com"] = true

	_, wasUpdate, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, wasUpdate)

	reg, wasUpdate, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Augusta", LastName: "King"}, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, wasUpdate)
	assert.Equal(t, "Augusta", reg.FirstName)

	// The first submit issued the token and the side effects; the replacement
	// must not repeat them.
	assert.Len(t, f.tokens.issued, 1)
	assert.Equal(t, []queue.JobType{queue.JobTypeConfirmationEmail, queue.JobTypeMarketingSync}, f.jobs.enqueued)
}

func TestRegisterWithoutVerifiedSession(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenVerified)

	_, _, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.ErrorIs(t, err, ErrVerificationRequired)
	assert.Empty(t, f.tokens.issued)
	assert.Empty(t, f.jobs.enqueued)
}

func TestRegisterQualifiedRejectsUnlisted(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeQualifiedVerified)
	f.verifier.verified["ada@example.com"] = true

	_, _, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.ErrorIs(t, err, ErrNotQualified)
}

func TestRegisterQualifiedCopiesUnicityID(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeQualifiedVerified)
	f.verifier.verified["ada@example.com"] = true
	uid := "U-100"
	f.quals.byEmail["ada@example.com"] = &models.QualifiedRegistrant{Email: "ada@example.com", UnicityID: &uid}

	reg, _, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, reg.UnicityID)
	assert.Equal(t, "U-100", *reg.UnicityID)
}

func TestRegisterClosedEvent(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenVerified)
	event.Status = models.EventArchived

	_, _, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.ErrorIs(t, err, ErrEventNotOpen)
}

func TestRegisterPhoneFromDynamicField(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenVerified)
	event.FormFieldsRaw = []byte(`[{"name":"contact_number","label":"Contact","type":"tel","required":false}]`)
	f.verifier.verified["ada@example.com"] = true

	reg, _, err := f.svc.Register(context.Background(), event, &SubmitRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		FormData:  map[string]any{"contact_number": "+1555000111"},
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "+1555000111", reg.Phone)
}

func TestRegisterFixedPhoneWins(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenVerified)
	event.FormFieldsRaw = []byte(`[{"name":"contact_number","label":"Contact","type":"tel","required":false}]`)
	f.verifier.verified["ada@example.com"] = true

	reg, _, err := f.svc.Register(context.Background(), event, &SubmitRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+1555999888",
		FormData:  map[string]any{"contact_number": "+1555000111"},
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "+1555999888", reg.Phone)
}

func consentEvent(mode models.RegistrationMode) *models.Event {
	e := testEvent(mode)
	e.FormFieldsRaw = []byte(`[
		{"name":"terms","label":"Terms","type":"checkbox","required":true},
		{"name":"photo_release","label":"Photo release","type":"checkbox","required":false},
		{"name":"company","label":"Company","type":"text","required":false}
	]`)
	return e
}

func TestRegisterDerivesAcknowledgmentsFromForm(t *testing.T) {
	f := newFixture()
	event := consentEvent(models.ModeOpenVerified)
	f.verifier.verified["ada@example.com"] = true

	reg, _, err := f.svc.Register(context.Background(), event, &SubmitRequest{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		FormData: map[string]any{"terms": true, "photo_release": false, "company": "ACME"},
	}, "10.0.0.1")
	require.NoError(t, err)

	acks := reg.AcknowledgmentList()
	require.Len(t, acks, 1)
	assert.Equal(t, "terms", acks[0].Field)
	assert.Equal(t, "10.0.0.1", acks[0].IP)
}

func TestAcknowledgmentsAppendAcrossResubmits(t *testing.T) {
	f := newFixture()
	event := consentEvent(models.ModeOpenVerified)
	f.verifier.verified["ada@example.com"] = true

	_, _, err := f.svc.Register(context.Background(), event, &SubmitRequest{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		FormData: map[string]any{"terms": true},
	}, "10.0.0.1")
	require.NoError(t, err)

	reg, _, err := f.svc.Register(context.Background(), event, &SubmitRequest{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		FormData: map[string]any{"photo_release": true},
	}, "10.0.0.2")
	require.NoError(t, err)

	acks := reg.AcknowledgmentList()
	require.Len(t, acks, 2)
	assert.Equal(t, "terms", acks[0].Field)
	assert.Equal(t, "10.0.0.1", acks[0].IP)
	assert.Equal(t, "photo_release", acks[1].Field)
	assert.Equal(t, "10.0.0.2", acks[1].IP)
}

func TestAnonymousBatchAssignsSeats(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenAnonymous)

	regs, orderID, err := f.svc.RegisterAnonymousBatch(context.Background(), event, []*SubmitRequest{
		{FirstName: "Seat", LastName: "One"},
		{FirstName: "Seat", LastName: "Two"},
		{FirstName: "Seat", LastName: "Three"},
	}, "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.NotEmpty(t, orderID)
	for i, reg := range regs {
		require.NotNil(t, reg.OrderID)
		assert.Equal(t, orderID, *reg.OrderID)
		require.NotNil(t, reg.AttendeeIndex)
		assert.Equal(t, i, *reg.AttendeeIndex)
	}
	assert.Len(t, f.tokens.issued, 3)
}

func TestAnonymousBatchRollsBackOnTokenFailure(t *testing.T) {
	f := newFixture()
	f.tokens.failAt = 2
	event := testEvent(models.ModeOpenAnonymous)

	_, _, err := f.svc.RegisterAnonymousBatch(context.Background(), event, []*SubmitRequest{
		{FirstName: "Seat", LastName: "One"},
		{FirstName: "Seat", LastName: "Two"},
	}, "10.0.0.1")
	require.Error(t, err)
	require.Len(t, f.store.deletedOrds, 1)
}

func TestAnonymousBatchEmpty(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeOpenAnonymous)

	_, _, err := f.svc.RegisterAnonymousBatch(context.Background(), event, nil, "10.0.0.1")
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestSideEffectFailureDoesNotFailRegistration(t *testing.T) {
	f := newFixture()
	f.jobs.err = errors.New("redis down")
	event := testEvent(models.ModeOpenVerified)
	f.verifier.verified["ada@example.com"] = true

	reg, _, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, reg.ID)
}

func TestUpdatePreservesAcknowledgmentHistory(t *testing.T) {
	f := newFixture()
	event := consentEvent(models.ModeOpenVerified)
	reg := &models.Registration{
		ID:              uuid.New(),
		EventID:         event.ID,
		Email:           "ada@example.com",
		FirstName:       "Ada",
		Acknowledgments: []byte(`[{"field":"terms","ip":"10.0.0.1","at":"2026-03-01T00:00:00Z"}]`),
	}
	dietary := "vegan"
	err := f.svc.Update(context.Background(), event, reg, &UpdateRequest{
		Dietary:  &dietary,
		FormData: map[string]any{"photo_release": true},
	}, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "vegan", reg.Dietary)
	assert.Equal(t, "Ada", reg.FirstName)

	acks := reg.AcknowledgmentList()
	require.Len(t, acks, 2)
	assert.Equal(t, "terms", acks[0].Field)
	assert.Equal(t, "photo_release", acks[1].Field)
	assert.Equal(t, "10.0.0.9", acks[1].IP)
}

func TestUpdateOmittedKeysKeepStoredValues(t *testing.T) {
	f := newFixture()
	event := consentEvent(models.ModeOpenVerified)
	reg := &models.Registration{
		ID:        uuid.New(),
		EventID:   event.ID,
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+15550001",
		Dietary:   "vegetarian",
	}
	dietary := "vegan"
	err := f.svc.Update(context.Background(), event, reg, &UpdateRequest{Dietary: &dietary}, "10.0.0.9")
	require.NoError(t, err)

	assert.Equal(t, "vegan", reg.Dietary)
	assert.Equal(t, "Ada", reg.FirstName)
	assert.Equal(t, "Lovelace", reg.LastName)
	assert.Equal(t, "+15550001", reg.Phone)
}

func TestUpdateExplicitEmptyClearsValue(t *testing.T) {
	f := newFixture()
	event := consentEvent(models.ModeOpenVerified)
	reg := &models.Registration{
		ID:      uuid.New(),
		EventID: event.ID,
		Email:   "ada@example.com",
		Dietary: "vegetarian",
	}
	empty := ""
	err := f.svc.Update(context.Background(), event, reg, &UpdateRequest{Dietary: &empty}, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "", reg.Dietary)
}

func TestRegisterQualifiedChecksUnicityIDFirst(t *testing.T) {
	f := newFixture()
	event := testEvent(models.ModeQualifiedVerified)
	f.verifier.verified["ada@example.com"] = true
	f.verifier.profiles["ada@example.com"] = &models.OtpProfile{Email: "ada@example.com", UnicityID: "U-700"}

	// Listed under a different contact address; only the unicity ID matches.
	uid := "U-700"
	f.quals.byUnicity["U-700"] = &models.QualifiedRegistrant{Email: "ada.old@example.com", UnicityID: &uid}

	reg, _, err := f.svc.Register(context.Background(), event,
		&SubmitRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}, "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, reg.UnicityID)
	assert.Equal(t, "U-700", *reg.UnicityID)
}
