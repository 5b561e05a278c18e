package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/response"
)

func newOtpRouter(f *otpFixture, issuer SessionIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.svc, issuer, nil)
	r := gin.New()
	r.POST("/register/otp/generate", h.Generate)
	r.POST("/register/otp/validate", h.Validate)
	r.POST("/register/otp/session/consume", h.Consume)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, path string, body any) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHandlerGenerateThenValidate(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	issuer := func(_ context.Context, email string, eventID *uuid.UUID) (*models.AttendeeSession, error) {
		return &models.AttendeeSession{Token: "portal-token", Email: email, EventID: eventID, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	r := newOtpRouter(f, issuer)

	w, env := doJSON(t, r, "/register/otp/generate", gin.H{
		"email":    "ada@example.com",
		"event_id": e.ID.String(),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = doJSON(t, r, "/register/otp/validate", gin.H{
		"email": "ada@example.com",
		"code":  "000000",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["verified"])
	assert.NotEmpty(t, data["redirect_token"])
	assert.Equal(t, "portal-token", data["attendee_token"])
}

func TestHandlerValidateUnlistedQualifiedEvent(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeQualifiedVerified)
	r := newOtpRouter(f, nil)

	w, env := doJSON(t, r, "/register/otp/generate", gin.H{
		"email":    "stranger@example.com",
		"event_id": e.ID.String(),
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.CodeNotQualified, env.Code)
}

func TestHandlerValidateNoPendingSession(t *testing.T) {
	f := newOtpFixture()
	r := newOtpRouter(f, nil)

	w, env := doJSON(t, r, "/register/otp/validate", gin.H{
		"email": "nobody@example.com",
		"code":  "000000",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeNoPendingVerification, env.Code)
}

func TestHandlerConsumeRedirectTokenOnce(t *testing.T) {
	f := newOtpFixture()
	e := f.addEvent(models.ModeOpenVerified)
	r := newOtpRouter(f, nil)

	_, _ = doJSON(t, r, "/register/otp/generate", gin.H{
		"email":    "ada@example.com",
		"event_id": e.ID.String(),
	})
	w, env := doJSON(t, r, "/register/otp/validate", gin.H{
		"email": "ada@example.com",
		"code":  "000000",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := env.Data.(map[string]any)
	token, _ := data["redirect_token"].(string)
	require.NotEmpty(t, token)

	w, env = doJSON(t, r, "/register/otp/session/consume", gin.H{
		"token": token,
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = doJSON(t, r, "/register/otp/session/consume", gin.H{
		"token": token,
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeTokenUsed, env.Code)
}

func TestHandlerGenerateRejectsBadEmail(t *testing.T) {
	f := newOtpFixture()
	r := newOtpRouter(f, nil)

	w, env := doJSON(t, r, "/register/otp/generate", gin.H{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
}
