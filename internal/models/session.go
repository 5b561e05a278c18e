package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendeeSession is an opaque bearer token mapping to an attendee email.
// Created on successful OTP validation, deleted on logout, otherwise expires.
type AttendeeSession struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	EventID   *uuid.UUID `json:"event_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthSession backs an admin JWT: the token's jti is persisted here so logout
// can revoke it server-side before expiry.
type AuthSession struct {
	JTI       uuid.UUID `json:"jti"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
