package domain

import "time"

// Platform is the mobile OS a push token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) IsValid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// PushToken is a device registration for push delivery. At most one active
// token exists per (session, platform); registering a new one deactivates
// the older ones for the same pair.
type PushToken struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	Platform       Platform   `json:"platform"`
	Token          string     `json:"token"`
	InstallationID string     `json:"installation_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	RevokedReason  *string    `json:"revoked_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RegisterTokenRequest is the inbound payload for token registration.
type RegisterTokenRequest struct {
	SessionID      string   `json:"session_id"`
	Platform       Platform `json:"platform"`
	Token          string   `json:"token"`
	InstallationID string   `json:"installation_id,omitempty"`
	// Country picks the home partition; empty falls back to the default.
	Country string `json:"country,omitempty"`
}

func (r *RegisterTokenRequest) Validate() error {
	if r.SessionID == "" {
		return ErrInvalidSession
	}
	if !r.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	if r.Token == "" {
		return ErrInvalidToken
	}
	return nil
}
