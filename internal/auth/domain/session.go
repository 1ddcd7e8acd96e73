package domain

import "time"

// Session is a device-scoped login. A user holds at most one session per
// device name; logging in again from the same device replaces the row.
// Only the refresh token's fingerprint is stored, never the token itself.
type Session struct {
	ID    string
	Email string

	// SID is the session identifier carried in token claims. A session row
	// and its sid live and die together; a reissued token always gets a
	// fresh sid and therefore a fresh row.
	SID string

	// RefreshJTI is the jti of the refresh token currently bound to this
	// session.
	RefreshJTI string

	// RefreshHash is the SHA-256 fingerprint of the refresh token.
	RefreshHash string

	DeviceName     string
	DeviceOS       string
	DeviceIP       string
	Browser        string
	BrowserVersion string

	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLive reports whether the session can still redeem its refresh token.
func (s Session) IsLive(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
