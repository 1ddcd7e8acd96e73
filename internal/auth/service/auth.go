package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bbmovie/auth/internal/auth/cache"
	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/pkg/cryptox"
	"github.com/bbmovie/auth/pkg/idx"
	"github.com/bbmovie/auth/pkg/josex"
)

// DeviceInfo describes the client device a login or refresh originates from.
// DeviceName is the session key: a user holds one session per device name.
type DeviceInfo struct {
	Name           string
	OS             string
	IP             string
	Browser        string
	BrowserVersion string
}

// AuthService owns the credential and session lifecycle: registration, login,
// refresh rotation, logout in its three shapes, and the transparent
// reissuance the gate performs when a session's attributes go stale.
type AuthService struct {
	store       store.Store
	revocations *cache.Revocations
	strategy    *josex.Strategy

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService wires the auth service. Zero TTLs fall back to the josex
// defaults (15m access, 7d refresh).
func NewAuthService(
	st store.Store,
	revocations *cache.Revocations,
	strategy *josex.Strategy,
	issuer string,
	accessTTL, refreshTTL time.Duration,
) *AuthService {
	if accessTTL <= 0 {
		accessTTL = josex.DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = josex.DefaultRefreshTokenTTL
	}
	return &AuthService{
		store:       st,
		revocations: revocations,
		strategy:    strategy,
		issuer:      issuer,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
	}
}

// AccessTokenTTL exposes the configured access token lifetime.
func (s *AuthService) AccessTokenTTL() time.Duration { return s.accessTTL }

// Register creates a new user with an argon2id password hash and default
// attributes. Role is always USER here; admins are promoted out of band.
func (s *AuthService) Register(ctx context.Context, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Attributes:   josex.Attributes{SubscriptionTier: "free"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	u.PasswordHash = ""
	return u, nil
}

// Login verifies the credentials and opens (or replaces) the device session.
func (s *AuthService) Login(ctx context.Context, email, password string, device DeviceInfo) (domain.TokenPair, error) {
	u, err := s.store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	return s.mintPair(ctx, u, device)
}

// Refresh redeems a refresh token for a fresh pair. The presented token must
// still verify, must not belong to a logged-out session, and must be the
// exact token the session currently holds; anything else collapses to the
// uniform invalid-token error.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, _, err := s.strategy.Verify(refreshToken)
	if err != nil {
		return domain.TokenPair{}, josex.ErrInvalidToken
	}

	blocked, err := s.revocations.IsLogoutBlacklisted(ctx, claims.SID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("check blacklist: %w", err)
	}
	if blocked {
		return domain.TokenPair{}, josex.ErrInvalidToken
	}

	sess, err := s.store.Sessions().GetSessionBySID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, josex.ErrInvalidToken
		}
		return domain.TokenPair{}, fmt.Errorf("load session: %w", err)
	}

	now := time.Now().UTC()
	if !sess.IsLive(now) {
		return domain.TokenPair{}, josex.ErrInvalidToken
	}

	// Rotation check: a replayed or superseded refresh token no longer
	// matches the session's stored jti and fingerprint.
	if claims.ID != sess.RefreshJTI || cryptox.FingerprintToken(refreshToken) != sess.RefreshHash {
		return domain.TokenPair{}, josex.ErrInvalidToken
	}

	u, err := s.store.Users().GetUserByEmail(ctx, sess.Email)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	device := DeviceInfo{
		Name:           sess.DeviceName,
		OS:             sess.DeviceOS,
		IP:             sess.DeviceIP,
		Browser:        sess.Browser,
		BrowserVersion: sess.BrowserVersion,
	}
	return s.mintPair(ctx, u, device)
}

// Logout closes the caller's own session and blacklists its sid so any
// still-valid access token is rejected immediately.
func (s *AuthService) Logout(ctx context.Context, email, sid string) error {
	if err := s.revocations.BlacklistLogout(ctx, sid); err != nil {
		return fmt.Errorf("blacklist session: %w", err)
	}

	err := s.store.Sessions().DeleteSessionByEmailAndSID(ctx, email, sid)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// LogoutDevice closes one of the caller's other sessions. Naming the caller's
// own sid is rejected; that is what Logout is for.
func (s *AuthService) LogoutDevice(ctx context.Context, email, ownSID, targetSID string) error {
	if targetSID == ownSID {
		return ErrCurrentSession
	}

	err := s.store.Sessions().DeleteSessionByEmailAndSID(ctx, email, targetSID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}

	if err := s.revocations.BlacklistLogout(ctx, targetSID); err != nil {
		return fmt.Errorf("blacklist session: %w", err)
	}
	return nil
}

// LogoutAll closes every session the user holds, blacklisting each sid.
func (s *AuthService) LogoutAll(ctx context.Context, email string) error {
	sessions, err := s.store.Sessions().ListSessionsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	for _, sess := range sessions {
		if err := s.revocations.BlacklistLogout(ctx, sess.SID); err != nil {
			return fmt.Errorf("blacklist session %s: %w", sess.SID, err)
		}
	}

	if err := s.store.Sessions().DeleteSessionsByEmail(ctx, email); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// DeviceSession is a session as shown to its owner. Token material never
// leaves the store.
type DeviceSession struct {
	SID            string    `json:"sid"`
	DeviceName     string    `json:"deviceName"`
	DeviceOS       string    `json:"deviceOs,omitempty"`
	DeviceIP       string    `json:"deviceIp,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browserVersion,omitempty"`
	Current        bool      `json:"current"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Sessions lists the user's live device sessions, flagging the caller's own.
func (s *AuthService) Sessions(ctx context.Context, email, currentSID string) ([]DeviceSession, error) {
	sessions, err := s.store.Sessions().ListSessionsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := time.Now().UTC()
	out := make([]DeviceSession, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.IsLive(now) {
			continue
		}
		out = append(out, DeviceSession{
			SID:            sess.SID,
			DeviceName:     sess.DeviceName,
			DeviceOS:       sess.DeviceOS,
			DeviceIP:       sess.DeviceIP,
			Browser:        sess.Browser,
			BrowserVersion: sess.BrowserVersion,
			Current:        sess.SID == currentSID,
			CreatedAt:      sess.CreatedAt,
			ExpiresAt:      sess.ExpiresAt,
		})
	}
	return out, nil
}

// User returns the profile for an authenticated subject.
func (s *AuthService) User(ctx context.Context, email string) (domain.User, error) {
	u, err := s.store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// UpdateAttributes replaces a user's access-control attributes and flags
// every live session for transparent reissuance. Outstanding tokens keep
// working; they just pick up the new attributes on their next request.
func (s *AuthService) UpdateAttributes(ctx context.Context, email string, attrs josex.Attributes) error {
	if err := s.store.Users().UpdateUserAttributes(ctx, email, attrs); err != nil {
		return err
	}

	sessions, err := s.store.Sessions().ListSessionsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	for _, sess := range sessions {
		if err := s.revocations.MarkAttributesStale(ctx, sess.SID); err != nil {
			return fmt.Errorf("mark session %s stale: %w", sess.SID, err)
		}
	}
	return nil
}

// Reissue mints a replacement pair for a session whose attributes went stale.
// The new pair carries a fresh sid; the device row is replaced in place and
// the staleness marker cleared so the reissue happens exactly once.
func (s *AuthService) Reissue(ctx context.Context, claims josex.Claims) (domain.TokenPair, error) {
	sess, err := s.store.Sessions().GetSessionBySID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, josex.ErrInvalidToken
		}
		return domain.TokenPair{}, fmt.Errorf("load session: %w", err)
	}

	u, err := s.store.Users().GetUserByEmail(ctx, sess.Email)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	device := DeviceInfo{
		Name:           sess.DeviceName,
		OS:             sess.DeviceOS,
		IP:             sess.DeviceIP,
		Browser:        sess.Browser,
		BrowserVersion: sess.BrowserVersion,
	}
	pair, err := s.mintPair(ctx, u, device)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.revocations.ClearAttributesStale(ctx, claims.SID); err != nil {
		return domain.TokenPair{}, fmt.Errorf("clear stale marker: %w", err)
	}
	return pair, nil
}

// mintPair issues an access/refresh pair under a fresh sid and persists the
// device session. When the active provider signs (rather than encrypts), the
// access token's iss is set to the refresh token's jti, pinning the pair
// together.
func (s *AuthService) mintPair(ctx context.Context, u domain.User, device DeviceInfo) (domain.TokenPair, error) {
	provider := s.strategy.Active()
	now := time.Now().UTC()
	sid := idx.New().String()

	refreshClaims := josex.NewClaims(u.Email, u.Role, u.Attributes, sid, s.issuer, s.refreshTTL, now)
	refreshToken, err := provider.Mint(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("mint refresh token: %w", err)
	}

	accessIssuer := s.issuer
	if provider.Kind() == josex.KindJWS {
		accessIssuer = refreshClaims.ID
	}
	accessClaims := josex.NewClaims(u.Email, u.Role, u.Attributes, sid, accessIssuer, s.accessTTL, now)
	accessToken, err := provider.Mint(accessClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("mint access token: %w", err)
	}

	sess := domain.Session{
		ID:             idx.New().String(),
		Email:          u.Email,
		SID:            sid,
		RefreshJTI:     refreshClaims.ID,
		RefreshHash:    cryptox.FingerprintToken(refreshToken),
		DeviceName:     device.Name,
		DeviceOS:       device.OS,
		DeviceIP:       device.IP,
		Browser:        device.Browser,
		BrowserVersion: device.BrowserVersion,
		ExpiresAt:      now.Add(s.refreshTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Sessions().UpsertSession(ctx, sess); err != nil {
		return domain.TokenPair{}, fmt.Errorf("save session: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
		SID:          sid,
	}, nil
}
