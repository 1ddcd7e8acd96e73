package sqlite

import (
	"context"
	"time"

	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/internal/auth/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, email, sid, refresh_jti, refresh_hash,
	device_name, device_os, device_ip, browser, browser_version,
	expires_at, revoked, created_at, updated_at`

// UpsertSession inserts the session, replacing any existing row for the same
// (email, device_name). The replaced row's sid simply stops matching any
// stored session, which is what invalidates the old device login.
func (r *sessionsRepo) UpsertSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email, device_name) DO UPDATE SET
			sid = excluded.sid,
			refresh_jti = excluded.refresh_jti,
			refresh_hash = excluded.refresh_hash,
			device_os = excluded.device_os,
			device_ip = excluded.device_ip,
			browser = excluded.browser,
			browser_version = excluded.browser_version,
			expires_at = excluded.expires_at,
			revoked = excluded.revoked,
			updated_at = excluded.updated_at`,
		s.ID, s.Email, s.SID, s.RefreshJTI, s.RefreshHash,
		s.DeviceName, s.DeviceOS, s.DeviceIP, s.Browser, s.BrowserVersion,
		s.ExpiresAt, s.Revoked, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *sessionsRepo) GetSessionBySID(ctx context.Context, sid string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions WHERE sid = ?`, sid)
	return scanSession(row)
}

func (r *sessionsRepo) ListSessionsByEmail(ctx context.Context, email string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE email = ?
		ORDER BY created_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) DeleteSessionByEmailAndSID(ctx context.Context, email, sid string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE email = ? AND sid = ?`, email, sid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeleteSessionsByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE email = ?`, email)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.Email, &s.SID, &s.RefreshJTI, &s.RefreshHash,
		&s.DeviceName, &s.DeviceOS, &s.DeviceIP, &s.Browser, &s.BrowserVersion,
		&s.ExpiresAt, &s.Revoked, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}
