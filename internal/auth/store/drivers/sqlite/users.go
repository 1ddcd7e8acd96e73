package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/pkg/josex"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, role,
	subscription_tier, age, region, parental_controls, accounting_enabled,
	created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Role,
		u.Attributes.SubscriptionTier, u.Attributes.Age, u.Attributes.Region,
		u.Attributes.ParentalControls, u.Attributes.Accounting,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE email = ?`, email)

	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.Attributes.SubscriptionTier, &u.Attributes.Age, &u.Attributes.Region,
		&u.Attributes.ParentalControls, &u.Attributes.Accounting,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) UpdateUserAttributes(ctx context.Context, email string, attrs josex.Attributes) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_tier = ?, age = ?, region = ?,
		    parental_controls = ?, accounting_enabled = ?, updated_at = ?
		WHERE email = ?`,
		attrs.SubscriptionTier, attrs.Age, attrs.Region,
		attrs.ParentalControls, attrs.Accounting, time.Now().UTC(),
		email,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, email string, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
		newHash, time.Now().UTC(), email,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
