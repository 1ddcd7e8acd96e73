package sqlite

import (
	"context"
	"strings"

	"github.com/bbmovie/auth/internal/auth/domain"
)

type signingKeysRepo struct {
	db dbtx
}

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, active, created_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (`+signingKeyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PrivateKeyEncrypted, key.Active, key.CreatedAt,
	)
	return err
}

func (r *signingKeysRepo) GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+signingKeyColumns+`
		FROM signing_keys
		WHERE active = 1
		ORDER BY created_at DESC
		LIMIT 1`)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+signingKeyColumns+`
		FROM signing_keys WHERE kid = ?`, kid)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+signingKeyColumns+`
		FROM signing_keys
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *signingKeysRepo) DeactivateSigningKeys(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE signing_keys SET active = 0 WHERE active = 1`)
	return err
}

func (r *signingKeysRepo) DeleteSigningKeys(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM signing_keys WHERE id IN (`+placeholders+`)`, args...)
	return err
}

func scanSigningKey(row rowScanner) (domain.SigningKey, error) {
	var k domain.SigningKey
	err := row.Scan(
		&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &k.Active, &k.CreatedAt,
	)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	return k, nil
}
