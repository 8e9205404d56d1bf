package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	findAPIKeyByHashSQL = `SELECT k.id, k.key_hash, k.name, u.id, u.username, u.email, k.scopes
		FROM api_keys k JOIN users u ON u.id = k.user_id
		WHERE k.key_hash = $1 AND k.active`

	upsertUserSQL = `INSERT INTO users (id, username, email) VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, user_id, scopes) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, user_id = EXCLUDED.user_id,
			scopes = EXCLUDED.scopes, active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	q querier
}

// FindByHash looks up an active API key and its owner by the key's
// HMAC-SHA256 hash. Returns auth.ErrNotFound when no key matches.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var k auth.APIKeyInfo
	err := r.q.QueryRow(ctx, findAPIKeyByHashSQL, hash).Scan(
		&k.ID, &k.KeyHash, &k.Name, &k.UserID, &k.Username, &k.Email, &k.Scopes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &k, nil
}

// User is a storefront account.
type User struct {
	ID       string
	Username string
	Email    string
}

// UserRepository manages accounts and their API keys.
type UserRepository struct {
	q querier
}

// Upsert creates the user or updates the email of an existing username.
func (r *UserRepository) Upsert(ctx context.Context, u *User) error {
	if err := r.q.QueryRow(ctx, upsertUserSQL, uuid.NewString(), u.Username, u.Email).Scan(&u.ID); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Username, err)
	}
	return nil
}

// GrantKey stores an API key hash for the user with the given scopes.
func (r *UserRepository) GrantKey(ctx context.Context, userID, name, keyHash string, scopes []string) error {
	if _, err := r.q.Exec(ctx, upsertAPIKeySQL, uuid.NewString(), keyHash, name, userID, scopes); err != nil {
		return fmt.Errorf("granting key %q: %w", name, err)
	}
	return nil
}
