package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User mirrors the identity provider's view of a person. ExternalID is
// the opaque identifier the provider hands us; it is the scope key for
// every record the user owns.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ImageURL   string    `json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserRepository syncs and looks up users in SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository wraps the shared database handle.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// SyncUser implements find-or-create with upsert-then-find semantics.
// The primary path is a single atomic upsert keyed by the external
// identity, which makes concurrent sign-ins race-free. An email
// collision with a different external id trips the unique constraint
// instead; that rarer race is handled by a compensating disjunctive
// read.
func (r *UserRepository) SyncUser(ctx context.Context, externalID, name, email, imageURL string) (*User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("sync user: external id is required")
	}
	if name == "" {
		name = "no name"
	}
	if email == "" {
		email = "no email"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, external_id, name, email, image_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			image_url = excluded.image_url
	`, uuid.NewString(), externalID, name, email, imageURL)
	if err == nil {
		return r.findByExternalID(ctx, externalID)
	}

	// Likely the email unique constraint: another account already holds
	// this email. Fall back to finding whichever row matches.
	user, findErr := r.findByExternalIDOrEmail(ctx, externalID, email)
	if findErr != nil {
		return nil, fmt.Errorf("sync user: upsert failed (%v) and fallback find failed: %w", err, findErr)
	}
	return user, nil
}

func (r *UserRepository) findByExternalID(ctx context.Context, externalID string) (*User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, email, image_url, created_at
		FROM users WHERE external_id = ?
	`, externalID))
}

func (r *UserRepository) findByExternalIDOrEmail(ctx context.Context, externalID, email string) (*User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, email, image_url, created_at
		FROM users WHERE external_id = ? OR email = ?
	`, externalID, email))
}

func (r *UserRepository) scanUser(row *sql.Row) (*User, error) {
	var u User
	var imageURL sql.NullString
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &imageURL, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ImageURL = imageURL.String
	return &u, nil
}
