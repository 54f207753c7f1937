package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"unsplash-auth/internal/auth"
	"unsplash-auth/internal/db"

	"github.com/google/uuid"
)

var ErrIncompleteProfile = errors.New("resolver: profile has no provider or user id")

// DBResolver resolves profiles against the users and identities tables.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(ctx context.Context, profile *auth.Profile) (string, error) {
	if profile == nil || profile.Provider == "" || profile.ID == "" {
		return "", ErrIncompleteProfile
	}

	// 1. Known identity
	var userID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM identities
		WHERE provider = $1
		  AND provider_user_id = $2
	`,
		profile.Provider,
		profile.ID,
	).Scan(&userID)

	if err == nil {
		return userID.String(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("resolver: identity lookup: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("resolver: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 2. Existing user with the same email, new provider
	found := false
	if profile.Email != "" {
		err = tx.QueryRowContext(ctx, `
			SELECT id
			FROM users
			WHERE LOWER(email) = LOWER($1)
		`, profile.Email).Scan(&userID)

		switch {
		case err == nil:
			found = true
		case !errors.Is(err, sql.ErrNoRows):
			return "", fmt.Errorf("resolver: email lookup: %w", err)
		}
	}

	// 3. New user
	if !found {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO users (email, display_name)
			VALUES ($1, $2)
			RETURNING id
		`,
			sql.NullString{String: profile.Email, Valid: profile.Email != ""},
			displayName(profile),
		).Scan(&userID)
		if err != nil {
			return "", fmt.Errorf("resolver: create user: %w", err)
		}
	}

	// 4. Identity mapping
	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id, username)
		VALUES ($1, $2, $3, $4)
	`,
		userID,
		profile.Provider,
		profile.ID,
		profile.Username,
	)
	if err != nil {
		return "", fmt.Errorf("resolver: link identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("resolver: commit: %w", err)
	}

	return userID.String(), nil
}

func displayName(p *auth.Profile) string {
	full := strings.TrimSpace(p.Name.FirstName + " " + p.Name.LastName)
	if full != "" {
		return full
	}
	return p.Username
}
