package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noorapp/noor/internal/model"
)

// Common errors for profile repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailExists     = errors.New("email already exists")
)

// CreateProfile inserts a new profile into the database.
func (r *Repository) CreateProfile(ctx context.Context, profile *model.Profile) error {
	query := `
		INSERT INTO profiles (id, email, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt, profile.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, query,
		profile.ID,
		profile.Email,
		profile.FullName,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetProfileByEmail retrieves a profile by email address.
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	query := `
		SELECT id, email, full_name, created_at, updated_at
		FROM profiles
		WHERE email = $1
	`

	var profile model.Profile
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}

	return &profile, nil
}

// GetOrCreateProfile gets a profile by email or creates one if not found.
func (r *Repository) GetOrCreateProfile(ctx context.Context, email, fullName string) (*model.Profile, error) {
	existing, err := r.GetProfileByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	profile := &model.Profile{Email: email, FullName: fullName}
	if err := r.CreateProfile(ctx, profile); err != nil {
		// Handle race condition - another request may have created it
		if errors.Is(err, ErrEmailExists) {
			return r.GetProfileByEmail(ctx, email)
		}
		return nil, err
	}

	return profile, nil
}

// GrantRole gives a role to a user. Granting an existing role is a no-op.
func (r *Repository) GrantRole(ctx context.Context, userID string, role model.Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role) DO NOTHING
	`, userID, string(role), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}

// ListRoles returns the roles held by a user.
func (r *Repository) ListRoles(ctx context.Context, userID string) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, model.Role(role))
	}
	return roles, rows.Err()
}
