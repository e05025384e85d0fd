package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	id "consentgate/pkg/domain"
	dErrors "consentgate/pkg/domain-errors"
)

// PostgresPasswordVerifier re-checks a user's password against the platform
// users table. Used by terms flagged with the password-on-revoke policy.
type PostgresPasswordVerifier struct {
	db *sql.DB
}

func NewPostgresPasswordVerifier(db *sql.DB) *PostgresPasswordVerifier {
	return &PostgresPasswordVerifier{db: db}
}

func (v *PostgresPasswordVerifier) Verify(ctx context.Context, userID id.UserID, password string) error {
	if password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	var hash string
	err := v.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE id = $1`, uuid.UUID(userID),
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return fmt.Errorf("load password hash: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeForbidden, "invalid password")
		}
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}

// StaticPasswordVerifier compares against fixed hashes. Test and local use.
type StaticPasswordVerifier struct {
	hashes map[id.UserID]string // bcrypt hashes
}

func NewStaticPasswordVerifier(hashes map[id.UserID]string) *StaticPasswordVerifier {
	return &StaticPasswordVerifier{hashes: hashes}
}

func (v *StaticPasswordVerifier) Verify(_ context.Context, userID id.UserID, password string) error {
	hash, ok := v.hashes[userID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return dErrors.New(dErrors.CodeForbidden, "invalid password")
	}
	return nil
}
